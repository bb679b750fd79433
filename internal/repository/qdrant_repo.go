package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultVectorDimension = 512

// trackNamespace seeds deterministic point ids; Qdrant only accepts
// unsigned integers or UUIDs, and track ids are neither.
var trackNamespace = uuid.MustParse("6f1c2f4e-8d0a-5b8e-9a57-3c1d2b7e4f10")

// PointID maps a track id to its stable Qdrant point id.
func PointID(trackID string) string {
	return uuid.NewSHA1(trackNamespace, []byte(trackID)).String()
}

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool
	VectorDimension int
}

func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository stores track embeddings in a cosine Qdrant collection.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist and checks
// the vector size of an existing one.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok && size != uint64(r.vectorDimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:           optionalUint64(16),
			EfConstruct: optionalUint64(100),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}
	if single := vectors.GetParams(); single != nil && single.GetSize() > 0 {
		return single.GetSize(), true
	}
	for _, params := range vectors.GetParamsMap().GetMap() {
		if params.GetSize() > 0 {
			return params.GetSize(), true
		}
	}
	return 0, false
}

// Upsert writes the embedding for trackID. Repeating it replaces the point.
func (r *QdrantRepository) Upsert(ctx context.Context, trackID string, vector []float32, payload *TrackPayload) error {
	wait := true
	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Wait:           &wait,
		Points: []*pb.PointStruct{
			{
				Id: &pb.PointId{
					PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(trackID)},
				},
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{
						Vector: &pb.Vector{Data: vector},
					},
				},
				Payload: map[string]*pb.Value{
					"track_id":      stringValue(trackID),
					"title":         stringValue(payload.Title),
					"artist":        stringValue(payload.Artist),
					"album":         stringValue(payload.Album),
					"album_art_url": stringValue(payload.AlbumArtURL),
					"external_url":  stringValue(payload.ExternalURL),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// Search returns the topK nearest tracks. Qdrant reports cosine similarity,
// which is converted back to a distance here.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int) ([]VectorHit, error) {
	resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]VectorHit, len(resp.GetResult()))
	for i, scored := range resp.GetResult() {
		payload := parsePayload(scored.GetPayload())
		hits[i] = VectorHit{
			ID:       payload.TrackID,
			Distance: 1 - float64(scored.GetScore()),
			Payload:  payload,
		}
	}

	return hits, nil
}

// Count returns the exact number of stored points.
func (r *QdrantRepository) Count(ctx context.Context) (int64, error) {
	exact := true
	resp, err := r.pointsClient.Count(ctx, &pb.CountPoints{
		CollectionName: r.collectionName,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

func parsePayload(payload map[string]*pb.Value) *TrackPayload {
	p := &TrackPayload{}
	if payload == nil {
		return p
	}
	p.TrackID = payload["track_id"].GetStringValue()
	p.Title = payload["title"].GetStringValue()
	p.Artist = payload["artist"].GetStringValue()
	p.Album = payload["album"].GetStringValue()
	p.AlbumArtURL = payload["album_art_url"].GetStringValue()
	p.ExternalURL = payload["external_url"].GetStringValue()
	return p
}

// Delete removes the point for trackID.
func (r *QdrantRepository) Delete(ctx context.Context, trackID string) error {
	_, err := r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(trackID)}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}
