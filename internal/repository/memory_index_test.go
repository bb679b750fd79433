package repository

import (
	"context"
	"math"
	"testing"
)

func TestMemoryIndex_SearchOrdersByDistance(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	idx.Upsert(ctx, "east", []float32{1, 0}, &TrackPayload{Title: "East"})
	idx.Upsert(ctx, "north", []float32{0, 1}, &TrackPayload{Title: "North"})
	idx.Upsert(ctx, "northeast", []float32{1, 1}, &TrackPayload{Title: "Northeast"})

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "east" || hits[1].ID != "northeast" {
		t.Errorf("order = %s, %s", hits[0].ID, hits[1].ID)
	}
	if hits[0].Distance > 1e-9 {
		t.Errorf("identical vector distance = %v, want 0", hits[0].Distance)
	}
	if want := 1 - 1/math.Sqrt2; math.Abs(hits[1].Distance-want) > 1e-6 {
		t.Errorf("distance = %v, want %v", hits[1].Distance, want)
	}
	if hits[0].Payload.Title != "East" || hits[0].Payload.TrackID != "east" {
		t.Errorf("payload = %+v", hits[0].Payload)
	}
}

func TestMemoryIndex_UpsertIsIdempotent(t *testing.T) {
	idx := NewMemoryIndex(0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := idx.Upsert(ctx, "t1", []float32{0.5, 0.5, 0}, &TrackPayload{Title: "Same"}); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}

	if err := idx.Upsert(ctx, "t2", []float32{1, 0}, nil); err == nil {
		t.Error("expected dimension mismatch error")
	}

	idx.Delete(ctx, "t1")
	if n, _ := idx.Count(ctx); n != 0 {
		t.Errorf("Count() after delete = %d, want 0", n)
	}
}

// TestPointIDDeterministic verifies that the same track always maps to the same point
func TestPointIDDeterministic(t *testing.T) {
	testCases := []struct {
		name    string
		trackID string
	}{
		{name: "spotify id", trackID: "4uLU6hMCjMI75M1A2tKUQC"},
		{name: "manifest id", trackID: "local-0001"},
		{name: "empty", trackID: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			first := PointID(tc.trackID)
			second := PointID(tc.trackID)

			if first != second {
				t.Errorf("PointID mismatch: first=%s, second=%s", first, second)
			}
			if len(first) != 36 {
				t.Errorf("Invalid UUID length: got %d, want 36", len(first))
			}
		})
	}

	if PointID("a") == PointID("b") {
		t.Error("different tracks should produce different point ids")
	}
}
