package repository

import (
	"context"
	"time"

	"github.com/timmy/vibesearch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrackRepository persists Track records and their pipeline status.
//
// Every status transition is a single conditional UPDATE so concurrent
// download workers never need a read-modify-write round trip.
type TrackRepository struct {
	db *gorm.DB
}

// NewTrackRepository creates a new TrackRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *TrackRepository: repository instance bound to db.
func NewTrackRepository(db *gorm.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// CreateIfAbsent inserts track unless a record with the same id exists.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - track: record to insert; statuses default to pending.
//
// Returns:
//   - bool: true if a new row was written.
//   - error: non-nil if the insert fails.
func (r *TrackRepository) CreateIfAbsent(ctx context.Context, track *domain.Track) (bool, error) {
	if track.DownloadStatus == "" {
		track.DownloadStatus = domain.DownloadPending
	}
	if track.EmbedStatus == "" {
		track.EmbedStatus = domain.EmbedPending
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(track)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Exists reports whether a track with id is stored.
func (r *TrackRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Track{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByID retrieves a track by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: track ID.
//
// Returns:
//   - *domain.Track: track record if found.
//   - error: gorm.ErrRecordNotFound if missing.
func (r *TrackRepository) GetByID(ctx context.Context, id string) (*domain.Track, error) {
	var track domain.Track
	if err := r.db.WithContext(ctx).First(&track, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &track, nil
}

// Delete removes the track row. Returns gorm.ErrRecordNotFound if no row matched.
func (r *TrackRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.Track{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns every track, oldest first.
func (r *TrackRepository) List(ctx context.Context) ([]domain.Track, error) {
	var tracks []domain.Track
	err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&tracks).Error
	return tracks, err
}

// ListByDownloadStatus returns tracks in the given download state, oldest first.
func (r *TrackRepository) ListByDownloadStatus(ctx context.Context, status domain.DownloadStatus) ([]domain.Track, error) {
	var tracks []domain.Track
	err := r.db.WithContext(ctx).
		Where("download_status = ?", status).
		Order("created_at ASC, id ASC").
		Find(&tracks).Error
	return tracks, err
}

// ListEmbeddable returns tracks that are downloaded but not yet embedded.
func (r *TrackRepository) ListEmbeddable(ctx context.Context) ([]domain.Track, error) {
	var tracks []domain.Track
	err := r.db.WithContext(ctx).
		Where("download_status = ? AND embed_status = ?", domain.DownloadDone, domain.EmbedPending).
		Order("created_at ASC, id ASC").
		Find(&tracks).Error
	return tracks, err
}

// Stats counts all, downloaded and embedded tracks.
func (r *TrackRepository) Stats(ctx context.Context) (domain.LibraryStats, error) {
	var stats domain.LibraryStats
	db := r.db.WithContext(ctx).Model(&domain.Track{})

	if err := db.Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	if err := r.db.WithContext(ctx).Model(&domain.Track{}).
		Where("download_status = ?", domain.DownloadDone).Count(&stats.Downloaded).Error; err != nil {
		return stats, err
	}
	if err := r.db.WithContext(ctx).Model(&domain.Track{}).
		Where("embed_status = ?", domain.EmbedStored).Count(&stats.Embedded).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// MarkDownloading claims a pending track for a download worker.
// Returns false if the track was not pending.
func (r *TrackRepository) MarkDownloading(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id,
		"download_status = ?", []interface{}{domain.DownloadPending},
		map[string]interface{}{"download_status": domain.DownloadDownloading, "file_path": ""})
}

// MarkDownloadDone records a verified audio file for id.
func (r *TrackRepository) MarkDownloadDone(ctx context.Context, id, filePath string) error {
	_, err := r.transition(ctx, id,
		"download_status = ?", []interface{}{domain.DownloadDownloading},
		map[string]interface{}{"download_status": domain.DownloadDone, "file_path": filePath})
	return err
}

// MarkDownloadFailed moves an in-flight download to failed.
func (r *TrackRepository) MarkDownloadFailed(ctx context.Context, id string) error {
	_, err := r.transition(ctx, id,
		"download_status = ?", []interface{}{domain.DownloadDownloading},
		map[string]interface{}{"download_status": domain.DownloadFailed, "file_path": ""})
	return err
}

// ReconcileDone marks a track done because its audio file exists on disk.
// Returns false if the track was already done.
func (r *TrackRepository) ReconcileDone(ctx context.Context, id, filePath string) (bool, error) {
	return r.transition(ctx, id,
		"download_status <> ?", []interface{}{domain.DownloadDone},
		map[string]interface{}{"download_status": domain.DownloadDone, "file_path": filePath})
}

// ReconcilePending returns a done track to pending because its file is gone.
func (r *TrackRepository) ReconcilePending(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id,
		"download_status = ?", []interface{}{domain.DownloadDone},
		map[string]interface{}{"download_status": domain.DownloadPending, "file_path": ""})
}

// ResetDownloads moves every track in one of from back to pending.
// Used for interrupted (downloading) and retried (failed) records.
func (r *TrackRepository) ResetDownloads(ctx context.Context, from ...domain.DownloadStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Track{}).
		Where("download_status IN ?", from).
		Updates(map[string]interface{}{
			"download_status": domain.DownloadPending,
			"file_path":       "",
			"updated_at":      time.Now(),
		})
	return res.RowsAffected, res.Error
}

// MarkEmbedProcessing claims a track for embedding. The update only applies
// while the track is downloaded and still pending, so the embed status can
// never leave pending without a local file.
func (r *TrackRepository) MarkEmbedProcessing(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id,
		"download_status = ? AND embed_status = ?", []interface{}{domain.DownloadDone, domain.EmbedPending},
		map[string]interface{}{"embed_status": domain.EmbedProcessing})
}

// MarkEmbedStored finishes a successful embed.
func (r *TrackRepository) MarkEmbedStored(ctx context.Context, id string) error {
	_, err := r.transition(ctx, id,
		"embed_status = ?", []interface{}{domain.EmbedProcessing},
		map[string]interface{}{"embed_status": domain.EmbedStored})
	return err
}

// MarkEmbedFailed finishes a failed embed.
func (r *TrackRepository) MarkEmbedFailed(ctx context.Context, id string) error {
	_, err := r.transition(ctx, id,
		"embed_status = ?", []interface{}{domain.EmbedProcessing},
		map[string]interface{}{"embed_status": domain.EmbedFailed})
	return err
}

// ResetEmbeds moves every track in one of from back to pending.
func (r *TrackRepository) ResetEmbeds(ctx context.Context, from ...domain.EmbedStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Track{}).
		Where("embed_status IN ?", from).
		Updates(map[string]interface{}{
			"embed_status": domain.EmbedPending,
			"updated_at":   time.Now(),
		})
	return res.RowsAffected, res.Error
}

// transition applies updates to id when cond holds, bumping updated_at.
func (r *TrackRepository) transition(ctx context.Context, id, cond string, args []interface{}, updates map[string]interface{}) (bool, error) {
	updates["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).Model(&domain.Track{}).
		Where("id = ?", id).
		Where(cond, args...).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
