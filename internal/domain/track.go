package domain

import "time"

// DownloadStatus tracks the audio fetch step of a Track.
type DownloadStatus string

const (
	DownloadPending     DownloadStatus = "pending"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadDone        DownloadStatus = "done"
	DownloadFailed      DownloadStatus = "failed"
)

// EmbedStatus tracks the embedding step of a Track.
type EmbedStatus string

const (
	EmbedPending    EmbedStatus = "pending"
	EmbedProcessing EmbedStatus = "processing"
	EmbedStored     EmbedStatus = "stored"
	EmbedFailed     EmbedStatus = "failed"
)

// Track is one library entry moving through the download and embed pipelines.
// Metadata fields are written once at sync time; only the status columns,
// FilePath and UpdatedAt change afterwards.
type Track struct {
	ID             string         `gorm:"type:text;primaryKey" json:"id"`
	Title          string         `gorm:"type:text;not null" json:"title"`
	Artist         string         `gorm:"type:text" json:"artist"`
	Album          string         `gorm:"type:text" json:"album"`
	AlbumArtURL    string         `gorm:"type:text" json:"album_art_url"`
	ExternalURL    string         `gorm:"type:text" json:"external_url"`
	URI            string         `gorm:"type:text" json:"uri"`
	AddedAt        string         `gorm:"type:text" json:"added_at"`
	DownloadStatus DownloadStatus `gorm:"type:text;not null;default:pending;index" json:"download_status"`
	EmbedStatus    EmbedStatus    `gorm:"type:text;not null;default:pending;index" json:"embed_status"`
	FilePath       string         `gorm:"type:text" json:"file_path,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Track.
func (Track) TableName() string {
	return "tracks"
}

// LibraryStats summarises pipeline coverage across all tracks.
type LibraryStats struct {
	Total      int64 `json:"total"`
	Downloaded int64 `json:"downloaded"`
	Embedded   int64 `json:"embedded"`
}
