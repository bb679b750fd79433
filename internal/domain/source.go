package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// SourceKind names where a sync run reads track metadata from.
type SourceKind string

const (
	SourcePlaylist SourceKind = "playlist"
	SourceLiked    SourceKind = "liked"
	SourceManifest SourceKind = "manifest"
)

// RunParams is a free-form JSON column holding the arguments a run was started with.
type RunParams map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the params.
//   - error: non-nil if marshaling fails.
func (p RunParams) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
//
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (p *RunParams) Scan(value interface{}) error {
	if value == nil {
		*p = RunParams{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan RunParams")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, p)
}
