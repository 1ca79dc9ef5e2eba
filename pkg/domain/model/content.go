package model

import (
	"bytes"
	"encoding/json"
	"maps"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// JSON keys owned by the cache manager. Every other key of a content document is
// treated as opaque metadata and passed through unchanged.
const (
	FieldID           = "id"
	FieldMediaURLs    = "mediaUrls"
	FieldDownloadedAt = "downloadedAt"
)

// ContentDescriptor describes one downloadable learning item and its media URLs.
type ContentDescriptor struct {
	ID        string
	MediaURLs []string
	Metadata  map[string]any
}

// CachedMediaEntry pairs a remote media URL with the file it was saved to.
type CachedMediaEntry struct {
	RemoteURL string `json:"remoteUrl"`
	LocalPath string `json:"localPath"`
}

// OfflineContentRecord is the locally cached copy of a ContentDescriptor.
type OfflineContentRecord struct {
	ID           string
	MediaURLs    []CachedMediaEntry
	DownloadedAt time.Time
	Metadata     map[string]any
}

// CacheFlag is the partial update mirrored into the remote content document.
// A nil LastDownloaded clears the remote timestamp.
type CacheFlag struct {
	IsDownloaded   bool
	LastDownloaded *time.Time
}

// NewOfflineContentRecord builds a record from a descriptor and its downloaded media.
func NewOfflineContentRecord(d *ContentDescriptor, media []CachedMediaEntry, downloadedAt time.Time) *OfflineContentRecord {
	if media == nil {
		media = []CachedMediaEntry{}
	}
	return &OfflineContentRecord{
		ID:           d.ID,
		MediaURLs:    media,
		DownloadedAt: downloadedAt,
		Metadata:     maps.Clone(d.Metadata),
	}
}

// ValidateContentID checks that id can be used as a single directory name under the
// download root.
func ValidateContentID(id string) error {
	switch {
	case id == "":
		return goerr.New("content id is empty")
	case id == "." || id == "..":
		return goerr.New("content id is a relative path element", goerr.V("id", id))
	case strings.HasPrefix(id, "."):
		return goerr.New("content id must not start with a dot", goerr.V("id", id))
	case strings.ContainsAny(id, `/\`+"\x00"):
		return goerr.New("content id contains a path separator", goerr.V("id", id))
	}
	return nil
}

func (d ContentDescriptor) MarshalJSON() ([]byte, error) {
	m := flatten(d.Metadata)
	m[FieldID] = d.ID
	urls := d.MediaURLs
	if urls == nil {
		urls = []string{}
	}
	m[FieldMediaURLs] = urls
	return json.Marshal(m)
}

func (d *ContentDescriptor) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	fields, err := splitFields(data)
	if err != nil {
		return err
	}

	*d = ContentDescriptor{}
	if raw, ok := fields[FieldID]; ok {
		if err := json.Unmarshal(raw, &d.ID); err != nil {
			return goerr.Wrap(err, "invalid id field")
		}
		delete(fields, FieldID)
	}
	if raw, ok := fields[FieldMediaURLs]; ok {
		if err := json.Unmarshal(raw, &d.MediaURLs); err != nil {
			return goerr.Wrap(err, "invalid mediaUrls field", goerr.V("id", d.ID))
		}
		delete(fields, FieldMediaURLs)
	}

	d.Metadata, err = decodeMetadata(fields)
	return err
}

func (r OfflineContentRecord) MarshalJSON() ([]byte, error) {
	m := flatten(r.Metadata)
	m[FieldID] = r.ID
	media := r.MediaURLs
	if media == nil {
		media = []CachedMediaEntry{}
	}
	m[FieldMediaURLs] = media
	m[FieldDownloadedAt] = r.DownloadedAt
	return json.Marshal(m)
}

func (r *OfflineContentRecord) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	fields, err := splitFields(data)
	if err != nil {
		return err
	}

	*r = OfflineContentRecord{}
	if raw, ok := fields[FieldID]; ok {
		if err := json.Unmarshal(raw, &r.ID); err != nil {
			return goerr.Wrap(err, "invalid id field")
		}
		delete(fields, FieldID)
	}
	if raw, ok := fields[FieldMediaURLs]; ok {
		if err := json.Unmarshal(raw, &r.MediaURLs); err != nil {
			return goerr.Wrap(err, "invalid mediaUrls field", goerr.V("id", r.ID))
		}
		delete(fields, FieldMediaURLs)
	}
	if raw, ok := fields[FieldDownloadedAt]; ok {
		if err := json.Unmarshal(raw, &r.DownloadedAt); err != nil {
			return goerr.Wrap(err, "invalid downloadedAt field", goerr.V("id", r.ID))
		}
		delete(fields, FieldDownloadedAt)
	}

	r.Metadata, err = decodeMetadata(fields)
	return err
}

func flatten(metadata map[string]any) map[string]any {
	m := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		switch k {
		case FieldID, FieldMediaURLs, FieldDownloadedAt:
			continue
		}
		m[k] = v
	}
	return m
}

func splitFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, goerr.Wrap(err, "content document is not a JSON object")
	}
	return fields, nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// decodeMetadata keeps numbers as json.Number so integers are not widened to float64.
func decodeMetadata(fields map[string]json.RawMessage) (map[string]any, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	metadata := make(map[string]any, len(fields))
	for k, raw := range fields {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, goerr.Wrap(err, "invalid metadata field", goerr.V("field", k))
		}
		metadata[k] = v
	}
	return metadata, nil
}
