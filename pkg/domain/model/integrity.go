package model

// Reasons an index entry is evicted by an integrity check.
const (
	EvictReasonMissingDirectory = "missing_directory"
	EvictReasonMissingFile      = "missing_file"
	EvictReasonRemoteDeleted    = "remote_deleted"
)

// VerifyOptions selects the optional passes of an integrity check.
type VerifyOptions struct {
	// CheckRemote evicts entries whose remote content document no longer exists.
	CheckRemote bool
	// RemoveOrphans deletes directories under the download root that the index does
	// not reference, including abandoned staging directories.
	RemoveOrphans bool
}

// EvictedContent is one index entry dropped by an integrity check.
type EvictedContent struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Path   string `json:"path,omitempty"`
}

// IntegrityReport summarizes an integrity check.
type IntegrityReport struct {
	Checked        int              `json:"checked"`
	Evicted        []EvictedContent `json:"evicted"`
	RemovedOrphans []string         `json:"removedOrphans"`
}
