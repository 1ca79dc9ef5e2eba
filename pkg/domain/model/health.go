package model

// HealthStatus represents the health check status
type HealthStatus struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Version        string `json:"version"`
	CachedContents int    `json:"cached_contents"`
}
