package service

import "time"

// DocumentStatus describes one reconciled document as the manifest records
// it.
type DocumentStatus struct {
	Path          string    `json:"path"`
	Chunks        int       `json:"chunks"`
	LastProcessed time.Time `json:"last_processed"`
}

// Status summarizes the reconciled corpus.
type Status struct {
	ManifestURL    string           `json:"manifest_url"`
	TotalDocuments int              `json:"total_documents"`
	TotalChunks    int              `json:"total_chunks"`
	Documents      []DocumentStatus `json:"documents"`
}

// ExportStats reports one warehouse publish.
type ExportStats struct {
	Table     string `json:"table"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
}
