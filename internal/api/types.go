package api

import (
	"time"

	"cointist/internal/model"
	"cointist/internal/registrar"
)

// RegisterRequest selects items by key.
type RegisterRequest struct {
	Keys []string `json:"keys"`
}

// RunResponse describes a registered run and its workers.
type RunResponse struct {
	Token     string         `json:"token"`
	File      string         `json:"file"`
	StartedAt time.Time      `json:"startedAt"`
	Items     []model.Item   `json:"items"`
	Workers   []WorkerStatus `json:"workers"`
}

// WorkerStatus is a dispatched worker with its current liveness.
type WorkerStatus struct {
	Slug       string `json:"slug"`
	PID        int    `json:"pid,omitempty"`
	LogPath    string `json:"logPath,omitempty"`
	OutputPath string `json:"outputPath,omitempty"`
	Dispatched bool   `json:"dispatched"`
	Alive      bool   `json:"alive"`
	Done       bool   `json:"done"`
	Error      string `json:"error,omitempty"`
}

// LogsResponse is one tail of a worker log. Pass Offset back to continue.
type LogsResponse struct {
	Token  string   `json:"token"`
	Slug   string   `json:"slug"`
	Path   string   `json:"path"`
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// RegisterResponse wraps a registration.
type RegisterResponse struct {
	registrar.Registration
	Dispatched int `json:"dispatched"`
}

// ResolveRequest carries items to backfill.
type ResolveRequest struct {
	Items []model.Item `json:"items"`
}

// ResolveResponse returns the updated items and the resolution report.
type ResolveResponse struct {
	Items      []model.Item    `json:"items"`
	Resolved   []model.Outcome `json:"resolved"`
	Unresolved []int           `json:"unresolved"`
}

// ExportRequest carries the selected batch. Items is accepted as an alias.
type ExportRequest struct {
	Selected []model.Item `json:"selected"`
	Items    []model.Item `json:"items,omitempty"`
}

// RejectionResponse is returned with 422 when export validation fails.
type RejectionResponse struct {
	Error          string `json:"error"`
	InvalidIndexes []int  `json:"invalidIndexes"`
	MissingCount   int    `json:"missingCount"`
}

// StatusResponse summarizes directories and artifact counts.
type StatusResponse struct {
	ArtifactDir    string         `json:"artifactDir"`
	WorkerLogDir   string         `json:"workerLogDir"`
	ExportFile     string         `json:"exportFile"`
	SlugMapFile    string         `json:"slugMapFile"`
	ArtifactsReady bool           `json:"artifactsReady"`
	Artifacts      map[string]int `json:"artifacts"`
	WorkerLogs     int            `json:"workerLogs"`
	SlugMapEntries int            `json:"slugMapEntries"`
	Tiers          []model.Tier   `json:"tiers,omitempty"`
	LatestSummary  string         `json:"latestSummary,omitempty"`
}

// ErrorResponse is the generic error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
