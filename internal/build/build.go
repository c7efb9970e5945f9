// Package build defines the build record domain model shared by the
// coordinator, stores, and HTTP layers.
package build

import (
	"encoding/json"
	"time"
)

// Platform identifies the build target requested at submission.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformAll     Platform = "all"
)

// Valid reports whether p is a known platform target.
func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid || p == PlatformAll
}

// SourceConfig is the application metadata captured at submission time.
// It is never mutated after the record is created.
type SourceConfig struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	Owner          string `json:"owner,omitempty"`
	Version        string `json:"version,omitempty"`
	SDKVersion     string `json:"sdkVersion,omitempty"`
	RuntimeVersion string `json:"runtimeVersion,omitempty"`
}

// Asset describes one build output reported by the executor. Hash is the
// SHA-256 of the asset bytes, base64url-encoded without padding; clients rely
// on it for indefinite caching.
type Asset struct {
	Key           string `json:"key"`
	Hash          string `json:"hash"`
	ContentType   string `json:"contentType"`
	FileExtension string `json:"fileExtension,omitempty"`
	URL           string `json:"url,omitempty"`
}

// Record represents one build attempt.
type Record struct {
	ID             string          `json:"id"`
	ProjectKey     string          `json:"projectKey"`
	Status         Status          `json:"status"`
	Platform       Platform        `json:"platform"`
	RuntimeVersion string          `json:"runtimeVersion"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	Error          string          `json:"error,omitempty"`
	Source         SourceConfig    `json:"sourceConfig"`
	Manifest       json.RawMessage `json:"manifest,omitempty"`
	Assets         []Asset         `json:"assetList,omitempty"`
}

// Outcome is a terminal or intermediate result delivered by the executor
// through the webhook callback.
type Outcome struct {
	Status Status  `json:"status"`
	Error  string  `json:"error,omitempty"`
	Assets []Asset `json:"assets,omitempty"`
}
