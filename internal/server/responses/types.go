// Package responses defines API response types used by updraft HTTP handlers.
package responses

import "time"

// AssetInfo describes one build output asset in API payloads.
type AssetInfo struct {
	Key           string `json:"key"`
	Hash          string `json:"hash"`
	ContentType   string `json:"contentType"`
	FileExtension string `json:"fileExtension,omitempty"`
	URL           string `json:"url,omitempty"`
}

// SubmitAcceptedResponse acknowledges a queued build submission.
type SubmitAcceptedResponse struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Platform       string    `json:"platform"`
	RuntimeVersion string    `json:"runtimeVersion,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// BuildResponse is the full build record view. ManifestURL and DeepLink are
// only populated for successful builds.
type BuildResponse struct {
	ID             string      `json:"id"`
	ProjectKey     string      `json:"projectKey"`
	Status         string      `json:"status"`
	Platform       string      `json:"platform"`
	RuntimeVersion string      `json:"runtimeVersion,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
	Error          string      `json:"error,omitempty"`
	Assets         []AssetInfo `json:"assets,omitempty"`
	ManifestURL    string      `json:"manifestUrl,omitempty"`
	DeepLink       string      `json:"deepLink,omitempty"`
}

// BuildListResponse wraps a build listing.
type BuildListResponse struct {
	Builds []BuildResponse `json:"builds"`
	Count  int             `json:"count"`
}

// WebhookRequest is the executor's callback payload. Status is either a
// terminal status (success, failed) or an intermediate phase report.
type WebhookRequest struct {
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Assets []AssetInfo `json:"assets,omitempty"`
}

// WebhookAckResponse acknowledges a webhook delivery.
type WebhookAckResponse struct {
	Status  string `json:"status"`
	BuildID string `json:"buildId"`
}

// AssetUploadResponse acknowledges a stored executor asset.
type AssetUploadResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Size   int    `json:"size"`
}

// BuildNotReadyResponse reports a known build that has no servable manifest
// yet; the status field lets clients distinguish in-flight from failed.
type BuildNotReadyResponse struct {
	Error  string `json:"error"`
	ID     string `json:"id"`
	Status string `json:"status"`
}

// HealthResponse represents the liveness check payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
