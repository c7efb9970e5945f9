package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/updraft/internal/blob"
	"git.home.luguber.info/inful/updraft/internal/build"
	"git.home.luguber.info/inful/updraft/internal/coordinator"
	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/logfields"
	"git.home.luguber.info/inful/updraft/internal/server/responses"
)

// maxAssetBytes bounds a single uploaded build output asset.
const maxAssetBytes = 512 << 20

// BuildResolver defines the coordinator methods needed by webhook handlers.
type BuildResolver interface {
	Resolve(ctx context.Context, buildID string, outcome build.Outcome) error
}

// WebhookHandlers contains the executor callback and asset upload handlers.
type WebhookHandlers struct {
	resolver     BuildResolver
	blobs        blob.Store
	errorAdapter *derrors.HTTPErrorAdapter
}

// NewWebhookHandlers creates a new webhook handlers instance.
func NewWebhookHandlers(resolver BuildResolver, blobs blob.Store) *WebhookHandlers {
	return &WebhookHandlers{
		resolver:     resolver,
		blobs:        blobs,
		errorAdapter: derrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleWebhook handles POST /api/webhook/builds/{id}. Terminal deliveries are
// idempotent; the executor may retry without consequence.
func (h *WebhookHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	buildID := r.PathValue("id")

	var req responses.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		verr := derrors.ValidationError("webhook body is not valid JSON").
			WithContext("parse_error", err.Error()).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, verr)
		return
	}

	outcome := build.Outcome{
		Status: build.Status(req.Status),
		Error:  req.Error,
	}
	for _, a := range req.Assets {
		outcome.Assets = append(outcome.Assets, build.Asset{
			Key:           a.Key,
			Hash:          a.Hash,
			ContentType:   a.ContentType,
			FileExtension: a.FileExtension,
			URL:           a.URL,
		})
	}

	if err := h.resolver.Resolve(r.Context(), buildID, outcome); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	ack := &responses.WebhookAckResponse{Status: "ok", BuildID: buildID}
	if err := writeJSON(w, http.StatusOK, ack); err != nil {
		internalErr := derrors.WrapError(err, derrors.CategoryInternal, "failed to encode webhook ack").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

// HandleAssetUpload handles PUT /api/builds/{id}/assets/{key...}. The raw body
// is stored in the blob store under the build's asset path; remote executors
// use this before reporting success.
func (h *WebhookHandlers) HandleAssetUpload(w http.ResponseWriter, r *http.Request) {
	buildID := r.PathValue("id")
	key := r.PathValue("key")
	if key == "" {
		verr := derrors.ValidationError("asset key is required").Build()
		h.errorAdapter.WriteErrorResponse(w, r, verr)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxAssetBytes))
	if err != nil {
		ierr := derrors.WrapError(err, derrors.CategoryInternal, "failed to read asset upload").Build()
		h.errorAdapter.WriteErrorResponse(w, r, ierr)
		return
	}
	if len(data) == 0 {
		verr := derrors.ValidationError("asset payload is empty").
			WithContext("asset_key", key).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, verr)
		return
	}

	if err := h.blobs.Put(r.Context(), coordinator.AssetPath(buildID, key), data); err != nil {
		serr := derrors.WrapError(err, derrors.CategoryStorage, "failed to store asset").
			WithContext("asset_key", key).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, serr)
		return
	}

	slog.Debug("stored executor asset",
		logfields.BuildID(buildID),
		logfields.AssetKey(key))

	resp := &responses.AssetUploadResponse{Status: "stored", Key: key, Size: len(data)}
	if err := writeJSON(w, http.StatusCreated, resp); err != nil {
		internalErr := derrors.WrapError(err, derrors.CategoryInternal, "failed to encode upload response").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}
