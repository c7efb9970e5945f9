package handlers

import (
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"

	"git.home.luguber.info/inful/updraft/internal/blob"
	"git.home.luguber.info/inful/updraft/internal/coordinator"
	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/logfields"
	"git.home.luguber.info/inful/updraft/internal/metrics"
)

// assetExtensionFallbacks is the fixed probe order for bundle lookups whose
// stored file carries an extension the manifest key omits.
var assetExtensionFallbacks = []string{".bundle", ".js", ".hbc", ".map"}

// AssetHandlers serves build output assets and submitted archives from the
// blob store.
type AssetHandlers struct {
	blobs        blob.Store
	recorder     metrics.Recorder
	errorAdapter *derrors.HTTPErrorAdapter
}

// NewAssetHandlers creates a new asset handlers instance.
func NewAssetHandlers(blobs blob.Store, recorder metrics.Recorder) *AssetHandlers {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &AssetHandlers{
		blobs:        blobs,
		recorder:     recorder,
		errorAdapter: derrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleAsset handles GET /api/assets/{id}/{key...}. The exact key is tried
// first, then each fallback extension in order.
func (h *AssetHandlers) HandleAsset(w http.ResponseWriter, r *http.Request) {
	buildID := r.PathValue("id")
	key := r.PathValue("key")

	data, resolvedKey, err := h.lookupAsset(r, buildID, key)
	if err != nil {
		if blob.IsNotFound(err) {
			nerr := derrors.NotFoundError("unknown asset").
				WithContext("build_id", buildID).
				WithContext("asset_key", key).
				Build()
			h.errorAdapter.WriteErrorResponse(w, r, nerr)
			return
		}
		serr := derrors.WrapError(err, derrors.CategoryStorage, "failed to read asset").Build()
		h.errorAdapter.WriteErrorResponse(w, r, serr)
		return
	}

	h.recorder.IncAssetRequest()
	slog.Debug("serving asset",
		logfields.BuildID(buildID),
		logfields.AssetKey(resolvedKey))

	w.Header().Set("Content-Type", contentTypeForKey(resolvedKey))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, werr := w.Write(data); werr != nil {
		slog.Error("failed writing asset body", logfields.Error(werr))
	}
}

func (h *AssetHandlers) lookupAsset(r *http.Request, buildID, key string) ([]byte, string, error) {
	data, err := h.blobs.Get(r.Context(), coordinator.AssetPath(buildID, key))
	if err == nil {
		return data, key, nil
	}
	if !blob.IsNotFound(err) {
		return nil, "", err
	}

	for _, ext := range assetExtensionFallbacks {
		candidate := key + ext
		data, err = h.blobs.Get(r.Context(), coordinator.AssetPath(buildID, candidate))
		if err == nil {
			return data, candidate, nil
		}
		if !blob.IsNotFound(err) {
			return nil, "", err
		}
	}
	return nil, "", blob.ErrNotFound{Path: coordinator.AssetPath(buildID, key)}
}

// HandleArchive handles GET /api/archives/{id}; executors download the
// submitted source archive from here.
func (h *AssetHandlers) HandleArchive(w http.ResponseWriter, r *http.Request) {
	buildID := r.PathValue("id")

	data, err := h.blobs.Get(r.Context(), coordinator.ArchivePath(buildID))
	if err != nil {
		if blob.IsNotFound(err) {
			nerr := derrors.NotFoundError("unknown archive").
				WithContext("build_id", buildID).
				Build()
			h.errorAdapter.WriteErrorResponse(w, r, nerr)
			return
		}
		serr := derrors.WrapError(err, derrors.CategoryStorage, "failed to read archive").Build()
		h.errorAdapter.WriteErrorResponse(w, r, serr)
		return
	}

	w.Header().Set("Content-Type", coordinator.ArchiveContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, werr := w.Write(data); werr != nil {
		slog.Error("failed writing archive body", logfields.Error(werr))
	}
}

// contentTypeForKey maps an asset key to a served content type. Bundle formats
// get explicit types; everything else goes through the extension registry.
func contentTypeForKey(key string) string {
	switch ext := path.Ext(key); ext {
	case ".bundle", ".js", ".hbc":
		return "application/javascript"
	case ".map", ".json":
		return "application/json"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
