package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"git.home.luguber.info/inful/updraft/internal/build"
	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/logfields"
	"git.home.luguber.info/inful/updraft/internal/manifest"
	"git.home.luguber.info/inful/updraft/internal/metrics"
	"git.home.luguber.info/inful/updraft/internal/server/responses"
)

// Update protocol header names.
const (
	headerProtocolVersion = "expo-protocol-version"
	headerPlatform        = "expo-platform"
	headerRuntimeVersion  = "expo-runtime-version"
	headerSFVVersion      = "expo-sfv-version"
	headerManifestFilters = "expo-manifest-filters"
	headerServerDefined   = "expo-server-defined-headers"
	headerUpdateID        = "expo-update-id"
)

// contentTypeExpoJSON is the single-body manifest content type for clients
// that don't request multipart framing.
const contentTypeExpoJSON = "application/expo+json"

// ManifestLookup defines the coordinator read path needed by manifest handlers.
type ManifestLookup interface {
	GetBuild(ctx context.Context, id string) (*build.Record, error)
}

// ManifestHandlers serves protocol-compliant update manifests.
type ManifestHandlers struct {
	coord        ManifestLookup
	recorder     metrics.Recorder
	errorAdapter *derrors.HTTPErrorAdapter
}

// NewManifestHandlers creates a new manifest handlers instance.
func NewManifestHandlers(coord ManifestLookup, recorder metrics.Recorder) *ManifestHandlers {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &ManifestHandlers{
		coord:        coord,
		recorder:     recorder,
		errorAdapter: derrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleManifest handles GET /api/manifest/{id}. The response is derived
// per-request from the stored record so asset URLs reflect the caller's view
// of this host.
func (h *ManifestHandlers) HandleManifest(w http.ResponseWriter, r *http.Request) {
	protocolVersion := r.Header.Get(headerProtocolVersion)
	if protocolVersion == "" {
		protocolVersion = "0"
	}
	if protocolVersion != "0" && protocolVersion != "1" {
		perr := derrors.ProtocolError("unsupported protocol version").
			WithContext("protocol_version", protocolVersion).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, perr)
		return
	}

	buildID := r.PathValue("id")
	rec, err := h.coord.GetBuild(r.Context(), buildID)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	if rec.Status != build.StatusSuccess {
		// Known build without a servable manifest; the body carries the
		// current status so clients can tell in-flight from failed.
		body := &responses.BuildNotReadyResponse{
			Error:  "build has no manifest",
			ID:     rec.ID,
			Status: string(rec.Status),
		}
		if werr := writeJSON(w, http.StatusNotFound, body); werr != nil {
			internalErr := derrors.WrapError(werr, derrors.CategoryInternal, "failed to encode not-ready response").Build()
			h.errorAdapter.WriteErrorResponse(w, r, internalErr)
		}
		return
	}

	platform := normalizePlatform(r.Header.Get(headerPlatform))
	if rv := r.Header.Get(headerRuntimeVersion); rv != "" && rv != rec.RuntimeVersion {
		// Version skew is the client's problem to resolve; serve anyway.
		slog.Warn("runtime version mismatch",
			logfields.BuildID(buildID),
			slog.String("requested", rv),
			logfields.RuntimeVersion(rec.RuntimeVersion))
	}

	m, err := manifest.Generate(rec, platform, requestBaseURL(r))
	if err != nil {
		berr := derrors.BuildError("build outputs are incomplete").
			WithContext("build_id", buildID).
			WithContext("platform", string(platform)).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, berr)
		return
	}

	manifestJSON, err := json.Marshal(m)
	if err != nil {
		internalErr := derrors.WrapError(err, derrors.CategoryInternal, "failed to encode manifest").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
		return
	}

	w.Header().Set(headerProtocolVersion, protocolVersion)
	w.Header().Set(headerSFVVersion, "0")
	w.Header().Set(headerManifestFilters, "")
	w.Header().Set(headerServerDefined, "")
	w.Header().Set(headerUpdateID, m.ID)
	w.Header().Set("Cache-Control", "private, max-age=0")

	h.recorder.IncManifestRequest(string(platform))

	if acceptsMultipart(r) {
		h.writeMultipart(w, r, manifestJSON)
		return
	}

	w.Header().Set("Content-Type", contentTypeExpoJSON)
	w.WriteHeader(http.StatusOK)
	if _, werr := w.Write(manifestJSON); werr != nil {
		slog.Error("failed writing manifest body", logfields.Error(werr))
	}
}

// writeMultipart frames the manifest as the two-part multipart/mixed body the
// update protocol specifies: a "manifest" part and an "extensions" part, the
// latter fixed to an empty asset header map since assets are served without
// extra request headers.
func (h *ManifestHandlers) writeMultipart(w http.ResponseWriter, r *http.Request, manifestJSON []byte) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := writePart(mw, "manifest", manifestJSON); err != nil {
		internalErr := derrors.WrapError(err, derrors.CategoryInternal, "failed to frame manifest part").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
		return
	}
	if err := writePart(mw, "extensions", []byte(`{"assetRequestHeaders":{}}`)); err != nil {
		internalErr := derrors.WrapError(err, derrors.CategoryInternal, "failed to frame extensions part").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
		return
	}
	if err := mw.Close(); err != nil {
		internalErr := derrors.WrapError(err, derrors.CategoryInternal, "failed to close multipart body").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
		return
	}

	w.Header().Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("failed writing multipart manifest body", logfields.Error(err))
	}
}

func writePart(mw *multipart.Writer, name string, body []byte) error {
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="`+name+`"`)
	hdr.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	_, err = part.Write(body)
	return err
}

// normalizePlatform collapses the requested platform onto a servable one.
// Anything that isn't android, including "all" and absent, serves iOS.
func normalizePlatform(raw string) build.Platform {
	if build.Platform(raw) == build.PlatformAndroid {
		return build.PlatformAndroid
	}
	return build.PlatformIOS
}

func acceptsMultipart(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Accept")), "multipart/mixed")
}
