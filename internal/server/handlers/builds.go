package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"git.home.luguber.info/inful/updraft/internal/build"
	"git.home.luguber.info/inful/updraft/internal/coordinator"
	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/server/responses"
)

// maxArchiveBytes bounds the in-memory portion of a submitted source archive;
// larger uploads spill to temporary files.
const maxArchiveBytes = 32 << 20

// BuildCoordinator defines the coordinator methods needed by build handlers.
type BuildCoordinator interface {
	Submit(ctx context.Context, req coordinator.SubmitRequest) (*build.Record, error)
	GetBuild(ctx context.Context, id string) (*build.Record, error)
	ListBuilds(ctx context.Context, projectKey string) ([]*build.Record, error)
}

// BuildHandlers contains build submission and query HTTP handlers.
type BuildHandlers struct {
	coord        BuildCoordinator
	errorAdapter *derrors.HTTPErrorAdapter
}

// NewBuildHandlers creates a new build handlers instance.
func NewBuildHandlers(coord BuildCoordinator) *BuildHandlers {
	return &BuildHandlers{
		coord:        coord,
		errorAdapter: derrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// appConfig mirrors the application metadata JSON supplied with a submission.
// Both the bare form and the conventional {"expo": {...}} wrapper are accepted.
type appConfig struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	Owner          string `json:"owner"`
	Version        string `json:"version"`
	SDKVersion     string `json:"sdkVersion"`
	RuntimeVersion string `json:"runtimeVersion"`
}

func parseAppConfig(raw string) (build.SourceConfig, error) {
	var wrapped struct {
		Expo *appConfig `json:"expo"`
	}
	var cfg appConfig
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Expo != nil {
		cfg = *wrapped.Expo
	} else if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return build.SourceConfig{}, err
	}
	return build.SourceConfig{
		Name:           cfg.Name,
		Slug:           cfg.Slug,
		Owner:          cfg.Owner,
		Version:        cfg.Version,
		SDKVersion:     cfg.SDKVersion,
		RuntimeVersion: cfg.RuntimeVersion,
	}, nil
}

// HandleSubmit handles POST /api/builds. The body is a multipart form with an
// archive file and projectKey/platform/runtimeVersion/appJson fields.
func (h *BuildHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxArchiveBytes); err != nil {
		verr := derrors.ValidationError("request body must be a multipart form").
			WithContext("parse_error", err.Error()).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, verr)
		return
	}

	source, err := parseAppConfig(r.FormValue("appJson"))
	if err != nil {
		verr := derrors.ValidationError("appJson field is not valid JSON").
			WithContext("parse_error", err.Error()).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, verr)
		return
	}

	runtimeVersion := r.FormValue("runtimeVersion")
	if runtimeVersion == "" {
		runtimeVersion = source.RuntimeVersion
	}

	file, _, ferr := r.FormFile("archive")
	if ferr != nil {
		verr := derrors.ValidationError("archive file is required").Build()
		h.errorAdapter.WriteErrorResponse(w, r, verr)
		return
	}
	defer file.Close()

	archive, rerr := io.ReadAll(file)
	if rerr != nil {
		ierr := derrors.WrapError(rerr, derrors.CategoryInternal, "failed to read archive upload").Build()
		h.errorAdapter.WriteErrorResponse(w, r, ierr)
		return
	}

	rec, err := h.coord.Submit(r.Context(), coordinator.SubmitRequest{
		ProjectKey:     r.FormValue("projectKey"),
		Platform:       build.Platform(r.FormValue("platform")),
		RuntimeVersion: runtimeVersion,
		Source:         source,
		Archive:        archive,
	})
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	resp := &responses.SubmitAcceptedResponse{
		ID:             rec.ID,
		Status:         string(rec.Status),
		Platform:       string(rec.Platform),
		RuntimeVersion: rec.RuntimeVersion,
		CreatedAt:      rec.CreatedAt,
	}
	if err := writeJSON(w, http.StatusAccepted, resp); err != nil {
		internalErr := derrors.WrapError(err, derrors.CategoryInternal, "failed to encode submit response").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

// HandleGetBuild handles GET /api/builds/{id}.
func (h *BuildHandlers) HandleGetBuild(w http.ResponseWriter, r *http.Request) {
	rec, err := h.coord.GetBuild(r.Context(), r.PathValue("id"))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	resp := buildResponse(rec, requestBaseURL(r))
	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		internalErr := derrors.WrapError(err, derrors.CategoryInternal, "failed to encode build record").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

// HandleListBuilds handles GET /api/builds with an optional ?project= filter.
func (h *BuildHandlers) HandleListBuilds(w http.ResponseWriter, r *http.Request) {
	records, err := h.coord.ListBuilds(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	base := requestBaseURL(r)
	resp := &responses.BuildListResponse{
		Builds: make([]responses.BuildResponse, 0, len(records)),
		Count:  len(records),
	}
	for _, rec := range records {
		resp.Builds = append(resp.Builds, buildResponse(rec, base))
	}
	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		internalErr := derrors.WrapError(err, derrors.CategoryInternal, "failed to encode build list").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

// buildResponse maps a record to its API view. Successful builds also carry the
// manifest URL and the development-client deep link that opens it.
func buildResponse(rec *build.Record, baseURL string) responses.BuildResponse {
	resp := responses.BuildResponse{
		ID:             rec.ID,
		ProjectKey:     rec.ProjectKey,
		Status:         string(rec.Status),
		Platform:       string(rec.Platform),
		RuntimeVersion: rec.RuntimeVersion,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		CompletedAt:    rec.CompletedAt,
		Error:          rec.Error,
	}
	for _, a := range rec.Assets {
		resp.Assets = append(resp.Assets, responses.AssetInfo{
			Key:           a.Key,
			Hash:          a.Hash,
			ContentType:   a.ContentType,
			FileExtension: a.FileExtension,
			URL:           a.URL,
		})
	}
	if rec.Status == build.StatusSuccess {
		manifestURL := baseURL + "/api/manifest/" + rec.ID
		resp.ManifestURL = manifestURL
		slug := rec.Source.Slug
		if slug == "" {
			slug = "app"
		}
		resp.DeepLink = "exp+" + slug + "://expo-development-client/?url=" + url.QueryEscape(manifestURL)
	}
	return resp
}
