package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/updraft/internal/build"
	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/manifest"
)

type fakeLookup struct {
	records map[string]*build.Record
}

func (f *fakeLookup) GetBuild(_ context.Context, id string) (*build.Record, error) {
	if rec, ok := f.records[id]; ok {
		return rec, nil
	}
	return nil, derrors.NotFoundError("unknown build").WithContext("build_id", id).Build()
}

func successfulRecord(id string) *build.Record {
	return &build.Record{
		ID:             id,
		ProjectKey:     "acme/demo",
		Status:         build.StatusSuccess,
		Platform:       build.PlatformAll,
		RuntimeVersion: "1.0.0",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Source:         build.SourceConfig{Name: "Demo", Slug: "demo", Owner: "acme"},
		Assets: []build.Asset{
			{Key: "bundle-ios", Hash: "ih", ContentType: "application/javascript"},
			{Key: "bundle-android", Hash: "ah", ContentType: "application/javascript"},
		},
	}
}

func manifestRequest(t *testing.T, h *ManifestHandlers, id string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/manifest/"+id, nil)
	r.SetPathValue("id", id)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.HandleManifest(w, r)
	return w
}

func TestManifestJSONResponse(t *testing.T) {
	h := NewManifestHandlers(&fakeLookup{records: map[string]*build.Record{"b1": successfulRecord("b1")}}, nil)

	w := manifestRequest(t, h, "b1", map[string]string{
		"expo-protocol-version": "1",
		"expo-platform":         "ios",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/expo+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("expo-protocol-version"))
	assert.Equal(t, "0", w.Header().Get("expo-sfv-version"))
	assert.Equal(t, "private, max-age=0", w.Header().Get("Cache-Control"))

	var m manifest.UpdateManifest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, manifest.DeterministicUUID("b1").String(), m.ID)
	assert.Equal(t, m.ID, w.Header().Get("expo-update-id"))
	assert.Equal(t, "bundle-ios", m.LaunchAsset.Key)
	assert.Equal(t, "@acme/demo", m.Extra.ScopeKey)
	assert.Contains(t, m.LaunchAsset.URL, "http://example.com/api/assets/b1/")
}

func TestManifestMultipartFraming(t *testing.T) {
	h := NewManifestHandlers(&fakeLookup{records: map[string]*build.Record{"b1": successfulRecord("b1")}}, nil)

	w := manifestRequest(t, h, "b1", map[string]string{
		"Accept":        "multipart/mixed",
		"expo-platform": "android",
	})

	require.Equal(t, http.StatusOK, w.Code)
	mediaType, params, err := mime.ParseMediaType(w.Header().Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)
	boundary := params["boundary"]
	require.NotEmpty(t, boundary)

	body := w.Body.String()
	assert.True(t, strings.HasSuffix(body, "--"+boundary+"--\r\n"), "body must end with closing boundary and CRLF")

	mr := multipart.NewReader(strings.NewReader(body), boundary)

	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "manifest", part.FormName())
	manifestBytes, err := io.ReadAll(part)
	require.NoError(t, err)
	var m manifest.UpdateManifest
	require.NoError(t, json.Unmarshal(manifestBytes, &m))
	assert.Equal(t, "bundle-android", m.LaunchAsset.Key)

	part, err = mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "extensions", part.FormName())
	extBytes, err := io.ReadAll(part)
	require.NoError(t, err)
	assert.JSONEq(t, `{"assetRequestHeaders":{}}`, string(extBytes))

	_, err = mr.NextPart()
	assert.Equal(t, io.EOF, err, "exactly two parts")
}

func TestManifestUnsupportedProtocolVersion(t *testing.T) {
	h := NewManifestHandlers(&fakeLookup{records: map[string]*build.Record{"b1": successfulRecord("b1")}}, nil)

	w := manifestRequest(t, h, "b1", map[string]string{"expo-protocol-version": "2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestManifestMissingProtocolVersionDefaultsToZero(t *testing.T) {
	h := NewManifestHandlers(&fakeLookup{records: map[string]*build.Record{"b1": successfulRecord("b1")}}, nil)

	w := manifestRequest(t, h, "b1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("expo-protocol-version"))
}

func TestManifestUnknownBuild(t *testing.T) {
	h := NewManifestHandlers(&fakeLookup{records: map[string]*build.Record{}}, nil)

	w := manifestRequest(t, h, "missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestManifestBuildNotReady(t *testing.T) {
	rec := successfulRecord("b1")
	rec.Status = build.StatusBuilding
	h := NewManifestHandlers(&fakeLookup{records: map[string]*build.Record{"b1": rec}}, nil)

	w := manifestRequest(t, h, "b1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var body struct {
		Error  string `json:"error"`
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "b1", body.ID)
	assert.Equal(t, "building", body.Status, "not-ready body must carry the current status")
}

func TestManifestRuntimeVersionMismatchStillServes(t *testing.T) {
	h := NewManifestHandlers(&fakeLookup{records: map[string]*build.Record{"b1": successfulRecord("b1")}}, nil)

	w := manifestRequest(t, h, "b1", map[string]string{"expo-runtime-version": "9.9.9"})
	assert.Equal(t, http.StatusOK, w.Code, "runtime mismatch warns but never rejects")
}

func TestManifestForwardedHeadersAnchorURLs(t *testing.T) {
	h := NewManifestHandlers(&fakeLookup{records: map[string]*build.Record{"b1": successfulRecord("b1")}}, nil)

	w := manifestRequest(t, h, "b1", map[string]string{
		"X-Forwarded-Proto": "https",
		"X-Forwarded-Host":  "updates.example.com",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var m manifest.UpdateManifest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "https://updates.example.com/api/assets/b1/bundle-ios", m.LaunchAsset.URL)
}

func TestNormalizePlatform(t *testing.T) {
	assert.Equal(t, build.PlatformAndroid, normalizePlatform("android"))
	assert.Equal(t, build.PlatformIOS, normalizePlatform("ios"))
	assert.Equal(t, build.PlatformIOS, normalizePlatform("all"))
	assert.Equal(t, build.PlatformIOS, normalizePlatform(""))
	assert.Equal(t, build.PlatformIOS, normalizePlatform("web"))
}
