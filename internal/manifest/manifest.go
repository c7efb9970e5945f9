// Package manifest derives protocol-compliant update manifests from completed
// build records. Generation is a pure function of the record and the request's
// base URL; no state is read or written here.
package manifest

import (
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/updraft/internal/build"
)

// Launch bundle asset keys written by the build executor.
const (
	LaunchAssetKeyIOS     = "bundle-ios"
	LaunchAssetKeyAndroid = "bundle-android"
)

// Asset describes one downloadable asset in an update manifest. Hash is the
// SHA-256 of the asset bytes, base64url-encoded without padding; it must match
// the bytes retrievable at URL.
type Asset struct {
	Key           string `json:"key"`
	Hash          string `json:"hash"`
	ContentType   string `json:"contentType"`
	FileExtension string `json:"fileExtension,omitempty"`
	URL           string `json:"url"`
}

// Extra is the opaque passthrough bag attached to a manifest.
type Extra struct {
	ScopeKey   string             `json:"scopeKey"`
	ExpoClient build.SourceConfig `json:"expoClient"`
}

// UpdateManifest is the protocol-defined descriptor telling an update client
// which bundle and assets to fetch. Immutable once created for a given build.
type UpdateManifest struct {
	ID             string            `json:"id"`
	CreatedAt      string            `json:"createdAt"`
	RuntimeVersion string            `json:"runtimeVersion"`
	LaunchAsset    Asset             `json:"launchAsset"`
	Assets         []Asset           `json:"assets"`
	Metadata       map[string]string `json:"metadata"`
	Extra          Extra             `json:"extra"`
}

// ErrMissingBundle is returned when no launch bundle exists for the requested
// platform.
type ErrMissingBundle struct {
	Platform build.Platform
}

func (e ErrMissingBundle) Error() string {
	return fmt.Sprintf("no launch bundle recorded for platform %s", e.Platform)
}

// Generate derives the update manifest for a successful build record.
// platform must already be normalized to ios or android. baseURL (scheme and
// host, no trailing slash) anchors relative asset URLs; it may be empty when
// generating the stored form of the manifest.
func Generate(rec *build.Record, platform build.Platform, baseURL string) (*UpdateManifest, error) {
	launch, rest, err := selectLaunchAsset(rec.Assets, platform)
	if err != nil {
		return nil, err
	}

	m := &UpdateManifest{
		ID:             DeterministicUUID(rec.ID).String(),
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
		RuntimeVersion: rec.RuntimeVersion,
		LaunchAsset:    toManifestAsset(launch, rec.ID, baseURL),
		Assets:         make([]Asset, 0, len(rest)),
		Metadata:       map[string]string{},
		Extra: Extra{
			ScopeKey:   ScopeKey(rec.Source.Owner, rec.Source.Slug),
			ExpoClient: rec.Source,
		},
	}
	for _, a := range rest {
		m.Assets = append(m.Assets, toManifestAsset(a, rec.ID, baseURL))
	}
	return m, nil
}

// ScopeKey derives the update-client namespacing string. Always non-empty.
func ScopeKey(owner, slug string) string {
	if slug == "" {
		slug = "app"
	}
	if owner == "" {
		owner = "anonymous"
	}
	return "@" + owner + "/" + slug
}

// selectLaunchAsset picks the platform entry bundle. Android prefers its own
// bundle and falls back to the iOS one; iOS never falls back.
func selectLaunchAsset(assets []build.Asset, platform build.Platform) (build.Asset, []build.Asset, error) {
	byKey := func(key string) (build.Asset, bool) {
		for _, a := range assets {
			if a.Key == key {
				return a, true
			}
		}
		return build.Asset{}, false
	}

	var launch build.Asset
	var found bool
	switch platform {
	case build.PlatformAndroid:
		launch, found = byKey(LaunchAssetKeyAndroid)
		if !found {
			launch, found = byKey(LaunchAssetKeyIOS)
		}
	default:
		launch, found = byKey(LaunchAssetKeyIOS)
	}
	if !found {
		return build.Asset{}, nil, ErrMissingBundle{Platform: platform}
	}

	rest := make([]build.Asset, 0, len(assets))
	for _, a := range assets {
		if a.Key == launch.Key {
			continue
		}
		// The bundle for the other platform is not an auxiliary asset of this
		// manifest.
		if a.Key == LaunchAssetKeyIOS || a.Key == LaunchAssetKeyAndroid {
			continue
		}
		rest = append(rest, a)
	}
	return launch, rest, nil
}

// toManifestAsset resolves the asset URL. Already-absolute URLs are left
// untouched (previously externalized assets); everything else is served from
// this host's asset endpoint.
func toManifestAsset(a build.Asset, buildID, baseURL string) Asset {
	url := a.URL
	if url == "" {
		url = a.Key
	}
	if !isAbsoluteURL(url) {
		url = baseURL + "/api/assets/" + buildID + "/" + strings.TrimPrefix(url, "/")
	}
	return Asset{
		Key:           a.Key,
		Hash:          a.Hash,
		ContentType:   a.ContentType,
		FileExtension: a.FileExtension,
		URL:           url,
	}
}

func isAbsoluteURL(s string) bool {
	return strings.Contains(s, "://")
}
