// Package logfields defines canonical log field name constants to avoid drift across packages.
package logfields

import "log/slog"

const (
	KeyBuildID        = "build_id"
	KeyProject        = "project"
	KeyPlatform       = "platform"
	KeyRuntimeVersion = "runtime_version"
	KeyStatus         = "status"
	KeyAssetKey       = "asset_key"
	KeyExecutor       = "executor"
	KeyDurationMS     = "duration_ms"
	KeyMethod         = "method"
	KeyPath           = "path"
	KeyHTTPStatus     = "http_status"
	KeyUserAgent      = "user_agent"
	KeyRemoteAddr     = "remote_addr"
	KeyError          = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr         { return slog.String(KeyBuildID, id) }
func Project(p string) slog.Attr          { return slog.String(KeyProject, p) }
func Platform(p string) slog.Attr         { return slog.String(KeyPlatform, p) }
func RuntimeVersion(v string) slog.Attr   { return slog.String(KeyRuntimeVersion, v) }
func Status(s string) slog.Attr           { return slog.String(KeyStatus, s) }
func AssetKey(k string) slog.Attr         { return slog.String(KeyAssetKey, k) }
func Executor(name string) slog.Attr      { return slog.String(KeyExecutor, name) }
func DurationMS(ms float64) slog.Attr     { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr           { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr             { return slog.String(KeyPath, p) }
func HTTPStatus(code int) slog.Attr       { return slog.Int(KeyHTTPStatus, code) }
func UserAgent(ua string) slog.Attr       { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr    { return slog.String(KeyRemoteAddr, addr) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
