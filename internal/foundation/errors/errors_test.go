package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuilderProducesClassifiedError(t *testing.T) {
	err := NewError(CategoryBuild, "compile step failed").
		WithContext("build_id", "b1").
		WithRetry(RetryBackoff).
		Build()

	c, ok := AsClassified(err)
	if !ok {
		t.Fatal("expected classified error")
	}
	if c.Category() != CategoryBuild {
		t.Errorf("category = %s", c.Category())
	}
	if c.Severity() != SeverityError {
		t.Errorf("severity = %s", c.Severity())
	}
	if got := c.Context()["build_id"]; got != "b1" {
		t.Errorf("context build_id = %v", got)
	}
	if !c.CanRetry() {
		t.Error("backoff strategy should be retryable")
	}
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := WrapError(cause, CategoryStorage, "failed to persist archive").Build()

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause must survive errors.Is")
	}
	if !HasCategory(err, CategoryStorage) {
		t.Error("category lost through wrap")
	}
}

func TestHasCategoryThroughWrapping(t *testing.T) {
	inner := NotFoundError("unknown build").Build()
	outer := fmt.Errorf("handling request: %w", inner)

	if !HasCategory(outer, CategoryNotFound) {
		t.Error("category must be found through fmt wrapping")
	}
	if HasCategory(outer, CategoryValidation) {
		t.Error("wrong category reported")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cases := []struct {
		err      error
		category ErrorCategory
	}{
		{ValidationError("bad input").Build(), CategoryValidation},
		{NotFoundError("missing").Build(), CategoryNotFound},
		{LockConflictError("busy").Build(), CategoryLockConflict},
		{ProtocolError("bad version").Build(), CategoryProtocol},
		{BuildError("broke").Build(), CategoryBuild},
		{ExecutorError("down").Build(), CategoryExecutor},
		{TimeoutError("slow").Build(), CategoryTimeout},
		{StorageError("io").Build(), CategoryStorage},
		{InternalError("bug").Build(), CategoryInternal},
	}
	for _, tc := range cases {
		if !HasCategory(tc.err, tc.category) {
			t.Errorf("constructor for %s lost its category", tc.category)
		}
	}
}

func TestHTTPStatusCodes(t *testing.T) {
	adapter := NewHTTPErrorAdapter(nil)

	cases := []struct {
		err  error
		want int
	}{
		{ValidationError("x").Build(), http.StatusBadRequest},
		{ProtocolError("x").Build(), http.StatusBadRequest},
		{NotFoundError("x").Build(), http.StatusNotFound},
		{LockConflictError("x").Build(), http.StatusConflict},
		{BuildError("x").Build(), http.StatusUnprocessableEntity},
		{TimeoutError("x").Build(), http.StatusUnprocessableEntity},
		{StorageError("x").Build(), http.StatusInternalServerError},
		{stderrors.New("plain"), http.StatusInternalServerError},
		{nil, http.StatusOK},
	}
	for _, tc := range cases {
		if got := adapter.StatusCodeFor(tc.err); got != tc.want {
			t.Errorf("StatusCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestWriteErrorResponseBody(t *testing.T) {
	adapter := NewHTTPErrorAdapter(nil)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/builds/x", nil)

	adapter.WriteErrorResponse(w, r, LockConflictError("a build is already in flight").
		WithContext("in_flight_build_id", "b1").
		Build())

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %s", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"a build is already in flight", "lock_conflict", "b1"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
}

func TestCLIExitCodes(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	if got := adapter.ExitCodeFor(nil); got != 0 {
		t.Errorf("nil error exit = %d", got)
	}
	if got := adapter.ExitCodeFor(ValidationError("x").Build()); got != 2 {
		t.Errorf("validation exit = %d", got)
	}
	if got := adapter.ExitCodeFor(LockConflictError("x").Build()); got != 4 {
		t.Errorf("lock conflict exit = %d", got)
	}
	if got := adapter.ExitCodeFor(stderrors.New("plain")); got != 1 {
		t.Errorf("plain error exit = %d", got)
	}
}
