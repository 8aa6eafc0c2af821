package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(Auth, "session expired")
	wrapped := fmt.Errorf("calling listRecords: %w", base)

	if got := KindOf(wrapped); got != Auth {
		t.Errorf("KindOf through fmt wrap = %q, want auth", got)
	}
	if !IsKind(wrapped, Auth) {
		t.Error("IsKind(wrapped, Auth) = false")
	}
	if IsKind(nil, Auth) {
		t.Error("IsKind(nil, ...) should be false")
	}
}

func TestKindOfForeignError(t *testing.T) {
	if got := KindOf(stderrors.New("plain")); got != Internal {
		t.Errorf("KindOf(plain) = %q, want internal", got)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, Storage, "save") != nil {
		t.Error("Wrap(nil, ...) should be nil")
	}
}

func TestUserMessageNeverLeaksCause(t *testing.T) {
	cause := stderrors.New("dial tcp 10.0.0.1:5432: connection refused")
	err := Wrap(cause, Storage, "profile cache unavailable")

	if got := UserMessage(err); got != "profile cache unavailable" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(cause); got != "internal error" {
		t.Errorf("UserMessage(foreign) = %q", got)
	}
	// The cause stays reachable for logs.
	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{Auth, http.StatusUnauthorized},
		{NotFound, http.StatusNotFound},
		{RateLimited, http.StatusTooManyRequests},
		{Network, http.StatusInternalServerError},
		{Storage, http.StatusInternalServerError},
		{Conflict, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(New(tt.kind, "x")); got != tt.want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
