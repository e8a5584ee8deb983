package syncerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := UpstreamError("calendar.get", "calendar unavailable", errors.New("503"))
	wrapped := fmt.Errorf("reconcile task 1: %w", base)

	assert.Equal(t, Upstream, KindOf(wrapped))
	assert.True(t, IsUpstream(wrapped))
	assert.False(t, IsConfig(wrapped))
}

func TestKindOf_Plain(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, Unknown))
}

func TestError_String(t *testing.T) {
	err := ConfigError("tasks.search", "task source not configured", nil)
	assert.Equal(t, "[config_error] tasks.search: task source not configured", err.Error())

	err = UpstreamError("", "failed", errors.New("timeout"))
	assert.Equal(t, "[upstream_error]: failed: timeout", err.Error())
}

func TestMessage(t *testing.T) {
	cfg := ConfigError("auth", "missing credentials", errors.New("open credentials.json: no such file"))
	assert.Equal(t, "missing credentials: open credentials.json: no such file", Message(cfg))

	up := UpstreamError("tasks.search", "google api request failed", errors.New("googleapi: Error 503: backend error"))
	assert.Equal(t, "google api request failed: googleapi: Error 503: backend error", Message(up))

	assert.Equal(t, "busy", Message(New(Busy, "sync.run", "busy", nil)))

	assert.Equal(t, "plain", Message(errors.New("plain")))
}

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{Config, http.StatusServiceUnavailable},
		{Upstream, http.StatusBadGateway},
		{Busy, http.StatusConflict},
		{Invalid, http.StatusBadRequest},
		{Unknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}
