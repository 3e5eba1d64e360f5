package http

import (
	"strings"
	"testing"

	"github.com/corowave/evhttpd/http/status"
	"github.com/stretchr/testify/require"
)

func TestResponseDefaultsOn200(t *testing.T) {
	r := NewResponse()

	require.Equal(t, status.OK, r.Code)
	require.Equal(t, "HTTP/1.1", r.Version)

	ct, ok := r.Headers.Get("Content-Type")
	require.True(t, ok)
	require.Equal(t, "text/html; charset=UTF-8", ct)
}

func TestResponseSetBodyUpdatesContentLength(t *testing.T) {
	r := NewResponse()
	r.SetBodyString("hello")

	cl, ok := r.Headers.Get("Content-Length")
	require.True(t, ok)
	require.Equal(t, "5", cl)
}

func TestResponseInitIsIdempotent(t *testing.T) {
	r := NewResponse()
	r.SetBodyString("x")

	r.Init()
	first := r.Remaining()

	r.Init()
	second := r.Remaining()

	require.Equal(t, string(first), string(second))
}

func TestResponseWriteCompleteBeforeInitIsTrue(t *testing.T) {
	r := NewResponse()
	require.True(t, r.WriteComplete())
}

func TestResponseAdvanceTracksCompletion(t *testing.T) {
	r := NewResponse()
	r.SetStatus(status.NotFound).SetBodyString("nope")
	r.Init()

	require.False(t, r.WriteComplete())

	total := len(r.Remaining())
	r.Advance(total - 1)
	require.False(t, r.WriteComplete())
	require.Equal(t, 1, len(r.Remaining()))

	r.Advance(1)
	require.True(t, r.WriteComplete())
	require.Equal(t, 0, len(r.Remaining()))
}

func TestResponseSerializedFormIsWellFormed(t *testing.T) {
	r := NewResponse()
	r.SetStatus(status.OK).SetBodyString("ok")
	r.Init()

	out := string(r.Remaining())

	require.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	require.True(t, strings.Contains(out, "\r\n\r\nok"))
}

func TestResponseResetClearsSerializedBuffer(t *testing.T) {
	r := NewResponse()
	r.SetBodyString("x")
	r.Init()

	r.Reset()

	require.True(t, r.WriteComplete())
	require.Equal(t, status.OK, r.Code)
}
