package conn

import (
	"testing"

	goHttp "github.com/corowave/evhttpd/http"
	"github.com/stretchr/testify/require"
)

func newTestRequest(version, connectionHeader string) *goHttp.Request {
	req := goHttp.NewRequest()
	req.Version = version
	if connectionHeader != "" {
		req.Headers.Set("Connection", connectionHeader)
	}

	return req
}

func TestKeepAliveForHTTP11DefaultsToKeepAlive(t *testing.T) {
	req := newTestRequest("HTTP/1.1", "")
	require.True(t, keepAliveFor(req))
}

func TestKeepAliveForHTTP11HonorsConnectionClose(t *testing.T) {
	req := newTestRequest("HTTP/1.1", "close")
	require.False(t, keepAliveFor(req))
}

func TestKeepAliveForHTTP10DefaultsToClose(t *testing.T) {
	req := newTestRequest("HTTP/1.0", "")
	require.False(t, keepAliveFor(req))
}

func TestKeepAliveForHTTP10HonorsConnectionKeepAlive(t *testing.T) {
	req := newTestRequest("HTTP/1.0", "keep-alive")
	require.True(t, keepAliveFor(req))
}

func TestSetConnectionHeadersKeepAlive(t *testing.T) {
	resp := goHttp.NewResponse()
	setConnectionHeaders(resp, true)

	v, ok := resp.Headers.Get("Connection")
	require.True(t, ok)
	require.Equal(t, "keep-alive", v)

	v, ok = resp.Headers.Get("Keep-Alive")
	require.True(t, ok)
	require.Equal(t, keepAliveHeader, v)
}

func TestSetConnectionHeadersClose(t *testing.T) {
	resp := goHttp.NewResponse()
	setConnectionHeaders(resp, false)

	v, ok := resp.Headers.Get("Connection")
	require.True(t, ok)
	require.Equal(t, "close", v)

	_, ok = resp.Headers.Get("Keep-Alive")
	require.False(t, ok)
}

func TestNeedsSynthesizedResponseDuringReadOrDispatch(t *testing.T) {
	require.True(t, needsSynthesizedResponse(StateReadRequest))
	require.True(t, needsSynthesizedResponse(StateDispatch))
}

func TestNeedsSynthesizedResponseFalseDuringWrite(t *testing.T) {
	require.False(t, needsSynthesizedResponse(StateWriteResponse))
}
