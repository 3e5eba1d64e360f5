package parser

import (
	"testing"

	"github.com/corowave/evhttpd/http"
	"github.com/stretchr/testify/require"
)

func TestParseWholeRequestAtOnce(t *testing.T) {
	req := http.NewRequest()
	p := New(req)

	raw := []byte("GET /hello.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	require.NoError(t, p.Feed(raw))

	require.True(t, req.Complete())
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "/hello.txt", req.Path)
	require.Equal(t, "HTTP/1.1", req.Version)
	host, ok := req.Headers.Get("Host")
	require.True(t, ok)
	require.Equal(t, "x", host)
}

func TestParseCompletenessAcrossArbitraryChunking(t *testing.T) {
	raw := []byte("POST /any HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nabcde")

	// every possible 2-way split of the byte stream yields the same
	// result as feeding it whole, regardless of where the split falls.
	for split := 0; split <= len(raw); split++ {
		req := http.NewRequest()
		p := New(req)

		require.NoError(t, p.Feed(raw[:split]))
		require.NoError(t, p.Feed(raw[split:]))

		require.True(t, req.Complete(), "split at %d", split)
		require.Equal(t, "POST", req.Method)
		require.Equal(t, "abcde", string(req.Body))
	}
}

func TestParseByteAtATime(t *testing.T) {
	raw := []byte("GET /x?a=1&b=2 HTTP/1.1\r\nHost: x\r\nContent-Length: 3\r\n\r\nxyz")

	req := http.NewRequest()
	p := New(req)

	for i := 0; i < len(raw); i++ {
		require.NoError(t, p.Feed(raw[i:i+1]))
		if i < len(raw)-1 {
			require.False(t, req.Complete())
		}
	}

	require.True(t, req.Complete())
	require.Equal(t, "/x", req.Path)
	require.Equal(t, "1", req.Query["a"])
	require.Equal(t, "2", req.Query["b"])
	require.Equal(t, "xyz", string(req.Body))
}

func TestMissingContentLengthMeansZeroBody(t *testing.T) {
	req := http.NewRequest()
	p := New(req)

	require.NoError(t, p.Feed([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")))
	require.True(t, req.Complete())
	require.Equal(t, 0, len(req.Body))
}

func TestHeaderBlockExactlyAtChunkBoundary(t *testing.T) {
	head := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"

	req := http.NewRequest()
	p := New(req)

	require.NoError(t, p.Feed([]byte(head)))
	require.True(t, req.Complete())
}

func TestTrailingQuestionMarkURL(t *testing.T) {
	req := http.NewRequest()
	p := New(req)

	require.NoError(t, p.Feed([]byte("GET /x? HTTP/1.1\r\n\r\n")))
	require.True(t, req.Complete())
	require.Equal(t, "/x", req.Path)
	require.Empty(t, req.Query)
}

func TestNonNumericContentLengthIsProtocolError(t *testing.T) {
	req := http.NewRequest()
	p := New(req)

	err := p.Feed([]byte("GET / HTTP/1.1\r\nContent-Length: abc\r\n\r\n"))
	require.Error(t, err)
	require.IsType(t, &ProtocolError{}, err)
}

func TestChunkedTransferEncodingTreatedAsZeroBody(t *testing.T) {
	req := http.NewRequest()
	p := New(req)

	require.NoError(t, p.Feed([]byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n")))
	require.True(t, req.Complete())
	require.Empty(t, req.Body)
}

func TestExcessPipelinedBytesAreCarriedToNextRequest(t *testing.T) {
	first := "POST /a HTTP/1.1\r\nContent-Length: 2\r\n\r\nhi"
	second := "GET /b HTTP/1.1\r\n\r\n"

	req1 := http.NewRequest()
	p := New(req1)
	require.NoError(t, p.Feed([]byte(first+second)))
	require.True(t, req1.Complete())
	require.Equal(t, "hi", string(req1.Body))

	req2 := http.NewRequest()
	p.Reset(req2)
	require.True(t, req2.Complete())
	require.Equal(t, "/b", req2.Path)
}
