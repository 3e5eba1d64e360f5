package http

import (
	"strconv"

	"github.com/corowave/evhttpd/http/status"
	"github.com/indigo-web/utils/uf"
)

const defaultServerHeader = "evhttpd"

// bytesPerHeaderEstimate is the per-header size guess used to preallocate
// the serialized buffer in Init, so a typical response needs no further
// reallocation while building its wire form.
const bytesPerHeaderEstimate = 30

// Response is the outgoing-response builder and serializer: version,
// status, headers defaulting Server/Content-Type/Content-Length, a body,
// and — once Init is called — an immutable serialized buffer plus a
// bytes-sent cursor the write-response state reads from.
type Response struct {
	Version string
	Code    status.Code
	Status  string

	Headers *Headers
	Body    []byte

	serialized []byte
	bytesSent  int
	// pending is true from the moment Init serializes the response until
	// it has been fully written; Reset clears it.
	pending bool
}

// NewResponse returns a 200 OK builder with default headers set, mirroring
// indigo-web/indigo's NewResponse.
func NewResponse() *Response {
	r := &Response{
		Headers: NewHeaders(4),
	}
	r.Reset()
	return r
}

// Reset discards everything done with the Response so far and restores the
// default-200 state, so the connection state machine can reuse the builder
// across keep-alive requests.
func (r *Response) Reset() {
	r.Version = "HTTP/1.1"
	r.Code = status.OK
	r.Status = status.Text(status.OK)
	r.Headers.Clear()
	r.Headers.Set("Server", defaultServerHeader)
	r.Headers.Set("Content-Type", "text/html; charset=UTF-8")
	r.Body = nil
	r.serialized = nil
	r.bytesSent = 0
	r.pending = false
}

// SetStatus sets the numeric code and its registered reason phrase.
func (r *Response) SetStatus(code status.Code) *Response {
	r.Code = code
	r.Status = status.Text(code)
	return r
}

// SetContentType overrides the default Content-Type header.
func (r *Response) SetContentType(ct string) *Response {
	r.Headers.Set("Content-Type", ct)
	return r
}

// SetHeader sets an arbitrary response header.
func (r *Response) SetHeader(key, value string) *Response {
	r.Headers.Set(key, value)
	return r
}

// SetBody sets the body and updates Content-Length to match, so the two
// never drift out of sync.
func (r *Response) SetBody(body []byte) *Response {
	r.Body = body
	r.Headers.Set("Content-Length", strconv.Itoa(len(body)))
	return r
}

// SetBodyString is the string convenience form of SetBody, using
// uf.S2B for a zero-copy conversion as indigo-web/indigo's Response.String
// does.
func (r *Response) SetBodyString(body string) *Response {
	return r.SetBody(uf.S2B(body))
}

// Init materializes the serialized wire buffer: status line, each header as
// "K: V\r\n", the terminating "\r\n", then the body. Once called the buffer
// is immutable until Reset. Calling Init more than once without a Reset in
// between is a programmer error and is a no-op on the second call.
func (r *Response) Init() {
	if r.serialized != nil {
		return
	}

	estimate := len(r.Version) + 4 + len(r.Status) + len(r.Body) + r.Headers.Len()*bytesPerHeaderEstimate
	buf := make([]byte, 0, estimate)

	buf = append(buf, r.Version...)
	buf = append(buf, ' ')
	buf = append(buf, strconv.Itoa(int(r.Code))...)
	buf = append(buf, ' ')
	buf = append(buf, r.Status...)
	buf = append(buf, '\r', '\n')

	r.Headers.Each(func(key, value string) {
		buf = append(buf, key...)
		buf = append(buf, ':', ' ')
		buf = append(buf, value...)
		buf = append(buf, '\r', '\n')
	})

	buf = append(buf, '\r', '\n')
	buf = append(buf, r.Body...)

	r.serialized = buf
	r.bytesSent = 0
	r.pending = true
}

// Pending reports whether the response has been serialized by Init but not
// yet fully written to the socket. Checked by the write-response suspension point.
func (r *Response) Pending() bool {
	return r.pending
}

// WriteComplete reports whether the response is fully written: true
// whenever it isn't pending, or once bytes_sent has caught up with the
// serialized buffer's length.
func (r *Response) WriteComplete() bool {
	return !r.pending || r.bytesSent >= len(r.serialized)
}

// Remaining returns the not-yet-sent tail of the serialized buffer.
func (r *Response) Remaining() []byte {
	return r.serialized[r.bytesSent:]
}

// Advance records n more bytes as sent, marking pending false once the
// whole buffer has gone out. It must only ever be called with the true
// number of bytes the socket accepted — reporting completion early would
// let the connection state machine move on before the client has actually
// received the whole response.
func (r *Response) Advance(n int) {
	r.bytesSent += n
	if r.bytesSent >= len(r.serialized) {
		r.pending = false
	}
}
