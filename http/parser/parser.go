// Package parser is an incremental HTTP/1.1 request parser: it ingests
// arbitrary byte chunks, buffering until the header block terminates, then
// tracks body bytes against Content-Length. It is grounded in
// indigo-web/indigo's stream-oriented parser (http/parser/http1),
// generalized from indigo's byte-by-byte state machine down to a simpler
// contract: locate "\r\n\r\n", then split lines.
package parser

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/corowave/evhttpd/http"
)

var headerTerminator = []byte("\r\n\r\n")

// Parser holds the resumable state for one request: bytes accumulated so
// far, whether the header block has been located, and the target Request
// being filled in. A fresh Parser (or one that's had Reset called) is bound
// to exactly one Request at a time.
type Parser struct {
	req *http.Request

	buf            []byte
	headerComplete bool
	headerEnd      int // offset of the byte right after "\r\n\r\n"

	// carry holds bytes read past the current request's declared
	// Content-Length: they belong to the next pipelined request and are
	// replayed into the buffer on the following Reset rather than discarded.
	carry []byte
}

// New returns a Parser that fills req as Feed is called.
func New(req *http.Request) *Parser {
	return &Parser{req: req}
}

// Reset rebinds the parser to a fresh request, carrying over any bytes
// read past the previous request's body so pipelined bytes aren't lost.
func (p *Parser) Reset(req *http.Request) {
	p.req = req
	p.buf = p.buf[:0]
	p.headerComplete = false
	p.headerEnd = 0

	if len(p.carry) > 0 {
		p.buf = append(p.buf, p.carry...)
		p.carry = p.carry[:0]
		p.advance()
	}
}

// Feed appends chunk to the internal buffer and advances parsing as far as
// it can go. It never panics on malformed input; malformed requests surface
// as a returned ProtocolError instead.
func (p *Parser) Feed(chunk []byte) error {
	p.buf = append(p.buf, chunk...)
	return p.advance()
}

// Complete reports whether the bound Request is fully parsed.
func (p *Parser) Complete() bool {
	return p.req.Complete()
}

func (p *Parser) advance() error {
	if !p.headerComplete {
		idx := bytes.Index(p.buf, headerTerminator)
		if idx == -1 {
			// Still accumulating the header block. Guard against an
			// unbounded buffer from a client that never sends \r\n\r\n
			// with a generous ceiling.
			if len(p.buf) > maxHeaderBlock {
				return errProtocol("header block exceeds limit")
			}

			return nil
		}

		header := p.buf[:idx]
		rest := p.buf[idx+len(headerTerminator):]

		if err := p.parseHeaderBlock(header); err != nil {
			return err
		}

		p.headerComplete = true
		p.buf = append(p.buf[:0], rest...)
	}

	return p.consumeBody()
}

const maxHeaderBlock = 64 * 1024

func (p *Parser) consumeBody() error {
	need := p.req.ContentLength - len(p.req.Body)
	if need <= 0 {
		p.finish()
		return nil
	}

	take := len(p.buf)
	if take > need {
		take = need
	}

	p.req.Body = append(p.req.Body, p.buf[:take]...)
	p.buf = p.buf[take:]

	if len(p.req.Body) >= p.req.ContentLength {
		p.finish()
	}

	return nil
}

// finish marks the request complete and stashes any bytes left over
// (belonging to the next pipelined request) into carry rather than
// discarding them.
func (p *Parser) finish() {
	p.req.MarkComplete()

	if len(p.buf) > 0 {
		p.carry = append(p.carry[:0], p.buf...)
		p.buf = p.buf[:0]
	}
}

func (p *Parser) parseHeaderBlock(header []byte) error {
	lines := strings.Split(string(header), "\r\n")
	if len(lines) == 0 || len(lines[0]) == 0 {
		return errProtocol("empty request line")
	}

	if err := parseRequestLine(p.req, lines[0]); err != nil {
		return err
	}

	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return errProtocol("malformed header line")
		}

		p.req.Headers.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	if cl, ok := p.req.Headers.Get("Content-Length"); ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return errProtocol("non-numeric Content-Length")
		}

		p.req.ContentLength = n
	}

	// Transfer-Encoding: chunked is treated as a zero-length body, since
	// chunked decoding isn't implemented.
	if te, ok := p.req.Headers.Get("Transfer-Encoding"); ok && strings.EqualFold(te, "chunked") {
		p.req.ContentLength = 0
	}

	return nil
}

func parseRequestLine(req *http.Request, line string) error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return errProtocol("malformed request line")
	}

	req.Method = fields[0]
	req.URL = fields[1]
	req.Version = fields[2]

	if path, query, found := strings.Cut(fields[1], "?"); found {
		req.Path = path
		req.ParseQuery(query)
	} else {
		req.Path = fields[1]
	}

	return nil
}

// ProtocolError marks errors the connection state machine must answer with
// 400, since no response bytes have yet been written for this request.
type ProtocolError struct{ msg string }

func (e *ProtocolError) Error() string { return e.msg }

func errProtocol(msg string) error { return &ProtocolError{msg: msg} }
