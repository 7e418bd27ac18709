package request

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YohYamasaki/barebone-http-ws-server/internal/response"
)

type chunkReader struct {
	data            string
	numBytesPerRead int
	pos             int
}

// Read reads up to len(p) or numBytesPerRead bytes from the string per call
// its useful for simulating reading a variable number of bytes per chunk from a network connection
func (cr *chunkReader) Read(p []byte) (n int, err error) {
	if cr.pos >= len(cr.data) {
		return 0, io.EOF
	}
	endIndex := cr.pos + cr.numBytesPerRead
	if endIndex > len(cr.data) {
		endIndex = len(cr.data)
	}
	n = copy(p, cr.data[cr.pos:endIndex])
	cr.pos += n
	return n, nil
}

func TestRequestLineParse(t *testing.T) {
	// Test: Good GET Request line
	reader := &chunkReader{
		data:            "GET / HTTP/1.1\r\nHost: localhost:8080\r\n\r\n",
		numBytesPerRead: 3,
	}
	r, err := RequestFromReader(reader)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, MethodGet, r.RequestLine.Method)
	assert.Equal(t, "/", r.RequestLine.RequestTarget)
	assert.Equal(t, HTTP11, r.RequestLine.HttpVersion)
	assert.Equal(t, 1, r.Headers.Len())
	assert.Equal(t, "localhost:8080", r.Headers.Get("host"))

	// Test: Good GET Request line with path
	reader = &chunkReader{
		data:            "GET /coffee HTTP/1.1\r\nHost: localhost:8080\r\nUser-Agent: curl/7.81.0\r\nAccept: */*\r\n\r\n",
		numBytesPerRead: 1,
	}
	r, err = RequestFromReader(reader)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, MethodGet, r.RequestLine.Method)
	assert.Equal(t, "/coffee", r.RequestLine.RequestTarget)
	assert.Equal(t, "curl/7.81.0", r.Headers.Get("User-Agent"))
	assert.Equal(t, "*/*", r.Headers.Get("Accept"))

	// Test: HEAD
	r, err = RequestFromReader(strings.NewReader("HEAD /index.html HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, MethodHead, r.RequestLine.Method)
	assert.Equal(t, 0, r.Headers.Len())
}

func TestRequestRoundTrip(t *testing.T) {
	tests := []struct {
		method Method
		target string
		h1, v1 string
		h2, v2 string
	}{
		{MethodGet, "/", "Host", "localhost:8080", "Accept", "*/*"},
		{MethodHead, "/index.html", "Origin", "http://localhost", "X-Empty", ""},
		{MethodGet, "/a/b/c.txt?x=1", "Connection", "keep-alive", "User-Agent", "test/1.0"},
		{MethodPost, "/echo", "Content-Type", "application/json", "Content-Length", "80"},
		{MethodOptions, "*", "Host", "example.com", "Max-Forwards", "3"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.method, tt.target), func(t *testing.T) {
			raw := fmt.Sprintf("%s %s HTTP/1.1\r\n%s: %s\r\n%s: %s\r\n\r\n",
				tt.method, tt.target, tt.h1, tt.v1, tt.h2, tt.v2)
			r, err := RequestFromReader(&chunkReader{data: raw, numBytesPerRead: 5})
			require.NoError(t, err)
			assert.Equal(t, tt.method, r.RequestLine.Method)
			assert.Equal(t, tt.target, r.RequestLine.RequestTarget)
			assert.Equal(t, 2, r.Headers.Len())
			assert.Equal(t, tt.v1, r.Headers.Get(strings.ToUpper(tt.h1)))
			assert.Equal(t, tt.v2, r.Headers.Get(strings.ToLower(tt.h2)))
		})
	}
}

func TestRequestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		status response.StatusCode
		err    error
	}{
		{"too many fields", "GET / EXTRA HTTP/1.1\r\n", response.StatusBadRequest, ErrMalformedRequestLine},
		{"too few fields", "GET /\r\nHost: x\r\n\r\n", response.StatusBadRequest, ErrMalformedRequestLine},
		{"empty request line", "\r\nHost: localhost:8080\r\n\r\n", response.StatusBadRequest, ErrMalformedRequestLine},
		{"CR without LF", "GET / HTTP/1.1\rHost: localhost:8080\r\n\r\n", response.StatusBadRequest, ErrMalformedRequestLine},
		{"bare LF", "GET / HTTP/1.1\nHost: localhost:8080\n\n", response.StatusBadRequest, ErrMalformedRequestLine},
		{"lowercase method", "GeT / HTTP/1.1\r\n\r\n", response.StatusNotImplemented, ErrUnsupportedMethod},
		{"unknown method", "BREW / HTTP/1.1\r\n\r\n", response.StatusNotImplemented, ErrUnsupportedMethod},
		{"long method", "GEEEEEEEEEET / HTTP/1.1\r\n\r\n", response.StatusNotImplemented, ErrUnsupportedMethod},
		{"empty target", "GET  HTTP/1.1\r\n\r\n", response.StatusInternalServerError, ErrEmptyRequestTarget},
		{"bad version", "GET / HTP/1.1\r\n\r\n", response.StatusHTTPVersionNotSupported, ErrUnsupportedHttpVersion},
		{"unsupported version", "GET / HTTP/2.1\r\n\r\n", response.StatusHTTPVersionNotSupported, ErrUnsupportedHttpVersion},
		{"header without colon", "GET / HTTP/1.1\r\nBadHeader\r\n\r\n", response.StatusBadRequest, ErrMalformedHeader},
		{"space before colon", "GET / HTTP/1.1\r\nHost : localhost\r\n\r\n", response.StatusBadRequest, ErrMalformedHeader},
		{"header CR without LF", "GET / HTTP/1.1\r\nHost: localhost\rX\r\n\r\n", response.StatusBadRequest, ErrMalformedHeader},
		{"eof in request line", "GET / HTT", response.StatusBadRequest, ErrIncompleteRequest},
		{"eof in header line", "GET / HTTP/1.1\r\nHost: loc", response.StatusBadRequest, ErrIncompleteRequest},
		{"empty input", "", response.StatusBadRequest, ErrIncompleteRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := RequestFromReader(&chunkReader{data: tt.data, numBytesPerRead: 2})
			require.Error(t, err)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.status, StatusOf(err))
		})
	}
}

func TestHeaderEmptyValueAccepted(t *testing.T) {
	r, err := RequestFromReader(strings.NewReader("GET / HTTP/1.1\r\nX-Empty:   \r\n\r\n"))
	require.NoError(t, err)
	assert.True(t, r.Headers.Has("x-empty"))
	assert.Equal(t, "", r.Headers.Get("X-Empty"))
}

func TestHeaderDuplicateOverwrites(t *testing.T) {
	r, err := RequestFromReader(strings.NewReader(
		"GET / HTTP/1.1\r\nSet-Person: lane-loves-go\r\nset-person: prime-loves-zig\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Headers.Len())
	assert.Equal(t, "prime-loves-zig", r.Headers.Get("Set-Person"))
}

func TestHeaderSectionEndsAtEOF(t *testing.T) {
	r, err := RequestFromReader(strings.NewReader("GET / HTTP/1.1\r\nHost: localhost:8080\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", r.Headers.Get("Host"))
}

func TestBodyIsNotConsumed(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: localhost\r\nContent-Length: 4\r\n\r\nbody"
	sr := strings.NewReader(raw)
	_, err := RequestFromReader(sr)
	require.NoError(t, err)

	rest, err := io.ReadAll(sr)
	require.NoError(t, err)
	assert.Equal(t, "body", string(rest))
}

func TestStatusOfOtherError(t *testing.T) {
	assert.Equal(t, response.StatusBadRequest, StatusOf(io.ErrUnexpectedEOF))
}
