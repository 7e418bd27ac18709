package response

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/YohYamasaki/barebone-http-ws-server/internal/headers"
)

type StatusCode int

const (
	StatusSwitchingProtocols      StatusCode = 101
	StatusOK                      StatusCode = 200
	StatusBadRequest              StatusCode = 400
	StatusNotFound                StatusCode = 404
	StatusInternalServerError     StatusCode = 500
	StatusNotImplemented          StatusCode = 501
	StatusHTTPVersionNotSupported StatusCode = 505
)

// Reason returns the fixed reason phrase paired with the code, or "" for
// a code outside the set.
func (s StatusCode) Reason() string {
	switch s {
	case StatusSwitchingProtocols:
		return "Switching Protocols"
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusNotFound:
		return "Not Found"
	case StatusInternalServerError:
		return "Internal Server Error"
	case StatusNotImplemented:
		return "Not Implemented"
	case StatusHTTPVersionNotSupported:
		return "HTTP Version Not Supported"
	default:
		return ""
	}
}

func (s StatusCode) String() string {
	return strconv.Itoa(int(s)) + " " + s.Reason()
}

var (
	ErrMissingVersion      = errors.New("response version is empty")
	ErrUnrecognizedStatus  = errors.New("unrecognized status code")
	crlf                   = []byte("\r\n")
	defaultProtocolVersion = "HTTP/1.1"
)

// Response is a fully built response. It is serialized once with Bytes.
type Response struct {
	Version string
	Status  StatusCode
	Headers *headers.Headers
	Body    []byte
}

// Bytes serializes the response exactly as
// "<version> <code> <reason>\r\n" + "<name>: <value>\r\n"* + "\r\n" + body.
// No framing headers are added.
func (r *Response) Bytes() []byte {
	b := make([]byte, 0, 64+len(r.Body))
	b = fmt.Appendf(b, "%s %d %s", r.Version, int(r.Status), r.Status.Reason())
	b = append(b, crlf...)
	r.Headers.ForEach(func(n, v string) {
		b = fmt.Appendf(b, "%s: %s", n, v)
		b = append(b, crlf...)
	})
	b = append(b, crlf...)
	return append(b, r.Body...)
}

// Builder accumulates the parts of a response. Nothing is checked until
// Build.
type Builder struct {
	version string
	status  StatusCode
	headers *headers.Headers
	body    []byte
}

func NewBuilder() *Builder {
	return &Builder{
		version: defaultProtocolVersion,
		headers: headers.NewHeaders(),
	}
}

func (b *Builder) Version(version string) *Builder {
	b.version = version
	return b
}

func (b *Builder) Status(status StatusCode) *Builder {
	b.status = status
	return b
}

func (b *Builder) Header(name, value string) *Builder {
	b.headers.Set(name, value)
	return b
}

func (b *Builder) Body(body []byte) *Builder {
	b.body = body
	return b
}

func (b *Builder) Build() (*Response, error) {
	if b.version == "" {
		return nil, ErrMissingVersion
	}
	if b.status.Reason() == "" {
		return nil, fmt.Errorf("%w: %d", ErrUnrecognizedStatus, int(b.status))
	}
	return &Response{
		Version: b.version,
		Status:  b.status,
		Headers: b.headers,
		Body:    b.body,
	}, nil
}

// Empty is a response with no body that still tells the client where the
// message ends and that the connection is going away.
func Empty(status StatusCode) *Response {
	return &Response{
		Version: defaultProtocolVersion,
		Status:  status,
		Headers: closeHeaders(),
	}
}

func closeHeaders() *headers.Headers {
	h := headers.NewHeaders()
	h.Set("Content-Length", "0")
	h.Set("Connection", "close")
	return h
}

type Writer struct {
	writer io.Writer
}

func NewWriter(writer io.Writer) *Writer {
	return &Writer{
		writer: writer,
	}
}

// WriteResponse sends the whole response in one Write call.
func (w *Writer) WriteResponse(r *Response) error {
	_, err := w.writer.Write(r.Bytes())
	return err
}
