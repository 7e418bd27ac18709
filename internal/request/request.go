package request

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/YohYamasaki/barebone-http-ws-server/internal/headers"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/response"
)

type parserState int

const (
	StateInit parserState = iota
	StateHeaders
	StateDone
	StateErr
)

// Method is one of the request method tokens the parser recognizes. Only
// GET and HEAD are served; the rest parse fine and are answered with 501.
type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodPatch   Method = "PATCH"
)

// MaxMethodLength is the length of the longest recognized method. A longer
// token cannot be a known method.
const MaxMethodLength = 7

func parseMethod(token []byte) (Method, bool) {
	switch m := Method(token); m {
	case MethodGet, MethodHead, MethodPost, MethodPut, MethodDelete,
		MethodConnect, MethodOptions, MethodTrace, MethodPatch:
		return m, true
	default:
		return "", false
	}
}

type Version string

const HTTP11 Version = "HTTP/1.1"

func parseVersion(token []byte) (Version, bool) {
	if v := Version(token); v == HTTP11 {
		return v, true
	}
	return "", false
}

type RequestLine struct {
	Method        Method
	RequestTarget string
	HttpVersion   Version
}

type Request struct {
	RequestLine RequestLine
	Headers     *headers.Headers
	state       parserState
}

func newRequest() *Request {
	return &Request{
		state:   StateInit,
		Headers: headers.NewHeaders(),
	}
}

var (
	ErrMalformedRequestLine   = errors.New("malformed request line")
	ErrMalformedHeader        = errors.New("malformed header")
	ErrIncompleteRequest      = errors.New("incomplete request")
	ErrUnsupportedMethod      = errors.New("unsupported method")
	ErrUnsupportedHttpVersion = errors.New("unsupported http version")
	ErrEmptyRequestTarget     = errors.New("empty request target")
)

// ParseError is a parse failure carrying the status to answer with.
type ParseError struct {
	Status response.StatusCode
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d %s: %v", int(e.Status), e.Status.Reason(), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseError(status response.StatusCode, err error) *ParseError {
	return &ParseError{Status: status, Err: err}
}

// StatusOf returns the status a failed RequestFromReader should be
// answered with.
func StatusOf(err error) response.StatusCode {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return response.StatusBadRequest
}

const (
	sp = 0x20
	cr = 0x0D
	lf = 0x0A
)

// readEOL consumes the LF that must follow a CR.
func readEOL(br io.ByteReader) error {
	b, err := br.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIncompleteRequest, err)
	}
	if b != lf {
		return errors.New("CR not followed by LF")
	}
	return nil
}

func (r *Request) parseRequestLine(br io.ByteReader) error {
	var token []byte
	methodParsed := false
	targetParsed := false

	for {
		b, err := br.ReadByte()
		if err != nil {
			return parseError(response.StatusBadRequest, fmt.Errorf("%w: %w", ErrIncompleteRequest, err))
		}

		switch b {
		case sp:
			switch {
			case !methodParsed:
				m, ok := parseMethod(token)
				if !ok {
					return parseError(response.StatusNotImplemented, fmt.Errorf("%w: %q", ErrUnsupportedMethod, token))
				}
				r.RequestLine.Method = m
				methodParsed = true
			case !targetParsed:
				if len(token) == 0 {
					return parseError(response.StatusInternalServerError, ErrEmptyRequestTarget)
				}
				r.RequestLine.RequestTarget = string(token)
				targetParsed = true
			default:
				return parseError(response.StatusBadRequest, fmt.Errorf("%w: too many fields", ErrMalformedRequestLine))
			}
			token = token[:0]
		case cr:
			if err := readEOL(br); err != nil {
				return parseError(response.StatusBadRequest, fmt.Errorf("%w: %w", ErrMalformedRequestLine, err))
			}
			if !methodParsed || !targetParsed {
				return parseError(response.StatusBadRequest, fmt.Errorf("%w: too few fields", ErrMalformedRequestLine))
			}
			v, ok := parseVersion(token)
			if !ok {
				return parseError(response.StatusHTTPVersionNotSupported, fmt.Errorf("%w: %q", ErrUnsupportedHttpVersion, token))
			}
			r.RequestLine.HttpVersion = v
			return nil
		case lf:
			return parseError(response.StatusBadRequest, fmt.Errorf("%w: bare LF", ErrMalformedRequestLine))
		default:
			token = append(token, b)
			if !methodParsed && len(token) > MaxMethodLength {
				return parseError(response.StatusNotImplemented, fmt.Errorf("%w: method token too long", ErrUnsupportedMethod))
			}
		}
	}
}

// parseHeaders reads field lines up to the empty line. End of stream on a
// line boundary also ends the section.
func (r *Request) parseHeaders(br io.ByteReader) error {
	var line []byte

	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) == 0 {
				return nil
			}
			return parseError(response.StatusBadRequest, fmt.Errorf("%w: %w", ErrIncompleteRequest, err))
		}

		switch b {
		case cr:
			if err := readEOL(br); err != nil {
				return parseError(response.StatusBadRequest, fmt.Errorf("%w: %w", ErrMalformedHeader, err))
			}
			if len(line) == 0 {
				return nil
			}
			name, value, err := headers.ParseFieldLine(line)
			if err != nil {
				return parseError(response.StatusBadRequest, fmt.Errorf("%w: %w", ErrMalformedHeader, err))
			}
			r.Headers.Set(name, value)
			line = line[:0]
		case lf:
			return parseError(response.StatusBadRequest, fmt.Errorf("%w: bare LF", ErrMalformedHeader))
		default:
			line = append(line, b)
		}
	}
}

func (r *Request) parse(br io.ByteReader) error {
	switch r.state {
	case StateErr:
		return errors.New("request in error state")
	case StateInit:
		if err := r.parseRequestLine(br); err != nil {
			return err
		}
		r.state = StateHeaders
	case StateHeaders:
		if err := r.parseHeaders(br); err != nil {
			return err
		}
		r.state = StateDone
	}
	return nil
}

func (r *Request) done() bool {
	return r.state == StateDone || r.state == StateErr
}

// RequestFromReader parses one request line and header section. The body
// is never read. When reader is not an io.ByteReader it is wrapped in a
// bufio.Reader, so callers that keep using the stream afterwards must pass
// their own buffered reader.
func RequestFromReader(reader io.Reader) (*Request, error) {
	br, ok := reader.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(reader)
	}

	request := newRequest()
	for !request.done() {
		if err := request.parse(br); err != nil {
			request.state = StateErr
			return nil, err
		}
	}
	return request, nil
}
