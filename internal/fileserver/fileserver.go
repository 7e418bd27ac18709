// Package fileserver answers GET and HEAD requests from a webroot.
package fileserver

import (
	"errors"
	"log"
	"strconv"

	"github.com/YohYamasaki/barebone-http-ws-server/internal/request"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/response"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/server"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/webroot"
)

// Resolver maps a request target to file content and its MIME type.
type Resolver interface {
	Resolve(target string) ([]byte, string, error)
}

func Handler(resolver Resolver, logger *log.Logger) server.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return func(w *response.Writer, req *request.Request) {
		resp := serve(resolver, req, logger)
		if err := w.WriteResponse(resp); err != nil {
			logger.Printf("fileserver: write %s %s: %v", req.RequestLine.Method, req.RequestLine.RequestTarget, err)
		}
	}
}

func serve(resolver Resolver, req *request.Request, logger *log.Logger) *response.Response {
	method := req.RequestLine.Method
	if method != request.MethodGet && method != request.MethodHead {
		return response.Empty(response.StatusNotImplemented)
	}

	body, mimeType, err := resolver.Resolve(req.RequestLine.RequestTarget)
	if err != nil {
		if errors.Is(err, webroot.ErrNotFound) {
			return response.Empty(response.StatusNotFound)
		}
		logger.Printf("fileserver: %v", err)
		return response.Empty(response.StatusInternalServerError)
	}

	b := response.NewBuilder().
		Version(string(req.RequestLine.HttpVersion)).
		Status(response.StatusOK).
		Header("Content-Type", mimeType).
		Header("Content-Length", strconv.Itoa(len(body))).
		Header("Connection", "close")
	// HEAD carries the GET headers, Content-Length included, and no body
	if method == request.MethodGet {
		b.Body(body)
	}
	resp, err := b.Build()
	if err != nil {
		logger.Printf("fileserver: build response: %v", err)
		return response.Empty(response.StatusInternalServerError)
	}
	return resp
}
