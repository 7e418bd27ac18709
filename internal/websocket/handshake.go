package websocket

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/YohYamasaki/barebone-http-ws-server/internal/headers"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/response"
)

// WebSocket GUID as defined in RFC 6455.
const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// keyLength is the length of a base64 encoded 16 byte nonce.
const keyLength = 24

var ErrInvalidKey = errors.New("invalid Sec-WebSocket-Key")

// AcceptValue derives the Sec-WebSocket-Accept value for a client key.
func AcceptValue(key string) (string, error) {
	if len(key) != keyLength {
		return "", ErrInvalidKey
	}
	hash := sha1.Sum([]byte(key + webSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:]), nil
}

// IsUpgradeRequest reports whether the header fields ask for a WebSocket
// upgrade this server accepts. A request failing any check is served as
// plain HTTP.
func IsUpgradeRequest(h *headers.Headers) bool {
	return h.Has("Host") &&
		strings.Contains(h.Get("Upgrade"), "websocket") &&
		strings.Contains(h.Get("Connection"), "Upgrade") &&
		h.Has("Origin") &&
		len(h.Get("Sec-WebSocket-Key")) == keyLength &&
		h.Get("Sec-WebSocket-Version") == "13"
}

// UpgradeResponse builds the 101 response completing the handshake.
func UpgradeResponse(version, key string) (*response.Response, error) {
	accept, err := AcceptValue(key)
	if err != nil {
		return nil, err
	}
	return response.NewBuilder().
		Version(version).
		Status(response.StatusSwitchingProtocols).
		Header("Upgrade", "websocket").
		Header("Connection", "Upgrade").
		Header("Sec-WebSocket-Accept", accept).
		Build()
}
