// Package websocket implements the server side of RFC 6455 on top of a
// connection that has already completed the HTTP upgrade: the opening
// handshake values, the frame codec and the per-connection session.
//
// Fragmentation, extensions and subprotocols are not supported. Every
// decoded frame is treated as a whole message regardless of its FIN bit.
package websocket

/*
   WebSocket Frame Format (RFC 6455):

   0                   1                   2                   3
   0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
  +-+-+-+-+-------+-+-------------+-------------------------------+
  |F|R|R|R| opcode|M| Payload len |    Extended payload length    |
  |I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
  |N|V|V|V|       |S|             |   (if payload len==126/127)   |
  | |1|2|3|       |K|             |                               |
  +-+-+-+-+-------+-+-------------+-------------------------------+
  |     Extended payload length continued, if payload len == 127  |
  +---------------------------------------------------------------+
  |                               | Masking-key, if MASK set to 1 |
  +-------------------------------+-------------------------------+
  | Masking-key (continued)       |          Payload Data         |
  +-------------------------------+-------------------------------+
*/

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Opcode represents WebSocket frame opcodes per RFC 6455.
type Opcode uint8

const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

// IsValid checks if the opcode is one of the six defined opcodes.
func (o Opcode) IsValid() bool {
	switch o {
	case OpcodeContinuation, OpcodeText, OpcodeBinary,
		OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}

func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "CONTINUATION"
	case OpcodeText:
		return "TEXT"
	case OpcodeBinary:
		return "BINARY"
	case OpcodeClose:
		return "CLOSE"
	case OpcodePing:
		return "PING"
	case OpcodePong:
		return "PONG"
	default:
		return fmt.Sprintf("UNKNOWN(0x%X)", uint8(o))
	}
}

// Frame is one decoded frame. Payload is already unmasked.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	Payload []byte
}

const (
	finBit      = 0x80
	maskBit     = 0x80
	opcodeMask  = 0x0F
	lengthMask  = 0x7F
	length16    = 126
	length64    = 127
	maxLength7  = 125
	maxLength16 = math.MaxUint16

	readChunk = 32 * 1024
)

var (
	ErrUnmaskedFrame   = errors.New("frame from client must be masked")
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrUnexpectedFrame = errors.New("unexpected frame opcode")
	ErrTruncatedFrame  = errors.New("unexpected end of stream")
	ErrLengthOverflow  = errors.New("payload length overflows")
)

// ProtocolError is a violation of the framing rules by the peer. It ends
// the session without a reply frame.
type ProtocolError struct {
	Err    error
	Opcode Opcode
}

func (e *ProtocolError) Error() string {
	return "websocket protocol violation: " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// readFull reports a short read as a truncated frame. io.EOF before any
// byte of the header is returned unchanged: the peer went away between
// frames.
func readFull(r io.Reader, p []byte, atBoundary bool) error {
	n, err := io.ReadFull(r, p)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && atBoundary && n == 0:
		return io.EOF
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &ProtocolError{Err: ErrTruncatedFrame}
	default:
		return err
	}
}

// ReadFrame decodes one client frame from r. The MASK bit must be set;
// the payload is unmasked while it is read.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [2]byte
	if err := readFull(r, header[:], true); err != nil {
		return nil, err
	}

	f := &Frame{
		Fin:    header[0]&finBit != 0,
		Opcode: Opcode(header[0] & opcodeMask),
		Masked: header[1]&maskBit != 0,
	}
	if !f.Opcode.IsValid() {
		return nil, &ProtocolError{Err: fmt.Errorf("%w 0x%X", ErrUnknownOpcode, uint8(f.Opcode)), Opcode: f.Opcode}
	}
	if !f.Masked {
		return nil, &ProtocolError{Err: ErrUnmaskedFrame, Opcode: f.Opcode}
	}

	length := uint64(header[1] & lengthMask)
	switch length {
	case length16:
		var ext [2]byte
		if err := readFull(r, ext[:], false); err != nil {
			return nil, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case length64:
		var ext [8]byte
		if err := readFull(r, ext[:], false); err != nil {
			return nil, err
		}
		length = binary.BigEndian.Uint64(ext[:])
	}
	if length > math.MaxInt {
		return nil, &ProtocolError{Err: fmt.Errorf("%w: %d", ErrLengthOverflow, length), Opcode: f.Opcode}
	}

	var key [4]byte
	if err := readFull(r, key[:], false); err != nil {
		return nil, err
	}

	// grow with the bytes that actually arrive, not with the declared length
	n := int(length)
	f.Payload = make([]byte, 0, min(n, readChunk))
	buf := make([]byte, min(n, readChunk))
	for read := 0; read < n; {
		chunk := buf[:min(n-read, len(buf))]
		if err := readFull(r, chunk, false); err != nil {
			return nil, err
		}
		for i := range chunk {
			chunk[i] ^= key[(read+i)%4]
		}
		f.Payload = append(f.Payload, chunk...)
		read += len(chunk)
	}
	return f, nil
}

// AppendFrame appends the wire form of an unmasked server frame to dst.
// It panics on an opcode outside the defined set.
func AppendFrame(dst []byte, fin bool, op Opcode, payload []byte) []byte {
	if !op.IsValid() {
		panic("websocket: AppendFrame with invalid opcode " + op.String())
	}

	b0 := byte(op)
	if fin {
		b0 |= finBit
	}
	dst = append(dst, b0)

	n := len(payload)
	switch {
	case n <= maxLength7:
		dst = append(dst, byte(n))
	case n <= maxLength16:
		dst = append(dst, length16)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, length64)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}
	return append(dst, payload...)
}
