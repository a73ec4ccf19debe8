package clusterserver

import (
	"bufio"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
	"github.com/shamaton/msgpack"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/routing"
)

// ProtocolVersion is carried in the hello frame.
const ProtocolVersion = 1

// DefaultMaxFrameSize bounds the encoded size of one frame.
const DefaultMaxFrameSize = 4 << 20

// FrameType identifies the payload of a frame.
type FrameType uint8

const (
	FrameHello FrameType = iota + 1
	FrameTable
	FrameMessage
)

func (t FrameType) String() string {
	switch t {
	case FrameHello:
		return "hello"
	case FrameTable:
		return "table"
	case FrameMessage:
		return "message"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Hello is exchanged once per link right after the TLS handshake.
type Hello struct {
	Node    string `msgpack:"node"`
	Version int    `msgpack:"version"`
	// Link is the dialer's id for the link; empty from the acceptor.
	Link string `msgpack:"link"`
}

// Frame is the unit written to a link. Exactly one payload is set.
type Frame struct {
	Type    FrameType         `msgpack:"type"`
	Hello   *Hello            `msgpack:"hello"`
	Table   *routing.Snapshot `msgpack:"table"`
	Message *Message          `msgpack:"message"`
}

func (f *Frame) validate() error {
	ok := false
	switch f.Type {
	case FrameHello:
		ok = f.Hello != nil
	case FrameTable:
		ok = f.Table != nil
	case FrameMessage:
		ok = f.Message != nil
	}
	if !ok {
		return domain.ErrProtocol.WithDetailsf("malformed %s frame", f.Type)
	}
	return nil
}

// encodeFrame returns the length prefixed encoding of f.
func encodeFrame(f *Frame, maxSize int) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	body, err := msgpack.Encode(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	if maxSize > 0 && len(body) > maxSize {
		return nil, domain.ErrFrameTooLarge.WithDetailsf("%s frame is %d bytes, limit %d", f.Type, len(body), maxSize)
	}
	out := varint.ToUvarint(uint64(len(body)))
	return append(out, body...), nil
}

// readFrame reads one frame from r.
func readFrame(r *bufio.Reader, maxSize int) (*Frame, error) {
	n, err := varint.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && n > uint64(maxSize) {
		return nil, domain.ErrFrameTooLarge.WithDetailsf("peer announced %d bytes, limit %d", n, maxSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	var f Frame
	if err := msgpack.Decode(body, &f); err != nil {
		return nil, domain.ErrProtocol.WithDetails("undecodable frame").WithCause(err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
