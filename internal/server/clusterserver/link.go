package clusterserver

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/eventlink-go/internal/core/domain"
)

// Direction records which side dialed a link.
type Direction uint8

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// State is the lifecycle state of a link.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// LinkInfo is a point-in-time view of a link.
type LinkInfo struct {
	ID             string    `json:"id"`
	Peer           string    `json:"peer"`
	Direction      string    `json:"direction"`
	State          string    `json:"state"`
	Remote         string    `json:"remote"`
	OpenedAt       time.Time `json:"opened_at"`
	FramesSent     uint64    `json:"frames_sent"`
	FramesReceived uint64    `json:"frames_received"`
}

// Link is one secure channel to one peer. Writes are serialised; a single
// reader goroutine owned by the Manager consumes frames.
type Link struct {
	// id is chosen by the dialer and sent in its hello. Both ends keep the
	// link with the larger id when two links to the same peer overlap.
	id           ulid.ULID
	peer         string
	direction    Direction
	conn         net.Conn
	reader       *bufio.Reader
	maxFrame     int
	writeTimeout time.Duration

	state    atomic.Int32
	wmu      sync.Mutex
	sent     atomic.Uint64
	received atomic.Uint64
	openedAt time.Time

	closeOnce sync.Once
	closeErr  error
}

func newLink(dir Direction, conn net.Conn, maxFrame int, writeTimeout time.Duration) *Link {
	l := &Link{
		direction:    dir,
		conn:         conn,
		reader:       bufio.NewReader(conn),
		maxFrame:     maxFrame,
		writeTimeout: writeTimeout,
	}
	l.state.Store(int32(StateConnecting))
	return l
}

// ID returns the identifier both ends agree on.
func (l *Link) ID() ulid.ULID { return l.id }

// Peer returns the node name of the remote side.
func (l *Link) Peer() string { return l.peer }

// Direction returns who dialed the link.
func (l *Link) Direction() Direction { return l.direction }

// State returns the current state.
func (l *Link) State() State { return State(l.state.Load()) }

// IsOpen reports whether the link carries traffic.
func (l *Link) IsOpen() bool { return l.State() == StateOpen }

func (l *Link) authenticated(peer string) {
	l.peer = peer
	l.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthenticated))
}

func (l *Link) open() bool {
	if !l.state.CompareAndSwap(int32(StateAuthenticated), int32(StateOpen)) {
		return false
	}
	l.openedAt = time.Now()
	return true
}

// exchangeHello sends our hello and expects the peer's, bounded by ctx.
func (l *Link) exchangeHello(ctx context.Context, self string) error {
	if deadline, ok := ctx.Deadline(); ok {
		l.conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { l.conn.SetDeadline(time.Now()) })
	defer func() {
		stop()
		l.conn.SetDeadline(time.Time{})
	}()

	hello := &Hello{Node: self, Version: ProtocolVersion}
	if l.direction == Outbound {
		hello.Link = l.id.String()
	}
	if err := l.write(&Frame{Type: FrameHello, Hello: hello}); err != nil {
		return err
	}
	f, err := l.read()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if f.Type != FrameHello {
		return domain.ErrProtocol.WithDetailsf("expected hello, got %s", f.Type)
	}
	if f.Hello.Version != ProtocolVersion {
		return domain.ErrProtocol.WithDetailsf("peer speaks version %d, want %d", f.Hello.Version, ProtocolVersion)
	}
	if f.Hello.Node != l.peer {
		return domain.ErrTrustFailure.WithDetailsf("hello names %q on a link authenticated as %q", f.Hello.Node, l.peer)
	}
	if l.direction == Inbound {
		id, err := ulid.ParseStrict(f.Hello.Link)
		if err != nil {
			return domain.ErrProtocol.WithDetailsf("hello carries link id %q", f.Hello.Link)
		}
		l.id = id
	}
	return nil
}

// write encodes and writes one frame.
func (l *Link) write(f *Frame) error {
	data, err := encodeFrame(f, l.maxFrame)
	if err != nil {
		return err
	}

	l.wmu.Lock()
	defer l.wmu.Unlock()

	if l.State() == StateClosed {
		return domain.ErrLinkClosed.WithDetails(l.peer)
	}
	if l.writeTimeout > 0 {
		l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout))
	}
	if _, err := l.conn.Write(data); err != nil {
		return domain.ErrLinkFailure.WithDetailsf("write to %s", l.peer).WithCause(err)
	}
	l.sent.Add(1)
	return nil
}

// read returns the next frame. Only the read loop calls it once the link
// is open.
func (l *Link) read() (*Frame, error) {
	f, err := readFrame(l.reader, l.maxFrame)
	if err != nil {
		return nil, err
	}
	l.received.Add(1)
	return f, nil
}

// Close closes the connection. Further writes fail with ErrLinkClosed.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.state.Store(int32(StateClosed))
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

// Info returns a snapshot of the link.
func (l *Link) Info() LinkInfo {
	return LinkInfo{
		ID:             l.id.String(),
		Peer:           l.peer,
		Direction:      l.direction.String(),
		State:          l.State().String(),
		Remote:         l.conn.RemoteAddr().String(),
		OpenedAt:       l.openedAt,
		FramesSent:     l.sent.Load(),
		FramesReceived: l.received.Load(),
	}
}
