package reactor

import "github.com/adrianmoss/rkv/internal/resp"

// Conn is the reactor-owned state for one accepted connection: its
// incremental decoder, pending outbound bytes, and peer identity. A Conn is
// created on accept and destroyed on EOF or unrecoverable error; nothing
// outside the reactor goroutine ever touches it.
type Conn struct {
	FD       int
	Peer     string
	XID      string
	Decoder  *resp.Decoder
	Outbound []byte
}

// NewConn creates connection state for a freshly accepted socket.
func NewConn(fd int, peer, xid string) *Conn {
	return &Conn{
		FD:      fd,
		Peer:    peer,
		XID:     xid,
		Decoder: resp.NewDecoder(),
	}
}

// QueueReply appends b to the connection's outbound buffer.
func (c *Conn) QueueReply(b []byte) {
	c.Outbound = append(c.Outbound, b...)
}

// HasPendingWrite reports whether there are unflushed outbound bytes.
func (c *Conn) HasPendingWrite() bool {
	return len(c.Outbound) > 0
}
