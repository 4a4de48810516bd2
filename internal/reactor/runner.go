// Package reactor implements the non-blocking, single-threaded event loop
// that multiplexes client connections over epoll, feeding bytes to each
// connection's decoder and draining dispatched replies back to the socket.
// It owns the one Keyspace instance and runs active expiration between I/O
// events — no locks are needed anywhere in this package because all
// mutation happens on the goroutine that calls Serve.
package reactor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rs/xid"

	"github.com/adrianmoss/rkv/internal/config"
	"github.com/adrianmoss/rkv/internal/constants"
	"github.com/adrianmoss/rkv/internal/dispatch"
	"github.com/adrianmoss/rkv/internal/logging"
	"github.com/adrianmoss/rkv/internal/store"
)

// Observer receives reactor events for metrics collection. It mirrors the
// root package's Observer interface structurally (same method set) without
// importing it, since the root package imports reactor to build Server and
// a reverse import would cycle.
type Observer interface {
	ObserveCommand(latencyNs uint64, success bool)
	ObserveConnectionOpened()
	ObserveConnectionClosed()
	ObserveRead(n uint64)
	ObserveWrite(n uint64)
	ObserveLazyExpire()
	ObserveActiveExpire(n uint64)
	ObserveBackpressureDrop()
}

type noOpObserver struct{}

func (noOpObserver) ObserveCommand(uint64, bool)       {}
func (noOpObserver) ObserveConnectionOpened()          {}
func (noOpObserver) ObserveConnectionClosed()          {}
func (noOpObserver) ObserveRead(uint64)                {}
func (noOpObserver) ObserveWrite(uint64)               {}
func (noOpObserver) ObserveLazyExpire()                {}
func (noOpObserver) ObserveActiveExpire(uint64)        {}
func (noOpObserver) ObserveBackpressureDrop()          {}

// Clock abstracts time.Now for deterministic active-expire cadence tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

const maxEpollEvents = 256

// Runner is the single-threaded reactor: one epoll instance, one listening
// socket, and the set of currently accepted connections.
type Runner struct {
	cfg        *config.Config
	logger     *logging.Logger
	observer   Observer
	clock      Clock
	keyspace   *store.Keyspace
	dispatcher *dispatch.Dispatcher

	epfd     int
	listenFD int
	conns    map[int]*Conn
}

// NewRunner creates a Runner bound to cfg's tunables. Call Listen then
// Serve to actually start accepting connections.
func NewRunner(cfg *config.Config, logger *logging.Logger, observer Observer) (*Runner, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if observer == nil {
		observer = noOpObserver{}
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}

	ks := store.NewKeyspace()
	ks.OnLazyExpire(observer.ObserveLazyExpire)
	return &Runner{
		cfg:        cfg,
		logger:     logger,
		observer:   observer,
		clock:      systemClock{},
		keyspace:   ks,
		dispatcher: dispatch.New(ks, cfg.QuicklistNodeCap),
		epfd:       epfd,
		listenFD:   -1,
		conns:      make(map[int]*Conn),
	}, nil
}

// Keyspace returns the runner's single shared keyspace.
func (r *Runner) Keyspace() *store.Keyspace { return r.keyspace }

// SetClock overrides the reactor's time source; used by tests to drive
// active-expire cadence deterministically.
func (r *Runner) SetClock(c Clock) { r.clock = c }

// ConnCount returns the number of currently accepted connections.
func (r *Runner) ConnCount() int { return len(r.conns) }

// Listen creates the non-blocking listening socket and registers it with
// epoll for read readiness (new-connection notifications).
func (r *Runner) Listen() error {
	sa, family, err := resolveSockaddr(r.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("reactor: resolve bind address %q: %w", r.cfg.BindAddr, err)
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("reactor: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: setsockopt SO_REUSEADDR: %w", err)
	}
	// Best effort: not every platform honors SO_REUSEPORT, and its absence
	// is not fatal for a single-process server.
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: bind %s: %w", r.cfg.BindAddr, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: set listener nonblocking: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: epoll_ctl add listener: %w", err)
	}

	r.listenFD = fd
	r.logger.Info("listening", "addr", r.cfg.BindAddr)
	return nil
}

// Addr returns the actual bound address, useful when BindAddr's port is 0
// and the kernel picked one.
func (r *Runner) Addr() (string, error) {
	sa, err := unix.Getsockname(r.listenFD)
	if err != nil {
		return "", err
	}
	return sockaddrToString(sa), nil
}

// Serve runs the event loop until ctx is canceled, then closes every
// connection and the listener before returning. Each iteration waits for
// readiness with a bounded timeout (LoopTimeout), drains ready fds, and
// runs an active-expire pass once LoopTimeout has elapsed since the last
// one — interleaving TTL sampling with I/O exactly as the design requires.
func (r *Runner) Serve(ctx context.Context) error {
	events := make([]unix.EpollEvent, maxEpollEvents)
	lastExpire := r.clock.Now()

	timeoutMs := int(r.cfg.LoopTimeout / time.Millisecond)
	if timeoutMs <= 0 {
		timeoutMs = int(constants.MinLoopTimeout / time.Millisecond)
	}

	for {
		select {
		case <-ctx.Done():
			return r.shutdown()
		default:
		}

		n, err := unix.EpollWait(r.epfd, events, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			r.handleEvent(events[i])
		}

		if r.clock.Now().Sub(lastExpire) >= r.cfg.LoopTimeout {
			if removed := r.keyspace.ActiveExpire(r.cfg.TTLSampleSize); removed > 0 {
				r.observer.ObserveActiveExpire(uint64(removed))
			}
			lastExpire = r.clock.Now()
		}
	}
}

func (r *Runner) handleEvent(ev unix.EpollEvent) {
	fd := int(ev.Fd)

	if fd == r.listenFD {
		r.acceptAll()
		return
	}

	if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		r.closeConn(fd, "hangup or error")
		return
	}
	if ev.Events&unix.EPOLLIN != 0 {
		r.handleReadable(fd)
	}
	if _, ok := r.conns[fd]; ok && ev.Events&unix.EPOLLOUT != 0 {
		r.handleWritable(fd)
	}
}

// acceptAll drains every pending connection on the listener — level
// triggered epoll only tells us the listener is readable, not how many
// connections are queued.
func (r *Runner) acceptAll() {
	for {
		nfd, sa, err := unix.Accept4(r.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			r.logger.Warn("accept failed", "err", err)
			return
		}

		peer := sockaddrToString(sa)
		id := xid.New().String()

		ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT, Fd: int32(nfd)}
		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, nfd, &ev); err != nil {
			r.logger.Warn("epoll_ctl add connection failed", "err", err)
			unix.Close(nfd)
			continue
		}

		r.conns[nfd] = NewConn(nfd, peer, id)
		r.observer.ObserveConnectionOpened()
		r.logger.With("conn", id).With("peer", peer).Debug("accepted connection")
	}
}

func (r *Runner) handleReadable(fd int) {
	c, ok := r.conns[fd]
	if !ok {
		return
	}

	buf := GetReadBuffer()
	defer PutReadBuffer(buf)

	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			r.closeConn(fd, "read error: "+err.Error())
			return
		}
		if n == 0 {
			r.closeConn(fd, "peer closed connection")
			return
		}

		r.observer.ObserveRead(uint64(n))

		cmds, decErr := c.Decoder.Feed(buf[:n])
		if decErr != nil {
			r.logger.With("conn", c.XID).Warn("protocol error", "err", decErr)
			r.closeConn(fd, "protocol error")
			return
		}

		for _, cmd := range cmds {
			start := r.clock.Now()
			reply := r.dispatcher.Dispatch(cmd)
			r.observer.ObserveCommand(uint64(r.clock.Now().Sub(start)), !isErrorReply(reply))
			c.QueueReply(reply)
		}

		if int64(len(c.Outbound)) > r.cfg.MaxOutboundBytes {
			r.observer.ObserveBackpressureDrop()
			r.closeConn(fd, "outbound buffer exceeded high-water mark")
			return
		}
	}

	r.flushOutbound(fd, c)
}

func (r *Runner) handleWritable(fd int) {
	c, ok := r.conns[fd]
	if !ok {
		return
	}
	r.flushOutbound(fd, c)
}

func (r *Runner) flushOutbound(fd int, c *Conn) {
	for c.HasPendingWrite() {
		n, err := unix.Write(fd, c.Outbound)
		if n > 0 {
			r.observer.ObserveWrite(uint64(n))
			c.Outbound = c.Outbound[n:]
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			r.closeConn(fd, "write error: "+err.Error())
			return
		}
		if n == 0 {
			return
		}
	}
}

func (r *Runner) closeConn(fd int, reason string) {
	c, ok := r.conns[fd]
	if !ok {
		return
	}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	unix.Close(fd)
	delete(r.conns, fd)
	r.observer.ObserveConnectionClosed()
	r.logger.With("conn", c.XID).Debug("connection closed", "reason", reason)
}

func (r *Runner) shutdown() error {
	for fd := range r.conns {
		r.closeConn(fd, "server shutting down")
	}
	if r.listenFD >= 0 {
		unix.Close(r.listenFD)
		r.listenFD = -1
	}
	return unix.Close(r.epfd)
}

func isErrorReply(reply []byte) bool {
	return len(reply) > 0 && reply[0] == '-'
}

func resolveSockaddr(addr string) (unix.Sockaddr, int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, 0, err
	}

	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}

	ip16 := tcpAddr.IP.To16()
	if ip16 == nil {
		ip16 = net.IPv6zero
	}
	sa := &unix.SockaddrInet6{Port: tcpAddr.Port}
	copy(sa.Addr[:], ip16)
	return sa, unix.AF_INET6, nil
}

func sockaddrToString(sa unix.Sockaddr) string {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(s.Addr[:]).String(), strconv.Itoa(s.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(s.Addr[:]).String(), strconv.Itoa(s.Port))
	default:
		return "unknown"
	}
}
