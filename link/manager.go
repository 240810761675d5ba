package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelrail/go-trackside/internal/pool"
	"github.com/modelrail/go-trackside/logger"
)

// FrameHandler is invoked for every complete frame received on a link, in
// arrival order, from the link's run loop goroutine. The handler must not
// block beyond the device action itself.
type FrameHandler func(frame string, m *Manager)

// FinalizeFunc is invoked once when the run loop of a stopped manager has
// fully terminated.
type FinalizeFunc func(m *Manager)

// Manager owns one endpoint and its at-most-one live socket. It runs a
// single dedicated goroutine that connects (or accepts), emits heartbeats,
// detects dead links, reassembles frames and dispatches them to the
// configured FrameHandler, reconnecting transparently until stopped.
type Manager struct {
	pctx     context.Context
	cfg      *Config
	logger   logger.Logger
	handler  FrameHandler
	finalize FinalizeFunc

	stateMgr *ConnStateMgr
	taskMgr  *TaskManager

	connMu   sync.Mutex
	conn     net.Conn
	listener *net.TCPListener // passive mode only

	exit     atomic.Bool
	lastSent atomic.Int64 // unix nano of the last write, app data or heartbeat

	// run loop state, touched only by the run loop goroutine
	buf       frameBuffer
	readBuf   []byte
	failCount int
}

// NewManager creates a link manager for the given configuration. Frames
// received on the link are handed to handler. The manager does not connect
// until Open is called.
func NewManager(ctx context.Context, cfg *Config, handler FrameHandler) (*Manager, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}

	m := &Manager{
		pctx:    ctx,
		cfg:     cfg,
		logger:  cfg.logger.With("alias", cfg.Alias()),
		handler: handler,
		taskMgr: NewTaskManager(ctx, cfg.logger),
		readBuf: make([]byte, cfg.readBufferSize),
	}
	m.stateMgr = NewConnStateMgr(m.logger)

	return m, nil
}

// OnFinalize registers a callback invoked after the run loop has exited.
// Must be called before Open.
func (m *Manager) OnFinalize(fn FinalizeFunc) {
	m.finalize = fn
}

// OnStateChange registers a handler for link state transitions.
func (m *Manager) OnStateChange(fn ConnStateChangeHandler) {
	m.stateMgr.AddHandler(fn)
}

// Alias returns the lowercase endpoint identity of the link.
func (m *Manager) Alias() string { return m.cfg.Alias() }

// State returns the current link state.
func (m *Manager) State() ConnState { return m.stateMgr.State() }

// IsActive returns true while the link has an established socket.
func (m *Manager) IsActive() bool { return m.stateMgr.IsActive() }

// Open starts the run loop. If waitActive is true it blocks until the link
// reaches ActiveState or the connect grace period (one full heartbeat-fail
// window) elapses.
func (m *Manager) Open(waitActive bool) error {
	if m.exit.Load() {
		return ErrStopped
	}

	err := m.taskMgr.Start("runLoop", m.runIteration, m.onRunLoopExit)
	if err != nil {
		return err
	}

	if waitActive {
		grace := m.cfg.connTimeout * time.Duration(m.cfg.maxHeartbeatFail+1)
		return m.WaitActive(grace)
	}

	return nil
}

// WaitActive blocks until the link reaches ActiveState or the timeout
// elapses. The manager keeps reconnecting in the background either way.
func (m *Manager) WaitActive(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(m.pctx, timeout)
	defer cancel()

	if err := m.stateMgr.WaitState(ctx, ActiveState); err != nil {
		return fmt.Errorf("link %s not active: %w", m.Alias(), err)
	}

	return nil
}

// Send frames msg with the trailing delimiter and writes it atomically.
//
// When the link is not active, Send fails fast with ErrNotActive unless a
// send wait timeout is configured, in which case it blocks up to that bound
// for the link to recover. A write failure closes the socket and triggers a
// reconnect.
func (m *Manager) Send(msg string) error {
	if m.exit.Load() {
		return ErrStopped
	}

	if !m.stateMgr.IsActive() {
		if m.cfg.sendWaitTimeout <= 0 {
			return ErrNotActive
		}

		ctx, cancel := context.WithTimeout(m.pctx, m.cfg.sendWaitTimeout)
		defer cancel()

		if err := m.stateMgr.WaitState(ctx, ActiveState); err != nil {
			return ErrNotActive
		}
	}

	conn := m.currentConn()
	if conn == nil {
		return ErrNotActive
	}

	_ = conn.SetWriteDeadline(time.Now().Add(m.cfg.connTimeout))
	if _, err := conn.Write(append([]byte(msg), Delimiter)); err != nil {
		m.logger.Error("send failed, closing socket", "error", err)
		m.deadLink()

		return fmt.Errorf("send on %s: %w", m.Alias(), err)
	}

	m.lastSent.Store(time.Now().UnixNano())
	m.logger.Debug("message sent", "msg", msg)

	return nil
}

// Stop closes the socket (errors ignored), sets the exit flag and waits up
// to the configured close timeout for the run loop to terminate.
func (m *Manager) Stop() {
	if !m.exit.CompareAndSwap(false, true) {
		return
	}

	m.logger.Info("stop link manager, closing socket")

	m.connMu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.listener != nil {
		_ = m.listener.Close()
		m.listener = nil
	}
	m.connMu.Unlock()

	m.stateMgr.ToFailed()
	m.taskMgr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.closeTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.taskMgr.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Debug("run loop terminated")
	case <-ctx.Done():
		m.logger.Error("timeout waiting for run loop to terminate", "timeout", m.cfg.closeTimeout)
	}
}

// runIteration performs one iteration of the run loop: establish a socket
// if needed, emit a heartbeat when the link has been send-silent too long,
// then block on one read and process its outcome.
func (m *Manager) runIteration() bool {
	if m.exit.Load() {
		return false
	}

	if !m.stateMgr.IsActive() {
		if !m.establish() {
			return false
		}
	}

	conn := m.currentConn()
	if conn == nil {
		return !m.exit.Load()
	}

	if time.Since(time.Unix(0, m.lastSent.Load())) > m.cfg.heartbeatInterval() {
		if _, err := conn.Write([]byte{Heartbeat}); err != nil {
			m.logger.Warn("heartbeat write failed, closing socket", "error", err)
			m.deadLink()

			return !m.exit.Load()
		}
		m.lastSent.Store(time.Now().UnixNano())
	}

	_ = conn.SetReadDeadline(time.Now().Add(m.cfg.connTimeout))

	n, err := conn.Read(m.readBuf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			m.failCount++
			if m.failCount > m.cfg.maxHeartbeatFail {
				m.logger.Warn("heartbeat timeout, closing socket", "fail_count", m.failCount)
				m.deadLink()
			}
		} else {
			// empty read (peer closed) and any other socket error are
			// handled identically: close and reconnect
			if !m.exit.Load() {
				m.logger.Warn("connection broken, closing socket", "error", err)
			}
			m.deadLink()
		}

		return !m.exit.Load()
	}

	if n == 0 {
		return !m.exit.Load()
	}

	m.failCount = 0
	for _, frame := range m.buf.Append(m.readBuf[:n]) {
		m.logger.Debug("frame received", "frame", frame)
		m.handler(frame, m)
	}

	return !m.exit.Load()
}

// establish blocks until a socket is set up, retrying every connTimeout.
// It returns false once the manager has been told to exit; an exit request
// always takes priority over further reconnect attempts.
func (m *Manager) establish() bool {
	for !m.exit.Load() {
		m.stateMgr.ToConnecting()

		var conn net.Conn
		var err error
		if m.cfg.isActive {
			conn, err = m.dial()
		} else {
			conn, err = m.accept()
		}

		if err != nil {
			if m.exit.Load() {
				return false
			}

			m.logger.Debug("connect attempt failed", "error", err)
			m.sleepRetry()

			continue
		}

		m.setConn(conn)
		m.buf.Reset() // a reconnect discards any partial frame
		m.failCount = 0
		m.lastSent.Store(time.Now().UnixNano())

		if err := m.stateMgr.ToActive(); err != nil {
			// Stop raced us and already forced FailedState
			_ = conn.Close()
			return false
		}

		m.logger.Info("link established",
			"local_addr", conn.LocalAddr().String(),
			"remote_addr", conn.RemoteAddr().String(),
		)

		return true
	}

	return false
}

func (m *Manager) dial() (net.Conn, error) {
	address := net.JoinHostPort(m.cfg.host, strconv.Itoa(m.cfg.port))
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	dialCtx, cancel := context.WithTimeout(m.pctx, m.cfg.connTimeout)
	defer cancel()

	return dialer.DialContext(dialCtx, "tcp", address)
}

// accept binds the configured port on first use and waits for one incoming
// connection. The accept deadline keeps the wait bounded so the exit flag
// is observed promptly.
func (m *Manager) accept() (net.Conn, error) {
	m.connMu.Lock()
	listener := m.listener
	m.connMu.Unlock()

	if listener == nil {
		l, err := net.Listen("tcp", ":"+strconv.Itoa(m.cfg.port))
		if err != nil {
			return nil, err
		}

		tcpListener, ok := l.(*net.TCPListener)
		if !ok {
			_ = l.Close()
			return nil, errors.New("listener is not a TCP listener")
		}

		m.connMu.Lock()
		if m.exit.Load() {
			m.connMu.Unlock()
			_ = tcpListener.Close()

			return nil, ErrStopped
		}
		m.listener = tcpListener
		m.connMu.Unlock()

		listener = tcpListener
		m.logger.Info("waiting for incoming connection", "port", m.cfg.port)
	}

	_ = listener.SetDeadline(time.Now().Add(m.cfg.connTimeout))

	return listener.Accept()
}

// sleepRetry pauses between connect attempts, waking early when the task
// manager is stopped.
func (m *Manager) sleepRetry() {
	timer := pool.GetTimer(m.cfg.connTimeout)
	defer pool.PutTimer(timer)

	select {
	case <-timer.C:
	case <-m.taskMgr.getContext().Done():
	}
}

// deadLink closes the socket and marks the link failed. The next run loop
// iteration reconnects. Safe to call from the run loop and from Send.
func (m *Manager) deadLink() {
	m.connMu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.connMu.Unlock()

	m.stateMgr.ToFailed()
}

func (m *Manager) currentConn() net.Conn {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	return m.conn
}

func (m *Manager) setConn(conn net.Conn) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.conn = conn
}

func (m *Manager) onRunLoopExit() {
	m.deadLink()

	if m.finalize != nil {
		m.finalize(m)
	}
}
