package link

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	return port
}

func dialRetry(t *testing.T, addr string) net.Conn {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("could not connect to %s", addr)

	return nil
}

func testTimings() []Option {
	return []Option{
		WithConnTimeout(200 * time.Millisecond),
		WithMaxHeartbeatFail(5),
	}
}

func TestManagerConnectAndExchange(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	port := freePort(t)

	passiveFrames := make(chan string, 16)
	passiveCfg, err := NewConfig("", port, append(testTimings(), WithPassive())...)
	require.NoError(err)

	passive, err := NewManager(ctx, passiveCfg, func(frame string, m *Manager) {
		passiveFrames <- frame
		if frame == "IN:5" {
			_ = m.Send("IN:5:0")
		}
	})
	require.NoError(err)
	require.NoError(passive.Open(false))
	defer passive.Stop()

	activeFrames := make(chan string, 16)
	activeCfg, err := NewConfig("127.0.0.1", port, testTimings()...)
	require.NoError(err)

	active, err := NewManager(ctx, activeCfg, func(frame string, m *Manager) {
		activeFrames <- frame
	})
	require.NoError(err)
	require.NoError(active.Open(true))
	defer active.Stop()

	require.True(active.IsActive())

	require.NoError(active.Send("IN:5"))

	select {
	case frame := <-passiveFrames:
		require.Equal("IN:5", frame)
	case <-time.After(2 * time.Second):
		t.Fatal("peripheral never received the frame")
	}

	select {
	case frame := <-activeFrames:
		require.Equal("IN:5:0", frame)
	case <-time.After(2 * time.Second):
		t.Fatal("host never received the reply")
	}
}

func TestManagerSendNotActive(t *testing.T) {
	require := require.New(t)
	port := freePort(t)

	cfg, err := NewConfig("127.0.0.1", port, testTimings()...)
	require.NoError(err)

	m, err := NewManager(context.Background(), cfg, func(frame string, m *Manager) {})
	require.NoError(err)

	// never opened, no socket exists
	require.ErrorIs(m.Send("IN:5"), ErrNotActive)

	m.Stop()
	require.ErrorIs(m.Send("IN:5"), ErrStopped)
}

func TestManagerReconnect(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	port := freePort(t)
	addr := "127.0.0.1:" + strconv.Itoa(port)

	frames := make(chan string, 16)
	states := make(chan ConnState, 16)

	cfg, err := NewConfig("", port, append(testTimings(), WithPassive())...)
	require.NoError(err)

	m, err := NewManager(ctx, cfg, func(frame string, mgr *Manager) {
		frames <- frame
	})
	require.NoError(err)
	m.OnStateChange(func(prevState ConnState, newState ConnState) {
		states <- newState
	})
	require.NoError(m.Open(false))
	defer m.Stop()

	waitState := func(want ConnState) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case s := <-states:
				if s == want {
					return
				}
			case <-deadline:
				t.Fatalf("state %s never reached", want)
			}
		}
	}

	conn := dialRetry(t, addr)
	waitState(ActiveState)

	_, err = conn.Write([]byte("IN:1:1|"))
	require.NoError(err)

	select {
	case frame := <-frames:
		require.Equal("IN:1:1", frame)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never received")
	}

	// leave a partial frame behind, then drop the connection
	_, err = conn.Write([]byte("IN:9"))
	require.NoError(err)
	time.Sleep(100 * time.Millisecond)
	require.NoError(conn.Close())

	waitState(FailedState)

	// the manager accepts a replacement connection on the same port
	conn2 := dialRetry(t, addr)
	defer conn2.Close()
	waitState(ActiveState)

	_, err = conn2.Write([]byte("IN:2:1|"))
	require.NoError(err)

	select {
	case frame := <-frames:
		// the partial frame from the old socket was discarded
		require.Equal("IN:2:1", frame)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never received after reconnect")
	}
}

func TestManagerHeartbeat(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	port := freePort(t)

	cfg, err := NewConfig("", port,
		WithPassive(),
		WithConnTimeout(200*time.Millisecond),
		WithMaxHeartbeatFail(4),
	)
	require.NoError(err)

	m, err := NewManager(ctx, cfg, func(frame string, mgr *Manager) {})
	require.NoError(err)
	require.NoError(m.Open(false))
	defer m.Stop()

	conn := dialRetry(t, "127.0.0.1:"+strconv.Itoa(port))
	defer conn.Close()

	// with a 200ms read timeout and 4 tolerated misses the idle link emits
	// a heartbeat byte after 400ms of send silence
	require.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))

	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.NoError(err)
	require.Equal(byte(Heartbeat), buf[0])
}

func TestManagerDeadLinkOnHeartbeatTimeout(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	port := freePort(t)
	addr := "127.0.0.1:" + strconv.Itoa(port)

	failures := make(chan struct{}, 16)
	actives := make(chan struct{}, 16)

	cfg, err := NewConfig("", port,
		WithPassive(),
		WithConnTimeout(100*time.Millisecond),
		WithMaxHeartbeatFail(2),
	)
	require.NoError(err)

	m, err := NewManager(ctx, cfg, func(frame string, mgr *Manager) {})
	require.NoError(err)
	m.OnStateChange(func(prevState ConnState, newState ConnState) {
		switch {
		case newState.IsFailed():
			failures <- struct{}{}
		case newState.IsActive():
			actives <- struct{}{}
		}
	})
	require.NoError(m.Open(false))
	defer m.Stop()

	waitActive := func() {
		t.Helper()
		select {
		case <-actives:
		case <-time.After(3 * time.Second):
			t.Fatal("link never went active")
		}
	}

	conn := dialRetry(t, addr)
	defer conn.Close()
	waitActive()

	// a fully silent peer crosses the miss threshold after three read
	// timeouts and triggers exactly one dead-link transition
	select {
	case <-failures:
	case <-time.After(3 * time.Second):
		t.Fatal("silent link was never declared dead")
	}

	// the manager closed the socket and accepts a replacement
	conn2 := dialRetry(t, addr)
	defer conn2.Close()
	waitActive()

	// the failure counter was reset: sub-threshold traffic keeps the new
	// socket up and no second dead-link transition occurs
	for i := 0; i < 5; i++ {
		time.Sleep(120 * time.Millisecond)
		_, err = conn2.Write([]byte("IN:1:1|"))
		require.NoError(err)
	}

	select {
	case <-failures:
		t.Fatal("more than one dead-link transition")
	default:
	}
}

func TestManagerToleratesMissesWithinThreshold(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	port := freePort(t)

	failures := make(chan struct{}, 16)

	cfg, err := NewConfig("", port,
		WithPassive(),
		WithConnTimeout(100*time.Millisecond),
		WithMaxHeartbeatFail(3),
	)
	require.NoError(err)

	m, err := NewManager(ctx, cfg, func(frame string, mgr *Manager) {})
	require.NoError(err)
	m.OnStateChange(func(prevState ConnState, newState ConnState) {
		if newState.IsFailed() {
			failures <- struct{}{}
		}
	})
	require.NoError(m.Open(false))
	defer m.Stop()

	conn := dialRetry(t, "127.0.0.1:"+strconv.Itoa(port))
	defer conn.Close()

	// a couple of read timeouts accumulate between writes, but traffic
	// arriving within the miss threshold resets the counter every time
	for i := 0; i < 6; i++ {
		time.Sleep(250 * time.Millisecond)
		_, err = conn.Write([]byte{Heartbeat})
		require.NoError(err)
	}

	select {
	case <-failures:
		t.Fatal("link declared dead despite traffic within the threshold")
	default:
	}
}

func TestManagerStopIdempotent(t *testing.T) {
	require := require.New(t)
	port := freePort(t)

	cfg, err := NewConfig("", port, append(testTimings(), WithPassive())...)
	require.NoError(err)

	m, err := NewManager(context.Background(), cfg, func(frame string, mgr *Manager) {})
	require.NoError(err)
	require.NoError(m.Open(false))

	m.Stop()
	m.Stop()

	require.True(m.State().IsFailed())
	require.ErrorIs(m.Open(false), ErrStopped)
}

func TestManagerNilArguments(t *testing.T) {
	require := require.New(t)

	_, err := NewManager(context.Background(), nil, func(frame string, m *Manager) {})
	require.ErrorIs(err, ErrConfigNil)

	cfg, err := NewConfig("host", 14200)
	require.NoError(err)

	_, err = NewManager(context.Background(), cfg, nil)
	require.ErrorIs(err, ErrHandlerNil)
}
