package device

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/modelrail/go-trackside/link"
	"github.com/modelrail/go-trackside/protocol"
)

// testPeripheral is a fully wired peripheral on a loopback port plus an
// active link playing the host role, with handles into the simulated
// hardware.
type testPeripheral struct {
	host    *link.Manager
	replies chan string

	servos sync.Map // servo addr -> *SimServo
	boards sync.Map // bus addr -> *SimBoard
	inputs sync.Map // gpio -> *SimInput
}

func newTestPeripheral(t *testing.T) *testPeripheral {
	t.Helper()
	require := require.New(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(l.Close())

	tp := &testPeripheral{replies: make(chan string, 16)}

	servoFactory := func(addr int) (ServoDriver, error) {
		s := NewSimServo(addr, nil)
		tp.servos.Store(addr, s)
		return s, nil
	}
	boardFactory := func(addr int) (PinBoard, error) {
		b := NewSimBoard(addr, nil)
		tp.boards.Store(addr, b)
		return b, nil
	}
	inputFactory := func(gpio int) (InputLine, error) {
		in := NewSimInput(gpio)
		tp.inputs.Store(gpio, in)
		return in, nil
	}

	turnouts := NewTurnout(servoFactory, nil)
	heads := NewSignalHead(boardFactory, nil)
	sensors := NewSensorBank(inputFactory, nil)
	dispatcher := NewDispatcher(turnouts, heads, sensors, nil)

	ctx := context.Background()
	timings := []link.Option{
		link.WithConnTimeout(200 * time.Millisecond),
		link.WithMaxHeartbeatFail(5),
	}

	peripheralCfg, err := link.NewConfig("", port, append(timings, link.WithPassive())...)
	require.NoError(err)
	peripheral, err := link.NewManager(ctx, peripheralCfg, dispatcher.HandleFrame)
	require.NoError(err)
	require.NoError(peripheral.Open(false))
	t.Cleanup(func() {
		peripheral.Stop()
		heads.Stop()
		sensors.Close()
	})

	hostCfg, err := link.NewConfig("127.0.0.1", port, timings...)
	require.NoError(err)
	host, err := link.NewManager(ctx, hostCfg, func(frame string, m *link.Manager) {
		tp.replies <- frame
	})
	require.NoError(err)
	require.NoError(host.Open(true))
	t.Cleanup(host.Stop)

	tp.host = host

	return tp
}

func (tp *testPeripheral) waitReply(t *testing.T) string {
	t.Helper()

	select {
	case reply := <-tp.replies:
		return reply
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from peripheral")
		return ""
	}
}

func (tp *testPeripheral) servo(t *testing.T, addr int) *SimServo {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := tp.servos.Load(addr); ok {
			return s.(*SimServo)
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("servo %d never initialized", addr)
	return nil
}

func TestDispatcherTurnoutCommand(t *testing.T) {
	require := require.New(t)
	tp := newTestPeripheral(t)

	require.NoError(tp.host.Send("OUT_TO:3[85][95]:1"))

	servo := tp.servo(t, 3)
	require.Eventually(func() bool { return servo.Angle() == 95 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(tp.host.Send("OUT_TO:3[85][95]:0"))
	require.Eventually(func() bool { return servo.Angle() == 85 },
		2*time.Second, 10*time.Millisecond)
}

func TestDispatcherSignalHeadCommand(t *testing.T) {
	require := require.New(t)
	tp := newTestPeripheral(t)

	require.NoError(tp.host.Send("OUT_SH:SM1-SH1$0x24$R6$G14:g"))

	require.Eventually(func() bool {
		b, ok := tp.boards.Load(0x24)
		return ok && b.(*SimBoard).PinValue(14) && !b.(*SimBoard).PinValue(6)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcherSensorRoundTrip(t *testing.T) {
	require := require.New(t)
	tp := newTestPeripheral(t)

	require.NoError(tp.host.Send("IN:5"))
	require.Equal("IN:5:0", tp.waitReply(t))

	in, ok := tp.inputs.Load(5)
	require.True(ok)
	in.(*SimInput).SetLevel(true)
	require.Equal("IN:5:1", tp.waitReply(t))

	in.(*SimInput).SetLevel(false)
	require.Equal("IN:5:0", tp.waitReply(t))
}

func TestDispatcherMalformedFrame(t *testing.T) {
	require := require.New(t)
	tp := newTestPeripheral(t)

	// non-numeric angle, the servo must never be touched
	require.NoError(tp.host.Send("OUT_TO:3[xx][95]:1"))

	reply := tp.waitReply(t)
	require.True(strings.HasPrefix(reply, "OUT_TO:3[xx][95]:1:ERROR - "), "reply %q", reply)

	_, touched := tp.servos.Load(3)
	require.False(touched)

	// the link survives and keeps executing commands
	require.NoError(tp.host.Send("OUT_TO:1[80][100]:1"))
	servo := tp.servo(t, 1)
	require.Eventually(func() bool { return servo.Angle() == 100 },
		2*time.Second, 10*time.Millisecond)
}

func TestDispatcherRejectsSensorReport(t *testing.T) {
	require := require.New(t)
	tp := newTestPeripheral(t)

	require.NoError(tp.host.Send("IN:5:1"))

	reply := tp.waitReply(t)
	require.Contains(reply, "IN:5:1:ERROR - ")
}

func TestDispatcherUnknownCommand(t *testing.T) {
	require := require.New(t)
	tp := newTestPeripheral(t)

	require.NoError(tp.host.Send("BOGUS:1:2"))

	reply := tp.waitReply(t)
	require.True(strings.HasPrefix(reply, "BOGUS:1:2:ERROR - "), "reply %q", reply)
	require.Contains(reply, protocol.ErrUnknownCommand.Error())
}
