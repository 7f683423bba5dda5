package server

import (
	"bufio"
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lunixtng/lunix.go/pkg/protocol"
	"github.com/lunixtng/lunix.go/pkg/sensor"
)

type serverFixture struct {
	registry *sensor.Registry
	clock    atomic.Int64
	cancel   context.CancelFunc
	addr     string
}

func startServer(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{registry: sensor.New(16)}
	f.clock.Store(1)
	f.registry.Clock = f.clock.Load
	f.registry.Codec = sensor.CodecFunc(func(kind sensor.Kind, raw uint16) int32 {
		return int32(raw)
	})

	srv := New("127.0.0.1:0", f.registry)
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	t.Cleanup(cancel)
	go srv.Run(ctx)

	require.Eventually(t, func() bool {
		if addr := srv.ListenerAddr(); addr != nil {
			f.addr = addr.String()
			return true
		}
		return false
	}, 5*time.Second, 5*time.Millisecond, "server did not start listening")
	return f
}

func (f *serverFixture) update(t *testing.T, report protocol.Report) {
	t.Helper()
	f.clock.Add(1)
	f.registry.Apply(report)
}

func (f *serverFixture) dial(t *testing.T, command string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", f.addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = conn.Write([]byte(command + "\n"))
	require.NoError(t, err)
	return conn, bufio.NewReader(conn)
}

func TestServerInfo(t *testing.T) {
	f := startServer(t)
	_, br := f.dial(t, "info")
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "lunix 16 sensors\n", line)
}

func TestServerStream(t *testing.T) {
	f := startServer(t)
	f.update(t, protocol.Report{NodeID: 1, Batt: 2443})

	_, br := f.dial(t, "open 0 battery")
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "2.443\n", line)

	// The next value arrives only after a fresh update.
	f.update(t, protocol.Report{NodeID: 1, Batt: 3001})
	line, err = br.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "3.001\n", line)
}

func TestServerRejectsBadOpen(t *testing.T) {
	f := startServer(t)
	for _, tc := range []struct {
		name    string
		command string
	}{
		{"bad index", "open 16 battery"},
		{"bad kind", "open 0 humidity"},
		{"not a number", "open x battery"},
		{"unknown command", "poke 0 battery"},
		{"missing args", "open 0"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, br := f.dial(t, tc.command)
			line, err := br.ReadString('\n')
			require.NoError(t, err)
			require.Contains(t, line, "error:")
		})
	}
}

func TestServerClientDisconnectInterrupts(t *testing.T) {
	f := startServer(t)
	conn, _ := f.dial(t, "open 0 battery")

	// No update ever arrives, so the stream is blocked for fresh data.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.Close())

	// The blocked session must be interrupted and torn down rather
	// than leak; a subsequent consumer still works.
	f.update(t, protocol.Report{NodeID: 1, Batt: 500})
	_, br := f.dial(t, "open 0 battery")
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "0.500\n", line)
}
