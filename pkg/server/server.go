// Package server exposes consumer sessions over TCP.
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/lunixtng/lunix.go/pkg/monitor"
	"github.com/lunixtng/lunix.go/pkg/sensor"
)

// DefaultMaxConns bounds concurrent consumer connections.
const DefaultMaxConns = 1024

// Server serves the line protocol of the consumer endpoint:
//
//	open <sensor> <kind>   stream rendered measurements until close
//	info                   one-line station description
//
// Disconnecting is the consumer's interruption signal: it cancels any
// read blocked for fresh data.
type Server struct {
	Addr     string
	Registry *sensor.Registry
	MaxConns int

	addr atomic.Value // net.Addr
}

// New creates a server for the registry.
func New(addr string, registry *sensor.Registry) *Server {
	return &Server{Addr: addr, Registry: registry, MaxConns: DefaultMaxConns}
}

// ListenerAddr returns the bound address once Run is listening.
func (s *Server) ListenerAddr() net.Addr {
	addr, _ := s.addr.Load().(net.Addr)
	return addr
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "serve"
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.addr.Store(lis.Addr())
	glog.Infof("consumer endpoint on %s", lis.Addr())

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	limiter := make(chan struct{}, s.maxConns())
	var wg sync.WaitGroup
	for {
		conn, err := lis.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		select {
		case limiter <- struct{}{}:
		default:
			glog.Warningf("connection limit reached, rejecting %s", conn.RemoteAddr())
			conn.Close()
			continue
		}
		wg.Add(1)
		go func() {
			defer func() {
				<-limiter
				wg.Done()
			}()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) maxConns() int {
	if s.MaxConns <= 0 {
		return DefaultMaxConns
	}
	return s.MaxConns
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	br := bufio.NewReader(conn)
	line, err := br.ReadString('\n')
	if err != nil {
		return
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		fmt.Fprintf(conn, "error: empty command\n")
		return
	}

	switch fields[0] {
	case "info":
		fmt.Fprintf(conn, "lunix %d sensors\n", s.Registry.Count())
	case "open":
		if len(fields) != 3 {
			fmt.Fprintf(conn, "error: usage: open <sensor> <kind>\n")
			return
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintf(conn, "error: bad sensor index %q\n", fields[1])
			return
		}
		kind, err := sensor.ParseKind(fields[2])
		if err != nil {
			fmt.Fprintf(conn, "error: %v\n", err)
			return
		}
		s.stream(connCtx, cancel, conn, br, index, kind)
	default:
		fmt.Fprintf(conn, "error: unknown command %q\n", fields[0])
	}
}

// stream serves one session until the client disconnects.
func (s *Server) stream(ctx context.Context, cancel context.CancelFunc, conn net.Conn, br *bufio.Reader, index int, kind sensor.Kind) {
	session, err := s.Registry.Open(index, kind)
	if err != nil {
		fmt.Fprintf(conn, "error: %v\n", err)
		return
	}
	defer session.Close()
	monitor.SessionsTotal.Inc()
	monitor.SessionsOpen.Inc()
	defer monitor.SessionsOpen.Dec()
	if glog.V(2) {
		glog.Infof("%s opened sensor %d %s", conn.RemoteAddr(), index, kind)
	}

	// The client sends nothing after open; a read error means it hung
	// up, which interrupts a blocked session read.
	go func() {
		io.Copy(io.Discard, br)
		cancel()
	}()

	buf := make([]byte, sensor.CacheSize)
	for {
		n, err := session.Read(ctx, buf)
		if err != nil {
			return // interrupted
		}
		if n == 0 {
			// End of the current value; the next cycle blocks for
			// fresh data.
			continue
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			return
		}
		monitor.BytesOut.Add(float64(n))
	}
}
