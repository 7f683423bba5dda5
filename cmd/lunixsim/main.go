// lunixsim simulates the radio-to-serial bridge: it accepts TCP
// connections and emits a stream of stuffed sensor frames, so a station
// can be exercised without hardware.
package main

import (
	"flag"
	"math/rand"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/lunixtng/lunix.go/pkg/protocol"
)

var (
	listenAddr = ":4001"
	nodes      = 4
	interval   = time.Second
	noise      = false
)

func init() {
	flag.StringVar(&listenAddr, "listen", listenAddr, "Address to listen on.")
	flag.IntVar(&nodes, "nodes", nodes, "Number of simulated motes.")
	flag.DurationVar(&interval, "interval", interval, "Delay between report rounds.")
	flag.BoolVar(&noise, "noise", noise, "Inject garbage bytes between frames.")
}

func main() {
	flag.Parse()

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		glog.Exit(err)
	}
	glog.Infof("simulating %d motes on %s", nodes, lis.Addr())

	for {
		conn, err := lis.Accept()
		if err != nil {
			glog.Exit(err)
		}
		glog.Infof("bridge consumer connected: %s", conn.RemoteAddr())
		go emit(conn)
	}
}

// emit streams report rounds until the consumer hangs up.
func emit(conn net.Conn) {
	defer conn.Close()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var stream []byte
	for {
		stream = stream[:0]
		for node := 1; node <= nodes; node++ {
			report := protocol.Report{
				NodeID: uint16(node),
				Batt:   400 + uint16(rng.Intn(600)),
				Temp:   300 + uint16(rng.Intn(500)),
				Light:  uint16(rng.Intn(1024)),
			}
			if noise && rng.Intn(4) == 0 {
				stream = append(stream, byte(rng.Intn(256)), byte(rng.Intn(256)))
			}
			frame := report.Frame()
			frame.CRC = uint16(rng.Uint32())
			stream = protocol.AppendFrame(stream, frame)
		}
		if _, err := conn.Write(stream); err != nil {
			glog.Infof("bridge consumer gone: %v", err)
			return
		}
		time.Sleep(interval)
	}
}
