package source

import (
	"fmt"
	"io"
	"net"
	"os"

	"golang.org/x/net/websocket"
)

// Transport kinds accepted by Attach.
const (
	TransportTCP    = "tcp"
	TransportSerial = "serial"
	TransportFile   = "file"
	TransportWS     = "ws"
	TransportWSS    = "wss"
)

// Attach opens the byte-stream transport of the radio-to-serial bridge.
// TCP and WebSocket reach a network-exposed bridge; serial and file open
// a local device node or a recorded stream.
func Attach(kind, addr string) (io.ReadCloser, error) {
	switch kind {
	case TransportTCP:
		return net.Dial("tcp", addr)
	case TransportSerial:
		return os.OpenFile(addr, os.O_RDWR, 0)
	case TransportFile:
		return os.Open(addr)
	case TransportWS, TransportWSS:
		return DialWebSocket(kind + "://" + addr)
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

// DialWebSocket connects to a bridge exposed over WebSocket and returns
// its binary stream.
func DialWebSocket(url string) (io.ReadCloser, error) {
	config, err := websocket.NewConfig(url, "http://localhost/")
	if err != nil {
		return nil, err
	}
	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}
