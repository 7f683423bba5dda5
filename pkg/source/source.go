// Package source attaches a byte-stream transport to the frame parser.
package source

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/lunixtng/lunix.go/pkg/framework"
	"github.com/lunixtng/lunix.go/pkg/protocol"
)

// DefaultChunkSize is the read buffer size of a Pump.
const DefaultChunkSize = 512

// Pump drains an io.Reader into a Parser. It is the single producer of
// the parser: Run must not be invoked concurrently.
type Pump struct {
	Reader    io.Reader
	Parser    *protocol.Parser
	ChunkSize int

	bytesIn atomic.Uint64
}

// NewPump creates a pump feeding parser from r.
func NewPump(r io.Reader, parser *protocol.Parser) *Pump {
	return &Pump{Reader: r, Parser: parser, ChunkSize: DefaultChunkSize}
}

// BytesIn returns the number of bytes fed so far.
func (p *Pump) BytesIn() uint64 {
	return p.bytesIn.Load()
}

// Name implements framework.Named.
func (p *Pump) Name() string {
	return "source"
}

// Run implements framework.Runnable. It reads until the stream ends or
// ctx is canceled; if the reader is an io.Closer, cancellation closes
// it to unblock the pending read.
func (p *Pump) Run(ctx context.Context) error {
	size := p.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)
	pump := func() error {
		for {
			n, err := p.Reader.Read(buf)
			if n > 0 {
				p.bytesIn.Add(uint64(n))
				p.Parser.Feed(buf[:n])
			}
			if err == io.EOF {
				glog.V(1).Info("byte stream ended")
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
	if closer, ok := p.Reader.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, pump)
	}
	return fx.RunWithContext(ctx, pump)
}
