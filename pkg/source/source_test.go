package source

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lunixtng/lunix.go/pkg/protocol"
)

func TestPumpFeedsStream(t *testing.T) {
	reports := []protocol.Report{
		{NodeID: 1, Batt: 100, Temp: 200, Light: 300},
		{NodeID: 2, Batt: 0x7e7d, Temp: 5, Light: 6},
	}
	var stream []byte
	for _, r := range reports {
		stream = protocol.AppendFrame(stream, r.Frame())
	}

	var got []protocol.Report
	parser := &protocol.Parser{Handler: protocol.HandleFrameFunc(func(f *protocol.Frame) {
		if r, ok := f.SensorReport(); ok {
			got = append(got, r)
		}
	})}

	pump := NewPump(bytes.NewReader(stream), parser)
	pump.ChunkSize = 3 // force frame reassembly across reads
	require.NoError(t, pump.Run(context.Background()))
	require.Equal(t, reports, got)
	require.EqualValues(t, len(stream), pump.BytesIn())
}

func TestPumpCanceled(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	pump := NewPump(client, &protocol.Parser{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- pump.Run(ctx)
	}()
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("pump not unblocked by cancellation")
	}
}

func TestAttachUnknownTransport(t *testing.T) {
	_, err := Attach("carrier-pigeon", "localhost:1")
	require.Error(t, err)
}
