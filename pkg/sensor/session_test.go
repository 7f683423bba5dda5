package sensor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lunixtng/lunix.go/pkg/protocol"
)

func readAll(t *testing.T, s *Session) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out []byte
	buf := make([]byte, 8)
	for {
		n, err := s.Read(ctx, buf)
		require.NoError(t, err)
		if n == 0 {
			return string(out)
		}
		out = append(out, buf[:n]...)
	}
}

func TestOpenValidation(t *testing.T) {
	r, _ := newTestRegistry(4)

	testCases := []struct {
		name  string
		index int
		kind  Kind
		err   error
	}{
		{"negative index", -1, Battery, &ErrInvalidSensor{Index: -1, Count: 4}},
		{"index at count", 4, Battery, &ErrInvalidSensor{Index: 4, Count: 4}},
		{"negative kind", 0, Kind(-1), ErrInvalidKind},
		{"kind past last", 0, Kind(KindCount), ErrInvalidKind},
		{"valid", 3, Light, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := r.Open(tc.index, tc.kind)
			if tc.err == nil {
				require.NoError(t, err)
				require.NotNil(t, s)
				require.Equal(t, tc.kind, s.Kind())
			} else {
				require.Equal(t, tc.err, err)
				require.Nil(t, s)
			}
		})
	}
}

func TestReadDeliversRenderedValue(t *testing.T) {
	r, _ := newTestRegistry(16)
	r.Apply(protocol.Report{NodeID: 1, Batt: 2443, Temp: 21500, Light: 770})

	for _, tc := range []struct {
		kind Kind
		want string
	}{
		{Battery, "2.443\n"},
		{Temperature, "21.500\n"},
		{Light, "0.770\n"},
	} {
		s, err := r.Open(0, tc.kind)
		require.NoError(t, err)
		require.Equal(t, tc.want, readAll(t, s))
	}
}

func TestReadShortBufferAndAutoRewind(t *testing.T) {
	r, clock := newTestRegistry(1)
	r.Apply(protocol.Report{NodeID: 1, Batt: 2443})

	s, err := r.Open(0, Battery)
	require.NoError(t, err)

	ctx := context.Background()
	buf := make([]byte, 2)

	var got []byte
	for _, want := range []string{"2.", "44", "3\n"} {
		n, err := s.Read(ctx, buf)
		require.NoError(t, err)
		require.Equal(t, want, string(buf[:n]))
		got = append(got, buf[:n]...)
	}
	require.Equal(t, "2.443\n", string(got))

	// End of the cached value: one zero-length result, then the cursor
	// rewinds and the next cycle blocks for fresh data.
	n, err := s.Read(ctx, buf)
	require.NoError(t, err)
	require.Zero(t, n)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.Read(short, buf)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	clock.tick()
	r.Apply(protocol.Report{NodeID: 1, Batt: 1100})
	require.Equal(t, "1.100\n", readAll(t, s))
}

func TestRefreshStaleness(t *testing.T) {
	r, clock := newTestRegistry(1)
	r.Apply(protocol.Report{NodeID: 1, Batt: 500})

	s, err := r.Open(0, Battery)
	require.NoError(t, err)

	require.True(t, s.refresh(), "initial refresh picks up the update")
	require.False(t, s.refresh(), "no new data right after a refresh")

	// Same-second update: the timestamp is unchanged, so the cache is
	// still considered current.
	r.Apply(protocol.Report{NodeID: 1, Batt: 501})
	require.False(t, s.refresh())

	clock.tick()
	r.Apply(protocol.Report{NodeID: 1, Batt: 502})
	require.True(t, s.refresh(), "strictly newer update makes the cache stale")
}

func TestReadBlocksUntilUpdate(t *testing.T) {
	r, clock := newTestRegistry(1)
	s, err := r.Open(0, Battery)
	require.NoError(t, err)

	resultCh := make(chan string, 1)
	go func() {
		resultCh <- readAll(t, s)
	}()

	select {
	case out := <-resultCh:
		t.Fatalf("read returned %q before any update", out)
	case <-time.After(20 * time.Millisecond):
	}

	clock.tick()
	r.Apply(protocol.Report{NodeID: 1, Batt: 3300})
	select {
	case out := <-resultCh:
		require.Equal(t, "3.300\n", out)
	case <-time.After(5 * time.Second):
		t.Fatal("read not woken by update")
	}
}

func TestTwoSessionsObserveSameUpdate(t *testing.T) {
	r, clock := newTestRegistry(1)

	blocked, err := r.Open(0, Battery)
	require.NoError(t, err)
	late, err := r.Open(0, Battery)
	require.NoError(t, err)

	resultCh := make(chan string, 1)
	go func() {
		resultCh <- readAll(t, blocked)
	}()
	time.Sleep(20 * time.Millisecond)

	clock.tick()
	r.Apply(protocol.Report{NodeID: 1, Batt: 1234})

	select {
	case out := <-resultCh:
		require.Equal(t, "1.234\n", out)
	case <-time.After(5 * time.Second):
		t.Fatal("blocked session not woken")
	}
	require.Equal(t, "1.234\n", readAll(t, late))
}

func TestReadInterrupted(t *testing.T) {
	r, _ := newTestRegistry(1)
	s, err := r.Open(0, Battery)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Read(ctx, make([]byte, 16))
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("read not interrupted by cancellation")
	}
	require.Zero(t, s.off, "interruption leaves no partial read state")
	require.Zero(t, s.bufStamp)
}

func TestReadClosed(t *testing.T) {
	r, _ := newTestRegistry(1)
	s, err := r.Open(0, Battery)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = s.Read(context.Background(), make([]byte, 16))
	require.ErrorIs(t, err, ErrClosed)
}

func TestAppendValue(t *testing.T) {
	testCases := []struct {
		milli int32
		want  string
	}{
		{2443, "2.443\n"},
		{0, "0.000\n"},
		{12, "0.012\n"},
		{1005, "1.005\n"},
		{-5500, "-5.500\n"},
		{-500, "0.500\n"}, // integer part truncates toward zero
		{999999, "999.999\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			require.Equal(t, tc.want, FormatValue(tc.milli))
			require.LessOrEqual(t, len(tc.want), CacheSize)
		})
	}
}
