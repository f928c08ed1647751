package recording

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe_WriteNeverBlocks(t *testing.T) {
	p := newPipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_, _ = p.Write(make([]byte, 1024))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writes blocked without a reader")
	}
}

func TestPipe_ReadBlocksUntilData(t *testing.T) {
	p := newPipe()
	got := make(chan string, 1)

	go func() {
		buf := make([]byte, 8)
		n, _ := p.Read(buf)
		got <- string(buf[:n])
	}()

	select {
	case <-got:
		t.Fatal("read returned before any write")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := p.Write([]byte("pcm"))
	require.NoError(t, err)
	assert.Equal(t, "pcm", <-got)
}

func TestPipe_CloseDrainsThenEOF(t *testing.T) {
	p := newPipe()
	_, _ = p.Write([]byte("tail"))
	require.NoError(t, p.Close())

	data, err := io.ReadAll(p)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(data))

	_, err = p.Write([]byte("late"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
