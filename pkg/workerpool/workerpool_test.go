package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomWait(t *testing.T) {
	p := New(Config{WorkerCount: 4})
	defer p.Close()

	var done atomic.Int64
	room := p.NewRoom()
	for i := 0; i < 100; i++ {
		room.Submit(func() error {
			done.Add(1)
			return nil
		})
	}

	require.NoError(t, room.Wait())
	assert.Equal(t, int64(100), done.Load())
}

func TestRoomWait_ReportsFirstError(t *testing.T) {
	p := New(Config{WorkerCount: 2})
	defer p.Close()

	boom := errors.New("boom")
	room := p.NewRoom()
	for i := 0; i < 10; i++ {
		i := i
		room.Submit(func() error {
			if i == 5 {
				return boom
			}
			return nil
		})
	}

	assert.ErrorIs(t, room.Wait(), boom)
}

func TestIndexStableResults(t *testing.T) {
	p := New(Config{WorkerCount: 8})
	defer p.Close()

	results := make([]int, 64)
	room := p.NewRoom()
	for i := range results {
		i := i
		room.Submit(func() error {
			results[i] = i * i
			return nil
		})
	}
	require.NoError(t, room.Wait())

	for i, v := range results {
		assert.Equal(t, i*i, v)
	}
}
