package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_WriteRead(t *testing.T) {
	buf, err := NewCircularBuffer[int](3)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3))

	assert.Equal(t, 3, buf.Size())
	assert.True(t, buf.IsFull())

	v, ok := buf.Read()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = buf.Read()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	assert.Equal(t, 1, buf.Size())
	assert.False(t, buf.IsFull())
}

func TestCircularBuffer_ReadEmpty(t *testing.T) {
	buf, err := NewCircularBuffer[string](2)
	require.NoError(t, err)

	v, ok := buf.Read()
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.True(t, buf.IsEmpty())
}

func TestCircularBuffer_DropOldest(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer[int](2,
		WithOverflowPolicy[int](DropOldest),
		WithDropCallback[int](func(item int) {
			dropped = append(dropped, item)
		}),
	)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3)) // evicts 1

	assert.Equal(t, []int{1}, dropped)
	assert.Equal(t, 2, buf.Size())

	v, ok := buf.Read()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = buf.Read()
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	assert.Equal(t, int64(1), buf.Stats().Drops())
}

func TestCircularBuffer_DropNewest(t *testing.T) {
	buf, err := NewCircularBuffer[int](2, WithOverflowPolicy[int](DropNewest))
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3)) // dropped

	v, ok := buf.Read()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = buf.Read()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = buf.Read()
	assert.False(t, ok)
}

func TestCircularBuffer_ReadBatch(t *testing.T) {
	buf, err := NewCircularBuffer[int](5)
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		require.NoError(t, buf.Write(i))
	}

	batch := buf.ReadBatch(3)
	assert.Equal(t, []int{1, 2, 3}, batch)
	assert.Equal(t, 1, buf.Size())

	// Batch larger than remaining content drains the buffer
	batch = buf.ReadBatch(10)
	assert.Equal(t, []int{4}, batch)
	assert.True(t, buf.IsEmpty())

	assert.Nil(t, buf.ReadBatch(0))
	assert.Nil(t, buf.ReadBatch(5))
}

func TestCircularBuffer_WrapAround(t *testing.T) {
	buf, err := NewCircularBuffer[int](3)
	require.NoError(t, err)

	// Cycle through the ring several times
	for i := 0; i < 10; i++ {
		require.NoError(t, buf.Write(i))
		v, ok := buf.Read()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.True(t, buf.IsEmpty())
}

func TestCircularBuffer_Clear(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer[int](3,
		WithDropCallback[int](func(item int) {
			dropped = append(dropped, item)
		}),
	)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))

	buf.Clear()
	assert.True(t, buf.IsEmpty())
	assert.Equal(t, []int{1, 2}, dropped)
}

func TestCircularBuffer_Close(t *testing.T) {
	buf, err := NewCircularBuffer[int](2)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Close())

	// Writes fail after close, reads drain remaining items
	assert.Error(t, buf.Write(2))

	v, ok := buf.Read()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCircularBuffer_MinimumCapacity(t *testing.T) {
	buf, err := NewCircularBuffer[int](0)
	require.NoError(t, err)
	assert.Equal(t, 1, buf.Capacity())
}

func TestCircularBuffer_Stats(t *testing.T) {
	buf, err := NewCircularBuffer[int](2)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3)) // drop oldest
	buf.Read()

	summary := buf.Stats().Summary()
	assert.Equal(t, int64(3), summary.Writes)
	assert.Equal(t, int64(1), summary.Reads)
	assert.Equal(t, int64(1), summary.Drops)
	assert.Equal(t, int64(1), summary.CurrentSize)
	assert.Equal(t, int64(2), summary.MaxSize)
	assert.InDelta(t, 1.0/3.0, summary.DropRate, 0.001)
}

func TestCircularBuffer_ConcurrentAccess(t *testing.T) {
	buf, err := NewCircularBuffer[int](100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				_ = buf.Write(base + i)
			}
		}(w * 1000)
	}

	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				buf.Read()
			}
		}()
	}

	wg.Wait()

	stats := buf.Stats()
	assert.Equal(t, stats.Writes(), stats.Reads()+stats.Drops()+int64(buf.Size()))
}

func TestCircularBuffer_DropCallbackMayReenterBuffer(t *testing.T) {
	var buf Buffer[int]
	var sizesSeen []int

	buf, err := NewCircularBuffer[int](2,
		WithOverflowPolicy[int](DropOldest),
		WithDropCallback[int](func(int) {
			// Callbacks run outside the buffer lock, so calling back
			// into the buffer must not deadlock.
			sizesSeen = append(sizesSeen, buf.Size())
		}),
	)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3)) // evicts 1, callback re-enters

	require.Len(t, sizesSeen, 1)
	assert.Equal(t, 2, sizesSeen[0])
}

func TestCircularBuffer_DropNewestCallbackMayReenterBuffer(t *testing.T) {
	var buf Buffer[int]
	var dropped []int

	buf, err := NewCircularBuffer[int](1,
		WithOverflowPolicy[int](DropNewest),
		WithDropCallback[int](func(item int) {
			_ = buf.Size()
			dropped = append(dropped, item)
		}),
	)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2)) // rejected, callback re-enters

	assert.Equal(t, []int{2}, dropped)
	assert.Equal(t, 1, buf.Size())
}

func TestCircularBuffer_ClearCallbackMayReenterBuffer(t *testing.T) {
	var buf Buffer[int]
	var sizesSeen []int

	buf, err := NewCircularBuffer[int](4,
		WithDropCallback[int](func(int) {
			sizesSeen = append(sizesSeen, buf.Size())
		}),
	)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	buf.Clear()

	assert.Equal(t, []int{0, 0}, sizesSeen)
	assert.True(t, buf.IsEmpty())
}

func BenchmarkCircularBuffer_Write(b *testing.B) {
	buf, _ := NewCircularBuffer[int](1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = buf.Write(i)
	}
}

func BenchmarkCircularBuffer_WriteRead(b *testing.B) {
	buf, _ := NewCircularBuffer[int](1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = buf.Write(i)
		buf.Read()
	}
}
