package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinhtap/gompm/pkg/mpm/types"
)

func TestBarrier_AllRanksReleaseTogether(t *testing.T) {
	const world = 4
	c := newTestCluster(t, world, false)

	var wg sync.WaitGroup
	results := make([]types.Retcode, world)
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank] = c.runtimes[rank].Barrier()
		}(rank)
	}

	require.True(t, waitOrTimeout(wg.Wait, 3*time.Second), "barrier never completed for all ranks")
	for rank, rc := range results {
		assert.Equal(t, types.OK, rc, "rank %d", rank)
	}
}

func TestBroadcast_RootZero(t *testing.T) {
	const world = 4
	c := newTestCluster(t, world, false)

	src := []byte("broadcast-payload")
	bufs := make([][]byte, world)
	for rank := range bufs {
		if rank == 0 {
			bufs[rank] = append([]byte(nil), src...)
		} else {
			bufs[rank] = make([]byte, len(src))
		}
	}

	var wg sync.WaitGroup
	results := make([]types.Retcode, world)
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank] = c.runtimes[rank].Broadcast(bufs[rank], 0)
		}(rank)
	}

	require.True(t, waitOrTimeout(wg.Wait, 3*time.Second), "broadcast never completed for all ranks")
	for rank, rc := range results {
		require.Equal(t, types.OK, rc, "rank %d", rank)
		assert.Equal(t, src, bufs[rank], "rank %d", rank)
	}
}

func TestBroadcast_NonZeroRoot(t *testing.T) {
	const world = 4
	const root = 2
	c := newTestCluster(t, world, false)

	src := []byte("from-rank-two")
	bufs := make([][]byte, world)
	for rank := range bufs {
		if rank == root {
			bufs[rank] = append([]byte(nil), src...)
		} else {
			bufs[rank] = make([]byte, len(src))
		}
	}

	var wg sync.WaitGroup
	results := make([]types.Retcode, world)
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank] = c.runtimes[rank].Broadcast(bufs[rank], root)
		}(rank)
	}

	require.True(t, waitOrTimeout(wg.Wait, 3*time.Second), "broadcast never completed for all ranks")
	for rank, rc := range results {
		require.Equal(t, types.OK, rc, "rank %d", rank)
		assert.Equal(t, src, bufs[rank], "rank %d", rank)
	}
}

func TestBroadcast_RootOutOfRange(t *testing.T) {
	c := newTestCluster(t, 2, false)
	assert.Equal(t, types.NoSuchRank, c.runtimes[0].Broadcast(make([]byte, 1), 9))
}

func TestReduce_SumToRoot(t *testing.T) {
	const world = 4
	c := newTestCluster(t, world, false)

	sendBufs := [][]byte{{1, 2, 3}, {10, 20, 30}, {100, 5, 9}, {1, 1, 1}}
	want := make([]byte, 3)
	for _, b := range sendBufs {
		for i, v := range b {
			want[i] += v // mod-256 wraparound matches types.Op.Apply for OpSum
		}
	}

	var wg sync.WaitGroup
	results := make([]types.Retcode, world)
	recv := make([][]byte, world)
	for rank := 0; rank < world; rank++ {
		recv[rank] = make([]byte, 3)
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank] = c.runtimes[rank].Reduce(sendBufs[rank], recv[rank], types.OpSum, 0)
		}(rank)
	}

	require.True(t, waitOrTimeout(wg.Wait, 3*time.Second), "reduce never completed for all ranks")
	require.Equal(t, types.OK, results[0])
	assert.Equal(t, want, recv[0])
}

func TestReduce_NonZeroRoot(t *testing.T) {
	const world = 3
	const root = 1
	c := newTestCluster(t, world, false)

	sendBufs := [][]byte{{3}, {5}, {7}}

	var wg sync.WaitGroup
	results := make([]types.Retcode, world)
	recv := make([][]byte, world)
	for rank := 0; rank < world; rank++ {
		recv[rank] = make([]byte, 1)
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank] = c.runtimes[rank].Reduce(sendBufs[rank], recv[rank], types.OpMax, root)
		}(rank)
	}

	require.True(t, waitOrTimeout(wg.Wait, 3*time.Second), "reduce never completed for all ranks")
	require.Equal(t, types.OK, results[root])
	assert.Equal(t, []byte{7}, recv[root])
}
