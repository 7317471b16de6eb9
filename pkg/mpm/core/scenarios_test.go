package core

import (
	"sync"
	"testing"
	"time"

	"github.com/dinhtap/gompm/pkg/mpm/types"
)

// The following mirror the concrete end-to-end scenarios named S1-S6.

func TestScenario_S1_Ping(t *testing.T) {
	c := newTestCluster(t, 3, false)

	if rc := c.runtimes[0].Send([]byte{0x01, 0x02, 0x03}, 1, 7); rc != types.OK {
		t.Fatalf("send: got %v, want OK", rc)
	}
	got := make([]byte, 3)
	var rc types.Retcode
	if !waitOrTimeout(func() { rc = c.runtimes[1].Recv(got, 0, 7) }, 2*time.Second) {
		t.Fatal("recv timed out")
	}
	if rc != types.OK {
		t.Fatalf("recv: got %v, want OK", rc)
	}
	if got[0] != 0x01 || got[1] != 0x02 || got[2] != 0x03 {
		t.Fatalf("got %x, want 010203", got)
	}
}

func TestScenario_S2_AnyTag(t *testing.T) {
	c := newTestCluster(t, 3, false)

	c.runtimes[0].Send([]byte{0xAA}, 1, 5)
	c.runtimes[0].Send([]byte{0xBB}, 1, 9)
	time.Sleep(50 * time.Millisecond)

	first := make([]byte, 1)
	if rc := c.runtimes[1].Recv(first, 0, 0); rc != types.OK || first[0] != 0xAA {
		t.Fatalf("first recv: got %v %x, want OK AA", rc, first)
	}
	second := make([]byte, 1)
	if rc := c.runtimes[1].Recv(second, 0, 0); rc != types.OK || second[0] != 0xBB {
		t.Fatalf("second recv: got %v %x, want OK BB", rc, second)
	}
}

func TestScenario_S3_PeerGone(t *testing.T) {
	c := newTestCluster(t, 3, false)

	c.beginFinalize(0)
	buf := make([]byte, 1)
	var rc types.Retcode
	if !waitOrTimeout(func() { rc = c.runtimes[1].Recv(buf, 0, 0) }, 2*time.Second) {
		t.Fatal("recv timed out")
	}
	if rc != types.PeerGone {
		t.Fatalf("recv: got %v, want PeerGone", rc)
	}
}

func TestScenario_S4_Deadlock(t *testing.T) {
	c := newTestCluster(t, 2, true)

	rc0 := make(chan types.Retcode, 1)
	rc1 := make(chan types.Retcode, 1)
	go func() { rc0 <- c.runtimes[0].Recv(make([]byte, 1), 1, 0) }()
	go func() { rc1 <- c.runtimes[1].Recv(make([]byte, 1), 0, 0) }()

	timeout := time.After(3 * time.Second)
	var a, b types.Retcode
	for i := 0; i < 2; i++ {
		select {
		case a = <-rc0:
		case b = <-rc1:
		case <-timeout:
			t.Fatal("neither side reported deadlock in time")
		}
	}
	if a != types.Deadlock || b != types.Deadlock {
		t.Fatalf("got (%v, %v), want (Deadlock, Deadlock)", a, b)
	}
}

func TestScenario_S5_Broadcast(t *testing.T) {
	const world = 4
	c := newTestCluster(t, world, false)

	src := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	bufs := make([][]byte, world)
	for rank := range bufs {
		if rank == 2 {
			bufs[rank] = append([]byte(nil), src...)
		} else {
			bufs[rank] = make([]byte, 4)
		}
	}

	var wg sync.WaitGroup
	results := make([]types.Retcode, world)
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank] = c.runtimes[rank].Broadcast(bufs[rank], 2)
		}(rank)
	}
	if !waitOrTimeout(wg.Wait, 3*time.Second) {
		t.Fatal("broadcast never completed")
	}
	for rank, rc := range results {
		if rc != types.OK {
			t.Fatalf("rank %d: got %v, want OK", rank, rc)
		}
		if string(bufs[rank]) != string(src) {
			t.Fatalf("rank %d: got %x, want %x", rank, bufs[rank], src)
		}
	}
}

func TestScenario_S6_ReduceSum(t *testing.T) {
	const world = 4
	const root = 1
	c := newTestCluster(t, world, false)

	send := [][]byte{{0x01, 0x02}, {0x03, 0x04}, {0x05, 0x06}, {0x07, 0x08}}
	want := []byte{0x10, 0x14}

	var wg sync.WaitGroup
	results := make([]types.Retcode, world)
	recv := make([][]byte, world)
	for rank := 0; rank < world; rank++ {
		recv[rank] = make([]byte, 2)
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank] = c.runtimes[rank].Reduce(send[rank], recv[rank], types.OpSum, root)
		}(rank)
	}
	if !waitOrTimeout(wg.Wait, 3*time.Second) {
		t.Fatal("reduce never completed")
	}
	if results[root] != types.OK {
		t.Fatalf("root: got %v, want OK", results[root])
	}
	if string(recv[root]) != string(want) {
		t.Fatalf("root: got %x, want %x", recv[root], want)
	}
}
