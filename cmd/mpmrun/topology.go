package main

import (
	"fmt"
	"os"

	"github.com/dinhtap/gompm/pkg/mpm/core"
)

// MaxWorldSize bounds how many workers one launcher will spawn. The fd
// layout grows linearly with the group size; 16 keeps the per-child
// descriptor count well under typical rlimits.
const MaxWorldSize = 16

// pipePair is one anonymous pipe: r is the read end, w is the write end.
type pipePair struct {
	r, w *os.File
}

func newPipe() (pipePair, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return pipePair{}, err
	}
	return pipePair{r: r, w: w}, nil
}

// closeBoth closes both ends, ignoring errors. Used for cleanup paths and
// for the parent process's own copies after handing descriptors to a
// child via ExtraFiles.
func (p pipePair) closeBoth() {
	if p.r != nil {
		_ = p.r.Close()
	}
	if p.w != nil {
		_ = p.w.Close()
	}
}

// topology holds the full pipe mesh the workers need: a complete mesh of
// p2p pipes, one group-data fan-in pipe per rank, and the
// implicit binary-heap tree's parent/child pipes. This is the launcher's
// half of the contract in fdlayout.go; the two must always agree on
// ordering, since that ordering is the only thing that tells a worker
// which raw fd number means what.
type topology struct {
	world int

	p2p       [][]pipePair // p2p[i][j] valid i != j: i writes, j reads
	groupData []pipePair   // groupData[i]: i reads (fan-in), everyone else writes

	// Indexed by child tree-position minus 2 (tree positions run
	// 2..world, 1-based).
	treeDown []pipePair // parent writes, child reads
	treeUp   []pipePair // child writes, parent reads

	devnull *os.File
}

func buildTopology(world int) (*topology, error) {
	t := &topology{world: world}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("mpmrun: opening %s: %w", os.DevNull, err)
	}
	t.devnull = devnull

	t.p2p = make([][]pipePair, world)
	for i := range t.p2p {
		t.p2p[i] = make([]pipePair, world)
	}
	for i := 0; i < world; i++ {
		for j := 0; j < world; j++ {
			if i == j {
				continue
			}
			p, err := newPipe()
			if err != nil {
				return nil, fmt.Errorf("mpmrun: p2p pipe %d->%d: %w", i, j, err)
			}
			t.p2p[i][j] = p
		}
	}

	t.groupData = make([]pipePair, world)
	for i := 0; i < world; i++ {
		p, err := newPipe()
		if err != nil {
			return nil, fmt.Errorf("mpmrun: group-data pipe for rank %d: %w", i, err)
		}
		t.groupData[i] = p
	}

	if world > 1 {
		t.treeDown = make([]pipePair, world-1)
		t.treeUp = make([]pipePair, world-1)
		for pos := 2; pos <= world; pos++ {
			down, err := newPipe()
			if err != nil {
				return nil, fmt.Errorf("mpmrun: tree-down pipe for position %d: %w", pos, err)
			}
			up, err := newPipe()
			if err != nil {
				return nil, fmt.Errorf("mpmrun: tree-up pipe for position %d: %w", pos, err)
			}
			t.treeDown[pos-2] = down
			t.treeUp[pos-2] = up
		}
	}

	return t, nil
}

// childFiles returns, in BaseFD order (see fdlayout.go), the *os.File
// values that become rank i's ExtraFiles.
func (t *topology) childFiles(rank int) []*os.File {
	world := t.world
	files := make([]*os.File, 0, core.TotalFDs(world))

	for peer := 0; peer < world; peer++ {
		if peer == rank {
			continue
		}
		files = append(files, t.p2p[peer][rank].r)
	}
	for peer := 0; peer < world; peer++ {
		if peer == rank {
			continue
		}
		files = append(files, t.p2p[rank][peer].w)
	}

	pos := rank + 1
	parentPos, leftPos, rightPos := pos/2, pos*2, pos*2+1

	var parentIn, parentOut *os.File = t.devnull, t.devnull
	if parentPos > 0 {
		parentIn = t.treeDown[pos-2].r
		parentOut = t.treeUp[pos-2].w
	}
	var leftIn, leftOut *os.File = t.devnull, t.devnull
	if leftPos <= world {
		leftIn = t.treeUp[leftPos-2].r
		leftOut = t.treeDown[leftPos-2].w
	}
	var rightIn, rightOut *os.File = t.devnull, t.devnull
	if rightPos <= world {
		rightIn = t.treeUp[rightPos-2].r
		rightOut = t.treeDown[rightPos-2].w
	}
	files = append(files, parentIn, parentOut, leftIn, leftOut, rightIn, rightOut)

	files = append(files, t.groupData[rank].r)
	for peer := 0; peer < world; peer++ {
		if peer == rank {
			continue
		}
		files = append(files, t.groupData[peer].w)
	}

	return files
}

// closeParentCopies closes every descriptor the launcher itself opened,
// once every child has them dup'd via ExtraFiles. The launcher has no
// further use for any of these.
func (t *topology) closeParentCopies() {
	for i := 0; i < t.world; i++ {
		for j := 0; j < t.world; j++ {
			if i == j {
				continue
			}
			t.p2p[i][j].closeBoth()
		}
	}
	for i := 0; i < t.world; i++ {
		t.groupData[i].closeBoth()
	}
	for _, p := range t.treeDown {
		p.closeBoth()
	}
	for _, p := range t.treeUp {
		p.closeBoth()
	}
	_ = t.devnull.Close()
}
