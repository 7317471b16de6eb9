package core

import "os"

// endpoints maps a peer rank to the channels this process uses to reach
// it, plus the six tree edges and the group-data fan paths. The tree is
// implicit (see tree.go); this struct holds only actual open channels,
// never a routing table.
type endpoints struct {
	rank, world int

	p2pIn  []*channel // len world, nil at index == rank
	p2pOut []*channel // len world, nil at index == rank

	groupDataOut []*channel // len world, nil at index == rank
	groupDataIn  *channel

	neighbors treeNeighbors

	parentIn, parentOut *channel
	leftIn, leftOut     *channel
	rightIn, rightOut   *channel
}

// newEndpoints assembles the table from already-open files. Both the real
// worker path (Init, opening fd numbers per fdlayout.go) and tests (wiring
// os.Pipe() pairs directly, with no real child process involved) go through
// this constructor, which is what makes the match/collective engines
// testable in-process per the "process-scoped context" design note.
func newEndpoints(rank, world int, p2pIn, p2pOut, groupDataOut []*os.File, groupDataIn *os.File,
	parentIn, parentOut, leftIn, leftOut, rightIn, rightOut *os.File) *endpoints {

	e := &endpoints{
		rank:         rank,
		world:        world,
		p2pIn:        make([]*channel, world),
		p2pOut:       make([]*channel, world),
		groupDataOut: make([]*channel, world),
		groupDataIn:  newChannel(groupDataIn),
		neighbors:    computeTreeNeighbors(rank, world),
		parentIn:     newChannel(parentIn),
		parentOut:    newChannel(parentOut),
		leftIn:       newChannel(leftIn),
		leftOut:      newChannel(leftOut),
		rightIn:      newChannel(rightIn),
		rightOut:     newChannel(rightOut),
	}
	for peer := 0; peer < world; peer++ {
		if peer == rank {
			continue
		}
		idx := compactIndex(rank, peer)
		e.p2pIn[peer] = newChannel(p2pIn[idx])
		e.p2pOut[peer] = newChannel(p2pOut[idx])
		e.groupDataOut[peer] = newChannel(groupDataOut[idx])
	}
	return e
}

// newEndpointsFromFDs reopens the descriptors the launcher handed this
// process, per the layout in fdlayout.go.
func newEndpointsFromFDs(rank, world int) *endpoints {
	layout := NewFDLayout(rank, world)
	neighbors := computeTreeNeighbors(rank, world)

	p2pIn := make([]*os.File, world-1)
	p2pOut := make([]*os.File, world-1)
	groupDataOut := make([]*os.File, world-1)
	for peer := 0; peer < world; peer++ {
		if peer == rank {
			continue
		}
		idx := compactIndex(rank, peer)
		p2pIn[idx] = os.NewFile(uintptr(layout.P2PIn(peer)), "p2p-in")
		p2pOut[idx] = os.NewFile(uintptr(layout.P2POut(peer)), "p2p-out")
		groupDataOut[idx] = os.NewFile(uintptr(layout.GroupDataOut(peer)), "group-data-out")
	}

	groupDataIn := os.NewFile(uintptr(layout.GroupDataIn), "group-data-in")

	var parentIn, parentOut, leftIn, leftOut, rightIn, rightOut *os.File
	if neighbors.hasParent {
		parentIn = os.NewFile(uintptr(layout.GroupParentIn), "tree-parent-in")
		parentOut = os.NewFile(uintptr(layout.GroupParentOut), "tree-parent-out")
	}
	if neighbors.hasLeft {
		leftIn = os.NewFile(uintptr(layout.GroupLeftIn), "tree-left-in")
		leftOut = os.NewFile(uintptr(layout.GroupLeftOut), "tree-left-out")
	}
	if neighbors.hasRight {
		rightIn = os.NewFile(uintptr(layout.GroupRightIn), "tree-right-in")
		rightOut = os.NewFile(uintptr(layout.GroupRightOut), "tree-right-out")
	}

	return newEndpoints(rank, world, p2pIn, p2pOut, groupDataOut, groupDataIn,
		parentIn, parentOut, leftIn, leftOut, rightIn, rightOut)
}
