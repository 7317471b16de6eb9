package core

// treeNeighbors computes this rank's position in the implicit 1-based heap
// used for every collective: parent = floor((rank+1)/2), children =
// 2*(rank+1) and 2*(rank+1)+1. hasParent/hasLeft/hasRight report whether
// that neighbor exists for a group of the given world size. No routing
// table is stored anywhere; every caller derives these from rank and
// world size alone.
type treeNeighbors struct {
	hasParent, hasLeft, hasRight bool
}

func computeTreeNeighbors(rank, world int) treeNeighbors {
	pos := rank + 1
	root := pos / 2
	left := pos * 2
	right := pos*2 + 1
	return treeNeighbors{
		hasParent: root > 0,
		hasLeft:   left <= world,
		hasRight:  right <= world,
	}
}
