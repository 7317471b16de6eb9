package core

// This file is the single source of truth for the file-descriptor
// contract shared by the launcher (cmd/mpmrun, which opens
// the descriptors and hands them to os/exec.Cmd.ExtraFiles) and the worker
// (Init, which reopens them by number). Keeping the arithmetic in one place
// means the two sides can never disagree about which fd is which.
//
// Layout, for world size W, starting at a base fd Z (stdin/stdout/stderr
// occupy 0/1/2, so Z is conventionally 3):
//
//	[Z, Z+W-2]           p2p inbound, compacted index (self skipped)
//	[Z+(W-1), Z+2(W-1)-1] p2p outbound, compacted index
//	next 6 fds            tree parent-in, parent-out, left-in, left-out,
//	                      right-in, right-out (all six slots always
//	                      present; unused ones are still opened by the
//	                      launcher and simply never read by a worker that
//	                      has no such neighbor)
//	next fd                group-data inbound
//	next W-1 fds            group-data outbound, compacted index
const (
	// BaseFD is the first descriptor number above stderr that the
	// launcher reserves for a worker.
	BaseFD = 3

	numTreeFDs = 6
)

// compactIndex maps a peer rank to its 0-based slot within a
// (world-1)-sized block that skips the caller's own rank.
func compactIndex(self, peer int) int {
	if peer > self {
		peer--
	}
	return peer
}

// FDLayout describes the absolute descriptor numbers a worker of the given
// rank/world should use, computed from BaseFD.
type FDLayout struct {
	Rank, World int

	P2PInBase, P2POutBase         int
	GroupParentIn, GroupParentOut int
	GroupLeftIn, GroupLeftOut     int
	GroupRightIn, GroupRightOut   int
	GroupDataIn                   int
	GroupDataOutBase              int
}

// NewFDLayout computes the descriptor layout for rank out of world workers.
func NewFDLayout(rank, world int) FDLayout {
	p2pInBase := BaseFD
	p2pOutBase := p2pInBase + (world - 1)
	treeBase := p2pOutBase + (world - 1)
	dataIn := treeBase + numTreeFDs
	dataOutBase := dataIn + 1

	return FDLayout{
		Rank:  rank,
		World: world,

		P2PInBase:  p2pInBase,
		P2POutBase: p2pOutBase,

		GroupParentIn:  treeBase + 0,
		GroupParentOut: treeBase + 1,
		GroupLeftIn:    treeBase + 2,
		GroupLeftOut:   treeBase + 3,
		GroupRightIn:   treeBase + 4,
		GroupRightOut:  treeBase + 5,

		GroupDataIn:      dataIn,
		GroupDataOutBase: dataOutBase,
	}
}

// P2PIn/P2POut/GroupDataOut return the absolute fd number for a given peer.
func (l FDLayout) P2PIn(peer int) int  { return l.P2PInBase + compactIndex(l.Rank, peer) }
func (l FDLayout) P2POut(peer int) int { return l.P2POutBase + compactIndex(l.Rank, peer) }
func (l FDLayout) GroupDataOut(peer int) int {
	return l.GroupDataOutBase + compactIndex(l.Rank, peer)
}

// TotalFDs is how many descriptors, starting at BaseFD, a worker of this
// world size is handed in total. Used by the launcher to size ExtraFiles.
func TotalFDs(world int) int {
	// 2*(world-1) p2p + 6 tree + 1 + (world-1) group-data
	return 3*(world-1) + numTreeFDs + 1
}
