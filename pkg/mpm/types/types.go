// Package types holds the vocabulary shared by every layer of the runtime:
// ranks, tags, status codes, reduction operators, and the small set of
// reserved control values the wire protocol piggybacks on the p2p channels.
package types

import (
	"errors"
	"fmt"
)

// Fatal initialization errors. User-facing operations report Retcode
// values instead; these are returned only from the Init path, wrapped
// with the offending value.
var (
	// ErrMalformedEnv means MPM_WORLD_SIZE or MPM_RANK was missing or
	// not a decimal integer.
	ErrMalformedEnv = errors.New("mpm: malformed environment")

	// ErrRankOutOfRange means MPM_RANK was not in [0, MPM_WORLD_SIZE).
	ErrRankOutOfRange = errors.New("mpm: rank out of range")
)

// Rank identifies a worker inside its fixed-size group, 0-based.
type Rank int

// Tag is the user-supplied integer attached to a message. Tag 0 is the
// "any tag" wildcard, but only on the receive side: it is never produced
// as a transmitted control value.
type Tag int32

// AnyTag is the receive-side wildcard tag.
const AnyTag Tag = 0

// Reserved control tags. User code never produces these; the deadlock
// protocol piggybacks them on the same p2p channel as ordinary messages.
// Negative values keep them disjoint from legal user tags.
const (
	// TagHintWaiting announces "I am blocked waiting on a (count, tag)
	// from you". It is always followed by a second frame header carrying
	// that (count, tag) pair instead of a payload.
	TagHintWaiting Tag = -1

	// TagAbortWait tells a peer that its announced wait cannot be
	// satisfied and must be released with a deadlock verdict.
	TagAbortWait Tag = -2
)

// Retcode is the status returned by every user-facing operation.
type Retcode int

const (
	// OK means the operation completed.
	OK Retcode = iota
	// PeerGone means the addressed peer (point-to-point) or some peer in
	// the group (collective) has finalized.
	PeerGone
	// NoSuchRank means destination/source is out of [0, world).
	NoSuchRank
	// SelfOp means destination/source equals this rank.
	SelfOp
	// Deadlock means deadlock detection was enabled and a symmetric wait
	// was proved between this process and a peer.
	Deadlock
)

func (r Retcode) String() string {
	switch r {
	case OK:
		return "OK"
	case PeerGone:
		return "PEER_GONE"
	case NoSuchRank:
		return "NO_SUCH_RANK"
	case SelfOp:
		return "SELF_OP"
	case Deadlock:
		return "DEADLOCK"
	default:
		return fmt.Sprintf("Retcode(%d)", int(r))
	}
}

// Op is a reduction operator. Operands are treated as unsigned bytes and
// combined element-wise modulo 256.
type Op int

const (
	OpMin Op = iota
	OpMax
	OpSum
	OpProd
)

func (o Op) String() string {
	switch o {
	case OpMin:
		return "MIN"
	case OpMax:
		return "MAX"
	case OpSum:
		return "SUM"
	case OpProd:
		return "PROD"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Apply combines the accumulator with the operand byte under o.
func (o Op) Apply(acc, operand byte) byte {
	switch o {
	case OpMax:
		if operand > acc {
			return operand
		}
		return acc
	case OpMin:
		if operand < acc {
			return operand
		}
		return acc
	case OpSum:
		return acc + operand
	case OpProd:
		return acc * operand
	default:
		return acc
	}
}

// Logger is the logging interface every component accepts. A nil Logger is
// never passed in; definition.NewDefaultLogger provides the default.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
}
