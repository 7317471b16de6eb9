package core

import (
	"encoding/binary"

	"github.com/dinhtap/gompm/pkg/mpm/types"
)

// frameHeaderSize is the on-wire size of a (count, tag) header: two native
// int32 values. Workers share a host, so there is never a cross-endianness
// peer and native-endian is the right encoding.
const frameHeaderSize = 8

// groupStatus is the one-byte tree-edge header.
type groupStatus byte

const (
	groupReady    groupStatus = 1
	groupFinalize groupStatus = 2
)

// frameHeader is the fixed pair every p2p frame opens with. Control frames
// (HINT_WAITING, ABORT_WAIT) reuse it for their secondary header too.
type frameHeader struct {
	Count int32
	Tag   types.Tag
}

func encodeHeader(h frameHeader) []byte {
	buf := make([]byte, frameHeaderSize)
	binary.NativeEndian.PutUint32(buf[0:4], uint32(h.Count))
	binary.NativeEndian.PutUint32(buf[4:8], uint32(int32(h.Tag)))
	return buf
}

func decodeHeader(buf []byte) frameHeader {
	return frameHeader{
		Count: int32(binary.NativeEndian.Uint32(buf[0:4])),
		Tag:   types.Tag(int32(binary.NativeEndian.Uint32(buf[4:8]))),
	}
}

// readHeader reads one frame header off c. ok is false on clean EOF.
func readHeader(c *channel) (h frameHeader, ok bool, err error) {
	buf := make([]byte, frameHeaderSize)
	ok, err = c.recvAll(buf)
	if err != nil || !ok {
		return frameHeader{}, ok, err
	}
	return decodeHeader(buf), true, nil
}

func writeHeader(c *channel, h frameHeader) error {
	return c.sendAll(encodeHeader(h))
}
