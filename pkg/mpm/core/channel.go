package core

import (
	"errors"
	"io"
	"os"
)

// errPeerGone is returned by sendAll when the kernel reports the other end
// of the pipe has been closed (a broken pipe). It never escapes this
// package; callers translate it into types.PeerGone.
var errPeerGone = errors.New("core: peer gone")

// channel wraps one end of an anonymous pipe handed to the worker by the
// launcher, retrying partial reads/writes until complete, peer-closed, or
// a genuine error.
type channel struct {
	f *os.File
}

func newChannel(f *os.File) *channel {
	if f == nil {
		return nil
	}
	return &channel{f: f}
}

// sendAll writes exactly len(buf) bytes, looping over short writes.
// It returns errPeerGone when the kernel reports a broken pipe or when this
// end has already been closed; any other error is a genuine, fatal I/O
// failure.
func (c *channel) sendAll(buf []byte) error {
	for len(buf) > 0 {
		n, err := c.f.Write(buf)
		if n > 0 {
			buf = buf[n:]
		}
		if err != nil {
			if isBrokenPipe(err) {
				return errPeerGone
			}
			return err
		}
	}
	return nil
}

// recvAll reads exactly len(buf) bytes. It returns ok=true on success,
// ok=false on EOF (at the very first byte or mid-payload, both are
// treated as peer closure), and a non-nil error only for a genuine I/O
// failure.
func (c *channel) recvAll(buf []byte) (ok bool, err error) {
	total := 0
	for total < len(buf) {
		n, rerr := c.f.Read(buf[total:])
		total += n
		if rerr != nil {
			if rerr == io.EOF {
				return false, nil
			}
			return false, rerr
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

func (c *channel) Close() error {
	if c == nil || c.f == nil {
		return nil
	}
	return c.f.Close()
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, os.ErrClosed) || isEPIPE(err)
}
