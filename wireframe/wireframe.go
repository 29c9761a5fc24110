// Package wireframe implements the length-prefixed multipart framing that
// the proxy, registrar, and pool packages use to move Messages and control
// requests over plain net.Conn sockets. A message on the wire is a
// sequence of opaque byte frames; every socket kind in this module
// (pub, sub, control, registrar) speaks this one framing.
package wireframe

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// MaxFrames bounds the number of frames in a single multipart message, a
// sanity limit against a corrupted or hostile peer.
const MaxFrames = 64

// MaxFrameBytes bounds the size of a single frame.
const MaxFrameBytes = 64 << 20

// Conn wraps a net.Conn with buffered multipart frame read/write. It is
// safe for one reader and one writer goroutine to use concurrently, but
// not for concurrent writers (callers serialize writes with their own
// mutex, the way the proxy's subscriberConn does).
type Conn struct {
	nc net.Conn
	r  *bufio.Reader
	w  *bufio.Writer
}

// NewConn wraps an established net.Conn for framed multipart I/O.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc, r: bufio.NewReader(nc), w: bufio.NewWriter(nc)}
}

// Raw returns the underlying net.Conn, e.g. for SetDeadline calls.
func (c *Conn) Raw() net.Conn {
	return c.nc
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// SetDeadline is a convenience forward to the underlying net.Conn.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.nc.SetDeadline(t)
}

// WriteFrames writes a multipart message: a uint32 frame count, then for
// each frame a uint32 length followed by its bytes, all big-endian. The
// write is flushed before returning so the peer sees the whole message or
// none of it (subject to the usual TCP partial-write semantics on error).
func (c *Conn) WriteFrames(frames [][]byte) error {
	if len(frames) == 0 || len(frames) > MaxFrames {
		return fmt.Errorf("wireframe: invalid frame count %d", len(frames))
	}
	for _, f := range frames {
		if len(f) > MaxFrameBytes {
			return fmt.Errorf("wireframe: frame of %d bytes exceeds limit", len(f))
		}
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(frames)))
	if _, err := c.w.Write(hdr[:]); err != nil {
		return err
	}
	for _, f := range frames {
		binary.BigEndian.PutUint32(hdr[:], uint32(len(f)))
		if _, err := c.w.Write(hdr[:]); err != nil {
			return err
		}
		if len(f) > 0 {
			if _, err := c.w.Write(f); err != nil {
				return err
			}
		}
	}
	return c.w.Flush()
}

// PollFrames waits up to d for the start of a multipart message, then
// reads it fully. The wait uses a read deadline on a 1-byte Peek, which
// never consumes from the stream: a timeout here leaves the connection
// exactly where it was, so callers can poll in a loop without ever
// desynchronizing the length-prefixed framing. Once the first byte is
// buffered the rest of the message is read without a deadline; the
// peer writes whole messages in one flush, so the remainder is already
// in flight.
func (c *Conn) PollFrames(d time.Duration) ([][]byte, error) {
	if err := c.nc.SetReadDeadline(time.Now().Add(d)); err != nil {
		return nil, err
	}
	_, err := c.r.Peek(1)
	c.nc.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, err
	}
	return c.ReadFrames()
}

// ReadFrames reads one multipart message written by WriteFrames.
func (c *Conn) ReadFrames() ([][]byte, error) {
	count, err := readUint32(c.r)
	if err != nil {
		return nil, err
	}
	if count == 0 || count > MaxFrames {
		return nil, fmt.Errorf("wireframe: peer sent invalid frame count %d", count)
	}
	frames := make([][]byte, count)
	for i := range frames {
		n, err := readUint32(c.r)
		if err != nil {
			return nil, err
		}
		if n > MaxFrameBytes {
			return nil, fmt.Errorf("wireframe: peer sent frame of %d bytes, exceeds limit", n)
		}
		buf := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(c.r, buf); err != nil {
				return nil, err
			}
		}
		frames[i] = buf
	}
	return frames, nil
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
