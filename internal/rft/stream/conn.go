// Package stream adapts a TCP connection into the bidirectional,
// ordered, reliable byte channel the core engines frame their segments
// and ACKs on top of (spec §6).
package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/aetherflow/quantumrft/internal/rft/errs"
	"github.com/aetherflow/quantumrft/internal/rft/wire"
)

// Conn wraps a net.Conn with buffered I/O and the handshake/segment/ack
// framing the engines need.
type Conn struct {
	nc net.Conn
	r  *bufio.Reader
	w  *bufio.Writer
}

// New wraps an already-established net.Conn.
func New(nc net.Conn) *Conn {
	return &Conn{
		nc: nc,
		r:  bufio.NewReader(nc),
		w:  bufio.NewWriter(nc),
	}
}

// Dial opens a TCP connection to address and wraps it.
func Dial(network, address string) (*Conn, error) {
	nc, err := net.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", errs.ErrChannelClosed, address, err)
	}
	return New(nc), nil
}

// WriteSegment frames and writes a DATA/PROBE/END segment.
func (c *Conn) WriteSegment(seg wire.Segment) error {
	if _, err := c.w.Write(wire.EncodeSegment(seg)); err != nil {
		return fmt.Errorf("%w: writing segment: %v", errs.ErrChannelClosed, err)
	}
	return c.w.Flush()
}

// WriteAck frames and writes an ACK.
func (c *Conn) WriteAck(ack wire.Ack) error {
	if _, err := c.w.Write(wire.EncodeAck(ack)); err != nil {
		return fmt.Errorf("%w: writing ack: %v", errs.ErrChannelClosed, err)
	}
	return c.w.Flush()
}

// ReadSegment blocks until the next segment is framed off the wire, or
// deadline expires, or the peer disconnects.
func (c *Conn) ReadSegment(deadline time.Time) (wire.Segment, error) {
	if err := c.nc.SetReadDeadline(deadline); err != nil {
		return wire.Segment{}, err
	}
	// Peek first: the codec wraps reader errors as ErrMalformedFrame, which
	// would hide a deadline expiry or a clean close from the checks below.
	_, err := c.r.Peek(1)
	var seg wire.Segment
	if err == nil {
		seg, err = wire.ReadSegment(c.r)
	}
	if err != nil {
		if isTimeout(err) {
			return wire.Segment{}, err
		}
		if err == io.EOF {
			return wire.Segment{}, fmt.Errorf("%w: peer closed", errs.ErrChannelClosed)
		}
	}
	return seg, err
}

// ReadAck blocks until the next ACK is framed off the wire, or deadline
// expires, or the peer disconnects.
func (c *Conn) ReadAck(deadline time.Time) (wire.Ack, error) {
	if err := c.nc.SetReadDeadline(deadline); err != nil {
		return wire.Ack{}, err
	}
	// Peek first, as in ReadSegment.
	_, err := c.r.Peek(1)
	var ack wire.Ack
	if err == nil {
		ack, err = wire.ReadAck(c.r)
	}
	if err != nil {
		if isTimeout(err) {
			return wire.Ack{}, err
		}
		if err == io.EOF {
			return wire.Ack{}, fmt.Errorf("%w: peer closed", errs.ErrChannelClosed)
		}
	}
	return ack, err
}

// isTimeout reports whether err is a deadline-exceeded error on the
// underlying net.Conn — expected and not a channel failure (spec §5: a
// short read timeout keeps the loops responsive and is not an error).
func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// SendPrompt writes the receiver's opening length-prefixed prompt
// string, the first leg of the trivial filename handshake (spec §6).
func (c *Conn) SendPrompt(prompt string) error {
	return c.writeString(prompt)
}

// ReadPrompt reads a length-prefixed UTF-8 string off the wire (sender
// side of the handshake, reading the receiver's prompt).
func (c *Conn) ReadPrompt() (string, error) {
	return c.readString()
}

// SendFilename replies to the prompt with the filename being
// transferred.
func (c *Conn) SendFilename(name string) error {
	return c.writeString(name)
}

// ReadFilename reads the sender's filename reply.
func (c *Conn) ReadFilename() (string, error) {
	return c.readString()
}

// SendReady completes the handshake with a ready acknowledgement.
func (c *Conn) SendReady(msg string) error {
	return c.writeString(msg)
}

// ReadReady reads the receiver's ready acknowledgement.
func (c *Conn) ReadReady() (string, error) {
	return c.readString()
}

func (c *Conn) writeString(s string) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	if _, err := c.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrChannelClosed, err)
	}
	if _, err := c.w.WriteString(s); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrChannelClosed, err)
	}
	return c.w.Flush()
}

func (c *Conn) readString() (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrChannelClosed, err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrChannelClosed, err)
	}
	return string(buf), nil
}
