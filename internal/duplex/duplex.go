// Package duplex provides a synchronous, in-memory, full-duplex byte
// pipe for exercising a pair of Controllers against each other without a
// real D-channel device. Grounded on session/session.go's Pipe: that
// original split outbound traffic into IEC 60870-5's Class 1 ("events")
// and Class 2 ("cyclic") priority queues, a distinction the D-channel has
// no use for, since LAPD frames carry their own priority within the
// link-layer retransmission queue; this Pipe collapses both into one
// feed and drops the Outbound/Done acknowledgement handles: tests run
// each end's reader in its own goroutine and need only blocking
// Read/Write, not an async completion signal.
package duplex

import (
	"errors"
	"io"
)

// ErrClosed signals a Write after Close; a Read after Close returns io.EOF.
var ErrClosed = errors.New("duplex: pipe closed")

// End is one side of a Pipe: frames written with Write arrive whole on
// the peer's Read, and vice versa. End's Read/Write signatures match the
// dchan.Device shape, so a Controller can run against either one
// interchangeably.
type End struct {
	In    <-chan []byte
	out   chan<- []byte
	close chan<- struct{}
	done  <-chan struct{}
}

// Write hands one frame to the peer. It returns ErrClosed once either
// end has closed.
func (e *End) Write(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	select {
	case e.out <- cp:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

// Read blocks for the next frame the peer wrote and copies it into buf,
// returning io.EOF once the pipe is closed.
func (e *End) Read(buf []byte) (int, error) {
	frame, ok := <-e.In
	if !ok {
		return 0, io.EOF
	}
	return copy(buf, frame), nil
}

// Close shuts this end down; the peer's Read calls observe io.EOF and
// its future Write calls fail with ErrClosed.
func (e *End) Close() { close(e.close) }

// Pipe creates two connected Ends.
func Pipe() (a, b *End) {
	aToB := make(chan []byte)
	bToA := make(chan []byte)
	aClose := make(chan struct{})
	bClose := make(chan struct{})
	done := make(chan struct{})

	go func() {
		select {
		case <-aClose:
		case <-bClose:
		}
		close(done)
	}()

	aIn := relay(bToA, done)
	bIn := relay(aToB, done)

	a = &End{In: aIn, out: aToB, close: aClose, done: done}
	b = &End{In: bIn, out: bToA, close: bClose, done: done}
	return a, b
}

// relay forwards feed onto a fresh channel that closes once done fires,
// so a blocked reader sees channel closure rather than hanging forever.
func relay(feed <-chan []byte, done <-chan struct{}) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case frame := <-feed:
				select {
				case out <- frame:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()
	return out
}
