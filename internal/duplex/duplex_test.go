package duplex

import (
	"io"
	"testing"
	"time"
)

func TestPipeRoundTrip(t *testing.T) {
	a, b := Pipe()
	if err := a.Write([]byte{0x7e, 0x01}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 16)
		n, err := b.Read(buf)
		if err != nil {
			t.Error(err)
			return
		}
		got := buf[:n]
		if len(got) != 2 || got[0] != 0x7e || got[1] != 0x01 {
			t.Errorf("got %v", got)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("frame did not arrive")
	}
}

func TestPipeClose(t *testing.T) {
	a, b := Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 16)
		if _, err := b.Read(buf); err != io.EOF {
			t.Errorf("read after peer close: got %v, want io.EOF", err)
		}
	}()

	a.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read after close did not unblock")
	}

	if err := a.Write([]byte{0x01}); err != ErrClosed {
		t.Errorf("write after close: got %v, want ErrClosed", err)
	}
}
