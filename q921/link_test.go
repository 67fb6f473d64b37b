package q921

import (
	"bytes"
	"testing"
	"time"

	"github.com/pascaldekloe/isdnsig/internal/sched"
)

// loopback wires two Links directly together, the teacher's Pipe idiom
// from session.go translated to a frame-at-a-time, synchronous transport.
func loopback(t *testing.T, a, b *Link) {
	t.Helper()
	a.Send = func(wire []byte) {
		if err := b.Receive(wire); err != nil {
			t.Errorf("b.Receive: %v", err)
		}
	}
	b.Send = func(wire []byte) {
		if err := a.Receive(wire); err != nil {
			t.Errorf("a.Receive: %v", err)
		}
	}
}

func TestLinkEstablishHandshake(t *testing.T) {
	sc := sched.New()
	network := NewLink(Config{Network: true}, SAPICallControl, 0, sc)
	user := NewLink(Config{Network: false}, SAPICallControl, 0, sc)
	loopback(t, network, user)

	var netUp, userUp bool
	network.Notify = func(i Indication) {
		if i == DLEstablishConfirm {
			netUp = true
		}
	}
	user.Notify = func(i Indication) {
		if i == DLEstablishIndication {
			userUp = true
		}
	}

	network.Establish()

	if !userUp {
		t.Error("user side did not see DL-ESTABLISH-IND after SABME")
	}
	if !netUp {
		t.Error("network side did not see DL-ESTABLISH-CONFIRM after UA")
	}
	if network.State() != MultipleFrameEstablished {
		t.Errorf("network state = %s, want multiple-frame-established", network.State())
	}
	if user.State() != MultipleFrameEstablished {
		t.Errorf("user state = %s, want multiple-frame-established", user.State())
	}
}

func TestLinkDataTransferRoundTrip(t *testing.T) {
	sc := sched.New()
	network := NewLink(Config{Network: true}, SAPICallControl, 0, sc)
	user := NewLink(Config{Network: false}, SAPICallControl, 0, sc)
	loopback(t, network, user)
	network.Establish()

	var got []byte
	user.Deliver = func(info []byte) { got = append([]byte(nil), info...) }

	want := []byte{0x08, 0x02, 0x00, 0x01, 0x05}
	if err := network.SendInfo(want); err != nil {
		t.Fatalf("SendInfo: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestLinkEstablishRetriesThenReleases(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	sc := sched.New()
	user := NewLink(Config{Network: false, N200: 2, T200: time.Second}, SAPICallControl, 0, sc)
	user.Send = func([]byte) {} // peer never answers

	var released bool
	user.Notify = func(i Indication) {
		if i == DLReleaseIndication {
			released = true
		}
	}

	now := base
	sc.SetClock(func() time.Time { return now })
	user.Establish()

	for i := 0; i < 5 && !released; i++ {
		now = now.Add(2 * time.Second)
		for sc.RunDue(now) {
		}
	}

	if !released {
		t.Fatal("link never reported DL-RELEASE-IND after N200 retries")
	}
	if user.State() != TEIUnassigned {
		t.Errorf("state = %s, want TEI-unassigned", user.State())
	}
}

func TestSendInfoRejectsOversizePayload(t *testing.T) {
	sc := sched.New()
	l := NewLink(Config{N201: 4}, SAPICallControl, 0, sc)
	l.state = MultipleFrameEstablished
	if err := l.SendInfo(make([]byte, 5)); err != ErrInfoTooLong {
		t.Errorf("got %v, want ErrInfoTooLong", err)
	}
}

func TestSendInfoRejectsWhenLinkDown(t *testing.T) {
	sc := sched.New()
	l := NewLink(Config{}, SAPICallControl, 0, sc)
	if err := l.SendInfo([]byte{1}); err != ErrLinkDown {
		t.Errorf("got %v, want ErrLinkDown", err)
	}
}
