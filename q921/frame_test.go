package q921

import (
	"bytes"
	"testing"
)

func TestFrameAppendParseRoundTrip(t *testing.T) {
	cases := []frame{
		{sapi: SAPICallControl, cr: true, tei: 0, kind: uFrame, function: uSABME, pollFinal: true},
		{sapi: SAPICallControl, cr: false, tei: 0, kind: uFrame, function: uUA, pollFinal: true},
		{sapi: SAPICallControl, tei: 5, kind: sFrame, rrType: sRR, nr: 3, pollFinal: false},
		{sapi: SAPICallControl, tei: 5, kind: sFrame, rrType: sREJ, nr: 100, pollFinal: true},
		{sapi: SAPICallControl, tei: 5, kind: iFrame, ns: 1, nr: 2, info: []byte{0x08, 0x02, 0x00, 0x01, 0x05}},
	}

	for _, want := range cases {
		wire := want.appendTo(nil)
		got, err := parseFrame(wire)
		if err != nil {
			t.Fatalf("%s: parse error: %v", &want, err)
		}
		if got.sapi != want.sapi || got.tei != want.tei || got.kind != want.kind {
			t.Fatalf("got %s, want %s", &got, &want)
		}
		switch want.kind {
		case uFrame:
			if got.function != want.function || got.pollFinal != want.pollFinal {
				t.Errorf("got %s, want %s", &got, &want)
			}
		case sFrame:
			if got.rrType != want.rrType || got.nr != want.nr || got.pollFinal != want.pollFinal {
				t.Errorf("got %s, want %s", &got, &want)
			}
		case iFrame:
			if got.ns != want.ns || got.nr != want.nr || !bytes.Equal(got.info, want.info) {
				t.Errorf("got %s, want %s", &got, &want)
			}
		}
	}
}

func TestParseFrameRejectsShort(t *testing.T) {
	for _, b := range [][]byte{nil, {0x00}, {0x00, 0x01}} {
		if _, err := parseFrame(b); err == nil {
			t.Errorf("%x: want error, got nil", b)
		}
	}
}

func TestParseFrameRejectsBadAddressEA(t *testing.T) {
	// EA0 must be 0, EA1 must be 1; flip both to invalid values.
	if _, err := parseFrame([]byte{0x01, 0x00, 0x03}); err != errFrameAddr {
		t.Errorf("got %v, want errFrameAddr", err)
	}
}

func TestSeqAddWrapsModulus128(t *testing.T) {
	if got := seqAdd(127, 1); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	if got := seqAdd(0, 1); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}
