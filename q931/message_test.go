package q931

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestCallRefRoundTrip(t *testing.T) {
	var golden = []struct {
		cr  CallRef
		hex string
	}{
		{CallRef{Len: 0}, "00"},
		{CallRef{Len: 1, Value: 0x01, FromOriginator: false}, "0101"},
		{CallRef{Len: 1, Value: 0x7f, FromOriginator: true}, "01ff"},
		{CallRef{Len: 2, Value: 0x0001, FromOriginator: false}, "020001"},
		{CallRef{Len: 2, Value: 0x7fff, FromOriginator: true}, "02ffff"},
	}

	for _, gold := range golden {
		got := gold.cr.appendTo(nil)
		if hex.EncodeToString(got) != gold.hex {
			t.Errorf("%+v: got %x, want %s", gold.cr, got, gold.hex)
		}

		parsed, rest, err := parseCallRef(got)
		if err != nil {
			t.Errorf("%+v: parse error %v", gold.cr, err)
			continue
		}
		if len(rest) != 0 {
			t.Errorf("%+v: leftover bytes %x", gold.cr, rest)
		}
		if parsed != gold.cr {
			t.Errorf("%+v: round trip got %+v", gold.cr, parsed)
		}
	}
}

// TestBuildAndParseSetup matches the shape of spec.md scenario S1 (the PRI
// incoming SETUP): bearer capability, exclusive channel-id, calling and
// called party number.
func TestBuildAndParseSetup(t *testing.T) {
	b := newBuilder(DiscQ931, CallRef{Len: 2, Value: 1}, Setup)
	mustAdd(t, b, IEBearerCapability, EncodeBearerCapability(BearerCapability{InfoTransferCap: ITCSpeech}))
	mustAdd(t, b, IEChannelID, EncodeChannelIDNumber(true, true, 1))
	mustAdd(t, b, IECallingPartyNumber, EncodeNumber(Number{
		Type: TypeNational, Plan: PlanISDN, Digits: "5551212",
	}, true))
	mustAdd(t, b, IECalledPartyNumber, EncodeNumber(Number{
		Type: TypeUnknown, Plan: PlanISDN, Digits: "8000",
	}, false))
	serial := b.build().Append(nil)

	m, err := Parse(serial)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if m.Type != Setup {
		t.Fatalf("got type %s, want SETUP", m.Type)
	}
	if m.CallRef.Value != 1 {
		t.Fatalf("got cref %d, want 1", m.CallRef.Value)
	}

	if _, ok := m.Find(IEBearerCapability); !ok {
		t.Error("missing bearer capability IE")
	}
	chanIE, ok := m.Find(IEChannelID)
	if !ok {
		t.Fatal("missing channel-id IE")
	}
	chanID, err := DecodeChannelID(chanIE.Content)
	if err != nil {
		t.Fatalf("decode channel id: %v", err)
	}
	if !chanID.Exclusive || chanID.Number != 1 {
		t.Errorf("got %+v, want exclusive channel 1", chanID)
	}

	callingIE, ok := m.Find(IECallingPartyNumber)
	if !ok {
		t.Fatal("missing calling party number IE")
	}
	calling, err := DecodeNumber(callingIE.Content, true)
	if err != nil {
		t.Fatalf("decode calling number: %v", err)
	}
	if calling.Digits != "5551212" {
		t.Errorf("got calling digits %q, want 5551212", calling.Digits)
	}

	calledIE, ok := m.Find(IECalledPartyNumber)
	if !ok {
		t.Fatal("missing called party number IE")
	}
	called, err := DecodeNumber(calledIE.Content, false)
	if err != nil {
		t.Fatalf("decode called number: %v", err)
	}
	if called.Digits != "8000" {
		t.Errorf("got called digits %q, want 8000", called.Digits)
	}
}

func mustAdd(t *testing.T, b *builder, tag IETag, content []byte) {
	t.Helper()
	if err := b.add(0, tag, content); err != nil {
		t.Fatalf("add %v: %v", tag, err)
	}
}

func TestMessageAppendParseRoundTrip(t *testing.T) {
	b := newBuilder(DiscQ931, CallRef{Len: 2, Value: 42}, Alerting)
	if err := b.add(0, IEProgressIndicator, EncodeProgressIndicator(ProgressIndicator{Description: ProgressInbandAvailable})); err != nil {
		t.Fatal(err)
	}
	m := b.build()

	serial := m.Append(nil)
	got, err := Parse(serial)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Type != Alerting || got.CallRef.Value != 42 {
		t.Fatalf("got %+v", got)
	}
	ie, ok := got.Find(IEProgressIndicator)
	if !ok {
		t.Fatal("missing progress indicator")
	}
	pi, err := DecodeProgressIndicator(ie.Content)
	if err != nil {
		t.Fatal(err)
	}
	if pi.Description != ProgressInbandAvailable {
		t.Errorf("got description %d", pi.Description)
	}
}

func TestMissingMandatory(t *testing.T) {
	m := Message{Type: Setup}
	tag, missing := m.MissingMandatory()
	if !missing || tag != IEBearerCapability {
		t.Fatalf("got (%v, %v), want (IEBearerCapability, true)", tag, missing)
	}
}

func TestParseShortMessage(t *testing.T) {
	for _, s := range []string{"", "08"} {
		b, _ := hex.DecodeString(s)
		if _, err := Parse(b); err == nil {
			t.Errorf("%q: want error, got nil", s)
		}
	}
}

func TestBuilderSingleOctet(t *testing.T) {
	b := newBuilder(DiscQ931, CallRef{Len: 1, Value: 5}, Disconnect)
	b.addSingleOctet(0xa0, 0x05)
	m := b.build()
	serial := m.Append(nil)

	want := []byte{DiscQ931, 1, 0x05, byte(Disconnect), 0xa5}
	if !bytes.Equal(serial, want) {
		t.Errorf("got %x, want %x", serial, want)
	}
}
