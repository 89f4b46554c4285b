package eventlog

import (
	"bytes"
	"testing"
)

func TestAppendAndRead(t *testing.T) {
	b := New()
	if !b.AppendBranch([]byte{'1'}) {
		t.Fatal("AppendBranch reported dropped")
	}
	if !b.AppendReturn(0x1B2) {
		t.Fatal("AppendReturn reported dropped")
	}

	want := []byte{
		TagBranch, '1',
		TagReturn, 0xB2, 0x01, 0x00, 0x00,
	}
	out := make([]byte, b.Len())
	n, short, hint := b.Read(out)
	if short {
		t.Fatalf("unexpected short buffer, hint=%d", hint)
	}
	if n != len(want) {
		t.Fatalf("n = %d, want %d", n, len(want))
	}
	if !bytes.Equal(out, want) {
		t.Fatalf("log = % x, want % x", out, want)
	}
}

func TestIndirectRecord(t *testing.T) {
	b := New()
	b.AppendIndirect(0x00000001DEADBEEF)
	b.AppendReturn(0x1B2)

	want := []byte{
		TagIndirect, 0xEF, 0xBE, 0xAD, 0xDE, 0x01, 0x00, 0x00, 0x00,
		TagReturn, 0xB2, 0x01, 0x00, 0x00,
	}
	out := make([]byte, b.Len())
	_, short, _ := b.Read(out)
	if short {
		t.Fatal("unexpected short buffer")
	}
	if !bytes.Equal(out, want) {
		t.Fatalf("log = % x, want % x", out, want)
	}
}

func TestShortBufferHintAndNoSideEffects(t *testing.T) {
	b := New()
	for i := 0; i < 100; i++ {
		b.AppendBranch([]byte{'1'})
	}
	if b.Len() != 200 {
		t.Fatalf("Len() = %d, want 200", b.Len())
	}
	out := make([]byte, 50)
	n, short, hint := b.Read(out)
	if !short {
		t.Fatal("expected short buffer")
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0 on short buffer", n)
	}
	if hint != 200 {
		t.Fatalf("hint = %d, want 200", hint)
	}
	for _, c := range out {
		if c != 0 {
			t.Fatal("short buffer path wrote into caller's buffer")
		}
	}
}

func TestOverflowDropsSilently(t *testing.T) {
	b := New()
	payload := make([]byte, 100)
	count := 0
	for i := 0; i < 1000; i++ {
		if b.AppendIndirect(0) {
			count++
		}
	}
	_ = payload
	if b.Len() > MaxSize {
		t.Fatalf("Len() = %d exceeds MaxSize %d", b.Len(), MaxSize)
	}
	// events stop being accepted once the buffer fills; Len() never exceeds MaxSize
	if count == 1000 {
		t.Fatal("expected some events to be dropped once the buffer filled")
	}
}

func TestExportIsNonDestructive(t *testing.T) {
	b := New()
	b.AppendBranch([]byte{'1'})
	before := b.Len()
	out := make([]byte, before)
	if _, short, _ := b.Read(out); short {
		t.Fatal("unexpected short buffer")
	}
	if b.Len() != before {
		t.Fatalf("Read mutated Len(): %d != %d", b.Len(), before)
	}
	// reading again returns the same bytes
	out2 := make([]byte, before)
	if _, short, _ := b.Read(out2); short {
		t.Fatal("unexpected short buffer on second read")
	}
	if !bytes.Equal(out, out2) {
		t.Fatal("export is not idempotent")
	}
}

func TestResetClearsLog(t *testing.T) {
	b := New()
	b.AppendBranch([]byte{'1'})
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len() = %d after Reset, want 0", b.Len())
	}
}

func TestPrefixMonotonicity(t *testing.T) {
	full := New()
	prefix := New()

	events := []func(*Buffer){
		func(b *Buffer) { b.AppendBranch([]byte{'1'}) },
		func(b *Buffer) { b.AppendIndirect(42) },
		func(b *Buffer) { b.AppendReturn(7) },
	}
	for i, ev := range events {
		ev(full)
		if i < len(events)-1 {
			ev(prefix)
		}
	}

	fullOut := make([]byte, full.Len())
	full.Read(fullOut)
	prefixOut := make([]byte, prefix.Len())
	prefix.Read(prefixOut)

	if !bytes.HasPrefix(fullOut, prefixOut) {
		t.Fatalf("exported log of prefix sequence is not a byte-prefix of the full sequence:\nfull:   % x\nprefix: % x", fullOut, prefixOut)
	}
}
