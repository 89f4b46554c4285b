package digest

import (
	"bytes"
	"errors"
	"hash"
	"testing"
)

func TestUpdateBeforeInitIsSilentNoOp(t *testing.T) {
	a := New(DefaultHasherFactory)
	a.Update([]byte("ignored"))

	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	a.Update([]byte("x"))

	var out [Size]byte
	if _, err := a.Finalize(out[:]); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	b := New(DefaultHasherFactory)
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	b.Update([]byte("x"))
	var out2 [Size]byte
	if _, err := b.Finalize(out2[:]); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if !bytes.Equal(out[:], out2[:]) {
		t.Fatalf("pre-init Update leaked into the digest: %x != %x", out, out2)
	}
}

func TestDeterminism(t *testing.T) {
	mk := func() [Size]byte {
		a := New(DefaultHasherFactory)
		if err := a.Init(); err != nil {
			t.Fatalf("Init: %v", err)
		}
		a.Update([]byte("event-1"))
		a.Update([]byte("event-2"))
		var out [Size]byte
		if _, err := a.Finalize(out[:]); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		return out
	}
	t1, t2 := mk(), mk()
	if t1 != t2 {
		t.Fatalf("byte-identical streams produced different tags: %x != %x", t1, t2)
	}
}

func TestOrderSensitivity(t *testing.T) {
	run := func(a, b string) [Size]byte {
		acc := New(DefaultHasherFactory)
		_ = acc.Init()
		acc.Update([]byte(a))
		acc.Update([]byte(b))
		var out [Size]byte
		_, _ = acc.Finalize(out[:])
		return out
	}
	if run("a", "b") == run("b", "a") {
		t.Fatal("swapping event order did not change the tag")
	}
}

func TestFinalizeRequiresRunning(t *testing.T) {
	a := New(DefaultHasherFactory)
	var out [Size]byte
	if _, err := a.Finalize(out[:]); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestFinalizeThenInitResets(t *testing.T) {
	a := New(DefaultHasherFactory)
	_ = a.Init()
	a.Update([]byte("1"))
	var out [Size]byte
	if _, err := a.Finalize(out[:]); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if a.Running() {
		t.Fatal("accumulator still Running after Finalize")
	}
	a.Update([]byte("dropped"))
	if err := a.Init(); err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	a.Update([]byte("1"))
	var out2 [Size]byte
	if _, err := a.Finalize(out2[:]); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if out != out2 {
		t.Fatalf("reset session produced different tag than a fresh one: %x != %x", out, out2)
	}
}

func TestInitFactoryFailure(t *testing.T) {
	want := errors.New("allocation failed")
	a := New(func() (hash.Hash, error) { return nil, want })
	if err := a.Init(); !errors.Is(err, want) {
		t.Fatalf("expected factory error, got %v", err)
	}
	if a.Running() {
		t.Fatal("accumulator reports Running after a failed Init")
	}
}
