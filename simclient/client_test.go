package simclient

import (
	"os"
	"sync"
	"testing"

	"github.com/ctrlflow/attestcore/core"
	"github.com/ctrlflow/attestcore/exportsink"
)

// recordingAborter stands in for OSAborter in tests so a detected
// hijack doesn't kill the test binary.
type recordingAborter struct {
	mu      sync.Mutex
	reasons []string
}

func (a *recordingAborter) Abort(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reasons = append(a.reasons, msg)
}

func (a *recordingAborter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reasons)
}

// TestDroneHappyPath mirrors drone_test_happy_path.c: two straight-line
// branches, no attack, a clean proof at the end.
func TestDroneHappyPath(t *testing.T) {
	b := core.NewBoundary(core.Config{})
	aborter := &recordingAborter{}
	c, err := Open(b, aborter)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.FuncEnter(hashID("main")); err != nil {
		t.Fatalf("FuncEnter: %v", err)
	}

	// Branch 1: "ACTIVE flight" vs "IDLE standby"
	if err := c.Log(1); err != nil {
		t.Fatalf("Log: %v", err)
	}
	// Branch 2: "Battery OK" (battery=80, not < 20)
	if err := c.Log(0); err != nil {
		t.Fatalf("Log: %v", err)
	}

	c.FuncExit(hashID("main"))
	if aborter.count() != 0 {
		t.Fatalf("aborter fired on a clean call sequence: %v", aborter.reasons)
	}

	proof, err := c.Proof()
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	var zero [32]byte
	if proof == zero {
		t.Fatal("proof is all zero")
	}

	log, err := c.ExportLog()
	if err != nil {
		t.Fatalf("ExportLog: %v", err)
	}
	if len(log) == 0 {
		t.Fatal("expected a non-empty execution log")
	}
}

// TestDroneBadPath mirrors drone_test_bad_path.c: a helper exits under
// the wrong id, simulating a hijacked return. The Aborter fires exactly
// once and the session is left usable for the legitimate exit that
// follows — spec's requirement that detection not corrupt state.
func TestDroneBadPath(t *testing.T) {
	b := core.NewBoundary(core.Config{})
	aborter := &recordingAborter{}
	c, err := Open(b, aborter)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	mainID := hashID("main")

	if err := c.FuncEnter(mainID); err != nil {
		t.Fatalf("FuncEnter(main): %v", err)
	}
	if err := c.Log(1); err != nil {
		t.Fatalf("Log: %v", err)
	}

	// attempt_hack's frame is never pushed; the attacker forces an exit
	// under a made-up id instead.
	c.FuncExit(9999)
	if aborter.count() != 1 {
		t.Fatalf("aborter fired %d times, want 1", aborter.count())
	}

	// The legitimate frame is still on the stack and pops cleanly.
	c.FuncExit(mainID)
	if aborter.count() != 1 {
		t.Fatalf("aborter fired again on the legitimate exit: %d", aborter.count())
	}
}

func TestExportAndPersist(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "simclient-export-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	sink, err := exportsink.OpenFileSink(tmpDir)
	if err != nil {
		t.Fatalf("OpenFileSink: %v", err)
	}
	defer sink.Close()

	b := core.NewBoundary(core.Config{})
	c, err := Open(b, &recordingAborter{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.Log(1); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := c.ExportAndPersist(sink, 1); err != nil {
		t.Fatalf("ExportAndPersist: %v", err)
	}

	got, err := sink.List(1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List(1) = %d exports, want 1", len(got))
	}
	if len(got[0].Log) == 0 {
		t.Fatal("persisted export has an empty log")
	}
	var zero [32]byte
	if got[0].Tag == zero {
		t.Fatal("persisted export has a zero tag")
	}
}

func hashID(name string) uint32 {
	var h uint32 = 2166136261
	for _, c := range name {
		h ^= uint32(c)
		h *= 16777619
	}
	return h
}
