package exportsink

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteSink_PutAndList(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "exports.db")
	sink, err := OpenSQLiteSink(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	e1 := Export{SessionID: 1, ExportedAt: time.Now(), Tag: [32]byte{1}, Log: []byte("alpha")}
	e2 := Export{SessionID: 1, ExportedAt: time.Now(), Tag: [32]byte{2}, Log: []byte("beta")}

	if err := sink.Put(e1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := sink.Put(e2); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := sink.List(1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List(1) returned %d, want 2", len(got))
	}
	if !bytes.Equal(got[0].Log, e1.Log) || !bytes.Equal(got[1].Log, e2.Log) {
		t.Fatalf("List(1) order/content mismatch: %+v", got)
	}
	if got[0].Tag != e1.Tag {
		t.Fatalf("Tag round-trip mismatch: %x != %x", got[0].Tag, e1.Tag)
	}
}

func TestSQLiteSink_UnknownSessionEmpty(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "exports.db")
	sink, err := OpenSQLiteSink(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	got, err := sink.List(42)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("List(42) = %+v, want empty", got)
	}
}
