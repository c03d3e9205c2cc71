package buffer

import (
	"bytes"
	"testing"
)

// Scenario 1 from the spec's end-to-end test list: compaction without
// reallocation.
func TestCompactionScenario(t *testing.T) {
	b := NewSize(1024)
	b.Append(bytes.Repeat([]byte{'A'}, 1000))
	b.Drop(900)
	b.Append(bytes.Repeat([]byte{'B'}, 500))

	if b.Cap() != 1024 {
		t.Fatalf("expected no reallocation, cap=%d", b.Cap())
	}
	if b.readIdx != 0 {
		t.Fatalf("expected read_idx=0, got %d", b.readIdx)
	}
	if b.writeIdx != 600 {
		t.Fatalf("expected write_idx=600, got %d", b.writeIdx)
	}
	data := b.Bytes()
	if !bytes.Equal(data[:100], bytes.Repeat([]byte{'A'}, 100)) {
		t.Fatalf("expected [0:100) = 'A'")
	}
	if !bytes.Equal(data[100:600], bytes.Repeat([]byte{'B'}, 500)) {
		t.Fatalf("expected [100:600) = 'B'")
	}
}

func TestAppendConsumeOrdering(t *testing.T) {
	b := New()
	var want []byte
	for i := 0; i < 50; i++ {
		chunk := bytes.Repeat([]byte{byte('a' + i%26)}, i+1)
		b.Append(chunk)
		want = append(want, chunk...)
		if i%3 == 0 && b.Len() > 0 {
			n := b.Len() / 2
			got := b.Read(n)
			if !bytes.Equal(got, want[:n]) {
				t.Fatalf("mismatch at iteration %d", i)
			}
			want = want[n:]
		}
	}
	got := b.ReadAll()
	if !bytes.Equal(got, want) {
		t.Fatalf("final mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}

func TestEnsureWritablePreservesReadable(t *testing.T) {
	b := NewSize(16)
	b.Append([]byte("hello"))
	b.Drop(2)
	before := append([]byte(nil), b.Bytes()...)

	b.EnsureWritable(100)
	if b.WritableBytes() < 100 {
		t.Fatalf("expected writable >= 100, got %d", b.WritableBytes())
	}
	if !bytes.Equal(b.Bytes(), before) {
		t.Fatalf("readable bytes changed: got %q, want %q", b.Bytes(), before)
	}
}

func TestWriteReadStringRoundTripWithNUL(t *testing.T) {
	s := "a\x00b\x00c"
	b := New()
	b.AppendString(s)
	got := string(b.Read(len(s)))
	if got != s {
		t.Fatalf("round trip mismatch: got %q want %q", got, s)
	}
}

func TestPeekLine(t *testing.T) {
	b := New()
	b.AppendString("GET / HTTP/1.1\r\n")
	line := b.PeekLine()
	if string(line) != "GET / HTTP/1.1\r\n" {
		t.Fatalf("unexpected line: %q", line)
	}
	if b.Len() == 0 {
		t.Fatalf("peek must not consume")
	}
	b2 := New()
	b2.AppendString("no newline yet")
	if b2.PeekLine() != nil {
		t.Fatalf("expected nil when no newline present")
	}
}

func TestReadLineConsumes(t *testing.T) {
	b := New()
	b.AppendString("line one\nline two\n")
	l1 := b.ReadLine()
	if string(l1) != "line one\n" {
		t.Fatalf("unexpected first line: %q", l1)
	}
	l2 := b.ReadLine()
	if string(l2) != "line two\n" {
		t.Fatalf("unexpected second line: %q", l2)
	}
	if b.Len() != 0 {
		t.Fatalf("expected buffer drained")
	}
}

func TestReadPastWritableIndexPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on over-read")
		}
	}()
	b := New()
	b.Read(1)
}
