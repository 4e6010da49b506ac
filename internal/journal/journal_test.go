package journal

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-journal.log")
	j, err := New(path)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	for i := 0; i < 5; i++ {
		j.Info("entry-%d", i)
	}
	lines, total := j.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestBatchEntryShape(t *testing.T) {
	dir := t.TempDir()
	j, err := For(dir)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	j.Batch("resonator-f0", 3, 250.5, 4.52e9, true)
	lines, total := j.Tail(1)
	if total != 1 {
		t.Fatalf("total lines = %d, want 1", total)
	}
	if !strings.Contains(lines[0], "resonator-f0 batch 3 param=250.5 output=4.52e+09 converged") {
		t.Fatalf("unexpected batch line: %q", lines[0])
	}
}
