package concurrency

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunBlocksExecutesEveryIndex(t *testing.T) {
	const n = 37
	var seen [n]int32
	err := RunBlocks(4, n, func(i int) error {
		atomic.AddInt32(&seen[i], 1)
		return nil
	})
	if err != nil {
		t.Fatalf("RunBlocks: %v", err)
	}
	for i, v := range seen {
		if v != 1 {
			t.Fatalf("index %d ran %d times, want 1", i, v)
		}
	}
}

func TestRunBlocksPropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := RunBlocks(2, 5, func(i int) error {
		if i == 3 {
			return want
		}
		return nil
	})
	if err != want {
		t.Fatalf("RunBlocks error = %v, want %v", err, want)
	}
}

func TestRunBlocksZero(t *testing.T) {
	if err := RunBlocks(4, 0, func(int) error { t.Fatal("should not run"); return nil }); err != nil {
		t.Fatalf("RunBlocks(0): %v", err)
	}
}

func TestDeadlineExceeded(t *testing.T) {
	err := Deadline(10*time.Millisecond, func() error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	if err == nil {
		t.Fatal("expected a deadline-exceeded error")
	}
}

func TestDeadlineCompletesInTime(t *testing.T) {
	err := Deadline(100*time.Millisecond, func() error { return nil })
	if err != nil {
		t.Fatalf("Deadline: %v", err)
	}
}
