package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"
)

func capture(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	if IsVerbose() {
		t.Fatal("expected verbose to be false")
	}
	SetVerbose(true)
	if !IsVerbose() {
		t.Fatal("expected verbose to be true after SetVerbose(true)")
	}
}

func TestDebug_GatedByVerbose(t *testing.T) {
	buf := capture(t, false)
	Debug("hidden %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}

	SetVerbose(true)
	Debug("chapter %d", 3)
	if got := buf.String(); got != "[DEBUG] chapter 3\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestInfoAndSection(t *testing.T) {
	buf := capture(t, true)
	Section("Ingest")
	Info("books: %d", 66)

	want := "\n=== Ingest ===\n[INFO] books: 66\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestWarn_AlwaysPrinted(t *testing.T) {
	buf := capture(t, false)
	Warn("attempt %d failed", 2)
	if got := buf.String(); got != "[WARN] attempt 2 failed\n" {
		t.Errorf("unexpected warn output: %q", got)
	}
}

func TestProgress(t *testing.T) {
	buf := capture(t, false)
	Progress(42.4, "%s done", "Genesis")
	Progress(150, "clamped")
	Progress(-3, "floor")

	want := "[ 42%] Genesis done\n[100%] clamped\n[  0%] floor\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected progress output: %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	capture(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetVerbose(i%2 == 0)
			Debug("concurrent %d", i)
			Warn("concurrent %d", i)
			Progress(float64(i*10), "worker %d", i)
			IsVerbose()
		}()
	}
	wg.Wait()
}
