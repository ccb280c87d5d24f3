package process_test

import (
	"runtime"
	"testing"

	"github.com/dignifiedquire/rio/pkg/process"
)

func TestSetCPUAffinity(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux only")
	}
	done := make(chan error, 1)
	go func() {
		// the thread exits with the goroutine instead of returning pinned
		runtime.LockOSThread()
		done <- process.SetCPUAffinity(runtime.NumCPU() + 1)
	}()
	if err := <-done; err != nil {
		t.Skip("affinity not permitted here:", err)
	}
}

func TestPriority_Set(t *testing.T) {
	var p process.Priority
	for _, name := range []string{"normal", "high", "realtime", "idle"} {
		if err := p.Set(name); err != nil {
			t.Fatal(err)
		}
		if p.String() != name {
			t.Errorf("want %s, got %s", name, p)
		}
	}
	if err := p.Set("urgent"); err == nil {
		t.Error("want error for unknown priority")
	}
}
