package memory

import (
	"testing"
	"time"
)

func testConfig(limit int64) Config {
	return Config{
		MemoryLimitBytes:  limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Millisecond,
	}
}

func TestMonitorWithoutLimitIsDisabled(t *testing.T) {
	m := NewMonitor(Config{HighWaterMark: 0.7, CriticalWaterMark: 0.85, CheckInterval: time.Millisecond})
	if m.limit != 0 && m.config.MemoryLimitBytes == 0 {
		// GOMEMLIMIT may be set in the test environment; only the explicit
		// no-limit behavior is asserted below.
		t.Skip("GOMEMLIMIT configured in environment")
	}

	if m.ShouldThrottle() {
		t.Error("ShouldThrottle without a limit")
	}
	if !m.WaitIfPaused() {
		t.Error("WaitIfPaused blocked without a limit")
	}
}

func TestCheckMemoryPausesAboveCriticalMark(t *testing.T) {
	// A 1-byte limit guarantees usage far above the critical mark.
	m := NewMonitor(testConfig(1))
	m.checkMemory()

	if !m.IsPaused() {
		t.Fatal("Monitor not paused above critical water mark")
	}
	if !m.ShouldThrottle() {
		t.Error("ShouldThrottle false above high water mark")
	}

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused() }()

	select {
	case <-done:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	m.Stop()
	select {
	case ok := <-done:
		if ok {
			t.Error("WaitIfPaused returned true after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not observe Stop")
	}
}

func TestCheckMemoryResumesBelowHighMark(t *testing.T) {
	// A huge limit keeps usage near zero, below the high water mark.
	m := NewMonitor(testConfig(1 << 60))
	m.mu.Lock()
	m.isPaused = true
	m.mu.Unlock()

	m.checkMemory()

	if m.IsPaused() {
		t.Fatal("Monitor still paused below high water mark")
	}
	if !m.WaitIfPaused() {
		t.Error("WaitIfPaused blocked after recovery")
	}
}

func TestGetStats(t *testing.T) {
	m := NewMonitor(testConfig(1 << 30))
	m.checkMemory()

	current, limit, usage := m.GetStats()
	if current <= 0 {
		t.Errorf("current = %d, want > 0", current)
	}
	if limit != 1<<30 {
		t.Errorf("limit = %d, want %d", limit, 1<<30)
	}
	if usage <= 0 || usage > 1 {
		t.Errorf("usage = %v, want (0, 1]", usage)
	}
}
