package clock

import (
	"testing"
	"time"
)

func TestFakeAfterAdvancesAndRecords(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)

	fired := <-c.After(2 * time.Second)
	if want := start.Add(2 * time.Second); !fired.Equal(want) {
		t.Fatalf("fired at %v, want %v", fired, want)
	}
	<-c.After(3 * time.Second)

	if got := c.Now(); !got.Equal(start.Add(5 * time.Second)) {
		t.Fatalf("Now() = %v, want start+5s", got)
	}
	waits := c.Waits()
	if len(waits) != 2 || waits[0] != 2*time.Second || waits[1] != 3*time.Second {
		t.Fatalf("unexpected waits: %v", waits)
	}
}

func TestRealAfterFires(t *testing.T) {
	select {
	case <-Real().After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("real After did not fire")
	}
}
