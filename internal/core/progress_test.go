package core

import (
	"errors"
	"testing"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusIdle, StatusParsing, true},
		{StatusParsing, StatusValidating, true},
		{StatusParsing, StatusError, true},
		{StatusValidating, StatusImporting, true},
		{StatusImporting, StatusComplete, true},
		{StatusImporting, StatusError, true},
		{StatusImporting, StatusIdle, true},
		{StatusComplete, StatusIdle, true},
		{StatusError, StatusIdle, true},

		{StatusIdle, StatusImporting, false},
		{StatusIdle, StatusComplete, false},
		{StatusValidating, StatusComplete, false},
		{StatusValidating, StatusError, false},
		{StatusComplete, StatusImporting, false},
		{StatusError, StatusParsing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgressTracker_Transition(t *testing.T) {
	tr := NewProgressTracker()
	if s := tr.Snapshot().Status; s != StatusIdle {
		t.Fatalf("initial status = %q, want idle", s)
	}

	if err := tr.Transition(StatusImporting, ""); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("idle -> importing error = %v, want ErrIllegalTransition", err)
	}

	for _, s := range []Status{StatusParsing, StatusValidating, StatusImporting} {
		if err := tr.Transition(s, string(s)); err != nil {
			t.Fatalf("Transition(%s) error = %v", s, err)
		}
	}
	tr.Update(func(p *ImportProgress) {
		p.TotalRows = 10
		p.ProcessedRows = 4
	})
	if err := tr.Transition(StatusComplete, "done"); err != nil {
		t.Fatalf("Transition(complete) error = %v", err)
	}

	snap := tr.Snapshot()
	if snap.Message != "done" || snap.ProcessedRows != 4 || snap.Percent() != 40 {
		t.Errorf("snapshot = %+v, percent %d", snap, snap.Percent())
	}
	if !snap.Status.Terminal() {
		t.Error("complete should be terminal")
	}

	// A new run clears the previous counters.
	if err := tr.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := tr.Transition(StatusParsing, ""); err != nil {
		t.Fatal(err)
	}
	if snap := tr.Snapshot(); snap.ProcessedRows != 0 || snap.TotalRows != 0 {
		t.Errorf("counters not reset on parsing: %+v", snap)
	}
}

func TestProgressTracker_ClearWhileIdleIsNoop(t *testing.T) {
	tr := NewProgressTracker()
	ch, stop := tr.Subscribe()
	defer stop()
	<-ch

	if err := tr.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	select {
	case p := <-ch:
		t.Errorf("Clear() on idle broadcast %+v", p)
	default:
	}
}

func TestProgressTracker_SnapshotIsACopy(t *testing.T) {
	tr := NewProgressTracker()
	tr.Update(func(p *ImportProgress) {
		p.Errors = []ValidationIssue{{RowNumber: 1, Message: "boom"}}
	})

	snap := tr.Snapshot()
	snap.Errors[0].Message = "changed"

	if got := tr.Snapshot().Errors[0].Message; got != "boom" {
		t.Errorf("tracker state mutated through snapshot: %q", got)
	}
}

func TestProgressTracker_Subscribe(t *testing.T) {
	tr := NewProgressTracker()
	ch, stop := tr.Subscribe()

	if first := <-ch; first.Status != StatusIdle {
		t.Errorf("first message status = %q, want idle", first.Status)
	}

	_ = tr.Transition(StatusParsing, "Parsing")
	if got := <-ch; got.Status != StatusParsing || got.Message != "Parsing" {
		t.Errorf("got %+v, want parsing", got)
	}

	stop()
	stop() // second call is a no-op
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}

	// Broadcasting with no listeners must not block or panic.
	_ = tr.Transition(StatusValidating, "")
}

func TestProgressTracker_SlowListenerDoesNotBlock(t *testing.T) {
	tr := NewProgressTracker()
	_, stop := tr.Subscribe()
	defer stop()

	for i := 0; i < 100; i++ {
		tr.Update(func(p *ImportProgress) { p.ProcessedRows = i })
	}
	if got := tr.Snapshot().ProcessedRows; got != 99 {
		t.Errorf("ProcessedRows = %d, want 99", got)
	}
}

func TestProgressTracker_FullBufferKeepsLatest(t *testing.T) {
	tr := NewProgressTracker()
	ch, stop := tr.Subscribe()

	for i := 1; i <= 100; i++ {
		tr.Update(func(p *ImportProgress) { p.ProcessedRows = i })
	}
	stop()

	var got []int
	for p := range ch {
		got = append(got, p.ProcessedRows)
	}
	if len(got) == 0 || got[len(got)-1] != 100 {
		t.Fatalf("received %v, want last value 100", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Errorf("values out of order: %v", got)
			break
		}
	}
}

func TestProgressTracker_Close(t *testing.T) {
	tr := NewProgressTracker()
	ch, stop := tr.Subscribe()
	<-ch

	tr.Close()
	if _, ok := <-ch; ok {
		t.Error("channel open after Close")
	}
	stop() // must not double-close
}
