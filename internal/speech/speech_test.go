package speech

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAssembler_InterimReplaced(t *testing.T) {
	a := NewAssembler()
	a.Feed(Result{Text: "red"})
	a.Feed(Result{Text: "red shoes"})
	a.Feed(Result{Text: "red shoes under"})

	if got := a.Transcript(); got != "red shoes under" {
		t.Errorf("expected last interim, got %q", got)
	}
}

func TestAssembler_FinalCommits(t *testing.T) {
	a := NewAssembler()
	a.Feed(Result{Text: "red shoes", Final: true})
	a.Feed(Result{Text: "under 500", Final: true})

	if got := a.Transcript(); got != "red shoes under 500" {
		t.Errorf("expected joined finals, got %q", got)
	}
}

func TestAssembler_InterimAfterFinal(t *testing.T) {
	a := NewAssembler()
	a.Feed(Result{Text: "red shoes", Final: true})
	a.Feed(Result{Text: "under"})
	a.Feed(Result{Text: "under 500"})

	if got := a.Transcript(); got != "red shoes under 500" {
		t.Errorf("expected final plus pending interim, got %q", got)
	}

	// Committing the interim must not duplicate it.
	a.Feed(Result{Text: "under 500", Final: true})
	if got := a.Transcript(); got != "red shoes under 500" {
		t.Errorf("expected no duplication after commit, got %q", got)
	}
}

func TestAssembler_EmptyEventsIgnored(t *testing.T) {
	a := NewAssembler()
	a.Feed(Result{Text: ""})
	a.Feed(Result{Text: "", Final: true})

	if got := a.Transcript(); got != "" {
		t.Errorf("expected empty transcript, got %q", got)
	}
}

func TestCollect_FinalsAcrossStream(t *testing.T) {
	events := make(chan Result, 4)
	events <- Result{Text: "wholesale"}
	events <- Result{Text: "wholesale bricks", Final: true}
	events <- Result{Text: "under 500", Final: true}
	close(events)

	got, err := Collect(context.Background(), events, time.Second)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "wholesale bricks under 500" {
		t.Errorf("unexpected transcript %q", got)
	}
}

func TestCollect_FallsBackToInterim(t *testing.T) {
	events := make(chan Result, 2)
	events <- Result{Text: "red sho"}
	events <- Result{Text: "red shoes"}
	close(events)

	got, err := Collect(context.Background(), events, time.Second)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "red shoes" {
		t.Errorf("expected last interim as transcript, got %q", got)
	}
}

func TestCollect_NoSpeech(t *testing.T) {
	events := make(chan Result)
	close(events)

	_, err := Collect(context.Background(), events, time.Second)
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech, got %v", err)
	}
}

func TestCollect_TimeoutReturnsPartial(t *testing.T) {
	events := make(chan Result, 1)
	events <- Result{Text: "red shoes", Final: true}
	// Channel left open: no further events arrive.

	got, err := Collect(context.Background(), events, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "red shoes" {
		t.Errorf("expected partial transcript on timeout, got %q", got)
	}
}

func TestCollect_ContextCancelled(t *testing.T) {
	events := make(chan Result)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, events, time.Second)
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech for cancelled empty stream, got %v", err)
	}
}
