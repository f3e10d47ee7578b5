//go:build linux
// +build linux

package reactor

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/momentics/pollable/api"
)

func TestPollSetWaitTimesOutWithNoTargets(t *testing.T) {
	p, err := New(api.Close)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	start := time.Now()
	ready, err := p.Wait(50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ready {
		t.Fatal("expected no events")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
}

func TestPollSetAddWaitRemove(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	p, err := New(api.Close)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.Add(int(r.Fd()), api.Read, Level, Repeating); err != nil {
		t.Fatal(err)
	}
	if p.NumTargets() != 1 {
		t.Fatalf("NumTargets() = %d, want 1", p.NumTargets())
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}

	ready, err := p.Wait(1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !ready {
		t.Fatal("expected readable pipe")
	}
	events := p.Events()
	if len(events) != 1 || events[0].FD != int(r.Fd()) || !events[0].Events.Has(api.Read) {
		t.Fatalf("unexpected events: %+v", events)
	}

	if err := p.Remove(int(r.Fd())); err != nil {
		t.Fatal(err)
	}
	if p.NumTargets() != 0 {
		t.Fatalf("NumTargets() = %d, want 0", p.NumTargets())
	}
}

func TestPollSetAddDuplicateFails(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	p, err := New(api.Close)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.Add(int(r.Fd()), api.Read, Level, Repeating); err != nil {
		t.Fatal(err)
	}
	err = p.Add(int(r.Fd()), api.Read, Level, Repeating)
	if !errors.Is(err, api.ErrAlreadyRegistered) {
		t.Fatalf("Add duplicate = %v, want ErrAlreadyRegistered", err)
	}
}

func TestPollSetRemoveUnknownFails(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	p, err := New(api.Close)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	// An open descriptor that was never added: epoll_ctl reports ENOENT.
	err = p.Remove(int(r.Fd()))
	if !errors.Is(err, api.ErrNotRegistered) {
		t.Fatalf("Remove unknown = %v, want ErrNotRegistered", err)
	}
}

func TestPollSetWhenReadyTimeout(t *testing.T) {
	p, err := New(api.Close)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	fired := false
	err = p.WhenReadyTimeout(30, func([]Event) {}, func() { fired = true }, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !fired {
		t.Fatal("onTimeout was not called")
	}
}
