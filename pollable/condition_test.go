//go:build linux
// +build linux

package pollable

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/momentics/pollable/api"
)

func TestConditionWaitTimeoutExpires(t *testing.T) {
	c := NewCondition(api.Close)
	ok, err := c.WaitTimeout(30)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected timeout with no notifier")
	}
}

func TestConditionNotifyOneWakesOneWaiter(t *testing.T) {
	c := NewCondition(api.Close)

	var woke sync.WaitGroup
	woke.Add(1)
	go func() {
		defer woke.Done()
		if err := c.Wait(); err != nil {
			t.Error(err)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	c.NotifyOne()
	woke.Wait()
}

func TestConditionNotifyOnePrefersMostRecentWaiter(t *testing.T) {
	c := NewCondition(api.Close)

	order := make(chan int, 2)
	wait := func(id int, ready chan<- struct{}) {
		tk, err := c.enqueueWaiter()
		if err != nil {
			t.Error(err)
			return
		}
		close(ready)
		tk.sem.Down()
		order <- id
		tk.release()
	}

	ready1 := make(chan struct{})
	ready2 := make(chan struct{})
	go wait(1, ready1)
	<-ready1
	go wait(2, ready2)
	<-ready2

	c.NotifyOne()
	first := <-order

	if first != 2 {
		t.Fatalf("NotifyOne woke waiter %d first, want the most recently registered (2)", first)
	}

	c.NotifyOne()
	<-order
}

func TestConditionNotifyAllWakesEveryone(t *testing.T) {
	c := NewCondition(api.Close)

	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := c.Wait(); err != nil {
				t.Error(err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	c.NotifyAll()
	wg.Wait()
}

func TestConditionTimedOutTicketAbsorbsOneNotification(t *testing.T) {
	c := NewCondition(api.Close)

	ok, err := c.WaitTimeout(10)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected timeout")
	}

	// The stale ticket is still queued and soaks up this NotifyOne.
	c.NotifyOne()

	ok, err = c.WaitTimeout(30)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("notification should have gone to the stale ticket, not a new waiter")
	}
}

func TestConditionObserverAckCycle(t *testing.T) {
	c := NewCondition(api.Close)

	fd, err := c.Observe()
	if err != nil {
		t.Fatal(err)
	}

	if pollReady(t, fd, api.Read) {
		t.Fatal("observer fd readable before any notification")
	}

	c.NotifyAll()
	if !pollReady(t, fd, api.Read) {
		t.Fatal("observer fd not readable after NotifyAll")
	}

	// The observer's ticket left the waiter queue with the first
	// notification; until ack it is not eligible for another.
	c.NotifyAll()

	if err := c.Ack(fd); err != nil {
		t.Fatal(err)
	}
	if pollReady(t, fd, api.Read) {
		t.Fatal("observer fd still readable after Ack; the second NotifyAll stacked a notification")
	}

	c.NotifyAll()
	if !pollReady(t, fd, api.Read) {
		t.Fatal("observer fd not readable after re-enqueue and NotifyAll")
	}
	if err := c.Ack(fd); err != nil {
		t.Fatal(err)
	}

	if err := c.StopObserving(fd); err != nil {
		t.Fatal(err)
	}
	if err := c.StopObserving(fd); !errors.Is(err, api.ErrNotRegistered) {
		t.Fatalf("second StopObserving = %v, want ErrNotRegistered", err)
	}
}

func TestConditionAckUnknownFDFails(t *testing.T) {
	c := NewCondition(api.Close)
	if err := c.Ack(12345); !errors.Is(err, api.ErrNotRegistered) {
		t.Fatalf("Ack(unknown) = %v, want ErrNotRegistered", err)
	}
}

func TestConditionGuardScopesObservation(t *testing.T) {
	c := NewCondition(api.Close)

	g, err := NewConditionGuard(c)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Active() || g.FD() < 0 {
		t.Fatalf("guard not active after construction: active=%v fd=%d", g.Active(), g.FD())
	}

	c.NotifyAll()
	if !pollReady(t, g.FD(), api.Read) {
		t.Fatal("guard fd not readable after NotifyAll")
	}
	if err := g.Ack(); err != nil {
		t.Fatal(err)
	}

	fd := g.FD()
	if err := g.Stop(); err != nil {
		t.Fatal(err)
	}
	if g.Active() || g.FD() >= 0 {
		t.Fatal("guard still active after Stop")
	}
	if err := g.Stop(); err != nil {
		t.Fatal("second Stop should be a no-op")
	}
	if err := c.Ack(fd); !errors.Is(err, api.ErrNotRegistered) {
		t.Fatalf("Ack after Stop = %v, want ErrNotRegistered", err)
	}
}
