//go:build linux
// +build linux

package pollable

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/pollable/api"
)

func TestSemaphoreUpDownRendezvous(t *testing.T) {
	sem, err := NewSemaphore(0, api.Close)
	if err != nil {
		t.Fatal(err)
	}
	defer sem.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sem.Down()
	}()

	time.Sleep(20 * time.Millisecond)
	sem.Up(1)
	wg.Wait()
}

func TestSemaphoreDownTimeoutExpires(t *testing.T) {
	sem, err := NewSemaphore(0, api.Close)
	if err != nil {
		t.Fatal(err)
	}
	defer sem.Close()

	ok, err := sem.DownTimeout(30)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected timeout, got signaled")
	}
}

func TestSemaphoreDownTimeoutSucceeds(t *testing.T) {
	sem, err := NewSemaphore(1, api.Close)
	if err != nil {
		t.Fatal(err)
	}
	defer sem.Close()

	ok, err := sem.DownTimeout(1000)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected immediate success")
	}
}

func TestSemaphoreMoveTransfersState(t *testing.T) {
	sem, err := NewSemaphore(1, api.Close)
	if err != nil {
		t.Fatal(err)
	}
	fd := sem.FD()

	moved := sem.Move()
	if moved.FD() != fd {
		t.Fatalf("moved fd = %d, want %d", moved.FD(), fd)
	}
	if sem.FD() >= 0 {
		t.Fatal("source should be closed after Move")
	}
	defer moved.Close()

	ok, err := moved.DownTimeout(1000)
	if err != nil || !ok {
		t.Fatalf("moved semaphore lost its value: ok=%v err=%v", ok, err)
	}
}
