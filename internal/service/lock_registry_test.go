package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockRegistry_MutualExclusion(t *testing.T) {
	registry := NewLockRegistry()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				release := registry.Acquire("acme")
				counter++
				release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, counter)
	assert.Equal(t, 1, registry.Len())
}

func TestLockRegistry_SameNameBlocks(t *testing.T) {
	registry := NewLockRegistry()

	release := registry.Acquire("acme")

	acquired := make(chan struct{})
	go func() {
		r := registry.Acquire("acme")
		r()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while the lock was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire still blocked after release")
	}
}

func TestLockRegistry_DifferentNamesIndependent(t *testing.T) {
	registry := NewLockRegistry()

	release := registry.Acquire("acme")
	defer release()

	done := make(chan struct{})
	go func() {
		r := registry.Acquire("globex")
		r()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated tenant lock blocked")
	}

	assert.Equal(t, 2, registry.Len())
}
