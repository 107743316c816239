package gpucache

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestModuleCacheKeyedOnExactSource(t *testing.T) {
	c := NewModuleCache()
	if _, ok := c.Get("source a"); ok {
		t.Fatal("expected empty cache miss")
	}
	c.Put("source a", "pipeline-a")
	m, ok := c.Get("source a")
	if !ok || m.Pipeline != "pipeline-a" {
		t.Fatalf("Get(source a) = %+v, %v", m, ok)
	}
	if _, ok := c.Get("source b"); ok {
		t.Fatal("a differently-keyed source should miss")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", c.Len())
	}
}

func TestCompileErrorIncludesNumberedListing(t *testing.T) {
	err := &CompileError{
		Source: "line one\nline two\nline three",
		Diagnostics: []Diagnostic{
			{Severity: SeverityError, Message: "undefined identifier", Line: 2, Column: 5},
		},
	}
	if !err.HasErrors() {
		t.Fatal("expected HasErrors true for an error-level diagnostic")
	}
	msg := err.Error()
	for _, want := range []string{"1| line one", "2| line two", "3| line three", "undefined identifier"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() missing %q in:\n%s", want, msg)
		}
	}
}

func TestCompileErrorWarningOnlyIsNotAFailure(t *testing.T) {
	err := &CompileError{Diagnostics: []Diagnostic{{Severity: SeverityWarning, Message: "unused binding"}}}
	if err.HasErrors() {
		t.Fatal("a warning-only diagnostic list should not report HasErrors")
	}
}

func TestFIFOSemaphoreOrdersAcquisitionsInArrivalOrder(t *testing.T) {
	sem := NewFIFOSemaphore()
	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	order := make(chan int, 3)
	started := make(chan struct{}, 2)
	for i := 1; i <= 2; i++ {
		i := i
		go func() {
			started <- struct{}{}
			// give the acquire call time to enqueue before the next
			// goroutine starts, so arrival order is deterministic.
			time.Sleep(10 * time.Millisecond * time.Duration(i))
			if err := sem.Acquire(context.Background()); err != nil {
				return
			}
			order <- i
			sem.Release()
		}()
		<-started
		time.Sleep(5 * time.Millisecond)
	}

	sem.Release() // release the initial holder, letting waiter 1 proceed first

	first := <-order
	second := <-order
	if first != 1 || second != 2 {
		t.Errorf("acquisition order = [%d %d], want [1 2]", first, second)
	}
}

func TestFIFOSemaphoreAcquireRespectsContextCancellation(t *testing.T) {
	sem := NewFIFOSemaphore()
	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := sem.Acquire(ctx); err == nil {
		t.Fatal("expected Acquire to respect context cancellation while blocked")
	}
}
