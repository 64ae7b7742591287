package dedup

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcurrentCallersShareOneInvocation(t *testing.T) {
	d := New()

	var invocations int32
	release := make(chan struct{})
	op := func() (string, error) {
		atomic.AddInt32(&invocations, 1)
		<-release
		return "result", nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Do(d, "catalog", op)
		}(i)
	}

	// Let the callers pile up before releasing the single operation.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&invocations); n != 1 {
		t.Fatalf("op invoked %d times, want 1", n)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: unexpected error %v", i, errs[i])
		}
		if results[i] != "result" {
			t.Errorf("caller %d: result %q", i, results[i])
		}
	}
}

func TestAllWaitersObserveSameFailure(t *testing.T) {
	d := New()
	wantErr := errors.New("backend down")

	release := make(chan struct{})
	op := func() (int, error) {
		<-release
		return 0, wantErr
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = Do(d, "cart", op)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, wantErr) {
			t.Errorf("caller %d: err = %v, want %v", i, err, wantErr)
		}
	}
}

func TestEntryClearedAfterSettle(t *testing.T) {
	d := New()

	var invocations int32
	op := func() (int, error) {
		atomic.AddInt32(&invocations, 1)
		return int(atomic.LoadInt32(&invocations)), nil
	}

	if v, _ := Do(d, "k", op); v != 1 {
		t.Fatalf("first call = %d", v)
	}
	if d.InFlight("k") {
		t.Fatal("entry not cleared after settle")
	}
	if v, _ := Do(d, "k", op); v != 2 {
		t.Fatalf("sequential call deduplicated: %d", v)
	}
}

func TestStaleEntryDoesNotAbsorbNewCallers(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	d := New(WithClock(clock))

	var invocations int32
	stuck := make(chan struct{})
	started := make(chan struct{})
	go func() {
		Do(d, "k", func() (int, error) {
			atomic.AddInt32(&invocations, 1)
			close(started)
			<-stuck
			return 0, nil
		})
	}()
	<-started

	// Age the entry past the TTL: a new caller must start a fresh operation
	// even though the first never settled.
	mu.Lock()
	now = now.Add(DefaultTTL + time.Second)
	mu.Unlock()

	v, err := Do(d, "k", func() (int, error) {
		atomic.AddInt32(&invocations, 1)
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("fresh call = %d, %v", v, err)
	}
	if n := atomic.LoadInt32(&invocations); n != 2 {
		t.Errorf("invocations = %d, want 2", n)
	}
	close(stuck)
}

func TestSynchronousFailureClearsEntry(t *testing.T) {
	d := New()
	wantErr := errors.New("immediate")

	_, err := Do(d, "k", func() (int, error) { return 0, wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
	if d.InFlight("k") {
		t.Error("entry left registered after synchronous failure")
	}
}

func TestDistinctKeysDoNotShare(t *testing.T) {
	d := New()

	var invocations int32
	op := func() (int, error) {
		atomic.AddInt32(&invocations, 1)
		return 0, nil
	}
	Do(d, "a", op)
	Do(d, "b", op)
	if n := atomic.LoadInt32(&invocations); n != 2 {
		t.Errorf("invocations = %d, want 2", n)
	}
}

type countObserver struct {
	hits, misses int32
}

func (o *countObserver) DedupHit(string)  { atomic.AddInt32(&o.hits, 1) }
func (o *countObserver) DedupMiss(string) { atomic.AddInt32(&o.misses, 1) }

func TestObserverCounts(t *testing.T) {
	obs := &countObserver{}
	d := New(WithObserver(obs))

	release := make(chan struct{})
	started := make(chan struct{})
	go Do(d, "k", func() (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started

	done := make(chan struct{})
	go func() {
		Do(d, "k", func() (int, error) { return 0, nil })
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)
	<-done

	if atomic.LoadInt32(&obs.misses) != 1 || atomic.LoadInt32(&obs.hits) != 1 {
		t.Errorf("misses=%d hits=%d, want 1/1", obs.misses, obs.hits)
	}
}
