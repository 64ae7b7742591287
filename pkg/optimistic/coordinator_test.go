package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/minishop-go/minishop/pkg/store"
)

type catalog struct {
	Categories []category `json:"categories"`
}

type category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newCoordinator() (*Coordinator, *store.Store) {
	s := store.New()
	return NewCoordinator(Config{Store: s}), s
}

func catalogAt(t *testing.T, s *store.Store, key string) catalog {
	t.Helper()
	v, _, ok := store.Value[catalog](s, key)
	if !ok {
		t.Fatalf("no catalog at %q", key)
	}
	return v
}

func TestSpeculativeApplyThenReconcile(t *testing.T) {
	c, s := newCoordinator()
	s.Set("catalog", catalog{Categories: []category{{ID: "1", Name: "Tea"}}})

	applied := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Run(context.Background(), c, Mutation[catalog, category]{
			Key: "catalog",
			Transform: func(v catalog) catalog {
				v.Categories = append(v.Categories, category{ID: "tmp-1", Name: "Coffee"})
				return v
			},
			Call: func(context.Context) (category, error) {
				close(applied)
				<-release
				return category{ID: "42", Name: "Coffee"}, nil
			},
			Reconcile: func(local catalog, server category) catalog {
				for i := range local.Categories {
					if local.Categories[i].ID == "tmp-1" {
						local.Categories[i] = server
					}
				}
				return local
			},
		})
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	// The speculative value must be visible before the server call settles.
	<-applied
	cat := catalogAt(t, s, "catalog")
	if len(cat.Categories) != 2 || cat.Categories[1].ID != "tmp-1" {
		t.Fatalf("speculative state = %+v", cat)
	}

	close(release)
	<-done

	cat = catalogAt(t, s, "catalog")
	if len(cat.Categories) != 2 {
		t.Fatalf("reconciled state = %+v", cat)
	}
	var withServerID, withTempID int
	for _, c := range cat.Categories {
		switch c.ID {
		case "42":
			withServerID++
		case "tmp-1":
			withTempID++
		}
	}
	if withServerID != 1 || withTempID != 0 {
		t.Errorf("temp id not swapped exactly once: %+v", cat.Categories)
	}
}

func TestRollbackRestoresSnapshotExactly(t *testing.T) {
	c, s := newCoordinator()
	v0 := catalog{Categories: []category{{ID: "1", Name: "Tea"}, {ID: "2", Name: "Mugs"}}}
	s.Set("catalog", v0)

	_, err := Run(context.Background(), c, Mutation[catalog, category]{
		Key: "catalog",
		Transform: func(v catalog) catalog {
			v.Categories[0].Name = "Renamed"
			v.Categories = v.Categories[:1]
			return v
		},
		Call: func(context.Context) (category, error) {
			return category{}, errors.New("http 500")
		},
	})
	if err == nil {
		t.Fatal("expected failure")
	}

	got := catalogAt(t, s, "catalog")
	if !store.Equal(got, v0) {
		t.Errorf("cache after rollback = %+v, want exactly %+v", got, v0)
	}
}

func TestRollbackOnAbsentValueDropsEntry(t *testing.T) {
	c, s := newCoordinator()

	_, err := Run(context.Background(), c, Mutation[catalog, category]{
		Key:       "catalog",
		Transform: func(v catalog) catalog { return v },
		Call: func(context.Context) (category, error) {
			return category{}, errors.New("down")
		},
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if _, _, ok := s.Get("catalog"); ok {
		t.Error("rollback of a mutation on an absent value must leave the key absent")
	}
}

func TestSameKeyMutationsSerializeInOrder(t *testing.T) {
	c, _ := newCoordinator()

	var mu sync.Mutex
	var order []string
	slow := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		Run(context.Background(), c, Mutation[int, int]{
			Key:       "k",
			Transform: func(v int) int { return v + 1 },
			Call: func(context.Context) (int, error) {
				<-slow
				mu.Lock()
				order = append(order, "first")
				mu.Unlock()
				return 1, nil
			},
		})
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		Run(context.Background(), c, Mutation[int, int]{
			Key:       "k",
			Transform: func(v int) int { return v + 1 },
			Call: func(context.Context) (int, error) {
				mu.Lock()
				order = append(order, "second")
				mu.Unlock()
				return 2, nil
			},
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(slow)
	wg.Wait()

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("server calls ran %v, want [first second]", order)
	}
}

func TestLaterSpeculationSurvivesEarlierRollback(t *testing.T) {
	c, s := newCoordinator()
	s.Set("catalog", catalog{Categories: []category{{ID: "1", Name: "Tea"}}})

	firstGate := make(chan struct{})
	firstStarted := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Slow rename that will fail.
		Run(context.Background(), c, Mutation[catalog, category]{
			Key: "catalog",
			Transform: func(v catalog) catalog {
				v.Categories[0].Name = "Renamed"
				return v
			},
			Call: func(context.Context) (category, error) {
				close(firstStarted)
				<-firstGate
				return category{}, errors.New("http 500")
			},
		})
	}()
	<-firstStarted

	// Fast create enqueued behind the rename; speculates immediately.
	wg.Add(1)
	go func() {
		defer wg.Done()
		Run(context.Background(), c, Mutation[catalog, category]{
			Key: "catalog",
			Transform: func(v catalog) catalog {
				v.Categories = append(v.Categories, category{ID: "tmp-9", Name: "Coffee"})
				return v
			},
			Call: func(context.Context) (category, error) {
				return category{ID: "9", Name: "Coffee"}, nil
			},
			Reconcile: func(local catalog, server category) catalog {
				for i := range local.Categories {
					if local.Categories[i].ID == "tmp-9" {
						local.Categories[i] = server
					}
				}
				return local
			},
		})
	}()

	// Both speculations visible while the first call is still in flight.
	waitFor(t, func() bool {
		cat, _, _ := store.Value[catalog](s, "catalog")
		return len(cat.Categories) == 2 && cat.Categories[0].Name == "Renamed"
	})

	close(firstGate)
	wg.Wait()

	got := catalogAt(t, s, "catalog")
	// The failed rename is rolled back, the create survives with its
	// server id.
	if len(got.Categories) != 2 {
		t.Fatalf("catalog = %+v", got)
	}
	if got.Categories[0].Name != "Tea" {
		t.Errorf("rename not rolled back: %+v", got.Categories[0])
	}
	if got.Categories[1].ID != "9" {
		t.Errorf("queued create lost or unreconciled: %+v", got.Categories[1])
	}
}

func TestDeleteWinsOverInFlightEdit(t *testing.T) {
	c, s := newCoordinator()
	s.Set("catalog", catalog{Categories: []category{{ID: "1", Name: "Tea"}}})

	editGate := make(chan struct{})
	editStarted := make(chan struct{})
	editFails := errors.New("validation failed")

	var wg sync.WaitGroup
	for _, editOutcome := range []error{nil, editFails} {
		editOutcome := editOutcome
		s.Set("catalog", catalog{Categories: []category{{ID: "1", Name: "Tea"}}})
		editGate = make(chan struct{})
		editStarted = make(chan struct{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			Run(context.Background(), c, Mutation[catalog, category]{
				Key: "catalog",
				Transform: func(v catalog) catalog {
					v.Categories[0].Name = "Renamed"
					return v
				},
				Call: func(context.Context) (category, error) {
					close(editStarted)
					<-editGate
					if editOutcome != nil {
						return category{}, editOutcome
					}
					return category{ID: "1", Name: "Renamed"}, nil
				},
				Reconcile: func(local catalog, server category) catalog {
					for i := range local.Categories {
						if local.Categories[i].ID == server.ID {
							local.Categories[i] = server
						}
					}
					return local
				},
			})
		}()
		<-editStarted

		wg.Add(1)
		go func() {
			defer wg.Done()
			Run(context.Background(), c, Mutation[catalog, struct{}]{
				Key: "catalog",
				Transform: func(v catalog) catalog {
					kept := v.Categories[:0]
					for _, cat := range v.Categories {
						if cat.ID != "1" {
							kept = append(kept, cat)
						}
					}
					v.Categories = kept
					return v
				},
				Call: func(context.Context) (struct{}, error) {
					return struct{}{}, nil
				},
				Reconcile: func(local catalog, _ struct{}) catalog { return local },
			})
		}()

		// Delete speculates immediately even while the edit is in flight.
		waitFor(t, func() bool {
			cat, _, _ := store.Value[catalog](s, "catalog")
			return len(cat.Categories) == 0
		})

		close(editGate)
		wg.Wait()

		got := catalogAt(t, s, "catalog")
		if len(got.Categories) != 0 {
			t.Errorf("edit outcome %v: delete did not win, catalog = %+v", editOutcome, got)
		}
	}
}

func TestStoreSubscriberMayCallBackIn(t *testing.T) {
	c, s := newCoordinator()
	s.Set("catalog", catalog{})
	s.Set("audit", 0)

	// A re-render style subscriber that inspects the coordinator and, once,
	// records the change by mutating a different key.
	var nested sync.Once
	cancel := s.Subscribe("catalog", func() {
		c.Pending("catalog")
		nested.Do(func() {
			_, err := Run(context.Background(), c, Mutation[int, int]{
				Key:       "audit",
				Transform: func(v int) int { return v + 1 },
				Call:      func(context.Context) (int, error) { return 1, nil },
			})
			if err != nil {
				t.Errorf("nested Run: %v", err)
			}
		})
	})
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Run(context.Background(), c, Mutation[catalog, category]{
			Key:       "catalog",
			Transform: func(v catalog) catalog { return v },
			Call:      func(context.Context) (category, error) { return category{}, nil },
			Reconcile: func(local catalog, _ category) catalog { return local },
		})
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mutation blocked behind its own subscriber")
	}
	if v, _, _ := store.Value[int](s, "audit"); v != 1 {
		t.Errorf("nested mutation result = %d, want 1", v)
	}
}

func TestInvalidatesDependentKeysOnSuccessOnly(t *testing.T) {
	c, s := newCoordinator()
	s.Set("admin-catalog", catalog{})
	s.Set("catalog", catalog{})

	Run(context.Background(), c, Mutation[catalog, category]{
		Key:         "admin-catalog",
		Transform:   func(v catalog) catalog { return v },
		Call:        func(context.Context) (category, error) { return category{}, nil },
		Reconcile:   func(local catalog, _ category) catalog { return local },
		Invalidates: []string{"catalog"},
	})

	if _, at, _ := s.Get("catalog"); !at.IsZero() {
		t.Error("dependent key not invalidated after success")
	}

	s.Set("catalog", catalog{})
	Run(context.Background(), c, Mutation[catalog, category]{
		Key:         "admin-catalog",
		Transform:   func(v catalog) catalog { return v },
		Call:        func(context.Context) (category, error) { return category{}, errors.New("x") },
		Invalidates: []string{"catalog"},
	})

	if _, at, _ := s.Get("catalog"); at.IsZero() {
		t.Error("dependent key invalidated after failure")
	}
}

type settleObserver struct {
	mu        sync.Mutex
	settled   []bool
	rollbacks int
}

func (o *settleObserver) MutationSettled(key string, ok bool) {
	o.mu.Lock()
	o.settled = append(o.settled, ok)
	o.mu.Unlock()
}

func (o *settleObserver) RolledBack(key string) {
	o.mu.Lock()
	o.rollbacks++
	o.mu.Unlock()
}

func TestObserverSeesOutcomes(t *testing.T) {
	s := store.New()
	obs := &settleObserver{}
	c := NewCoordinator(Config{Store: s, Observer: obs})

	Run(context.Background(), c, Mutation[int, int]{
		Key:       "k",
		Transform: func(v int) int { return v + 1 },
		Call:      func(context.Context) (int, error) { return 1, nil },
	})
	Run(context.Background(), c, Mutation[int, int]{
		Key:       "k",
		Transform: func(v int) int { return v + 1 },
		Call:      func(context.Context) (int, error) { return 0, errors.New("x") },
	})

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.settled) != 2 || !obs.settled[0] || obs.settled[1] {
		t.Errorf("settled = %v", obs.settled)
	}
	if obs.rollbacks != 1 {
		t.Errorf("rollbacks = %d", obs.rollbacks)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
