package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	_ "github.com/pentora/pentora/testing"
)

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	statuses map[string]*ComponentStatus
	logs     []APILog
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, statuses: make(map[string]*ComponentStatus)}
}

func (m *memStore) UpsertStatus(_ context.Context, component, status, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.statuses[component]; ok {
		existing.Status = status
		existing.Details = details
		existing.LastChecked = time.Now()
		return nil
	}
	m.statuses[component] = &ComponentStatus{
		ID: m.nextID, Component: component, Status: status,
		Details: details, LastChecked: time.Now(),
	}
	m.nextID++
	return nil
}

func (m *memStore) Statuses(_ context.Context) ([]ComponentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ComponentStatus{}
	for _, s := range m.statuses {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) InsertAPILog(_ context.Context, l APILog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
	return nil
}

func (m *memStore) RecentAPILogs(_ context.Context, limit int) ([]APILog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.logs) {
		limit = len(m.logs)
	}
	return append([]APILog{}, m.logs[:limit]...), nil
}

func TestProbeAllRecordsOutcomes(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, []Probe{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
		{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	})

	if err := svc.ProbeAll(context.Background()); err != nil {
		t.Fatalf("probe: %v", err)
	}
	pg := store.statuses["infra-postgres"]
	if pg == nil || pg.Status != StatusHealthy {
		t.Fatalf("postgres status = %v, want healthy", pg)
	}
	rd := store.statuses["infra-redis"]
	if rd == nil || rd.Status != StatusUnhealthy || rd.Details != "connection refused" {
		t.Fatalf("redis status = %v, want unhealthy with details", rd)
	}
}

func TestOverviewScoresHealth(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, []Probe{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
	})
	if err := svc.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("refresh catalog: %v", err)
	}
	// One cataloged endpoint flagged down by an operator.
	if err := store.UpsertStatus(context.Background(), "system-api-logs", StatusUnhealthy, ""); err != nil {
		t.Fatalf("seed unhealthy: %v", err)
	}

	overview, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	// Catalog entries plus the infra probe.
	wantTotal := len(Catalog) + 1
	if overview.TotalAPIs != wantTotal {
		t.Fatalf("total = %d, want %d", overview.TotalAPIs, wantTotal)
	}
	if overview.UnhealthyAPIs != 1 {
		t.Fatalf("unhealthy = %d, want 1", overview.UnhealthyAPIs)
	}
	if overview.OverallHealth >= 100 || overview.OverallHealth <= 0 {
		t.Fatalf("health score = %d, want between 1 and 99", overview.OverallHealth)
	}
	if len(overview.APIsByCategory["authentication"]) == 0 {
		t.Fatal("authentication category missing from grouping")
	}
}

func TestOverviewSharedAcrossConcurrentCalls(t *testing.T) {
	store := newMemStore()
	var probes int32
	mu := sync.Mutex{}
	release := make(chan struct{})
	svc := NewService(store, []Probe{{
		Name: "slow",
		Check: func(context.Context) error {
			mu.Lock()
			probes++
			mu.Unlock()
			<-release
			return nil
		},
	}})

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Overview(context.Background()); err != nil {
				t.Errorf("overview: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if probes != 1 {
		t.Fatalf("probe ran %d times for concurrent overviews, want 1", probes)
	}
}

func TestSetStatusValidates(t *testing.T) {
	svc := NewService(newMemStore(), nil)
	if _, err := svc.SetStatus(context.Background(), "", "healthy", ""); err == nil {
		t.Fatal("empty component accepted")
	}
	updated, err := svc.SetStatus(context.Background(), "gotenberg", "degraded", "slow renders")
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated.Status != "degraded" || updated.Details != "slow renders" {
		t.Fatalf("updated = %+v", updated)
	}
}
