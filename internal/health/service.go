package health

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Probe checks one infrastructure dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Store is the persistence surface the service depends on.
type Store interface {
	UpsertStatus(ctx context.Context, component, status, details string) error
	Statuses(ctx context.Context) ([]ComponentStatus, error)
	InsertAPILog(ctx context.Context, l APILog) error
	RecentAPILogs(ctx context.Context, limit int) ([]APILog, error)
}

// Service aggregates component health. Concurrent overview requests share a
// single probe pass.
type Service struct {
	store     Store
	probes    []Probe
	group     singleflight.Group
	now       func() time.Time
	unhealthy atomic.Int64
}

// NewService constructs a Service.
func NewService(store Store, probes []Probe) *Service {
	return &Service{store: store, probes: probes, now: time.Now}
}

// ProbeAll runs every infrastructure probe concurrently and records the
// outcome per component. Probe failures are recorded, not returned.
func (s *Service) ProbeAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, probe := range s.probes {
		g.Go(func() error {
			status := StatusHealthy
			details := ""
			checkCtx, cancel := context.WithTimeout(gctx, 5*time.Second)
			defer cancel()
			if err := probe.Check(checkCtx); err != nil {
				status = StatusUnhealthy
				details = err.Error()
			}
			return s.store.UpsertStatus(ctx, "infra-"+probe.Name, status, details)
		})
	}
	return g.Wait()
}

// RefreshCatalog marks every cataloged endpoint healthy. The serving process
// reaching this code means the routes it registers are up.
func (s *Service) RefreshCatalog(ctx context.Context) error {
	for _, e := range Catalog {
		details, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := s.store.UpsertStatus(ctx, componentName(e), StatusHealthy, string(details)); err != nil {
			return err
		}
	}
	return nil
}

// Overview builds the system health dashboard payload.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	v, err, _ := s.group.Do("overview", func() (any, error) {
		return s.buildOverview(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Overview), nil
}

func (s *Service) buildOverview(ctx context.Context) (*Overview, error) {
	if err := s.ProbeAll(ctx); err != nil {
		return nil, err
	}
	components, err := s.store.Statuses(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := map[string][]APIStatus{}
	total, healthy := 0, 0
	for _, c := range components {
		api := APIStatus{
			Component:   c.Component,
			Status:      c.Status,
			LastChecked: c.LastChecked,
		}
		if c.Details != "" && strings.HasPrefix(c.Details, "{") {
			_ = json.Unmarshal([]byte(c.Details), &api.Endpoint)
		}
		if api.Category == "" {
			api.Category = "system"
			api.Name = c.Component
		}
		byCategory[api.Category] = append(byCategory[api.Category], api)
		total++
		if c.Status == StatusHealthy {
			healthy++
		}
	}

	score := 100
	if total > 0 {
		score = int(float64(healthy)/float64(total)*100 + 0.5)
	}
	s.unhealthy.Store(int64(total - healthy))
	return &Overview{
		OverallHealth:    score,
		TotalAPIs:        total,
		HealthyAPIs:      healthy,
		UnhealthyAPIs:    total - healthy,
		APIsByCategory:   byCategory,
		SystemComponents: components,
		LastUpdated:      s.now(),
	}, nil
}

// UnhealthyCount reports the unhealthy component count from the most recent
// overview. Suitable as a Prometheus GaugeFunc.
func (s *Service) UnhealthyCount() float64 {
	return float64(s.unhealthy.Load())
}

// Statuses lists the raw component rows.
func (s *Service) Statuses(ctx context.Context) ([]ComponentStatus, error) {
	return s.store.Statuses(ctx)
}

// SetStatus stores an operator-supplied component state.
func (s *Service) SetStatus(ctx context.Context, component, status, details string) (*ComponentStatus, error) {
	if component == "" || status == "" {
		return nil, fmt.Errorf("health: component and status are required")
	}
	if err := s.store.UpsertStatus(ctx, component, status, details); err != nil {
		return nil, err
	}
	all, err := s.store.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Component == component {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("health: component %s not stored", component)
}

// Logs lists the latest recorded API calls.
func (s *Service) Logs(ctx context.Context, limit int) ([]APILog, error) {
	return s.store.RecentAPILogs(ctx, limit)
}

func componentName(e Endpoint) string {
	return e.Category + "-" + strings.ReplaceAll(strings.ToLower(e.Name), " ", "-")
}
