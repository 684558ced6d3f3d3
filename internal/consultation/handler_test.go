package consultation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"

	_ "github.com/pentora/pentora/testing"
)

type memStore struct {
	nextID   int64
	requests map[int64]*Request
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, requests: make(map[int64]*Request)}
}

func (m *memStore) Create(_ context.Context, in Input) (*Request, error) {
	r := &Request{
		ID: m.nextID, FullName: in.FullName, Email: in.Email, Phone: in.Phone,
		Company: in.Company, Address: in.Address, Service: in.Service,
		Description: in.Description, Status: "pending", CreatedAt: time.Now(),
	}
	m.nextID++
	m.requests[r.ID] = r
	out := *r
	return &out, nil
}

func (m *memStore) ByID(_ context.Context, id int64) (*Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *memStore) All(_ context.Context) ([]Request, error) {
	out := []Request{}
	for _, r := range m.requests {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, status, notes string, byID int64) (*Request, error) {
	if !containsStatus(status) {
		return nil, ErrInvalidStatus
	}
	r, ok := m.requests[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	r.Status = status
	r.StatusUpdatedBy = &byID
	if notes != "" {
		r.Notes = notes
	}
	out := *r
	return &out, nil
}

func containsStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.requests[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

func newRouter(store Store) chi.Router {
	h := NewHandler(nil, store)
	r := chi.NewRouter()
	h.MountPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := policy.ContextWithIdentity(req.Context(), policy.Identity{
					UserID: 1, Username: "admin", Role: policy.RoleAdmin,
				})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		h.MountRoutes(r)
	})
	return r
}

func TestSubmitAndTriage(t *testing.T) {
	store := newMemStore()
	router := newRouter(store)

	body := `{"fullName":"Ada Client","email":"ada@example.com","service":"api-security","description":"We need an API pentest"}`
	req := httptest.NewRequest(http.MethodPost, "/consultation-request", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID      int64  `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Message != "Consultation request submitted successfully" {
		t.Fatalf("message = %q", created.Message)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/consultation-requests", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch,
		"/consultation-requests/1/status", strings.NewReader(`{"status":"approved","notes":"scheduled"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("triage status = %d body = %s", rec.Code, rec.Body.String())
	}
	triaged, _ := store.ByID(context.Background(), created.ID)
	if triaged.Status != "approved" || triaged.Notes != "scheduled" {
		t.Fatalf("triaged = %s/%s, want approved/scheduled", triaged.Status, triaged.Notes)
	}
	if triaged.StatusUpdatedBy == nil || *triaged.StatusUpdatedBy != 1 {
		t.Fatalf("status updated by = %v, want admin id 1", triaged.StatusUpdatedBy)
	}
}

func TestSubmitValidation(t *testing.T) {
	router := newRouter(newMemStore())

	// Missing description.
	req := httptest.NewRequest(http.MethodPost, "/consultation-request",
		strings.NewReader(`{"fullName":"Ada","email":"ada@example.com","service":"other"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing field status = %d, want 400", rec.Code)
	}

	// Unknown service.
	req = httptest.NewRequest(http.MethodPost, "/consultation-request",
		strings.NewReader(`{"fullName":"Ada","email":"ada@example.com","service":"time-travel","description":"x"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown service status = %d, want 400", rec.Code)
	}
}

func TestInvalidTriageStatusRejected(t *testing.T) {
	store := newMemStore()
	router := newRouter(store)
	if _, err := store.Create(context.Background(), Input{
		FullName: "Ada", Email: "ada@example.com", Service: "other", Description: "x",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch,
		"/consultation-requests/1/status", strings.NewReader(`{"status":"maybe"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/consultation-requests/99", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing delete status = %d, want 404", rec.Code)
	}
}
