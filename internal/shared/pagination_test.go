package shared

import (
	"net/http/httptest"
	"testing"
)

func TestParseListWindowDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/activity-logs", nil)
	w := ParseListWindow(r, 50, 200)
	if w.Limit != 50 || w.Offset != 0 {
		t.Fatalf("expected default window, got %+v", w)
	}
}

func TestParseListWindowClamps(t *testing.T) {
	r := httptest.NewRequest("GET", "/activity-logs?limit=9999&offset=-3", nil)
	w := ParseListWindow(r, 50, 200)
	if w.Limit != 200 {
		t.Fatalf("expected limit clamped to 200, got %d", w.Limit)
	}
	if w.Offset != 0 {
		t.Fatalf("expected negative offset dropped, got %d", w.Offset)
	}
}

func TestParseListWindowExplicit(t *testing.T) {
	r := httptest.NewRequest("GET", "/user-sessions?limit=10&offset=30", nil)
	w := ParseListWindow(r, 50, 200)
	if w.Limit != 10 || w.Offset != 30 {
		t.Fatalf("unexpected window %+v", w)
	}
}
