package shared

import (
	"net/http"
	"strconv"
)

// ListWindow is the limit/offset window used by the log listing endpoints.
type ListWindow struct {
	Limit  int
	Offset int
}

// ParseListWindow reads limit/offset query parameters, clamping the limit to
// [1, max] and the offset to non-negative.
func ParseListWindow(r *http.Request, def, max int) ListWindow {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	return ListWindow{Limit: limit, Offset: offset}
}
