package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/store"
)

// ---------------------------------------------------------------------------
// queryInt tests
// ---------------------------------------------------------------------------

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		key        string
		defaultVal int
		want       int
	}{
		{"returns default for missing param", "/test", "page", 1, 1},
		{"parses integer param", "/test?page=3", "page", 1, 3},
		{"returns default for non-integer", "/test?page=abc", "page", 1, 1},
		{"parses negative", "/test?page=-5", "page", 1, -5},
		{"returns default for empty value", "/test?page=", "page", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			got := queryInt(r, tt.key, tt.defaultVal)
			if got != tt.want {
				t.Errorf("queryInt(%q, %d) = %d, want %d", tt.key, tt.defaultVal, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// pageOf tests
// ---------------------------------------------------------------------------

func TestPageOf(t *testing.T) {
	tests := []struct {
		url         string
		wantPage    int
		wantPerPage int
	}{
		{"/v1/contacts", 1, 20},
		{"/v1/contacts?page=3&per_page=50", 3, 50},
		{"/v1/contacts?per_page=500", 1, 100},
		{"/v1/contacts?page=0&per_page=0", 1, 20},
		{"/v1/contacts?page=-2&per_page=-1", 1, 20},
		{"/v1/contacts?page=x&per_page=y", 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			p := pageOf(httptest.NewRequest("GET", tt.url, nil))
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("pageOf = %+v, want page %d per_page %d", p, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// clampInt tests
// ---------------------------------------------------------------------------

func TestClampInt(t *testing.T) {
	tests := []struct {
		name string
		val  int
		min  int
		max  int
		want int
	}{
		{"within range", 50, 1, 100, 50},
		{"at min", 1, 1, 100, 1},
		{"at max", 100, 1, 100, 100},
		{"below min clamps to min", -5, 1, 100, 1},
		{"above max clamps to max", 500, 1, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampInt(tt.val, tt.min, tt.max)
			if got != tt.want {
				t.Errorf("clampInt(%d, %d, %d) = %d, want %d", tt.val, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// storeError tests
// ---------------------------------------------------------------------------

func TestStoreError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"not found", fmt.Errorf("get: %w", store.ErrNotFound), http.StatusNotFound, "Deal not found"},
		{"conflict", fmt.Errorf("insert: %w", store.ErrConflict), http.StatusConflict, "Deal already exists"},
		{"other", errors.New("disk full"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storeError(tt.err, "Deal")
			if got := problem.StatusOf(err); got != tt.status {
				t.Errorf("status = %d, want %d", got, tt.status)
			}
			var pe *problem.Error
			if tt.detail != "" && (!errors.As(err, &pe) || pe.Detail != tt.detail) {
				t.Errorf("detail = %v, want %q", err, tt.detail)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// writeJSON tests
// ---------------------------------------------------------------------------

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeData(w, http.StatusCreated, map[string]string{"hello": "world"})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, `{"data":{"hello":"world"}}`) {
		t.Errorf("expected data envelope, got: %s", body)
	}
}

// ---------------------------------------------------------------------------
// dispatch tests
// ---------------------------------------------------------------------------

func TestDispatch(t *testing.T) {
	var hit string
	mark := func(name string) func(http.ResponseWriter, *gateway.Request) error {
		return func(http.ResponseWriter, *gateway.Request) error {
			hit = name
			return nil
		}
	}
	ops := []operation{
		{collection, "", http.MethodGet, mark("list")},
		{item, "", http.MethodGet, mark("get")},
		{item, "", http.MethodPatch, mark("update")},
		{sub, "stage", http.MethodPatch, mark("move")},
		{subItem, "tags", http.MethodDelete, mark("untag")},
	}

	tests := []struct {
		method string
		route  gateway.Route
		want   string
		status int
		allow  string
	}{
		{http.MethodGet, gateway.Route{Resource: "deals"}, "list", 0, ""},
		{http.MethodPatch, gateway.Route{Resource: "deals", ID: "1"}, "update", 0, ""},
		{http.MethodPatch, gateway.Route{Resource: "deals", ID: "1", Sub: "stage"}, "move", 0, ""},
		{http.MethodDelete, gateway.Route{Resource: "deals", ID: "1", Sub: "tags", SubID: "t"}, "untag", 0, ""},
		{http.MethodPost, gateway.Route{Resource: "deals"}, "", http.StatusMethodNotAllowed, "GET"},
		{http.MethodDelete, gateway.Route{Resource: "deals", ID: "1"}, "", http.StatusMethodNotAllowed, "GET, PATCH"},
		{http.MethodGet, gateway.Route{Resource: "deals", ID: "1", Sub: "other"}, "", http.StatusNotFound, ""},
		{http.MethodGet, gateway.Route{Resource: "deals", ID: "1", Sub: "stage", SubID: "x"}, "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.route.ID+"/"+tt.route.Sub+"/"+tt.route.SubID, func(t *testing.T) {
			hit = ""
			w := httptest.NewRecorder()
			req := &gateway.Request{Request: httptest.NewRequest(tt.method, "/", nil), Route: tt.route}
			err := dispatch(ops, w, req)

			if tt.status == 0 {
				if err != nil || hit != tt.want {
					t.Fatalf("dispatch hit %q err %v, want %q", hit, err, tt.want)
				}
				return
			}
			if got := problem.StatusOf(err); got != tt.status {
				t.Errorf("status = %d, want %d", got, tt.status)
			}
			if got := w.Header().Get("Allow"); got != tt.allow {
				t.Errorf("Allow = %q, want %q", got, tt.allow)
			}
		})
	}
}
