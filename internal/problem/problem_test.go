package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeURIIsDeterministic(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 405, 409, 429, 500} {
		assert.Equal(t, fmt.Sprintf("%s%d", TypeBase, status), TypeURI(status))
		assert.NotEmpty(t, Title(status))
	}
}

func TestNormalizeUnknownStatus(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, Normalize(418))
	assert.Equal(t, "Internal Server Error", Title(503))

	d := New(http.StatusTeapot, "short and stout", "")
	assert.Equal(t, http.StatusInternalServerError, d.Status)
	assert.Equal(t, TypeURI(500), d.Type)
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, http.StatusNotFound, "Contact not found", "req-1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))

	var body Details
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, Details{
		Type:     TypeBase + "404",
		Title:    "Not Found",
		Status:   404,
		Detail:   "Contact not found",
		Instance: "req-1",
	}, body)
}

func TestWriteOmitsEmptyInstance(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, http.StatusBadRequest, "bad", "")

	var raw map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	_, ok := raw["instance"]
	assert.False(t, ok)
}

func TestWriteError(t *testing.T) {
	t.Run("typed error keeps status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, fmt.Errorf("wrapped: %w", Conflict("Tag already exists")), false, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "Tag already exists")
	})

	t.Run("unexpected error is generic", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("pq: connection refused"), false, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), GenericDetail)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})

	t.Run("debug exposes cause", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("pq: connection refused"), true, "")
		assert.Contains(t, rec.Body.String(), "connection refused")
	})
}

func TestWrapHidesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(http.StatusConflict, "Duplicate", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusConflict, StatusOf(err))

	rec := httptest.NewRecorder()
	WriteError(rec, err, false, "")
	assert.NotContains(t, rec.Body.String(), "disk full")
}
