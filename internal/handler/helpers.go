package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/store"
)

// Pagination bounds for list endpoints.
const (
	defaultPerPage = 20
	maxPerPage     = 100
	maxBodyBytes   = 1 << 20
)

var validate = validator.New()

func init() {
	// Report JSON field names in validation errors.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// writeJSON serializes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, model.DataResponse{Data: v})
}

func writeList(w http.ResponseWriter, items any, total int64, page model.Page) {
	writeJSON(w, http.StatusOK, model.ListResponse{
		Data: items,
		Meta: model.NewPageMeta(total, page.Page, page.PerPage),
	})
}

// decode reads a JSON body into v and validates it. Failures are 400
// problems naming the first offending field.
func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return problem.BadRequest("Request body must be a JSON object")
		}
		return problem.Wrap(http.StatusBadRequest, "Invalid JSON body", err)
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return problem.BadRequest(validationMessage(verrs[0]))
		}
		return problem.Wrap(http.StatusBadRequest, "Invalid request body", err)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// checkEmail validates the normalized form, so surrounding whitespace and
// case never cause a rejection.
func checkEmail(email string) error {
	if err := validate.Var(store.NormalizeEmail(email), "required,email"); err != nil {
		return problem.BadRequest("email must be a valid email address")
	}
	return nil
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryString extracts a trimmed string query parameter.
func queryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// pageOf reads page and per_page. per_page is capped at 100.
func pageOf(r *http.Request) model.Page {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(r, "per_page", defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	return model.Page{Page: page, PerPage: clampInt(perPage, 1, maxPerPage)}
}

// clampInt constrains val to be within [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// authorize fails with 403 unless the key grants action on entity. phrase
// completes "API key lacks permission to ...".
func authorize(req *gateway.Request, entity model.Entity, action model.Action, phrase string) error {
	if req.Can(entity, action) {
		return nil
	}
	return problem.Forbidden("API key lacks permission to " + phrase)
}

// storeError maps store sentinels onto problems. thing names the record,
// e.g. "Contact".
func storeError(err error, thing string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return problem.NotFound(thing + " not found")
	case errors.Is(err, store.ErrConflict):
		return problem.Wrap(http.StatusConflict, thing+" already exists", err)
	default:
		return err
	}
}

// refError turns a missing referenced record into a 400: the request names
// something the tenant does not own.
func refError(err error, field string) error {
	if errors.Is(err, store.ErrNotFound) {
		return problem.BadRequest(field + " does not reference a record in this organization")
	}
	return err
}

// nullable maps an optional string to a column value; "" clears it.
func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// optional returns nil for a nil or empty string.
func optional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
