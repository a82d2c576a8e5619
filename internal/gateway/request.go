package gateway

import (
	"net/http"

	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/service"
)

// Resource serves every request under /v1/{name}. Returning a
// *problem.Error renders that problem; any other error becomes a 500.
type Resource interface {
	Serve(w http.ResponseWriter, req *Request) error
}

// ResourceFunc adapts a function to Resource.
type ResourceFunc func(w http.ResponseWriter, req *Request) error

// Serve implements Resource.
func (f ResourceFunc) Serve(w http.ResponseWriter, req *Request) error { return f(w, req) }

// Request is an authenticated, routed API call.
type Request struct {
	*http.Request
	Route     Route
	Auth      service.AuthResult
	RequestID string
}

// OrganizationID is the tenant every storage call must be scoped to.
func (r *Request) OrganizationID() string {
	return r.Auth.OrganizationID
}

// Can reports whether the caller's key grants action on entity.
func (r *Request) Can(entity model.Entity, action model.Action) bool {
	return service.HasPermission(r.Auth.Permissions, entity, action)
}
