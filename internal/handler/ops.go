package handler

import (
	"net/http"
	"strings"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/problem"
)

// shape classifies a route by how many path segments follow the resource.
type shape int

const (
	collection shape = iota // /v1/{resource}
	item                    // /v1/{resource}/{id}
	sub                     // /v1/{resource}/{id}/{sub}
	subItem                 // /v1/{resource}/{id}/{sub}/{subID}
)

func shapeOf(rt gateway.Route) shape {
	switch {
	case rt.ID == "":
		return collection
	case rt.Sub == "":
		return item
	case rt.SubID == "":
		return sub
	default:
		return subItem
	}
}

// operation is one row of a resource's route table.
type operation struct {
	shape  shape
	sub    string
	method string
	fn     func(w http.ResponseWriter, req *gateway.Request) error
}

// dispatch runs the operation matching the request. An unknown shape is 404;
// a known shape with the wrong method is 405 with an Allow header.
func dispatch(ops []operation, w http.ResponseWriter, req *gateway.Request) error {
	s := shapeOf(req.Route)
	var allow []string
	for _, op := range ops {
		if op.shape != s || op.sub != req.Route.Sub {
			continue
		}
		if op.method == req.Method {
			return op.fn(w, req)
		}
		allow = append(allow, op.method)
	}
	if len(allow) == 0 {
		return problem.NotFound("Endpoint not found")
	}
	w.Header().Set("Allow", strings.Join(allow, ", "))
	return problem.Errorf(http.StatusMethodNotAllowed, "Method %s not allowed", req.Method)
}
