package gateway

import (
	"errors"
	"strings"
)

// APIVersion is the only version segment the gateway serves.
const APIVersion = "v1"

var (
	errInvalidVersion = errors.New("invalid API version")
	errTooDeep        = errors.New("path has too many segments")
)

// Route is a parsed /v1/{resource}/{id}/{sub}/{subID} path. Trailing parts
// are empty when absent.
type Route struct {
	Resource string
	ID       string
	Sub      string
	SubID    string
}

// ParseRoute strips an optional leading function-name segment and splits
// the remainder. The first remaining segment must be the API version.
func ParseRoute(path, functionName string) (Route, error) {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if functionName != "" && len(segs) > 0 && segs[0] == functionName {
		segs = segs[1:]
	}
	if len(segs) == 0 || segs[0] != APIVersion {
		return Route{}, errInvalidVersion
	}
	segs = segs[1:]
	if len(segs) > 4 {
		return Route{Resource: segs[0]}, errTooDeep
	}

	var rt Route
	fields := []*string{&rt.Resource, &rt.ID, &rt.Sub, &rt.SubID}
	for i, s := range segs {
		*fields[i] = s
	}
	return rt, nil
}
