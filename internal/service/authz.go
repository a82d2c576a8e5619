package service

import "github.com/leadkit/gateway/internal/model"

// HasPermission reports whether the matrix explicitly grants action on
// entity. Anything not granted is denied.
func HasPermission(p *model.Permissions, entity model.Entity, action model.Action) bool {
	if p == nil {
		return false
	}
	set, ok := p.For(entity)
	if !ok {
		return false
	}
	return set.Allows(action)
}
