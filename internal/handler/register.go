// Package handler implements the CRM resources served through the gateway
// and the operator admin API.
package handler

import (
	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/store"
)

// Register mounts every CRM resource on gw.
func Register(gw *gateway.Gateway, s *store.Store) {
	gw.Register("contacts", NewContactsHandler(s))
	gw.Register("companies", NewCompaniesHandler(s))
	gw.Register("deals", NewDealsHandler(s))
	gw.Register("tags", NewTagsHandler(s))
	gw.Register("pipelines", NewPipelinesHandler(s))
	gw.Register("tasks", NewTasksHandler(s))
}
