package model

import "database/sql/driver"

// Entity names a CRM record type guarded by the permission matrix.
type Entity string

const (
	EntityContacts   Entity = "contacts"
	EntityCompanies  Entity = "companies"
	EntityDeals      Entity = "deals"
	EntityActivities Entity = "activities"
	EntityTags       Entity = "tags"
	EntityTasks      Entity = "tasks"
	EntityPipelines  Entity = "pipelines"
)

// Entities lists every entity the matrix knows about, in display order.
var Entities = []Entity{
	EntityContacts, EntityCompanies, EntityDeals, EntityActivities,
	EntityTags, EntityTasks, EntityPipelines,
}

// Action is an operation class within an entity.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// ActionSet holds the allowed actions for one entity. Missing flags decode
// as false.
type ActionSet struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`
}

// Allows reports whether the action is explicitly enabled.
func (a ActionSet) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return a.Read
	case ActionWrite:
		return a.Write
	case ActionDelete:
		return a.Delete
	default:
		return false
	}
}

// Permissions is the closed permission matrix attached to an API key.
type Permissions struct {
	Contacts   ActionSet `json:"contacts"`
	Companies  ActionSet `json:"companies"`
	Deals      ActionSet `json:"deals"`
	Activities ActionSet `json:"activities"`
	Tags       ActionSet `json:"tags"`
	Tasks      ActionSet `json:"tasks"`
	Pipelines  ActionSet `json:"pipelines"`
}

// For returns the action set for an entity. The second result is false for
// entities outside the matrix.
func (p *Permissions) For(entity Entity) (ActionSet, bool) {
	switch entity {
	case EntityContacts:
		return p.Contacts, true
	case EntityCompanies:
		return p.Companies, true
	case EntityDeals:
		return p.Deals, true
	case EntityActivities:
		return p.Activities, true
	case EntityTags:
		return p.Tags, true
	case EntityTasks:
		return p.Tasks, true
	case EntityPipelines:
		return p.Pipelines, true
	default:
		return ActionSet{}, false
	}
}

// Set enables or disables one cell of the matrix. Unknown entities are
// ignored.
func (p *Permissions) Set(entity Entity, action Action, allowed bool) {
	var set *ActionSet
	switch entity {
	case EntityContacts:
		set = &p.Contacts
	case EntityCompanies:
		set = &p.Companies
	case EntityDeals:
		set = &p.Deals
	case EntityActivities:
		set = &p.Activities
	case EntityTags:
		set = &p.Tags
	case EntityTasks:
		set = &p.Tasks
	case EntityPipelines:
		set = &p.Pipelines
	default:
		return
	}
	switch action {
	case ActionRead:
		set.Read = allowed
	case ActionWrite:
		set.Write = allowed
	case ActionDelete:
		set.Delete = allowed
	}
}

// ReadOnlyPermissions grants read on every entity.
func ReadOnlyPermissions() Permissions {
	var p Permissions
	for _, e := range Entities {
		p.Set(e, ActionRead, true)
	}
	return p
}

// FullPermissions grants every action on every entity.
func FullPermissions() Permissions {
	var p Permissions
	for _, e := range Entities {
		p.Set(e, ActionRead, true)
		p.Set(e, ActionWrite, true)
		p.Set(e, ActionDelete, true)
	}
	return p
}

// Value implements driver.Valuer.
func (p Permissions) Value() (driver.Value, error) {
	return jsonValue(p)
}

// Scan implements sql.Scanner.
func (p *Permissions) Scan(src any) error {
	return scanJSON(src, p)
}
