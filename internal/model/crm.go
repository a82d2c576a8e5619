package model

import "time"

// Contact statuses.
const (
	ContactStatusLead     = "lead"
	ContactStatusCustomer = "customer"
	ContactStatusChurned  = "churned"
)

// Deal statuses, derived from the stage a deal sits in.
const (
	DealStatusOpen = "open"
	DealStatusWon  = "won"
	DealStatusLost = "lost"
)

// Task statuses and priorities.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"

	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// Organization is a tenant. Every CRM record and API key belongs to exactly
// one organization.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Contact is a person tracked in the CRM. Email is unique per organization
// and always stored lowercased.
type Contact struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Email          string    `json:"email" db:"email"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Phone          string    `json:"phone" db:"phone"`
	CompanyID      *string   `json:"company_id" db:"company_id"`
	Source         string    `json:"source" db:"source"`
	Status         string    `json:"status" db:"status"`
	Tags           []Tag     `json:"tags" db:"-"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Company is an account that contacts and deals can be attached to.
type Company struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Domain         string    `json:"domain" db:"domain"`
	Industry       string    `json:"industry" db:"industry"`
	Website        string    `json:"website" db:"website"`
	Phone          string    `json:"phone" db:"phone"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Deal is an opportunity moving through a pipeline.
type Deal struct {
	ID                string     `json:"id" db:"id"`
	OrganizationID    string     `json:"organization_id" db:"organization_id"`
	Title             string     `json:"title" db:"title"`
	Value             float64    `json:"value" db:"value"`
	Currency          string     `json:"currency" db:"currency"`
	PipelineID        string     `json:"pipeline_id" db:"pipeline_id"`
	StageID           string     `json:"stage_id" db:"stage_id"`
	ContactID         *string    `json:"contact_id" db:"contact_id"`
	CompanyID         *string    `json:"company_id" db:"company_id"`
	Status            string     `json:"status" db:"status"`
	ExpectedCloseDate *time.Time `json:"expected_close_date" db:"expected_close_date"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Tag is an organization-scoped label applied to contacts.
type Tag struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Color          string    `json:"color" db:"color"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Pipeline is an ordered set of stages deals move through.
type Pipeline struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	IsDefault      bool      `json:"is_default" db:"is_default"`
	Position       int       `json:"position" db:"position"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Stage is one step of a pipeline. A won or lost stage closes the deals in it.
type Stage struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	PipelineID     string    `json:"pipeline_id" db:"pipeline_id"`
	Name           string    `json:"name" db:"name"`
	Position       int       `json:"position" db:"position"`
	Probability    int       `json:"probability" db:"probability"`
	IsWon          bool      `json:"is_won" db:"is_won"`
	IsLost         bool      `json:"is_lost" db:"is_lost"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// DealStatus returns the deal status implied by the stage.
func (s *Stage) DealStatus() string {
	switch {
	case s.IsWon:
		return DealStatusWon
	case s.IsLost:
		return DealStatusLost
	default:
		return DealStatusOpen
	}
}

// Task is a follow-up item, optionally linked to a contact or deal.
type Task struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description" db:"description"`
	DueDate        *time.Time `json:"due_date" db:"due_date"`
	Priority       string     `json:"priority" db:"priority"`
	Status         string     `json:"status" db:"status"`
	ContactID      *string    `json:"contact_id" db:"contact_id"`
	DealID         *string    `json:"deal_id" db:"deal_id"`
	CompletedAt    *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Activity is a timeline entry on a contact.
type Activity struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	ContactID      string    `json:"contact_id" db:"contact_id"`
	Type           string    `json:"type" db:"type"`
	Subject        string    `json:"subject" db:"subject"`
	Body           string    `json:"body" db:"body"`
	OccurredAt     time.Time `json:"occurred_at" db:"occurred_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
