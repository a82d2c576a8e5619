package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/openapi"
)

// OpenAPIHandler serves the generated OpenAPI 3.1 document for the CRM
// resources. The document is built once and cached.
type OpenAPIHandler struct {
	functionName string
	version      string

	once sync.Once
	body []byte
	err  error
}

// NewOpenAPIHandler creates a handler documenting paths under the given
// function name.
func NewOpenAPIHandler(functionName, version string) *OpenAPIHandler {
	return &OpenAPIHandler{functionName: functionName, version: version}
}

// ServeHTTP handles GET /openapi.json.
func (h *OpenAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		doc, err := Document(h.functionName, h.version)
		if err != nil {
			h.err = err
			return
		}
		h.body, h.err = json.Marshal(doc)
	})
	if h.err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": h.err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.body)
}

type documentedOp struct {
	path   string
	method string
	op     openapi.Operation
}

// Document builds the OpenAPI description of every gateway resource.
func Document(functionName, version string) (*openapi3.T, error) {
	b := openapi.NewBuilder(openapi.Info{
		Title:       "LeadKit CRM API",
		Description: "Multi-tenant CRM API. Authenticate with an organization API key as a bearer token.",
		Version:     version,
	})

	schemas := map[string]any{
		"Contact":       model.Contact{},
		"ContactInput":  contactInput{},
		"ContactPatch":  contactPatch{},
		"Company":       model.Company{},
		"CompanyInput":  companyInput{},
		"CompanyPatch":  companyPatch{},
		"Deal":          model.Deal{},
		"DealInput":     dealInput{},
		"DealPatch":     dealPatch{},
		"StageChange":   stageInput{},
		"Tag":           model.Tag{},
		"TagIDs":        tagIDsInput{},
		"Pipeline":      model.Pipeline{},
		"Stage":         model.Stage{},
		"Task":          model.Task{},
		"TaskInput":     taskInput{},
		"TaskPatch":     taskPatch{},
		"Activity":      model.Activity{},
		"ActivityInput": activityInput{},
	}
	for name, v := range schemas {
		b.Schema(name, v)
	}

	base := "/" + gateway.APIVersion
	if functionName != "" {
		base = "/" + functionName + base
	}

	for _, d := range documentedOps() {
		if err := b.Add(base+d.path, d.method, d.op); err != nil {
			return nil, err
		}
	}
	return b.Document(), nil
}

func documentedOps() []documentedOp {
	search := openapi.Param{Name: "search", Description: "Case-insensitive substring match."}
	status := func(desc string) openapi.Param { return openapi.Param{Name: "status", Description: desc} }
	ref := func(name string) openapi.Param { return openapi.Param{Name: name, Description: "Filter by " + name + "."} }

	upsert := docCreate("contacts", "upsertContact", "Create or update a contact by email", "ContactInput", "Contact")
	upsert.Description = "Returns 201 with created=true for a new contact, 200 with created=false when the email already exists."
	newDeal := docCreate("deals", "createDeal", "Create a deal", "DealInput", "Deal")
	newDeal.Description = "Without stage_id the deal starts in the first stage of the given or default pipeline."
	untag := openapi.Operation{Tag: "contacts", ID: "untagContact", Summary: "Remove a tag from a contact"}
	complete := openapi.Operation{Tag: "tasks", ID: "completeTask", Summary: "Mark a task completed", Response: "Task"}

	return []documentedOp{
		{"/contacts", http.MethodGet, docList("contacts", "listContacts", "List contacts", "Contact",
			search, status("lead, customer or churned."), ref("company_id"))},
		{"/contacts", http.MethodPost, upsert},
		{"/contacts/{id}", http.MethodGet, docGet("contacts", "getContact", "Get a contact", "Contact")},
		{"/contacts/{id}", http.MethodPatch, docUpdate("contacts", "updateContact", "Update a contact", "ContactPatch", "Contact")},
		{"/contacts/{id}/activities", http.MethodGet, docList("contacts", "listContactActivities", "List a contact's activities", "Activity")},
		{"/contacts/{id}/activities", http.MethodPost, docCreate("contacts", "logContactActivity", "Log an activity on a contact", "ActivityInput", "Activity")},
		{"/contacts/{id}/tags", http.MethodPost, docUpdate("contacts", "tagContact", "Apply tags to a contact", "TagIDs", "Contact")},
		{"/contacts/{id}/tags/{tagId}", http.MethodDelete, untag},

		{"/companies", http.MethodGet, docList("companies", "listCompanies", "List companies", "Company", search)},
		{"/companies", http.MethodPost, docCreate("companies", "createCompany", "Create a company", "CompanyInput", "Company")},
		{"/companies/{id}", http.MethodGet, docGet("companies", "getCompany", "Get a company", "Company")},
		{"/companies/{id}", http.MethodPatch, docUpdate("companies", "updateCompany", "Update a company", "CompanyPatch", "Company")},

		{"/deals", http.MethodGet, docList("deals", "listDeals", "List deals", "Deal",
			status("open, won or lost."), ref("pipeline_id"), ref("stage_id"), ref("contact_id"))},
		{"/deals", http.MethodPost, newDeal},
		{"/deals/{id}", http.MethodGet, docGet("deals", "getDeal", "Get a deal", "Deal")},
		{"/deals/{id}", http.MethodPatch, docUpdate("deals", "updateDeal", "Update a deal", "DealPatch", "Deal")},
		{"/deals/{id}/stage", http.MethodPatch, docUpdate("deals", "moveDeal", "Move a deal to another stage", "StageChange", "Deal")},

		{"/tags", http.MethodGet, docList("tags", "listTags", "List tags", "Tag")},

		{"/pipelines", http.MethodGet, docList("pipelines", "listPipelines", "List pipelines", "Pipeline")},
		{"/pipelines/{id}/stages", http.MethodGet, docList("pipelines", "listPipelineStages", "List a pipeline's stages", "Stage")},

		{"/tasks", http.MethodGet, docList("tasks", "listTasks", "List tasks", "Task",
			status("pending or completed."), ref("contact_id"), ref("deal_id"))},
		{"/tasks", http.MethodPost, docCreate("tasks", "createTask", "Create a task", "TaskInput", "Task")},
		{"/tasks/{id}", http.MethodPatch, docUpdate("tasks", "updateTask", "Update a task", "TaskPatch", "Task")},
		{"/tasks/{id}/complete", http.MethodPatch, complete},
	}
}

func docList(tag, id, summary, response string, params ...openapi.Param) openapi.Operation {
	return openapi.Operation{Tag: tag, ID: id, Summary: summary, Response: response, List: true, Params: params}
}

func docGet(tag, id, summary, response string) openapi.Operation {
	return openapi.Operation{Tag: tag, ID: id, Summary: summary, Response: response}
}

func docCreate(tag, id, summary, body, response string) openapi.Operation {
	return openapi.Operation{Tag: tag, ID: id, Summary: summary, Body: body, Response: response, Status: http.StatusCreated}
}

func docUpdate(tag, id, summary, body, response string) openapi.Operation {
	return openapi.Operation{Tag: tag, ID: id, Summary: summary, Body: body, Response: response}
}
