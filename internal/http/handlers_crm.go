package http

import (
	"net/http"
	"strconv"

	"crm/internal/core"
	"crm/internal/log"
)

// created answers 201 with v and a Location header, or renders err.
func created(w http.ResponseWriter, r *http.Request, op string, base string, id int64, v any, err error) {
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Location(base + "/" + strconv.FormatInt(id, 10)).
		Data(v).
		Write(w)
}

// respond answers 200 with v, or renders err.
func respond(w http.ResponseWriter, r *http.Request, op string, v any, err error) {
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// deleted answers 204, or renders err.
func deleted(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clients

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListClients(r.Context())
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var c core.Client
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	sanitizeClient(&c)
	if err := c.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	c, err := s.store.CreateClient(r.Context(), c)
	created(w, r, log.OpCreate, "/api/clients", c.ID, c, err)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	c, err := s.store.GetClient(r.Context(), id)
	respond(w, r, log.OpRead, c, err)
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	var c core.Client
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	c.ID = id
	sanitizeClient(&c)
	if err := c.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	c, err = s.store.UpdateClient(r.Context(), c)
	respond(w, r, log.OpUpdate, c, err)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	deleted(w, r, s.store.DeleteClient(r.Context(), id))
}

func sanitizeClient(c *core.Client) {
	c.Name = sanitizeInput(c.Name)
	c.Email = sanitizeInput(c.Email)
	c.Phone = sanitizeInput(c.Phone)
	c.Company = sanitizeInput(c.Company)
	c.Address = sanitizeInput(c.Address)
	c.Notes = sanitizeInput(c.Notes)
}

// Contacts

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	items, err := s.store.ListContacts(r.Context(), id)
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var c core.Contact
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	c.Name = sanitizeInput(c.Name)
	c.Email = sanitizeInput(c.Email)
	c.Phone = sanitizeInput(c.Phone)
	c.Role = sanitizeInput(c.Role)
	if err := c.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	c, err := s.store.CreateContact(r.Context(), c)
	created(w, r, log.OpCreate, "/api/contacts", c.ID, c, err)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	deleted(w, r, s.store.DeleteContact(r.Context(), id))
}

// Projects

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	clientID, err := ParseIDFilter(r.URL.Query(), "client_id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	items, err := s.store.ListProjects(r.Context(), clientID)
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p core.Project
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	p.Name = sanitizeInput(p.Name)
	p.Description = sanitizeInput(p.Description)
	if err := p.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	p, err := s.store.CreateProject(r.Context(), p)
	created(w, r, log.OpCreate, "/api/projects", p.ID, p, err)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	p, err := s.store.GetProject(r.Context(), id)
	respond(w, r, log.OpRead, p, err)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	var p core.Project
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	p.ID = id
	p.Name = sanitizeInput(p.Name)
	p.Description = sanitizeInput(p.Description)
	if err := p.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	p, err = s.store.UpdateProject(r.Context(), p)
	respond(w, r, log.OpUpdate, p, err)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	deleted(w, r, s.store.DeleteProject(r.Context(), id))
}

// Tasks

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := ParseIDFilter(r.URL.Query(), "project_id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	items, err := s.store.ListTasks(r.Context(), projectID)
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var t core.Task
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	t.Title = sanitizeInput(t.Title)
	t.Description = sanitizeInput(t.Description)
	if err := t.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	t, err := s.store.CreateTask(r.Context(), t)
	created(w, r, log.OpCreate, "/api/tasks", t.ID, t, err)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	t, err := s.store.GetTask(r.Context(), id)
	respond(w, r, log.OpRead, t, err)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	var t core.Task
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	t.ID = id
	t.Title = sanitizeInput(t.Title)
	t.Description = sanitizeInput(t.Description)
	if err := t.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	t, err = s.store.UpdateTask(r.Context(), t)
	respond(w, r, log.OpUpdate, t, err)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	deleted(w, r, s.store.DeleteTask(r.Context(), id))
}

// Time entries

func (s *Server) handleListTimeEntries(w http.ResponseWriter, r *http.Request) {
	projectID, err := ParseIDFilter(r.URL.Query(), "project_id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	items, err := s.store.ListTimeEntries(r.Context(), projectID)
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleCreateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var e core.TimeEntry
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	// Entries are billed only through invoice generation.
	e.InvoiceID = nil
	e.Description = sanitizeInput(e.Description)
	if err := e.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	e, err := s.store.CreateTimeEntry(r.Context(), e)
	created(w, r, log.OpCreate, "/api/time-entries", e.ID, e, err)
}

func (s *Server) handleGetTimeEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	e, err := s.store.GetTimeEntry(r.Context(), id)
	respond(w, r, log.OpRead, e, err)
}

func (s *Server) handleDeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	deleted(w, r, s.store.DeleteTimeEntry(r.Context(), id))
}

// Expenses

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	projectID, err := ParseIDFilter(r.URL.Query(), "project_id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	items, err := s.store.ListExpenses(r.Context(), projectID)
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var e core.Expense
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	e.Description = sanitizeInput(e.Description)
	if err := e.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	e, err := s.store.CreateExpense(r.Context(), e)
	created(w, r, log.OpCreate, "/api/expenses", e.ID, e, err)
}

// Contracts

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	clientID, err := ParseIDFilter(r.URL.Query(), "client_id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	items, err := s.store.ListContracts(r.Context(), clientID)
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var c core.Contract
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	c.Title = sanitizeInput(c.Title)
	if err := c.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	c, err := s.store.CreateContract(r.Context(), c)
	created(w, r, log.OpCreate, "/api/contracts", c.ID, c, err)
}

func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	c, err := s.store.GetContract(r.Context(), id)
	respond(w, r, log.OpRead, c, err)
}

func (s *Server) handleUpdateContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	var c core.Contract
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	c.ID = id
	c.Title = sanitizeInput(c.Title)
	if err := c.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	c, err = s.store.UpdateContract(r.Context(), c)
	respond(w, r, log.OpUpdate, c, err)
}

func (s *Server) handleDeleteContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	deleted(w, r, s.store.DeleteContract(r.Context(), id))
}

// Automation rules

func (s *Server) handleListAutomationRules(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListAutomationRules(r.Context())
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleCreateAutomationRule(w http.ResponseWriter, r *http.Request) {
	var rule core.AutomationRule
	if err := decodeJSON(w, r, &rule); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	rule.Name = sanitizeInput(rule.Name)
	if err := rule.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	rule, err := s.store.CreateAutomationRule(r.Context(), rule)
	created(w, r, log.OpCreate, "/api/automation-rules", rule.ID, rule, err)
}

func (s *Server) handleDeleteAutomationRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	deleted(w, r, s.store.DeleteAutomationRule(r.Context(), id))
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
