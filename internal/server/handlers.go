package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"scaffold/internal/docstore"
	"scaffold/internal/repository"
)

// Handler holds the request handlers' dependencies.
type Handler struct {
	contacts *repository.Repository[Contact, *Contact]
}

// NewHandler creates a handler over the contacts repository.
func NewHandler(contacts *repository.Repository[Contact, *Contact]) *Handler {
	return &Handler{contacts: contacts}
}

// Health is the liveness endpoint.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// CreateContact handles POST /v1/contacts.
func (h *Handler) CreateContact(c echo.Context) error {
	var req createContactRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "malformed JSON body")
	}
	if req.Email == "" || req.FirstName == "" {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "firstName and email are required")
	}

	now := time.Now().UTC()
	contact := &Contact{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := h.contacts.Create(c.Request().Context(), contact)
	if err != nil {
		if docstore.IsDuplicateKey(err) {
			return errorJSON(c, http.StatusConflict, "conflict", "a contact with this email already exists")
		}
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// GetContact handles GET /v1/contacts/:id.
func (h *Handler) GetContact(c echo.Context) error {
	contact, err := h.contacts.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if contact == nil {
		return errorJSON(c, http.StatusNotFound, "not_found", "contact not found")
	}
	return c.JSON(http.StatusOK, contact)
}

// ListContacts handles GET /v1/contacts.
func (h *Handler) ListContacts(c echo.Context) error {
	opts := repository.ListOptions{
		Page:  queryInt(c, "page"),
		Limit: queryInt(c, "limit"),
		Sort:  c.QueryParam("sort"),
		Order: c.QueryParam("order"),
	}
	if email := c.QueryParam("email"); email != "" {
		opts.Filter = map[string]any{"email": email}
		opts.Extra = []string{email}
	}

	result, err := h.contacts.List(c.Request().Context(), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// UpdateContact handles PUT /v1/contacts/:id.
func (h *Handler) UpdateContact(c echo.Context) error {
	var req updateContactRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "malformed JSON body")
	}

	updated, err := h.contacts.UpdateByID(c.Request().Context(), c.Param("id"), req.fields(time.Now().UTC()))
	if err != nil {
		if docstore.IsDuplicateKey(err) {
			return errorJSON(c, http.StatusConflict, "conflict", "a contact with this email already exists")
		}
		return err
	}
	if updated == nil {
		return errorJSON(c, http.StatusNotFound, "not_found", "contact not found")
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteContact handles DELETE /v1/contacts/:id. The deleted record is
// returned so clients can clean up anything referencing it.
func (h *Handler) DeleteContact(c echo.Context) error {
	deleted, err := h.contacts.DeleteByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if deleted == nil {
		return errorJSON(c, http.StatusNotFound, "not_found", "contact not found")
	}
	return c.JSON(http.StatusOK, deleted)
}

func errorJSON(c echo.Context, status int, errType, message string) error {
	return c.JSON(status, map[string]any{
		"error": map[string]any{
			"type":    errType,
			"message": message,
		},
	})
}

func queryInt(c echo.Context, name string) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
