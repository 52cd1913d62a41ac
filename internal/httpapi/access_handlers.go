package httpapi

import (
	"errors"
	"net/http"

	"zspgw.org/internal/access"
	"zspgw.org/internal/provider"
)

type humanAccessRequest struct {
	UserID          string `json:"user_id"`
	GroupID         string `json:"group_id"`
	DurationMinutes int    `json:"duration_minutes"`
	Justification   string `json:"justification"`
	TicketID        string `json:"ticket_id"`
}

type nhiAccessRequest struct {
	SPObjectID      string `json:"sp_object_id"`
	Scope           string `json:"scope"`
	Role            string `json:"role"`
	DurationMinutes int    `json:"duration_minutes"`
	WorkflowID      string `json:"workflow_id"`
}

// HumanAccess grants a human administrator temporary group membership.
func (a *API) HumanAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req humanAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.grant(w, r, access.GrantRequest{
		PrincipalID:     req.UserID,
		Kind:            access.KindHuman,
		Target:          req.GroupID,
		DurationMinutes: req.DurationMinutes,
		Justification:   req.Justification,
		TicketID:        req.TicketID,
	})
}

// NHIAccess grants a service identity a temporary scoped role assignment.
func (a *API) NHIAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req nhiAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.grant(w, r, access.GrantRequest{
		PrincipalID:     req.SPObjectID,
		Kind:            access.KindNonHuman,
		Target:          req.Scope,
		Role:            req.Role,
		DurationMinutes: req.DurationMinutes,
		WorkflowID:      req.WorkflowID,
	})
}

// grant runs validation then the orchestrator; validation failures never
// reach the provider.
func (a *API) grant(w http.ResponseWriter, r *http.Request, req access.GrantRequest) {
	if verr := access.Validate(req, a.limits); verr != nil {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	record, err := a.svc.Grant(r.Context(), req)
	if err != nil {
		handleGrantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func handleGrantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provider.ErrUnknownRole),
		errors.Is(err, provider.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
