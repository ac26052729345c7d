package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pocketgate/pocketgate/internal/approval"
	"github.com/pocketgate/pocketgate/internal/audit"
	"github.com/pocketgate/pocketgate/internal/auth"
)

type decisionBody struct {
	Decision approval.Decision `json:"decision"`
	Scope    approval.Scope    `json:"scope,omitempty"`
}

type decisionStatus struct {
	Status approval.Status `json:"status"`
	Scope  approval.Scope  `json:"scope,omitempty"`
}

func (s *Server) handleSubmitDecisionV2(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	creds := auth.FromHeaders(r)
	s.submitDecision(w, r, body, body, creds)
}

func (s *Server) handleSubmitDecisionLegacy(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	creds, signedBody := auth.FromBody(body)
	s.submitDecision(w, r, body, signedBody, creds)
}

// submitDecision records the one-shot decision for a request. Both
// generations land here; the legacy wire just never carries a scope.
func (s *Server) submitDecision(
	w http.ResponseWriter,
	r *http.Request,
	body, signedBody []byte,
	creds auth.Credentials,
) {
	pairingID, err := s.authenticator.Authenticate(r.Method, r.URL.Path, signedBody, creds)
	if err != nil {
		s.rejectAuth(w, r, creds.PairingID, err)
		return
	}

	var d decisionBody
	if err := json.Unmarshal(body, &d); err != nil || !d.Decision.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid decision")
		return
	}
	if !d.Scope.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid scope")
		return
	}

	requestID := chi.URLParam(r, "requestID")
	decided, err := s.requests.Decide(pairingID, requestID, d.Decision, d.Scope)
	if err != nil {
		writeFailure(w, err)
		return
	}

	s.audit(r.Context(), audit.Record{
		Event:     audit.EventDecision,
		PairingID: pairingID,
		RequestID: requestID,
		Detail:    string(decided.Status),
	})
	s.log.Info("decision recorded",
		"pairingId", pairingID, "requestId", requestID, "status", decided.Status)

	writeSuccess(w, decisionStatus{Status: decided.Status, Scope: decided.Scope})
}

// handlePollDecisionV2 serves the agent hook's poll loop. A record that is
// gone (expired and pruned, or never created) reads as expired; the hook
// treats both the same way.
func (s *Server) handlePollDecisionV2(w http.ResponseWriter, r *http.Request) {
	creds := auth.FromHeaders(r)
	pairingID, err := s.authenticator.Authenticate(r.Method, r.URL.Path, nil, creds)
	if err != nil {
		s.rejectAuth(w, r, creds.PairingID, err)
		return
	}

	requestID := chi.URLParam(r, "requestID")
	req, err := s.requests.Get(pairingID, requestID)
	if errors.Is(err, approval.ErrNotFound) {
		writeSuccess(w, decisionStatus{Status: approval.StatusExpired})
		return
	}
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeSuccess(w, decisionStatus{Status: req.Status, Scope: req.Scope})
}

// handlePollDecisionLegacy keeps the old wire exactly: credentials in the
// query string, a bare status in the response, and a 404 for missing
// records.
func (s *Server) handlePollDecisionLegacy(w http.ResponseWriter, r *http.Request) {
	creds := auth.FromQuery(r)
	pairingID, err := s.authenticator.Authenticate(r.Method, r.URL.Path, nil, creds)
	if err != nil {
		s.rejectAuth(w, r, creds.PairingID, err)
		return
	}

	requestID := chi.URLParam(r, "requestID")
	req, err := s.requests.Get(pairingID, requestID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeSuccess(w, map[string]approval.Status{"status": req.Status})
}
