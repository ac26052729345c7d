package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pocketgate/pocketgate/internal/approval"
	"github.com/pocketgate/pocketgate/internal/audit"
	"github.com/pocketgate/pocketgate/internal/auth"
	"github.com/pocketgate/pocketgate/internal/signature"
	"github.com/pocketgate/pocketgate/internal/webpush"
)

type createRequestBody struct {
	RequestID string           `json:"requestId"`
	Payload   approval.Payload `json:"payload"`
}

func (s *Server) handleCreateRequestV2(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	creds := auth.FromHeaders(r)
	s.createRequest(w, r, body, body, creds, approval.RequestTTL)
}

func (s *Server) handleCreateRequestLegacy(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	creds, signedBody := auth.FromBody(body)
	s.createRequest(w, r, body, signedBody, creds, approval.LegacyRequestTTL)
}

// createRequest is the shared creation flow behind both protocol
// generations: authenticate, rate-limit, insert, charge the window, then
// fire the push in the background. The response never waits on delivery.
func (s *Server) createRequest(
	w http.ResponseWriter,
	r *http.Request,
	body, signedBody []byte,
	creds auth.Credentials,
	ttl time.Duration,
) {
	pairingID, err := s.authenticator.Authenticate(r.Method, r.URL.Path, signedBody, creds)
	if err != nil {
		s.rejectAuth(w, r, creds.PairingID, err)
		return
	}

	var req createRequestBody
	if err := json.Unmarshal(body, &req); err != nil || req.RequestID == "" || req.Payload.Tool == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.registry.CheckRateLimit(pairingID); err != nil {
		writeFailure(w, err)
		return
	}

	created, err := s.requests.Create(pairingID, req.RequestID, req.Payload, ttl)
	if err != nil {
		writeFailure(w, err)
		return
	}

	if err := s.registry.IncrementRequestCount(pairingID); err != nil {
		s.log.Warn("rate-limit accounting failed", "pairingId", pairingID, "error", err)
	}

	s.notifyDevice(pairingID, created)

	s.audit(r.Context(), audit.Record{
		Event:     audit.EventRequestCreated,
		PairingID: pairingID,
		RequestID: created.RequestID,
		Detail:    created.Payload.Tool,
	})
	s.log.Info("approval request created",
		"pairingId", pairingID, "requestId", created.RequestID, "tool", created.Payload.Tool)

	writeSuccess(w, map[string]string{"requestId": created.RequestID})
}

// notifyDevice dispatches the push notification for a freshly created
// request, if the pairing has a subscription. Best effort: any failure here
// degrades the flow to polling, it never fails the creation call.
func (s *Server) notifyDevice(pairingID string, req *approval.Request) {
	rec, err := s.registry.Get(pairingID)
	if err != nil || rec.Push == nil {
		return
	}

	p256dh, err := signature.DecodeKey(rec.Push.P256dh)
	if err != nil {
		s.log.Warn("stored p256dh key undecodable", "pairingId", pairingID, "error", err)
		return
	}
	authSecret, err := signature.DecodeKey(rec.Push.Auth)
	if err != nil {
		s.log.Warn("stored auth secret undecodable", "pairingId", pairingID, "error", err)
		return
	}

	summary := req.Payload.Command
	if summary == "" {
		summary = req.Payload.Details
	}
	if summary == "" {
		summary = "Action required"
	}

	s.sender.SendAsync(
		webpush.Subscription{
			Endpoint: rec.Push.Endpoint,
			P256dh:   p256dh,
			Auth:     authSecret,
		},
		webpush.Notification{
			Title:              "Approval required",
			Body:               req.Payload.Tool + ": " + summary,
			Data:               map[string]any{"requestId": req.RequestID},
			Tag:                req.RequestID,
			RequireInteraction: true,
		},
	)
}

func (s *Server) handleListPendingV2(w http.ResponseWriter, r *http.Request) {
	creds := auth.FromHeaders(r)
	pairingID, err := s.authenticator.Authenticate(r.Method, r.URL.Path, nil, creds)
	if err != nil {
		s.rejectAuth(w, r, creds.PairingID, err)
		return
	}

	pending, err := s.requests.ListPending(pairingID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeSuccess(w, pending)
}

// handleListPendingLegacy serves the legacy unsigned pending list. The
// pairing id alone gates access here, kept for read compatibility with old
// clients.
func (s *Server) handleListPendingLegacy(w http.ResponseWriter, r *http.Request) {
	pairingID := r.URL.Query().Get("pairingId")
	if pairingID == "" {
		writeError(w, http.StatusBadRequest, "pairingId required")
		return
	}

	pending, err := s.requests.ListPending(pairingID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeSuccess(w, pending)
}

// handleGetRequestLegacy returns the full request record. Legacy unsigned
// read path, pairing id in the query string.
func (s *Server) handleGetRequestLegacy(w http.ResponseWriter, r *http.Request) {
	pairingID := r.URL.Query().Get("pairingId")
	if pairingID == "" {
		writeError(w, http.StatusBadRequest, "pairingId required")
		return
	}
	requestID := chi.URLParam(r, "requestID")

	req, err := s.requests.Get(pairingID, requestID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeSuccess(w, req)
}
