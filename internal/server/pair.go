package server

import (
	"encoding/json"
	"net/http"

	"github.com/pocketgate/pocketgate/internal/audit"
	"github.com/pocketgate/pocketgate/internal/auth"
	"github.com/pocketgate/pocketgate/internal/pairing"
	"github.com/pocketgate/pocketgate/internal/signature"
)

// handlePairInit mints a fresh pairing and returns both halves of the
// credential. The secret crosses the wire exactly once, here.
func (s *Server) handlePairInit(w http.ResponseWriter, r *http.Request) {
	pairingID, err := signature.GenerateID()
	if err != nil {
		s.log.Error("pairing id generation failed", "error", err)
		writeFailure(w, err)
		return
	}
	secret, err := signature.GenerateSecret()
	if err != nil {
		s.log.Error("pairing secret generation failed", "error", err)
		writeFailure(w, err)
		return
	}

	if err := s.registry.Register(pairingID, secret); err != nil {
		s.log.Error("pairing registration failed", "error", err)
		writeFailure(w, err)
		return
	}

	s.audit(r.Context(), audit.Record{Event: audit.EventPairCreated, PairingID: pairingID})
	s.log.Info("pairing created", "pairingId", pairingID)

	writeSuccess(w, map[string]string{
		"pairingId":     pairingID,
		"pairingSecret": secret,
	})
}

type pushSubscriptionWire struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type registerPushBody struct {
	PushSubscription pushSubscriptionWire `json:"pushSubscription"`
}

// handleRegisterPush stores the device's push subscription. Both credential
// generations are accepted: headers if present, body otherwise.
func (s *Server) handleRegisterPush(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	creds := auth.FromHeaders(r)
	bodyForHash := body
	if creds.PairingID == "" {
		creds, bodyForHash = auth.FromBody(body)
	}

	pairingID, err := s.authenticator.Authenticate(r.Method, r.URL.Path, bodyForHash, creds)
	if err != nil {
		s.rejectAuth(w, r, creds.PairingID, err)
		return
	}

	var req registerPushBody
	if err := json.Unmarshal(body, &req); err != nil || req.PushSubscription.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "Invalid push subscription")
		return
	}

	sub := pairing.PushSubscription{
		Endpoint: req.PushSubscription.Endpoint,
		P256dh:   req.PushSubscription.Keys.P256dh,
		Auth:     req.PushSubscription.Keys.Auth,
	}
	if err := s.registry.RegisterPush(pairingID, sub); err != nil {
		writeFailure(w, err)
		return
	}

	s.audit(r.Context(), audit.Record{Event: audit.EventPushRegistered, PairingID: pairingID})
	writeSuccess(w, nil)
}

// rejectAuth logs and audits a failed authentication, then writes the
// mapped error response.
func (s *Server) rejectAuth(w http.ResponseWriter, r *http.Request, pairingID string, err error) {
	s.log.Warn("authentication rejected", "path", r.URL.Path, "error", err)
	s.audit(r.Context(), audit.Record{
		Event:     audit.EventAuthRejected,
		PairingID: pairingID,
		Detail:    err.Error(),
	})
	writeFailure(w, err)
}
