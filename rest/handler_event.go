package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/zapflowhq/zapflow/engine"
	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/model"
	"go.uber.org/zap"
)

// HandleInboundMessage accepts an inbound message from a channel connector.
// A 409 tells the connector the conversation is mid-processing and the
// message must be re-delivered.
func (s *Server) HandleInboundMessage(w http.ResponseWriter, r *http.Request) {
	var msg model.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed inbound message")
		return
	}
	defer r.Body.Close()
	if msg.TenantId == "" || msg.ConversationId == "" {
		respondWithError(w, http.StatusBadRequest, "tenantId and conversationId are required")
		return
	}
	err := s.engine.HandleInboundMessage(msg)
	if err != nil {
		if errors.Is(err, engine.ErrContextBusy) {
			respondWithError(w, http.StatusConflict, "conversation is being processed, retry later")
			return
		}
		logger.Error("error consuming inbound message", zap.String("conversationId", msg.ConversationId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error consuming inbound message")
		return
	}
	respondOK(w, "accepted")
}

// HandleWebhookCallback accepts the asynchronous response of an outbound
// webhook call issued by a Webhook node.
func (s *Server) HandleWebhookCallback(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var payload any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed callback payload")
		return
	}
	defer r.Body.Close()
	cb := model.WebhookCallback{
		ContextId: vars["contextId"],
		TenantId:  vars["tenantId"],
		Payload:   payload,
	}
	err := s.engine.HandleWebhookCallback(cb)
	if err != nil {
		if errors.Is(err, engine.ErrContextBusy) {
			respondWithError(w, http.StatusConflict, "context is being processed, retry later")
			return
		}
		var notFound model.NotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, notFound.Error())
			return
		}
		logger.Error("error consuming webhook callback", zap.String("contextId", cb.ContextId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error consuming webhook callback")
		return
	}
	respondOK(w, "accepted")
}
