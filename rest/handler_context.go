package rest

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/zapflowhq/zapflow/engine"
	"github.com/zapflowhq/zapflow/model"
)

func (s *Server) HandleGetContext(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ectx, err := s.engine.GetContext(vars["tenantId"], vars["contextId"])
	if err != nil {
		var notFound model.NotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, notFound.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "error loading context")
		return
	}
	respondWithJSON(w, http.StatusOK, ectx)
}

// HandleCancelContext ends a context on human takeover.
func (s *Server) HandleCancelContext(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := s.engine.Cancel(vars["tenantId"], vars["contextId"])
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
		respondWithError(w, http.StatusInternalServerError, "error cancelling context")
		return
	}
	respondOK(w, "cancelled")
}

// HandleResetContext returns an ERROR context to SUSPENDED for resumption.
func (s *Server) HandleResetContext(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := s.engine.Reset(vars["tenantId"], vars["contextId"])
	if err != nil {
		var valErr model.ValidationError
		if errors.As(err, &valErr) {
			respondWithError(w, http.StatusBadRequest, valErr.Error())
			return
		}
		var notFound model.NotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, notFound.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "error resetting context")
		return
	}
	respondOK(w, "reset")
}
