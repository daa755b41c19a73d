package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleSaveFlow(w http.ResponseWriter, r *http.Request) {
	var def model.Flow
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed flow definition")
		return
	}
	defer r.Body.Close()
	if err := s.flowService.SaveFlow(def); err != nil {
		var valErr model.ValidationError
		if errors.As(err, &valErr) {
			respondWithError(w, http.StatusBadRequest, valErr.Error())
			return
		}
		logger.Error("error saving flow", zap.String("flowId", def.Id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error saving flow")
		return
	}
	respondOK(w, "saved")
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	f, err := s.flowService.GetFlowDefinition(vars["tenantId"], vars["flowId"])
	if err != nil {
		var notFound model.NotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, notFound.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "error loading flow")
		return
	}
	respondWithJSON(w, http.StatusOK, f)
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.flowService.DeleteFlow(vars["tenantId"], vars["flowId"]); err != nil {
		respondWithError(w, http.StatusInternalServerError, "error deleting flow")
		return
	}
	respondOK(w, "deleted")
}
