package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/zapflowhq/zapflow/engine"
	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/metadata"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port        int
	engine      *engine.Engine
	flowService metadata.FlowService
}

func NewServer(httpPort int, eng *engine.Engine, flowService metadata.FlowService) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		engine:      eng,
		flowService: flowService,
		Port:        httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/flow", s.HandleSaveFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{tenantId}/{flowId}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flow/{tenantId}/{flowId}", s.HandleDeleteFlow).Methods(http.MethodDelete)
	router.HandleFunc("/event/message", s.HandleInboundMessage).Methods(http.MethodPost)
	router.HandleFunc("/callback/{tenantId}/{contextId}", s.HandleWebhookCallback).Methods(http.MethodPost)
	router.HandleFunc("/context/{tenantId}/{contextId}", s.HandleGetContext).Methods(http.MethodGet)
	router.HandleFunc("/context/{tenantId}/{contextId}/cancel", s.HandleCancelContext).Methods(http.MethodPost)
	router.HandleFunc("/context/{tenantId}/{contextId}/reset", s.HandleResetContext).Methods(http.MethodPost)
	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message string) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
