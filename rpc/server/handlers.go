package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/wbKV/lib/payload"
	"github.com/ValentinKolb/wbKV/lib/savesvc"
	"github.com/ValentinKolb/wbKV/rpc/common"
	"io"
	"net/http"
)

// --------------------------------------------------------------------------
// Key/Value Handlers
// --------------------------------------------------------------------------

// handleSave stores the request body as text payload
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()

	// Check if body could be read
	if err != nil {
		writeError(w, http.StatusBadRequest, savesvc.RetCInvalidPayload, fmt.Errorf("failed to read request body: %w", err))
		return
	}

	code := s.svc.Save(r.PathValue("key"), payload.NewText(string(body)))
	writeResult(w, code, "")
}

// handleLoad returns the value of a key, for HEAD requests it only checks existence
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		s.handleExists(w, r)
		return
	}

	var value payload.Text
	code, err := s.svc.Load(r.PathValue("key"), &value).Await(r.Context())
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, savesvc.RetCOffline, err)
		return
	}

	if code != savesvc.RetCSuccess {
		writeResult(w, code, "")
		return
	}
	writeResult(w, code, string(value))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	code, err := s.svc.Delete(r.PathValue("key")).Await(r.Context())
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, savesvc.RetCOffline, err)
		return
	}
	writeResult(w, code, "")
}

func (s *Server) handleExists(w http.ResponseWriter, r *http.Request) {
	code, err := s.svc.Exists(r.PathValue("key")).Await(r.Context())
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, savesvc.RetCOffline, err)
		return
	}
	writeResult(w, code, "")
}

// --------------------------------------------------------------------------
// Control Handlers
// --------------------------------------------------------------------------

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Flush(r.Context())
	switch {
	case errors.Is(err, savesvc.ErrOffline):
		writeResult(w, savesvc.RetCOffline, "")
	case err != nil:
		writeError(w, http.StatusInternalServerError, savesvc.RetCSQLError, err)
	default:
		writeResult(w, savesvc.RetCSuccess, "")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.svc.Metrics().WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// writeResult writes a save service result with the mapped http status
func writeResult(w http.ResponseWriter, code savesvc.RetCode, data string) {
	w.Header().Set(common.HeaderResultCode, code.String())
	writeJSON(w, common.HTTPStatus(code), common.NewResponse(code, data))
}

// writeError writes a response for a request that failed outside the save service
func writeError(w http.ResponseWriter, status int, code savesvc.RetCode, err error) {
	w.Header().Set(common.HeaderResultCode, code.String())
	writeJSON(w, status, common.NewErrorResponse(code, err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}
