package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prividocs/privistream/internal/custody"
	"github.com/prividocs/privistream/pkg/types"
)

func (s *Server) handleStoreKey(w http.ResponseWriter, r *http.Request) {
	var req storeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.observe("store", http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.svc.StoreKey(r.Context(), custody.StoreKeyRequest{
		VideoID:      req.VideoID,
		Key:          req.Key,
		ChunkNonces:  req.ChunkNonces,
		OwnerAddress: req.OwnerAddress,
		Signature:    req.Signature,
	})
	if err != nil {
		status := statusFor(err)
		s.metrics.observe("store", status)
		s.log.Warn("store key failed", "videoId", req.VideoID, "status", status, "error", err)
		writeError(w, status, publicMessage(err, status))
		return
	}

	s.metrics.observe("store", http.StatusOK)
	writeJSON(w, http.StatusOK, storeKeyResponse{Success: true})
}

func (s *Server) handleRequestKey(w http.ResponseWriter, r *http.Request) {
	var req requestKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.observe("request", http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	material, err := s.svc.RequestKey(r.Context(), custody.RequestKeyRequest{
		VideoID:          req.VideoID,
		RequesterAddress: req.RequesterAddress,
		Signature:        req.Signature,
	})
	if err != nil {
		status := statusFor(err)
		s.metrics.observe("request", status)
		s.log.Warn("request key failed", "videoId", req.VideoID, "requester", req.RequesterAddress, "status", status, "error", err)
		writeError(w, status, publicMessage(err, status))
		return
	}

	s.metrics.observe("request", http.StatusOK)
	writeJSON(w, http.StatusOK, requestKeyResponse{
		Key:         material.Key,
		ChunkNonces: material.ChunkNonces,
	})
}

// statusFor maps the shared error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps internal error detail out of 5xx responses.
func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
