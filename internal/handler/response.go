package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/buildpulse/buildpulse-go/internal/crypto"
	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/service"
)

const maxBodySize = 1 << 20 // 1MB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// decodeBody decodes a JSON request body into v, writing the error response
// itself when it returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return false
	}
	return true
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrProjectNameRequired) ||
		errors.Is(err, service.ErrTargetStageRequired) ||
		errors.Is(err, service.ErrInvalidTimeRange) ||
		errors.Is(err, model.ErrPipelineTypeInvalid) ||
		errors.Is(err, model.ErrPipelineURLRequired) ||
		errors.Is(err, model.ErrPipelineNameRequired) ||
		errors.Is(err, model.ErrCredentialRequired) ||
		errors.Is(err, model.ErrUsernameRequired) ||
		errors.Is(err, model.ErrConnectionMismatch)
}

// serviceError maps a service error to a status code and client message.
// Only validation and verification messages are echoed to the client.
func serviceError(err error) (int, string) {
	var syncErr *service.SynchronizationError
	var codecErr *crypto.CodecError

	switch {
	case errors.Is(err, service.ErrProjectNotFound), errors.Is(err, service.ErrPipelineNotFound):
		return http.StatusNotFound, err.Error()
	case isValidationError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrVerificationFailed):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &syncErr):
		return http.StatusBadGateway, "synchronization failed for pipeline " + syncErr.PipelineID
	case errors.As(err, &codecErr):
		return http.StatusInternalServerError, "stored pipeline could not be decrypted"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, msg := serviceError(err)
	writeJSON(w, status, errorResponse(msg))
}
