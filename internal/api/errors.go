package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"stock-sync-service/internal/logger"
	"stock-sync-service/internal/store"
	"stock-sync-service/internal/sync"
)

// APIError is the body of every 4xx/5xx response.
type APIError struct {
	Detail string `json:"detail"`
}

type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warn("Failed to encode response", zap.Error(err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, APIError{Detail: detail})
}

func writeError(w http.ResponseWriter, err error) {
	var syncErr *sync.TransientSyncError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sync.ErrConflict), errors.Is(err, sync.ErrProductExists):
		writeDetail(w, http.StatusConflict, err.Error())
	case errors.As(err, &syncErr):
		writeDetail(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, store.ErrUnknownChannel),
		errors.Is(err, sync.ErrInvalidInterval),
		errors.Is(err, sync.ErrInvalidQuantity),
		errors.Is(err, sync.ErrInvalidProduct):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		logger.Log.Error("Request failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, ValidationError{Detail: "validation failed", Fields: fields})
		return false
	}
	return true
}
