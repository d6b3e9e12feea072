// Package handler provides the HTTP surface of the payout desk.
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"payoutdesk/internal/domain"
	"payoutdesk/internal/middleware"
	"payoutdesk/pkg/errors"
	"payoutdesk/pkg/logger"
	"payoutdesk/pkg/validator"
)

const maxBodyBytes = 1 << 20

type errorPayload struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondError renders err with its taxonomy code. Errors without a code are
// logged and rendered as a generic internal error.
func respondError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	code := errors.CodeOf(err)
	message := "internal server error"

	var coded *errors.Error
	if errors.As(err, &coded) && code != errors.CodeInternal {
		message = coded.Message
	}
	if errors.HTTPStatus(code) >= http.StatusInternalServerError {
		log.Error("Request failed", map[string]interface{}{
			"path":       r.URL.Path,
			"code":       code,
			"request_id": middleware.RequestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
	}

	respondJSON(w, errors.HTTPStatus(code), errorResponse{Error: errorPayload{Code: code, Message: message}})
}

// decodeBody reads a JSON body into dst and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, val *validator.Validator, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.New(errors.CodeValidation, "request body is required")
		}
		return errors.New(errors.CodeValidation, "invalid request body: %v", err)
	}
	if err := val.Validate(dst); err != nil {
		return errors.New(errors.CodeValidation, "%s", err.Error())
	}
	return nil
}

func principal(r *http.Request) (domain.Principal, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return domain.Principal{}, errors.ErrUnauthorized
	}
	return p, nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, errors.New(errors.CodeValidation, "invalid %s", name)
	}
	return id, nil
}
