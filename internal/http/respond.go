package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/factorysh/panem/internal/repository"
	"github.com/factorysh/panem/internal/service/project"
	"github.com/factorysh/panem/internal/service/webhook"
)

const maxBodyBytes = 1 << 20

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps service errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, project.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrConflict):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, project.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, webhook.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusForError(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		if errors.Is(err, repository.ErrNotFound) {
			msg = "project not found"
		}
	case http.StatusForbidden:
		msg = "project already exists"
	case http.StatusInternalServerError:
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
		msg = "internal server error"
	}
	writeError(w, status, msg)
}

// decodeJSON strictly decodes a single JSON object from the request body.
// An empty body yields io.EOF unless allowEmpty is set.
func decodeJSON(w http.ResponseWriter, req *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: %s", project.ErrInvalidInput, describeDecodeError(err))
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON object", project.ErrInvalidInput)
	}
	return nil
}

func describeDecodeError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is required"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
		}
		return "request body has the wrong type"
	case errors.As(err, &maxErr):
		return "request body too large"
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	default:
		return "invalid JSON body"
	}
}
