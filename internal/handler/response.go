package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/validation"
)

// maxBodyBytes bounds request bodies. Canvas saves carry two editor
// payloads and two rendered images, so the limit is generous.
const maxBodyBytes = 16 << 20

// Envelope is the shape of every JSON response.
//
//	{"status":"success","data":...}
//	{"status":"error","message":"...","details":{"field":"..."}}
type Envelope struct {
	Status  string            `json:"status"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Responder writes envelopes and maps errors to status codes. In
// production the text of unexpected errors never reaches the client.
type Responder struct {
	logger     *slog.Logger
	production bool
}

func NewResponder(logger *slog.Logger, production bool) *Responder {
	return &Responder{logger: logger, production: production}
}

func (re *Responder) writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		re.logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (re *Responder) ok(w http.ResponseWriter, data any) {
	re.writeJSON(w, http.StatusOK, Envelope{Status: "success", Data: data})
}

func (re *Responder) created(w http.ResponseWriter, data any) {
	re.writeJSON(w, http.StatusCreated, Envelope{Status: "success", Data: data})
}

func (re *Responder) message(w http.ResponseWriter, msg string) {
	re.writeJSON(w, http.StatusOK, Envelope{Status: "success", Message: msg})
}

// error maps err to a status via errors.Is on the apperror kinds.
// Conflict and OperationFailed keep their own codes (409 and 400).
func (re *Responder) error(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)

	var appErr *apperror.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		re.writeJSON(w, status, Envelope{
			Status:  "error",
			Message: appErr.Message,
			Details: appErr.Details,
		})
		if !apperror.IsExpected(err) {
			re.logger.Warn("request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	re.logger.Error("unexpected error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	env := Envelope{Status: "error", Message: "An internal error occurred"}
	if !re.production {
		env.Error = err.Error()
	}
	re.writeJSON(w, http.StatusInternalServerError, env)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrOperationFailed):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into dst. Malformed JSON is a validation error.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		case errors.As(err, &tooLarge):
			return apperror.ValidationFailed("body", "request body is too large")
		default:
			return apperror.ValidationFailed("body", "request body must be valid JSON")
		}
	}
	return nil
}

// pathID reads the path parameter name and checks it is a well-formed id.
// On failure it writes the 400 response and returns false.
func pathID(w http.ResponseWriter, r *http.Request, v *validation.Validator, res *Responder, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if err := v.Var(name, id, "required,xid"); err != nil {
		res.error(w, r, err)
		return "", false
	}
	return id, true
}

// pageRequest reads ?page and ?limit, defaulting to the first page of 10.
func pageRequest(r *http.Request) (model.PageRequest, error) {
	page, err := queryInt(r, "page", model.DefaultPage)
	if err != nil {
		return model.PageRequest{}, err
	}
	limit, err := queryInt(r, "limit", model.DefaultLimit)
	if err != nil {
		return model.PageRequest{}, err
	}
	p := model.PageRequest{Page: page, Limit: limit}
	return p, p.Validate()
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperror.ValidationFailed(key, key+" must be an integer")
	}
	return n, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, apperror.ValidationFailed(key, key+" must be true or false")
	}
	return b, nil
}
