// Package responses writes the JSON envelopes every endpoint answers with.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// SuccessEnvelope wraps a successful payload: {"status":true,"data":...}.
type SuccessEnvelope struct {
	Status bool `json:"status"`
	Data   any  `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps a failure: {"status":false,"error":{...}}.
type ErrorEnvelope struct {
	Status bool     `json:"status"`
	Error  APIError `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteCreated(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusCreated, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Status: true, Data: data})
}

// WriteError maps err onto its code's status. Untyped errors become
// internal errors whose message never reaches the client.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("error response without cause")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unhandled error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	body := APIError{Code: string(typed.Code()), Message: meta.PublicMessage}
	if meta.MessagePublic && typed.Message() != "" {
		body.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}

	if logg != nil {
		logError(ctx, logg, meta.HTTPStatus, typed, err)
	}
	writeJSON(w, meta.HTTPStatus, ErrorEnvelope{Error: body})
}

// Client errors log at warn without a stack; everything else is an error.
func logError(ctx context.Context, logg *logger.Logger, status int, typed *pkgerrors.Error, err error) {
	fields := map[string]any{
		"error_code":  typed.Code(),
		"error_chain": pkgerrors.Chain(err),
	}
	for k, v := range db.Diagnose(err) {
		fields[k] = v
	}
	if step, ok := detailStep(typed.Details()); ok {
		fields["step"] = step
	}
	ctx = logg.WithFields(ctx, fields)

	if status < http.StatusInternalServerError {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "request.rejected")
		return
	}
	logg.Error(ctx, "request.error", err)
}

func detailStep(details any) (any, bool) {
	m, ok := details.(map[string]any)
	if !ok {
		return nil, false
	}
	step, ok := m["step"]
	return step, ok
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	buf, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		buf = []byte(`{"status":false,"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(buf, '\n'))
}
