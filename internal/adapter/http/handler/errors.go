package handler

import (
	"context"
	"net/http"

	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
)

func errorResponse(w http.ResponseWriter, status int, message any) {
	env := envelope{"error": message}

	// Write the response using the writeJSON() helper. If this happens to return an
	// error then fall back to sending the client an empty response with a
	// 500 Internal Server Error status code.
	if err := writeJSON(w, status, env, nil); err != nil {
		w.WriteHeader(500)
	}
}

// failedValidationResponse returns 422 UnprocessableEntity status.
// The syntax of the request was correct, but it was unable to process the
// contained instructions. Repeating the request without modification will fail the same way.
func failedValidationResponse(w http.ResponseWriter, errors map[string]string) {
	errorResponse(w, http.StatusUnprocessableEntity, errors)
}

// badRequestResponse returns 400 BadRequest status for malformed requests.
func badRequestResponse(w http.ResponseWriter, message any) {
	errorResponse(w, http.StatusBadRequest, message)
}

// internalErrorResponse returns 500 InternalServerError status
func internalErrorResponse(w http.ResponseWriter, message any) {
	errorResponse(w, http.StatusInternalServerError, message)
}

// serviceErrorResponse logs err and writes it with the status from GetCode.
// Client errors are logged as warnings, internals are hidden from the client.
func serviceErrorResponse(ctx context.Context, w http.ResponseWriter, l logger.Logger, msg string, err error) {
	code := GetCode(err)
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		l.Error(wrap.ErrorCtx(ctx, err), msg, err)
		internalErrorResponse(w, "the server encountered a problem and could not process your request")
		return
	}

	l.Warn(wrap.ErrorCtx(ctx, err), msg, "error", err.Error(), "status", code)
	errorResponse(w, code, err.Error())
}
