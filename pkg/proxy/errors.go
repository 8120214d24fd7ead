package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"hchttp/gateway/pkg/gwerrors"
)

// conductorErrorMessage is returned to clients in place of conductor error
// details, which are only logged.
const conductorErrorMessage = "conductor error"

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor returns the HTTP status code for an error kind.
func StatusFor(kind gwerrors.Kind) int {
	switch kind {
	case gwerrors.KindMalformedHash,
		gwerrors.KindMalformedIdentifier,
		gwerrors.KindMalformedPayload,
		gwerrors.KindPayloadTooLarge:
		return http.StatusBadRequest
	case gwerrors.KindForbidden:
		return http.StatusForbidden
	case gwerrors.KindNotFound:
		return http.StatusNotFound
	case gwerrors.KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// HandleError converts err into a status code and client-facing body.
// Conductor errors get a generic message; their details are logged.
//
// Example usage:
//
//	if err != nil {
//	    status, body := HandleError(ctx, err)
//	    WriteJSON(w, status, body)
//	    return
//	}
func HandleError(ctx context.Context, err error) (int, *ErrorResponse) {
	kind := gwerrors.KindOf(err)
	status := StatusFor(kind)

	if kind == gwerrors.KindConductor || kind == gwerrors.KindUnknown {
		slog.ErrorContext(ctx, "conductor error", "error", err)
		return status, &ErrorResponse{Error: conductorErrorMessage}
	}

	msg := err.Error()
	var gwErr *gwerrors.Error
	if errors.As(err, &gwErr) {
		msg = gwErr.Message
	}
	if kind == gwerrors.KindZome {
		slog.WarnContext(ctx, "zome error", "error", err)
	}
	return status, &ErrorResponse{Error: msg}
}

// WriteError writes the error response for err.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := HandleError(r.Context(), err)
	WriteJSON(w, status, body)
}
