package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"hchttp/gateway/pkg/proxy"
	"hchttp/gateway/pkg/telemetry/logging"
	"hchttp/gateway/pkg/zomecall"
)

// Dispatcher runs validated zome calls. *zomecall.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *zomecall.Request) (json.RawMessage, error)
}

// ZomeCallHandler serves zome calls.
type ZomeCallHandler struct {
	dispatcher   Dispatcher
	payloadLimit int
}

// NewZomeCallHandler creates a handler that rejects payloads larger than
// payloadLimit decoded bytes.
func NewZomeCallHandler(d Dispatcher, payloadLimit int) *ZomeCallHandler {
	return &ZomeCallHandler{dispatcher: d, payloadLimit: payloadLimit}
}

// ServeHTTP implements http.Handler.
func (h *ZomeCallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := zomecall.Validate(proxy.ExtractZomeCall(r), h.payloadLimit)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}

	ctx := logging.WithAppID(r.Context(), req.AppID)
	result, err := h.dispatcher.Dispatch(ctx, req)
	if err != nil {
		proxy.WriteError(w, r.WithContext(ctx), err)
		return
	}
	proxy.WriteRawJSON(w, result)
}
