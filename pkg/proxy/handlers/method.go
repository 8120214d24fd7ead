package handlers

import (
	"net/http"

	"hchttp/gateway/pkg/gwerrors"
	"hchttp/gateway/pkg/proxy"
)

// MethodNotAllowedHandler answers any method other than GET on a zome call
// path.
type MethodNotAllowedHandler struct{}

// ServeHTTP writes 405 with an Allow header.
func (MethodNotAllowedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, HEAD")
	proxy.WriteError(w, r, gwerrors.New(gwerrors.KindMethodNotAllowed, "method %s not allowed", r.Method))
}
