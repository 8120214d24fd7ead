package proxy

import (
	"net/http"

	"hchttp/gateway/pkg/zomecall"
)

const (
	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"

	// PayloadParam is the query parameter carrying the base64url JSON payload.
	PayloadParam = "payload"
)

// Path wildcards of the zome call route.
const (
	PathDnaHash = "dna_hash"
	PathAppID   = "app_id"
	PathZome    = "zome"
	PathFn      = "fn"
)

// ZomeCallPattern is the ServeMux pattern of the zome call route.
const ZomeCallPattern = "/{" + PathDnaHash + "}/{" + PathAppID + "}/{" + PathZome + "}/{" + PathFn + "}"

// ExtractZomeCall reads the path segments and payload of a zome call request
// routed with ZomeCallPattern. Nothing is validated here.
func ExtractZomeCall(r *http.Request) zomecall.RawRequest {
	raw := zomecall.RawRequest{
		TargetHash: r.PathValue(PathDnaHash),
		AppID:      r.PathValue(PathAppID),
		ZomeName:   r.PathValue(PathZome),
		FnName:     r.PathValue(PathFn),
	}
	if values, ok := r.URL.Query()[PayloadParam]; ok && len(values) > 0 {
		raw.Payload = values[0]
		raw.HasPayload = true
	}
	return raw
}

// ExtractRequestID extracts the request ID from the X-Request-ID header.
func ExtractRequestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}
