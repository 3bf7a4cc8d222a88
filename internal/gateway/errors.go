package gateway

import (
	"encoding/json"
	"net/http"
)

// Error type discriminators returned in the JSON error envelope.
const (
	errTypeGateway      = "gateway_error"
	errTypeAccessDenied = "access_denied"
	errTypeQuota        = "quota_exceeded"
	errTypeEnvelope     = "envelope_invalid"
	errTypeBackend      = "backend_unavailable"
)

// writeError writes a JSON error response.
func (g *Gateway) writeError(w http.ResponseWriter, msg, errType string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"message": msg, "type": errType},
	})
}
