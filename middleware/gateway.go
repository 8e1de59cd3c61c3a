package middleware

import (
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
)

// gatewayKeys holds the API keys issued to trackside hardware gateways,
// from GATEWAY_API_KEYS (comma separated). Loaded lazily on the first
// request so keys supplied through a .env file are picked up after the
// config layer has run godotenv.
var (
	gatewayOnce sync.Once
	gatewayKeys map[string]bool
)

func loadGatewayKeys() {
	gatewayKeys = map[string]bool{}
	for _, k := range strings.Split(os.Getenv("GATEWAY_API_KEYS"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			gatewayKeys[k] = true
		}
	}
}

// GatewayKey authenticates the hardware detection path. Gateways carry no
// user session, only a provisioned x-api-key.
func GatewayKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gatewayOnce.Do(loadGatewayKeys)
		apiKey := r.Header.Get("x-api-key")
		if !gatewayKeys[apiKey] {
			log.Printf("[SECURITY] blocked detection call, invalid API key. IP=%s Path=%s", clientIP(r), r.URL.Path)
			http.Error(w, "invalid or missing API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
