package middleware

import (
	"net"
	"net/http"
	"strings"
)

// LocalOnly hides a handler from everything but loopback clients. When the
// feature flag is off, or any request signal points at a non-local origin,
// it answers with a plain 404 so the routes are indistinguishable from
// missing ones.
func LocalOnly(enabled bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !enabled || !requestIsLocal(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Not found"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIsLocal checks every hop-revealing signal a proxy could add. The
// request is local only when all present signals agree.
func requestIsLocal(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isLoopbackHost(host) {
		return false
	}
	if !isLoopbackHost(hostnameOf(r.Host)) {
		return false
	}
	if fwdHost := r.Header.Get("X-Forwarded-Host"); fwdHost != "" {
		if !isLoopbackHost(hostnameOf(strings.TrimSpace(strings.Split(fwdHost, ",")[0]))) {
			return false
		}
	}
	if fwdFor := r.Header.Get("X-Forwarded-For"); fwdFor != "" {
		first := strings.TrimSpace(strings.Split(fwdFor, ",")[0])
		if !isLoopbackHost(first) {
			return false
		}
	}
	return true
}

func hostnameOf(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

func isLoopbackHost(host string) bool {
	host = strings.TrimSpace(strings.Trim(host, "[]"))
	if host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	host = strings.TrimPrefix(host, "::ffff:")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
