package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/blogem/hard-delete-gate/logging"
	"github.com/blogem/hard-delete-gate/userctx"
)

// ClientInfo records where the request came from so audit entries can carry it
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := userctx.SetClientInfo(r.Context(), userctx.ClientInfo{
			IPAddress: getIPAddress(r),
			UserAgent: r.UserAgent(),
			RequestID: chimiddleware.GetReqID(r.Context()),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs every request once it has completed. Mutations are
// logged at info level, reads at debug level.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		entry := logging.Logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip_address":  getIPAddress(r),
			"request_id":  chimiddleware.GetReqID(r.Context()),
		})

		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete {
			entry.Info("Request completed")
		} else {
			entry.Debug("Request completed")
		}
	})
}

// getIPAddress returns the host part of the peer address. Forwarding headers
// are only honoured when middleware.RealIP has already rewritten RemoteAddr.
func getIPAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
