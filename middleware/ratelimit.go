package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	stdlibmiddleware "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/blogem/hard-delete-gate/logging"
	"github.com/blogem/hard-delete-gate/models"
	"github.com/blogem/hard-delete-gate/respond"
)

// RateLimit allows at most perMinute requests per RemoteAddr host through next.
// The limiter never reads forwarding headers itself. A non-positive limit disables it.
func RateLimit(perMinute int64) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	store := memory.NewStore()
	instance := limiter.New(store, limiter.Rate{Period: time.Minute, Limit: perMinute},
		limiter.WithTrustForwardHeader(false))

	mw := stdlibmiddleware.NewMiddleware(instance,
		stdlibmiddleware.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			logging.Logger.WithFields(logrus.Fields{
				"path":       r.URL.Path,
				"ip_address": getIPAddress(r),
			}).Warn("Rate limit reached")
			respond.ErrorWithCode(w, models.ErrCodeRateLimited, "Too many attempts, try again later", nil, nil)
		}),
		stdlibmiddleware.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			respond.ErrorWithCode(w, models.ErrCodeInternal, "Internal server error", nil, err)
		}),
	)

	return mw.Handler
}
