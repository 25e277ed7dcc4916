package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// runContext returns a context for work that outlives the request, such as
// a background execute run. It keeps the request id for log correlation
// and is bounded by timeout instead of the client connection.
func runContext(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := context.Background()
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		ctx = context.WithValue(ctx, middleware.RequestIDKey, reqID)
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
