package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// unmatchedRoute labels requests no mux pattern matched, which keeps the
// route label bounded.
const unmatchedRoute = "other"

// MetricsMiddleware records lfc_requests_total and
// lfc_request_duration_seconds for every request. A response sent as
// text/event-stream counts toward lfc_streaming_connections_active until
// the handler returns.
//
// next is expected to be (or wrap) an http.ServeMux: the route label is the
// path of the pattern it matched.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if rec.streaming {
				StreamingConnections.Dec()
			}
		}()

		next.ServeHTTP(rec, r)

		route := routeLabel(r.Pattern)
		class := strconv.Itoa(rec.status/100) + "xx"
		RequestsTotal.WithLabelValues(r.Method, class, route).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routeLabel drops the method from a "METHOD /path" pattern. The empty
// pattern and the "/" catch-all are both unmatched.
func routeLabel(pattern string) string {
	if pattern == "" || pattern == "/" {
		return unmatchedRoute
	}
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

// recorder captures the status code and notices event streams.
type recorder struct {
	http.ResponseWriter
	status    int
	wrote     bool
	streaming bool
}

func (w *recorder) WriteHeader(status int) {
	if !w.wrote {
		w.wrote = true
		w.status = status
		if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
			w.streaming = true
			StreamingConnections.Inc()
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *recorder) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *recorder) Flush() {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *recorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
