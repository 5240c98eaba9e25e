package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/raceseries/pkg/logger"
	"github.com/okian/raceseries/pkg/metrics"
)

// MetricsMiddleware records request counts, latency and failures per route.
// Failures are labelled with the error code written by writeError, so a
// blocked delete and a duplicate show up apart even though both are 409.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		ms := float64(time.Since(start).Microseconds()) / 1000.0
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)

		if rec.status < http.StatusBadRequest {
			return
		}
		code := rec.errorCode
		if code == "" {
			code = statusClass(rec.status)
		}
		metrics.RecordErrorByEndpoint(endpoint, r.Method, code)
		metrics.RecordErrorByComponent("http", code)
		if rec.status >= http.StatusInternalServerError {
			logger.Named("api").Error(r.Context(), "request failed",
				logger.String("endpoint", endpoint),
				logger.String("method", r.Method),
				logger.Int("status", rec.status),
				logger.String("code", code),
				logger.Float64("ms", ms))
		}
	}
}

// statusClass labels failures that did not go through writeError, such as
// mux 404 and 405 answers.
func statusClass(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "client_error"
	}
}

// statusRecorder captures the status and the error code of a response.
type statusRecorder struct {
	http.ResponseWriter
	status    int
	errorCode string
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) setErrorCode(code string) { rw.errorCode = code }

// errorCoder is implemented by statusRecorder.
type errorCoder interface{ setErrorCode(code string) }
