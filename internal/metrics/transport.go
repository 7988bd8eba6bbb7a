package metrics

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// roundTripper wraps an http.RoundTripper to record and log each request.
type roundTripper struct {
	next   http.RoundTripper
	reg    *Registry
	logger *zap.Logger
}

// Transport returns a RoundTripper that records request metrics in reg and
// logs each request at debug level. A nil next uses http.DefaultTransport.
func Transport(reg *Registry, logger *zap.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &roundTripper{next: next, reg: reg, logger: logger}
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	rt.reg.RecordRequest(req.URL.Host, status, duration.Seconds())

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Int("status", status),
		zap.Float64("duration_ms", float64(duration.Microseconds())/1000),
	}
	if err != nil {
		rt.logger.Warn("http request failed", append(fields, zap.Error(err))...)
	} else {
		rt.logger.Debug("http request", fields...)
	}
	return resp, err
}
