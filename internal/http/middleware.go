package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/metrics"

	"go.uber.org/zap"
)

// statusRecorder 记录写出的状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument 以注册时的 pattern 作为 route 标签，避免 id 进入指标基数
func instrument(route string, logger *zap.Logger, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Handler panic",
					zap.String("route", route),
					zap.String("method", req.Method),
					zap.Any("panic", p),
				)
				writeProblem(rec, http.StatusInternalServerError, "", "internal error")
			}
			metrics.HTTPRequestsTotal.WithLabelValues(route, req.Method, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
		}()
		h(rec, req)
	}
}
