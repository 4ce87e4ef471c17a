package metrics

import (
	"strconv"
	"time"
)

// Observer records backend lifecycle events. It satisfies backend.Observer.
type Observer struct{}

func (Observer) LoginFinished(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	BackendLoginsTotal.WithLabelValues(result).Inc()
	BackendLoginDuration.Observe(d.Seconds())
}

func (Observer) SessionExpired() {
	BackendSessionExpiredTotal.Inc()
}

func (Observer) RequestFinished(surface string, statusCode int, d time.Duration) {
	BackendRequestsTotal.WithLabelValues(surface, statusClass(statusCode)).Inc()
	BackendRequestDuration.WithLabelValues(surface).Observe(d.Seconds())
}

// statusClass collapses a status code to "2xx".."5xx", or "error" when no
// response arrived.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}
