package metrics

import "time"

// ToolFinished records one tool invocation. outcome is "ok" or an error kind.
func ToolFinished(tool, outcome string, d time.Duration) {
	ToolInvocationsTotal.WithLabelValues(tool, outcome).Inc()
	ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ExportWritten records the size of a stored export artifact.
func ExportWritten(n int) {
	ExportBytesTotal.Add(float64(n))
}

// TaskFinished records one background task run.
func TaskFinished(task string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	TaskRunsTotal.WithLabelValues(task, result).Inc()
	TaskDuration.WithLabelValues(task).Observe(d.Seconds())
}
