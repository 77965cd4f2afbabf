package collector

import "go.uber.org/zap"

// Progress is one notification about a running collection.
type Progress struct {
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	Message     string `json:"message"`
	CollectorID string `json:"collector_id"`
}

// Reporter receives progress. Implementations must not block.
type Reporter interface {
	Report(p Progress)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(p Progress)

// Report calls f(p).
func (f ReporterFunc) Report(p Progress) { f(p) }

// NopReporter discards progress.
type NopReporter struct{}

// Report does nothing.
func (NopReporter) Report(Progress) {}

// LogReporter writes progress to a zap logger at debug level.
type LogReporter struct {
	Log *zap.Logger
}

// Report logs p.
func (r LogReporter) Report(p Progress) {
	log := r.Log
	if log == nil {
		log = zap.L()
	}
	log.Debug("collector progress",
		zap.String("collector", p.CollectorID),
		zap.Int("current", p.Current),
		zap.Int("total", p.Total),
		zap.String("message", p.Message),
	)
}

// MultiReporter fans progress out to several reporters.
type MultiReporter []Reporter

// Report forwards p to each reporter.
func (m MultiReporter) Report(p Progress) {
	for _, r := range m {
		if r != nil {
			r.Report(p)
		}
	}
}
