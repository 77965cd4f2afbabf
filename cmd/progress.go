package main

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/sells-group/domain-intel/internal/collector"
)

// barReporter renders collector progress as a terminal bar, one bar per
// collector run.
type barReporter struct {
	w io.Writer

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	current string
}

func newBarReporter(w io.Writer) *barReporter {
	return &barReporter{w: w}
}

// Report advances the bar for p.CollectorID, starting a new bar when the
// collector changes.
func (r *barReporter) Report(p collector.Progress) {
	if p.Total <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil || r.current != p.CollectorID {
		r.finishLocked()
		r.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetWriter(r.w),
			progressbar.OptionSetDescription(p.CollectorID),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		r.current = p.CollectorID
	}
	if r.bar.GetMax() != p.Total {
		r.bar.ChangeMax(p.Total)
	}
	_ = r.bar.Set(p.Current)
}

// Finish completes the active bar, if any.
func (r *barReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked()
}

func (r *barReporter) finishLocked() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	_, _ = io.WriteString(r.w, "\n")
	r.bar = nil
	r.current = ""
}
