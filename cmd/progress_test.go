//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-intel/internal/collector"
)

func TestBarReporter_TracksCollector(t *testing.T) {
	var buf bytes.Buffer
	r := newBarReporter(&buf)

	r.Report(collector.Progress{CollectorID: "http", Current: 1, Total: 3})
	require.NotNil(t, r.bar)
	assert.Equal(t, "http", r.current)
	assert.Equal(t, 3, r.bar.GetMax())

	r.Report(collector.Progress{CollectorID: "http", Current: 2, Total: 5})
	assert.Equal(t, 5, r.bar.GetMax())

	r.Report(collector.Progress{CollectorID: "crawl", Current: 1, Total: 2})
	assert.Equal(t, "crawl", r.current)
	assert.Equal(t, 2, r.bar.GetMax())

	r.Finish()
	assert.Nil(t, r.bar)
	assert.Contains(t, buf.String(), "http")
	assert.Contains(t, buf.String(), "crawl")
}

func TestBarReporter_IgnoresUnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	r := newBarReporter(&buf)

	r.Report(collector.Progress{CollectorID: "http", Current: 1})
	assert.Nil(t, r.bar)

	r.Finish()
	assert.Empty(t, buf.String())
}

func TestBarReporter_ConcurrentReports(t *testing.T) {
	var buf bytes.Buffer
	r := newBarReporter(&buf)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			r.Report(collector.Progress{CollectorID: "http", Current: n, Total: 4})
		}(i + 1)
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	r.Finish()
	assert.Nil(t, r.bar)
}
