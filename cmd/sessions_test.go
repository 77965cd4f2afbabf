//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/store"
)

func TestFormatSessionsList(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	list := []store.SessionSummary{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Domain:    "acme.test",
			Status:    model.SessionActive,
			Pages:     12,
			Runs:      3,
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Domain:    "a-really-long-domain-name-for-testing.example",
			Status:    model.SessionCompleted,
			Pages:     1,
			Runs:      1,
			CreatedAt: now.Add(-2 * time.Hour),
			UpdatedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatSessionsList(&buf, list)

	output := buf.String()
	assert.Contains(t, output, "DOMAIN")
	assert.Contains(t, output, "UPDATED")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "acme.test")
	assert.Contains(t, output, "active")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "2026-03-02 09:15")
	assert.Contains(t, output, "a-really-long-domain-name-f...")
}

func TestFormatSessionsList_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatSessionsList(&buf, nil)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "STATUS")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}
