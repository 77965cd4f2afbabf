package collector

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-intel/internal/extract"
)

func TestBrowserConfig_Validate(t *testing.T) {
	cfg := BrowserConfig{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.NavTimeout)
	assert.Equal(t, 300*time.Millisecond, cfg.StableWait)

	bad := BrowserConfig{NavTimeout: -time.Second}
	assert.Error(t, bad.Validate())
}

func TestBrowserCollector_NotReadyBeforeInitialize(t *testing.T) {
	p, err := extract.NewPipeline(0)
	require.NoError(t, err)
	c, err := NewBrowserCollector(Info{ID: "browser-1"}, DefaultBrowserConfig(), p)
	require.NoError(t, err)

	assert.Equal(t, "browser", c.Info().Strategy)
	assert.False(t, c.Status().Ready)
	_, err = c.Execute(context.Background(), []string{"https://acme.test/"}, DefaultExecuteOptions())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

// Needs a Chromium binary; set DOMAIN_INTEL_BROWSER_TESTS=1 to run.
func TestBrowserCollector_Render(t *testing.T) {
	if os.Getenv("DOMAIN_INTEL_BROWSER_TESTS") == "" {
		t.Skip("browser tests disabled")
	}
	p, err := extract.NewPipeline(0)
	require.NoError(t, err)
	c, err := NewBrowserCollector(Info{ID: "browser-1"}, DefaultBrowserConfig(), p)
	require.NoError(t, err)
	require.NoError(t, c.Initialize(context.Background(), Context{}))
	defer func() { _ = c.Cleanup(context.Background()) }()

	assert.True(t, c.Status().Ready)
	res, err := c.Execute(context.Background(), []string{"data:text/html,<title>x</title>", "https://example.com/"}, DefaultExecuteOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"data:text/html,<title>x</title>"}, res.Validation.Invalid)
	assert.Equal(t, "Example Domain", res.Pages[0].Title)
}
