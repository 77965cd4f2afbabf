//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/config"
	"github.com/sells-group/domain-intel/internal/extract"
	"github.com/sells-group/domain-intel/internal/lifecycle"
	"github.com/sells-group/domain-intel/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{
		HTTP:      collector.DefaultHTTPConfig(),
		Crawl:     collector.DefaultCrawlConfig(),
		Browser:   collector.DefaultBrowserConfig(),
		Lifecycle: lifecycle.DefaultConfig(),
		Extract:   config.ExtractConfig{Options: extract.DefaultOptions(), CacheSize: 16},
	}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "test.db")
	return c
}

func TestBuildCollectors(t *testing.T) {
	c := testConfig(t)
	pipeline, err := extract.NewPipeline(16)
	require.NoError(t, err)

	cols, err := buildCollectors(c, []string{"crawl", " HTTP ", "crawl", "browser"}, pipeline)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "crawl", cols[0].Info().ID)
	assert.Equal(t, "http", cols[1].Info().ID)
	assert.Equal(t, "browser", cols[2].Info().ID)
}

func TestBuildCollectors_Errors(t *testing.T) {
	c := testConfig(t)
	pipeline, err := extract.NewPipeline(16)
	require.NoError(t, err)

	_, err = buildCollectors(c, []string{"ftp"}, pipeline)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")

	_, err = buildCollectors(c, []string{"", " "}, pipeline)
	require.Error(t, err)
}

func TestInitEnv_WithStore(t *testing.T) {
	ctx := context.Background()
	env, err := initEnv(ctx, testConfig(t), []string{"http"}, true)
	require.NoError(t, err)
	defer env.Close(ctx)

	require.NotNil(t, env.Store)
	require.NotNil(t, env.Manager)
	require.NotNil(t, env.Metrics)
	require.Len(t, env.Collectors, 1)

	list, err := env.Store.ListSessions(ctx, store.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInitEnv_WithoutStore(t *testing.T) {
	ctx := context.Background()
	env, err := initEnv(ctx, testConfig(t), []string{"http", "crawl"}, false)
	require.NoError(t, err)
	defer env.Close(ctx)

	assert.Nil(t, env.Store)
	assert.Len(t, env.Collectors, 2)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http", "crawl"}, splitList("http, crawl,,"))
	assert.Nil(t, splitList(""))
}
