package collector

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brotliBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeBody(t *testing.T) {
	const html = "<html><body>hello</body></html>"

	out, err := decodeBody("br", brotliBytes(t, html), 0)
	require.NoError(t, err)
	assert.Equal(t, html, string(out))

	out, err = decodeBody("gzip", gzipBytes(t, html), 0)
	require.NoError(t, err)
	assert.Equal(t, html, string(out))

	out, err = decodeBody("", []byte(html), 0)
	require.NoError(t, err)
	assert.Equal(t, html, string(out))

	out, err = decodeBody("zstd", []byte(html), 0)
	require.NoError(t, err)
	assert.Equal(t, html, string(out))
}

func TestDecodeBody_Limit(t *testing.T) {
	out, err := decodeBody("br", brotliBytes(t, "0123456789"), 4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(out))
}

func TestDecodeBody_Corrupt(t *testing.T) {
	_, err := decodeBody("gzip", []byte("not gzip"), 0)
	assert.Error(t, err)
}
