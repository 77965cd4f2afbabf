package collector

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"cloudflare ray", 403, http.Header{"Cf-Ray": {"abc123"}}, "", BlockCloudflare},
		{"cloudflare server", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"challenge body", 200, http.Header{}, "<html>Checking your browser before accessing</html>", BlockCloudflare},
		{"recaptcha widget", 200, http.Header{}, `<div class="g-recaptcha" data-sitekey="x"></div>`, BlockCaptcha},
		{"js shell", 200, http.Header{}, `<html><noscript>Please enable JavaScript to view this site.</noscript><div id="root"></div></html>`, BlockJSShell},
		{"normal page", 200, http.Header{}, "<html><body><h1>Acme</h1></body></html>", BlockNone},
		{"plain 403", 403, http.Header{}, "forbidden", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, got := DetectBlock(&http.Response{StatusCode: tt.status, Header: tt.header}, []byte(tt.body))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != BlockNone, blocked)
		})
	}
}

func TestDetectBlock_LargeNoscriptPage(t *testing.T) {
	body := `<html><noscript>enable javascript for the full experience</noscript>` + strings.Repeat("<p>content</p>", 300) + `</html>`
	blocked, _ := DetectBlock(&http.Response{StatusCode: 200, Header: http.Header{}}, []byte(body))
	assert.False(t, blocked)
}

func TestDetectBlock_NilResponse(t *testing.T) {
	blocked, bt := DetectBlock(nil, []byte("captcha"))
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}
