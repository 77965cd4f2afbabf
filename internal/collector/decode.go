package collector

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
)

// decodeBody undoes a Content-Encoding. Unknown encodings pass through.
func decodeBody(encoding string, body []byte, limit int64) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "decode gzip")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case "deflate":
		fl := flate.NewReader(bytes.NewReader(body))
		defer func() { _ = fl.Close() }()
		r = fl
	default:
		return body, nil
	}
	if limit > 0 {
		r = io.LimitReader(r, limit)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(err, "decode %s", encoding)
	}
	return out, nil
}
