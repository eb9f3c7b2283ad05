package fetch

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/tidwall/gjson"

	"github.com/mihaisavezi/polychat/internal/chat"
)

// maxBodySize bounds how much of a vendor response is read.
const maxBodySize = 32 << 20

// DecompressBody returns a reader that undoes the response Content-Encoding.
func DecompressBody(resp *http.Response) (io.Reader, error) {
	var bodyReader io.Reader = resp.Body

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}

		bodyReader = gzipReader
	case "br":
		bodyReader = brotli.NewReader(resp.Body)
	}

	return bodyReader, nil
}

// ReadBody decompresses and reads the whole response body, then closes it.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	reader, err := DecompressBody(resp)
	if err != nil {
		return nil, err
	}

	if closer, ok := reader.(io.Closer); ok && reader != io.Reader(resp.Body) {
		defer closer.Close()
	}

	return io.ReadAll(io.LimitReader(reader, maxBodySize))
}

// SafeJSONParse validates a vendor body before anything indexes into it.
// An empty body and a truncated body are reported as distinct parse errors.
func SafeJSONParse(body []byte, provider string) (gjson.Result, error) {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) == 0 {
		return gjson.Result{}, &chat.Error{
			Kind:    chat.KindParse,
			Message: fmt.Sprintf("Received an empty response from %s. Please try again.", displayName(provider)),
		}
	}

	if !gjson.ValidBytes(trimmed) {
		return gjson.Result{}, &chat.Error{
			Kind:    chat.KindParse,
			Message: fmt.Sprintf("Received a partial response from %s; the response was cut off. Try a smaller request or break it into parts.", displayName(provider)),
		}
	}

	return gjson.ParseBytes(trimmed), nil
}

func displayName(provider string) string {
	if provider == "" {
		return "the provider"
	}

	return provider
}
