package helpers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

// CurlCommand renders req as a cURL command for debug logs. Values of the
// named headers are masked, and so is the body when redactBody is set.
func CurlCommand(req *http.Request, redactBody bool, redactHeaders ...string) (string, error) {
	var cmd []string
	cmd = append(cmd, "curl", "-X", req.Method, fmt.Sprintf("'%s'", req.URL.String()))

	keys := make([]string, 0, len(req.Header))
	for key := range req.Header {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		mask := slices.ContainsFunc(redactHeaders, func(h string) bool {
			return http.CanonicalHeaderKey(h) == key
		})
		for _, value := range req.Header[key] {
			if mask {
				value = redacted
			}
			cmd = append(cmd, "-H", fmt.Sprintf("'%s: %s'", key, value))
		}
	}

	if req.Body != nil && req.Body != http.NoBody {
		body := new(bytes.Buffer)
		if _, err := body.ReadFrom(req.Body); err != nil {
			return "", fmt.Errorf("failed to read request body: %w", err)
		}
		// Restore the body so it can be read again
		req.Body = io.NopCloser(bytes.NewReader(body.Bytes()))

		if body.Len() > 0 {
			data := body.String()
			if redactBody {
				data = redacted
			}
			cmd = append(cmd, "-d", fmt.Sprintf("'%s'", data))
		}
	}

	return strings.Join(cmd, " "), nil
}
