package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidInput reports a signing call with required inputs missing.
var ErrInvalidInput = errors.New("invalid signing input")

// Sign computes the double SHA-256 request signature required by the Bitunix
// API. Query parameters are canonicalized by sorting keys in ascending ASCII
// order and concatenating key+value pairs with no separator; a non-empty body
// is compacted first. The first hash covers nonce+timestamp+apiKey+query+body,
// the second covers the hex digest plus the secret key.
func Sign(apiKey, secretKey, nonce, timestamp string, params map[string]string, body []byte) (string, error) {
	if apiKey == "" || secretKey == "" {
		return "", fmt.Errorf("%w: api key and secret key must be provided", ErrInvalidInput)
	}
	if nonce == "" || timestamp == "" {
		return "", fmt.Errorf("%w: nonce and timestamp must be provided", ErrInvalidInput)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var query strings.Builder
	for _, k := range keys {
		query.WriteString(k)
		query.WriteString(params[k])
	}

	compactBody := ""
	if len(body) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, body); err != nil {
			return "", fmt.Errorf("%w: body is not valid JSON: %v", ErrInvalidInput, err)
		}
		compactBody = buf.String()
	}

	digest := sha256Hex(nonce + timestamp + apiKey + query.String() + compactBody)
	return sha256Hex(digest + secretKey), nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// newNonce returns the per-request random nonce (UUIDv4 hex, dashes stripped).
func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
