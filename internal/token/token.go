// Package token encodes target URLs into opaque path segments and back.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrMalformedToken = errors.New("malformed token")

// Encode returns a path-segment-safe token for the given URL. The raw URL
// alphabet avoids '/', '+' and padding characters.
func Encode(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

// Decode reverses Encode. Padded input is accepted since some clients
// normalize tokens produced by older encoders.
func Decode(tok string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(tok, "="))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrMalformedToken)
	}
	return string(decoded), nil
}
