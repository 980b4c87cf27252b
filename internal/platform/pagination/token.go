package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type cursor struct {
	After string `json:"after"`
}

// EncodeToken turns a sort key into an opaque URL-safe page token.
func EncodeToken(after string) string {
	if after == "" {
		return ""
	}
	data, _ := json.Marshal(cursor{After: after})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken reverses EncodeToken. An empty token yields an empty key.
func DecodeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil || c.After == "" {
		return "", fmt.Errorf("%w: malformed cursor", ErrInvalidPageToken)
	}
	return c.After, nil
}
