package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyOperation is returned when a key is built without an operation name.
var ErrEmptyOperation = errors.New("storage: key operation is required")

// Key is the canonical encoding of an operation and its parameters.
// Map keys are serialized in sorted order at every level, so equal
// parameter sets always produce equal keys.
type Key string

// NewKey builds the key for op with params. Parameter values must be
// JSON-encodable and should only carry the semantic inputs of the request.
func NewKey(op string, params map[string]any) (Key, error) {
	if op == "" {
		return "", ErrEmptyOperation
	}
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(struct {
		Op     string         `json:"op"`
		Params map[string]any `json:"params"`
	}{op, params})
	if err != nil {
		return "", fmt.Errorf("storage: encode key for %s: %w", op, err)
	}
	return Key(b), nil
}

// ResponseKey hashes a request URL so that credentials embedded in query
// strings never end up in a cache key.
func ResponseKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
