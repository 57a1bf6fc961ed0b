package normalization

import (
	"encoding/json"
	"strings"

	"github.com/mr-tron/base58"
)

// Fixed binary identifier lengths on the wire.
const (
	pubkeyLen    = 32
	signatureLen = 64
)

// normalizeValue walks a decoded JSON value and replaces byte arrays with base58 strings.
// Any 32-byte array becomes a public key. A 64-byte array becomes a signature only when
// the key holding it ends in "signature". Everything else is copied structurally.
func normalizeValue(v any, key string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = normalizeValue(child, k)
		}
		return out

	case []any:
		if b, ok := byteArray(t); ok {
			switch {
			case len(b) == pubkeyLen:
				return base58.Encode(b)
			case len(b) == signatureLen && strings.HasSuffix(key, "signature"):
				return base58.Encode(b)
			}
		}
		out := make([]any, len(t))
		for i, child := range t {
			// Array elements have no key of their own.
			out[i] = normalizeValue(child, "")
		}
		return out

	default:
		return v
	}
}

// byteArray reports whether every element is an integer in [0, 255].
func byteArray(items []any) ([]byte, bool) {
	if len(items) != pubkeyLen && len(items) != signatureLen {
		return nil, false
	}
	out := make([]byte, len(items))
	for i, item := range items {
		n, ok := item.(json.Number)
		if !ok {
			return nil, false
		}
		v, err := n.Int64()
		if err != nil || v < 0 || v > 255 {
			return nil, false
		}
		out[i] = byte(v)
	}
	return out, true
}
