package gateways

import (
	"crypto/hmac"
	"encoding/hex"
	"hash"
	"net/url"
	"sort"
	"strings"
)

// Signer produces keyed digests over a canonical parameter string: keys sorted
// lexicographically, `key=value` pairs joined with `&`.
type Signer struct {
	secret []byte
	hash   func() hash.Hash
	// escape url-encodes values before joining when set.
	escape bool
}

// NewSigner builds a signer for the given hash constructor.
func NewSigner(secret string, h func() hash.Hash, escapeValues bool) *Signer {
	return &Signer{secret: []byte(secret), hash: h, escape: escapeValues}
}

// Canonical renders params in signing order. Empty values and the excluded
// keys are skipped.
func (s *Signer) Canonical(params url.Values, exclude ...string) string {
	skip := make(map[string]struct{}, len(exclude))
	for _, key := range exclude {
		skip[key] = struct{}{}
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		if _, ok := skip[key]; ok {
			continue
		}
		if params.Get(key) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		value := params.Get(key)
		if s.escape {
			key = url.QueryEscape(key)
			value = url.QueryEscape(value)
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC of data.
func (s *Signer) Sign(data string) string {
	mac := hmac.New(s.hash, s.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignParams is Sign(Canonical(params, exclude...)).
func (s *Signer) SignParams(params url.Values, exclude ...string) string {
	return s.Sign(s.Canonical(params, exclude...))
}

// Verify compares a provided signature against data in constant time. Hex
// case is ignored.
func (s *Signer) Verify(data, provided string) bool {
	if len(s.secret) == 0 || provided == "" {
		return false
	}
	expected := s.Sign(data)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(provided))))
}
