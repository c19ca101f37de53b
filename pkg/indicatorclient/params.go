package indicatorclient

import (
	"net/url"
	"strings"
)

type param struct {
	key   string
	value string
}

// params is an insertion-ordered query string; url.Values sorts by key.
type params []param

func (p params) add(key, value string) params {
	return append(p, param{key: key, value: value})
}

// Encode renders the params as a URL-encoded query string without the leading '?'.
func (p params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.value))
	}
	return b.String()
}
