package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

const masked = "***"

var defaultSensitiveKeys = []string{"token", "password", "passphrase", "secret", "authorization"}

var (
	bearerPattern  = regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`)
	urlUserPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s]+@`)
)

// masker hides credentials in log attributes.
type masker struct {
	keys []string
}

func newMasker(extra []string) *masker {
	keys := append([]string(nil), defaultSensitiveKeys...)
	for _, k := range extra {
		keys = append(keys, strings.ToLower(k))
	}
	return &masker{keys: keys}
}

func (m *masker) sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, k := range m.keys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}

// replaceAttr is a slog.HandlerOptions.ReplaceAttr function.
func (m *masker) replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if m.sensitive(a.Key) {
		return slog.String(a.Key, masked)
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, MaskString(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, MaskString(err.Error()))
		}
	}
	return a
}

// MaskString strips credentials from URLs and bearer tokens in s.
func MaskString(s string) string {
	if !strings.Contains(s, "@") && !strings.Contains(s, "Bearer") {
		return s
	}
	s = urlUserPattern.ReplaceAllString(s, "${1}"+masked+"@")
	return bearerPattern.ReplaceAllString(s, "Bearer "+masked)
}
