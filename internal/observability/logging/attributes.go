package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"
)

// RedactedStringURL is a string containing a URL for safe logging
type RedactedStringURL string

// LogValue implements slog.LogValuer to avoid revealing passwords
func (s RedactedStringURL) LogValue() slog.Value {
	u, err := url.Parse(string(s))
	if err != nil {
		return slog.StringValue(string(s))
	}
	return slog.StringValue(u.Redacted())
}

// RedactStringURL returns a safely loggable URL string
func RedactStringURL(s string) slog.LogValuer {
	return RedactedStringURL(s)
}

// Fingerprint is credential material rendered as a short digest, so two log
// lines about the same credential can be correlated without printing it.
type Fingerprint string

// LogValue implements slog.LogValuer
func (f Fingerprint) LogValue() slog.Value {
	if f == "" {
		return slog.StringValue("")
	}
	sum := sha256.Sum256([]byte(f))
	return slog.StringValue("sha256:" + hex.EncodeToString(sum[:4]))
}

// RedactedList is a comma separated list of origins or hosts, logged trimmed.
type RedactedList []string

// LogValue implements slog.LogValuer
func (l RedactedList) LogValue() slog.Value {
	out := make([]string, 0, len(l))
	for _, s := range l {
		out = append(out, RedactedStringURL(strings.TrimSpace(s)).LogValue().String())
	}
	return slog.StringValue(strings.Join(out, ","))
}
