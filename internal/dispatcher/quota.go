package dispatcher

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Quota is the locally tracked request budget of one model.
type Quota struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Exhausted reports whether no request may be sent before ResetAt.
func (q Quota) Exhausted(now time.Time) bool {
	return q.Remaining <= 0 && now.Before(q.ResetAt)
}

var (
	remainingHeaders = []string{"X-RateLimit-Remaining", "X-RateLimit-Remaining-Requests"}
	resetHeaders     = []string{"X-RateLimit-Reset", "X-RateLimit-Reset-Requests"}

	retryDelayField = regexp.MustCompile(`"retryDelay"\s*:\s*"([\d.]+)s"`)
	retryDuration   = regexp.MustCompile(`(?i)(?:retry|try again)\s+(?:after|in)\s+((?:[\d.]+(?:h|ms|us|ns|m|s))+)\b`)
	retryPhrase     = regexp.MustCompile(`(?i)(?:retry|try again)\s+(?:after|in)\s+([\d.]+)\s*(milliseconds?|ms|seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h)?\b`)
)

// ParseRateLimitHeaders reads the remaining/reset pair most chat APIs send.
// The reset value may be a unix timestamp in seconds or milliseconds, a
// number of seconds from now, or a Go style duration ("6m0s").
func ParseRateLimitHeaders(h http.Header, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	raw := firstHeader(h, remainingHeaders)
	if raw == "" {
		return 0, time.Time{}, false
	}
	remaining, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, time.Time{}, false
	}

	if reset := strings.TrimSpace(firstHeader(h, resetHeaders)); reset != "" {
		resetAt = parseReset(reset, now)
	}
	return remaining, resetAt, true
}

func parseReset(v string, now time.Time) time.Time {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		switch {
		case n > 1e12:
			return time.UnixMilli(int64(n))
		case n > 1e9:
			return time.Unix(int64(n), 0)
		default:
			return now.Add(time.Duration(n * float64(time.Second)))
		}
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(d)
	}
	return time.Time{}
}

// ParseRetryAfter extracts a retry hint from a Retry-After header (seconds or
// HTTP date), a retry-after-ms header, or well known phrases in the body.
func ParseRetryAfter(h http.Header, body string) (time.Duration, bool) {
	if h != nil {
		if v := strings.TrimSpace(h.Get("Retry-After-Ms")); v != "" {
			if ms, err := strconv.ParseFloat(v, 64); err == nil && ms > 0 {
				return time.Duration(ms * float64(time.Millisecond)), true
			}
		}
		if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
			if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
				return time.Duration(secs * float64(time.Second)), true
			}
			if t, err := http.ParseTime(v); err == nil {
				if d := time.Until(t); d > 0 {
					return d, true
				}
			}
		}
	}

	if m := retryDelayField.FindStringSubmatch(body); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second)), true
		}
	}
	// "6m0s", "12.5s", "300ms"
	if m := retryDuration.FindStringSubmatch(body); m != nil {
		if d, err := time.ParseDuration(strings.ToLower(m[1])); err == nil && d > 0 {
			return d, true
		}
	}
	if m := retryPhrase.FindStringSubmatch(body); m != nil {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n * float64(phraseUnit(m[2]))), true
	}
	return 0, false
}

func phraseUnit(word string) time.Duration {
	word = strings.ToLower(word)
	switch {
	case word == "ms" || strings.HasPrefix(word, "milli"):
		return time.Millisecond
	case strings.HasPrefix(word, "h"):
		return time.Hour
	case strings.HasPrefix(word, "m"):
		return time.Minute
	}
	return time.Second
}

func firstHeader(h http.Header, keys []string) string {
	if h == nil {
		return ""
	}
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}
