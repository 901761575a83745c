package logger

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Sanitizer masks credentials and personal data before records are written.
//
// SanitizeArgs masks values only under sensitive keys ("token", "secret", ...).
// Secrets embedded in the value of an innocuous key are caught only if one of
// the message rules happens to match them, so callers should log tokens under
// a descriptive key or not at all.
type Sanitizer struct {
	mu    sync.RWMutex
	rules []SanitizeRule
}

// SanitizeRule rewrites every match of Pattern with Replacement
type SanitizeRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// NewSanitizer returns a sanitizer with the default rule set
func NewSanitizer() *Sanitizer {
	return &Sanitizer{rules: defaultSanitizeRules()}
}

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"token", "secret", "api_key", "apikey",
	"credential", "auth", "device_code",
}

func defaultSanitizeRules() []SanitizeRule {
	return []SanitizeRule{
		{regexp.MustCompile(`(?i)password=\S+`), "password=***"},
		{regexp.MustCompile(`(?i)passwd=\S+`), "passwd=***"},
		{regexp.MustCompile(`(?i)pwd=\S+`), "pwd=***"},

		// OAuth material: query strings, JSON bodies and headers
		{regexp.MustCompile(`(?i)token=\S+`), "token=***"},
		{regexp.MustCompile(`(?i)([?&])code=[^&\s]+`), "${1}code=***"},
		{regexp.MustCompile(`(?i)"(access_token|refresh_token|id_token)"\s*:\s*"[^"]*"`), `"$1":"***"`},
		{regexp.MustCompile(`(?i)bearer\s+\S+`), "bearer ***"},
		{regexp.MustCompile(`(?i)api[_-]?key=\S+`), "api_key=***"},

		// AWS access key ids
		{regexp.MustCompile(`\b(AKIA|ASIA)[0-9A-Z]{16}\b`), "$1****************"},

		// Windows user profiles, local and UNC
		{regexp.MustCompile(`(?i)[A-Z]:\\Users\\[^\\]+`), "***:\\Users\\***"},
		{regexp.MustCompile(`(?i)\\\\[^\\]+\\[^\\]+\\Users\\[^\\]+`), "\\\\***\\***\\Users\\***"},

		// Unix home directories
		{regexp.MustCompile(`/home/[^/]+`), "/home/***"},
		{regexp.MustCompile(`/Users/[^/]+`), "/Users/***"},

		// Email local part, keeping a short prefix
		{regexp.MustCompile(`([a-zA-Z0-9._%+-]{1,3})[a-zA-Z0-9._%+-]*@`), "$1***@"},
	}
}

// Sanitize applies every rule to input
func (s *Sanitizer) Sanitize(input string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.rules {
		input = rule.Pattern.ReplaceAllString(input, rule.Replacement)
	}
	return input
}

// SanitizeArgs masks the values of sensitive keys in a key/value list.
// The input slice is not modified.
func (s *Sanitizer) SanitizeArgs(args []any) []any {
	if len(args) == 0 {
		return args
	}

	result := make([]any, len(args))
	copy(result, args)

	for i := 0; i+1 < len(result); i += 2 {
		key, ok := result[i].(string)
		if !ok || !isSensitiveKey(key) {
			continue
		}
		switch v := result[i+1].(type) {
		case string:
			result[i+1] = maskValue(v)
		case error:
			result[i+1] = maskValue(v.Error())
		case fmt.Stringer:
			result[i+1] = maskValue(v.String())
		}
	}

	return result
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sk := range sensitiveKeys {
		if strings.Contains(lower, sk) {
			return true
		}
	}
	return false
}

// maskValue keeps at most the first and last character
func maskValue(value string) string {
	switch {
	case len(value) <= 2:
		return "***"
	case len(value) <= 8:
		return value[:1] + "***"
	default:
		return value[:1] + "***" + value[len(value)-1:]
	}
}

// AddRule appends a custom rule
func (s *Sanitizer) AddRule(pattern string, replacement string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, SanitizeRule{Pattern: re, Replacement: replacement})
	return nil
}
