package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	errx "github.com/retention-intel/server/internal/core/error"
	logx "github.com/retention-intel/server/pkg/logger"
)

// basic safety limits to avoid pathological model output
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200
)

// ErrNoJSONObject is returned when the content holds no JSON object.
var ErrNoJSONObject = fmt.Errorf("no json object in model output")

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop a language tag such as "json"
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseJSONObject decodes the first JSON object found in model output.
// Code fences and leading prose are tolerated.
func ParseJSONObject(content string) (obj map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "json_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("json parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			obj = nil
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "json_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	if !utf8.ValidString(content) {
		return nil, fmt.Errorf("model output invalid utf8")
	}

	s := StripCodeFence(content)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil, ErrNoJSONObject
	}

	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("decode json object near %q: %w", SafeSnippet(s), err)
	}
	return obj, nil
}

// Truthy coerces a loosely typed JSON value to a boolean.
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return strings.EqualFold(strings.TrimSpace(t), "yes")
		}
		return b
	case float64:
		return t != 0
	default:
		return false
	}
}

// SafeSnippet trims s for inclusion in errors and logs.
func SafeSnippet(s string) string {
	if len(s) <= maxErrSnippet {
		return s
	}
	cut := maxErrSnippet
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
