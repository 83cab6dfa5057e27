package evaluation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// RevisionID fingerprints the definition: the first 12 hex chars of the
// SHA-256 of its canonical JSON. The encoding is byte-for-byte the one
// produced by json.dumps(payload, sort_keys=True) with default separators
// and ASCII escaping, so revisions recorded by earlier scoring runs stay
// comparable.
func (s ScoringFunction) RevisionID() string {
	var schema any = s.Schema
	if s.Schema == nil {
		schema = nil
	}
	payload := map[string]any{
		"id":              s.ID,
		"version":         s.Version,
		"prompt_template": s.PromptTemplate,
		"schema":          schema,
		"model":           s.Model,
	}
	var b strings.Builder
	if err := writeCanonical(&b, payload); err != nil {
		return ""
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:12]
}

func writeCanonical(b *strings.Builder, v any) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		writeASCIIString(b, t)
	case json.Number:
		return writeNumber(b, t)
	case float64:
		return writeFloat(b, t)
	case int:
		b.WriteString(strconv.Itoa(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case []string:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = item
		}
		return writeCanonical(b, items)
	case []any:
		b.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writeCanonical(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeASCIIString(b, k)
			b.WriteString(": ")
			if err := writeCanonical(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return fmt.Errorf("canonical json: unsupported type %T", v)
	}
	return nil
}

// writeNumber keeps integer literals as written and renders anything with a
// fraction or exponent as a float.
func writeNumber(b *strings.Builder, n json.Number) error {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		b.WriteString(s)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return err
	}
	return writeFloat(b, f)
}

// writeFloat renders the shortest round-trip form: fixed notation for
// decimal exponents in [-4, 16), scientific otherwise, always with a
// fraction or exponent.
func writeFloat(b *strings.Builder, f float64) error {
	switch {
	case math.IsNaN(f):
		b.WriteString("NaN")
		return nil
	case math.IsInf(f, 1):
		b.WriteString("Infinity")
		return nil
	case math.IsInf(f, -1):
		b.WriteString("-Infinity")
		return nil
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil {
		return err
	}
	if exp < -4 || exp >= 16 {
		b.WriteString(sci)
		return nil
	}
	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(fixed, ".") {
		fixed += ".0"
	}
	b.WriteString(fixed)
	return nil
}

func writeASCIIString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r < 0x7f:
				b.WriteRune(r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(b, `\u%04x\u%04x`, hi, lo)
			default:
				fmt.Fprintf(b, `\u%04x`, r)
			}
		}
	}
	b.WriteByte('"')
}
