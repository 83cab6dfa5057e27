package guardrail

import "strings"

// Redact applies every PII policy in order to the progressively redacted
// text and returns the result with per-label match counts.
func (p *Policy) Redact(text string) (string, map[string]int) {
	counts := map[string]int{}
	for _, pol := range p.PII {
		n := len(pol.Pattern.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		counts[pol.Label] += n
		text = pol.Pattern.ReplaceAllLiteralString(text, pol.Placeholder)
	}
	return text, counts
}

// DetectPII returns the names of policies matching text, in policy order.
func (p *Policy) DetectPII(text string) []string {
	var hits []string
	for _, pol := range p.PII {
		if pol.Pattern.MatchString(text) {
			hits = append(hits, pol.Name)
		}
	}
	return hits
}

// KeywordVerdict runs the substring checks.
func (p *Policy) KeywordVerdict(text string) RiskVerdict {
	lowered := strings.ToLower(text)
	return RiskVerdict{
		Jailbreak: containsAny(lowered, p.JailbreakKeywords),
		Threat:    containsAny(lowered, p.ThreatKeywords),
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
