package research

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// firstObject matches the first brace-delimited span with no nested braces.
var firstObject = regexp.MustCompile(`(?s)\{(?:[^{}]|\\.)*?\}`)

// ParseDecision turns raw model output into a Decision. It never fails:
//
//   - strict JSON is used as is;
//   - otherwise the first {...} span is decoded;
//   - output that looks like broken JSON becomes a search for RETRY;
//   - output with no braces at all is taken as the answer.
func ParseDecision(raw string) protocol.Decision {
	if d, ok := decodeDecision(raw); ok {
		return d
	}
	if m := firstObject.FindString(raw); m != "" {
		if d, ok := decodeDecision(m); ok {
			return d
		}
		return retryDecision()
	}
	if strings.ContainsAny(raw, "{}") {
		return retryDecision()
	}
	return protocol.Decision{Action: protocol.ActionAnswer, Query: strings.TrimSpace(raw)}
}

func retryDecision() protocol.Decision {
	return protocol.Decision{Action: protocol.ActionSearch, Query: protocol.RetryQuery}
}

func decodeDecision(s string) (protocol.Decision, bool) {
	var d protocol.Decision
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return d, false
	}
	return d, true
}
