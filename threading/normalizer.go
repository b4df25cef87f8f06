package threading

import (
	"regexp"
	"strings"
)

// subjectMarkers are stripped before subjects are compared for equality.
// Covers the English RE:/FW: prefixes, their Korean counterparts (회신:
// reply, 전달: forward), bracketed counters, and two markers that can appear
// mid-subject: the 업데이트 (update) marker and the "mentioned you in"
// notification fragment.
var subjectMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(RE:\s*)+`),
	regexp.MustCompile(`(?i)^(FW:\s*)+`),
	regexp.MustCompile(`^(회신:\s*)+`),
	regexp.MustCompile(`^(전달:\s*)+`),
	regexp.MustCompile(`^\[\d+\]\s*`),
	regexp.MustCompile(`^\(\d+\)\s*`),
	regexp.MustCompile(`^\(#\d+\)\s*`),
	regexp.MustCompile(`^\(\d+\)\s*:`),
	regexp.MustCompile(`업데이트:?\s*`),
	regexp.MustCompile(`(?i)mentioned you in\s*`),
}

// replyMarkers is the narrower set used to flag a subject as a reply for
// diagnostics. Thread partitioning itself relies on the In-Reply-To header,
// not on subject text.
var replyMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^RE:\s*`),
	regexp.MustCompile(`^회신:\s*`),
	regexp.MustCompile(`업데이트:\s*`),
	regexp.MustCompile(`(?i)mentioned you in`),
}

// Normalize strips reply/forward/update markers and leading counters from a
// subject line so textually equivalent subjects compare equal. Markers are
// removed repeatedly until none remain, then the result is trimmed. The
// function is pure and idempotent; an empty subject normalizes to "".
func Normalize(subject string) string {
	normalized := strings.TrimSpace(subject)
	for {
		next := normalized
		for _, marker := range subjectMarkers {
			next = marker.ReplaceAllString(next, "")
		}
		next = strings.TrimSpace(next)
		if next == normalized {
			return normalized
		}
		normalized = next
	}
}

// IsReply reports whether the raw, un-normalized subject carries a reply or
// update marker. Diagnostic only.
func IsReply(subject string) bool {
	if subject == "" {
		return false
	}
	for _, marker := range replyMarkers {
		if marker.MatchString(subject) {
			return true
		}
	}
	return false
}
