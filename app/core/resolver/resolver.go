package resolver

import (
	"regexp"
	"strings"

	"concierge/app/pkg/types"
)

// Resolver matches a natural-language reply reference ("reply to Alex
// about the contract") against recent inbox candidates. Scoring is
// deterministic; nothing below the acceptance threshold is ever selected.

const (
	// AcceptScore is the minimum score for a match to be reported at all.
	AcceptScore = 30
	// AutoSelectConfidence gates silent selection: at or below this the
	// candidates are surfaced for explicit user choice instead.
	AutoSelectConfidence = 0.5
	// CandidateLimit is how many candidates are surfaced for selection.
	CandidateLimit = 5
)

type MatchResult struct {
	Matched    *types.CandidateEmail
	Confidence float64
}

// AutoSelect reports whether the match is confident enough to proceed
// without an explicit user selection.
func (r MatchResult) AutoSelect() bool {
	return r.Matched != nil && r.Confidence > AutoSelectConfidence
}

var senderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:from|to|reply to|email from)\s+([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`),
	regexp.MustCompile(`(?:from|to|reply to|email from)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`),
}

var (
	quotedPattern = regexp.MustCompile(`"([^"]+)"`)
	aboutPattern  = regexp.MustCompile(`(?i)(?:about|regarding)\s+(.+?)(?:\s+and|$)`)
)

// Match scores each candidate against the command text and returns the
// best one when the score clears AcceptScore. Confidence is score/100
// capped at 1, and 0 when nothing matched.
func Match(candidates []types.CandidateEmail, commandText string) MatchResult {
	sender := extractSenderRef(commandText)
	keywords := extractSubjectKeywords(commandText)

	var best *types.CandidateEmail
	bestScore := 0

	for idx := range candidates {
		candidate := &candidates[idx]
		score := 0

		if sender != "" {
			fromLower := strings.ToLower(candidate.From)
			emailLower := strings.ToLower(candidate.FromEmail)
			switch {
			case strings.Contains(emailLower, sender) || strings.Contains(fromLower, sender):
				score += 50
			case nameTokenMatch(fromLower, sender):
				score += 30
			}
		}

		subjectLower := strings.ToLower(candidate.Subject)
		for _, keyword := range keywords {
			if strings.Contains(subjectLower, keyword) {
				score += 30
			}
		}

		// Recency bonus: newer mail (earlier in the list) wins ties.
		score += (len(candidates) - idx) * 2

		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if best == nil || bestScore < AcceptScore {
		return MatchResult{}
	}
	confidence := float64(bestScore) / 100
	if confidence > 1 {
		confidence = 1
	}
	return MatchResult{Matched: best, Confidence: confidence}
}

// TopCandidates trims the list surfaced for explicit user selection.
func TopCandidates(candidates []types.CandidateEmail) []types.CandidateEmail {
	if len(candidates) <= CandidateLimit {
		return candidates
	}
	return candidates[:CandidateLimit]
}

// IsReplyCommand reports whether the command asks for a reply to existing
// mail rather than a fresh message.
func IsReplyCommand(commandText string) bool {
	lower := strings.ToLower(commandText)
	return strings.Contains(lower, "reply") || strings.Contains(lower, "respond")
}

func extractSenderRef(commandText string) string {
	for _, pattern := range senderPatterns {
		if m := pattern.FindStringSubmatch(commandText); m != nil {
			return strings.ToLower(m[1])
		}
	}
	return ""
}

func extractSubjectKeywords(commandText string) []string {
	var keywords []string
	if m := quotedPattern.FindStringSubmatch(commandText); m != nil {
		keywords = append(keywords, strings.ToLower(m[1]))
	}
	if m := aboutPattern.FindStringSubmatch(commandText); m != nil {
		keywords = append(keywords, strings.ToLower(strings.TrimSpace(m[1])))
	}
	return keywords
}

func nameTokenMatch(fromLower, sender string) bool {
	for _, token := range strings.Fields(fromLower) {
		if strings.HasPrefix(token, sender) {
			return true
		}
	}
	return false
}
