package classifier

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	emaildomain "dealsync-backend/internal/email/domain"
)

// Classification is the keyword classifier's verdict. It is logged for
// observability and never persisted.
type Classification struct {
	IsCampaign bool
	Reason     string
}

var moneySignal = regexp.MustCompile(`\$\s?\d|usd\s?\d`)

func matchKeywords(text string, keywords []string) []string {
	var matches []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matches = append(matches, kw)
		}
	}
	return matches
}

// Classify scores an email against the campaign keyword lists. Strong
// keywords count double, a money amount adds one, no-reply senders and
// negative keywords subtract.
func Classify(msg *emaildomain.Message) Classification {
	text := strings.ToLower(msg.Subject + " " + msg.BodyText)
	from := strings.ToLower(msg.From)

	strongMatches := matchKeywords(text, strongCampaignKeywords)
	matches := matchKeywords(text, campaignKeywords)
	negativeMatches := matchKeywords(text, negativeKeywords)

	score := len(strongMatches)*2 + len(matches)
	if moneySignal.MatchString(text) {
		score++
	}
	if strings.Contains(from, "no-reply") || strings.Contains(from, "noreply") {
		score -= 2
	}
	score -= len(negativeMatches) * 2

	if score >= 3 || (len(strongMatches) > 0 && score >= 1) {
		return Classification{
			IsCampaign: true,
			Reason:     scoreReason(score, strongMatches, matches),
		}
	}

	if len(negativeMatches) > 0 && len(strongMatches) == 0 && len(matches) == 0 {
		return Classification{
			IsCampaign: false,
			Reason:     "Negative keywords only: " + strings.Join(negativeMatches, ", "),
		}
	}

	return Classification{
		IsCampaign: false,
		Reason:     scoreReason(score, strongMatches, matches),
	}
}

func scoreReason(score int, strong, matches []string) string {
	return fmt.Sprintf("Score %d; strong=%s; matches=%s", score, joinOrNone(strong), joinOrNone(matches))
}

func joinOrNone(words []string) string {
	if len(words) == 0 {
		return "none"
	}
	return strings.Join(words, ", ")
}

// Gate is the admission filter in front of the extractor. It is a pure
// filter: no retries, no external calls, nothing stored.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

// Admit reports whether the message should proceed to extraction, logging
// the classifier's reason either way.
func (g *Gate) Admit(msg *emaildomain.Message) bool {
	c := Classify(msg)
	log.Printf("[Classifier] message=%s campaign=%t reason=%q", msg.ID, c.IsCampaign, c.Reason)
	return c.IsCampaign
}
