package chat

import (
	"sort"
	"strings"
	"sync"

	"github.com/jonreiter/govader"
)

// SentimentLabel buckets a compound score.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// Compound scores within this distance of zero are neutral.
const sentimentThreshold = 0.05

// SentimentScore is a VADER compound score in [-1, 1] and its label.
type SentimentScore struct {
	Score float64        `json:"score"`
	Label SentimentLabel `json:"label"`
}

// DailySentiment scores the text messages of one calendar day.
type DailySentiment struct {
	Date         string         `json:"date"`
	Sentiment    SentimentScore `json:"sentiment"`
	MessageCount int            `json:"messageCount"`
}

// SentimentAnalysis is the result of AnalyzeSentiment.
type SentimentAnalysis struct {
	Overall SentimentScore   `json:"overall"`
	Daily   []DailySentiment `json:"daily"`
}

// Loading the lexicon takes a while; share one analyzer.
var analyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// LabelFor maps a compound score to its label.
func LabelFor(score float64) SentimentLabel {
	switch {
	case score >= sentimentThreshold:
		return SentimentPositive
	case score <= -sentimentThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// AnalyzeSentiment scores each day's text messages joined together, oldest day first.
// Overall is the mean of the daily scores. Messages with an empty Type count as text.
func AnalyzeSentiment(messages []Message) *SentimentAnalysis {
	out := &SentimentAnalysis{
		Overall: SentimentScore{Label: SentimentNeutral},
		Daily:   []DailySentiment{},
	}

	byDay := make(map[string][]string)
	for _, m := range messages {
		if m.Type != "" && m.Type != TypeText {
			continue
		}
		day := m.Timestamp.Format(dayLayout)
		byDay[day] = append(byDay[day], m.Content)
	}
	if len(byDay) == 0 {
		return out
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	sia := analyzer()
	total := 0.0
	for _, d := range days {
		score := sia.PolarityScores(strings.Join(byDay[d], " ")).Compound
		total += score
		out.Daily = append(out.Daily, DailySentiment{
			Date:         d,
			Sentiment:    SentimentScore{Score: score, Label: LabelFor(score)},
			MessageCount: len(byDay[d]),
		})
	}

	overall := total / float64(len(days))
	out.Overall = SentimentScore{Score: overall, Label: LabelFor(overall)}
	return out
}

// MessageSentiment scores a single message. Non-text messages are neutral.
func MessageSentiment(m Message) SentimentScore {
	if m.Type != "" && m.Type != TypeText {
		return SentimentScore{Label: SentimentNeutral}
	}
	score := analyzer().PolarityScores(m.Content).Compound
	return SentimentScore{Score: score, Label: LabelFor(score)}
}
