package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultKeywordLimit = 20
	MaxKeywordLimit     = 100
	minKeywordLength    = 3
)

// Keyword is a word and how often it occurs.
type Keyword struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// KeywordAnalysis is the result of ExtractKeywords.
type KeywordAnalysis struct {
	Keywords   []Keyword `json:"keywords"`
	TotalWords int       `json:"totalWords"`
}

// ExtractKeywords returns the most frequent words across text messages. Tokens are
// lowercased alphabetic runs of at least three letters that are not English stop words.
// limit <= 0 uses DefaultKeywordLimit; values above MaxKeywordLimit are clamped.
func ExtractKeywords(messages []Message, limit int) *KeywordAnalysis {
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}
	if limit > MaxKeywordLimit {
		limit = MaxKeywordLimit
	}

	words := newCounter[string]()
	total := 0
	for _, m := range messages {
		if m.Type != "" && m.Type != TypeText {
			continue
		}
		for _, tok := range tokenize(m.Content) {
			if utf8.RuneCountInString(tok) < minKeywordLength {
				continue
			}
			if _, stop := stopWords[tok]; stop {
				continue
			}
			words.add(tok)
			total++
		}
	}

	out := &KeywordAnalysis{Keywords: []Keyword{}, TotalWords: total}
	for i, e := range words.mostCommon() {
		if i == limit {
			break
		}
		out.Keywords = append(out.Keywords, Keyword{Word: e.key, Count: e.count})
	}
	return out
}

// tokenize lowercases s and splits it into runs of letters. Words glued by apostrophes
// ("don't") are dropped, as they are never keywords.
func tokenize(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace) {
		f = strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) })
		if f == "" || strings.IndexFunc(f, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}

var stopWords = makeSet(
	"a", "about", "above", "after", "again", "against", "ain", "all", "am", "an", "and", "any",
	"are", "aren", "as", "at", "be", "because", "been", "before", "being", "below", "between",
	"both", "but", "by", "can", "couldn", "did", "didn", "do", "does", "doesn", "doing", "don",
	"down", "during", "each", "few", "for", "from", "further", "had", "hadn", "has", "hasn",
	"have", "haven", "having", "he", "her", "here", "hers", "herself", "him", "himself", "his",
	"how", "i", "if", "in", "into", "is", "isn", "it", "its", "itself", "just", "ll", "ma", "me",
	"mightn", "more", "most", "mustn", "my", "myself", "needn", "no", "nor", "not", "now", "of",
	"off", "on", "once", "only", "or", "other", "our", "ours", "ourselves", "out", "over", "own",
	"re", "same", "shan", "she", "should", "shouldn", "so", "some", "such", "than", "that", "the",
	"their", "theirs", "them", "themselves", "then", "there", "these", "they", "this", "those",
	"through", "to", "too", "under", "until", "up", "ve", "very", "was", "wasn", "we", "were",
	"weren", "what", "when", "where", "which", "while", "who", "whom", "why", "will", "with",
	"won", "wouldn", "you", "your", "yours", "yourself", "yourselves",
)

func makeSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
