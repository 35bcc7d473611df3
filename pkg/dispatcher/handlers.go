package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/morezero/chat-worker/pkg/chat"
)

// handleProcess returns data unchanged.
func handleProcess(_ context.Context, data json.RawMessage) (json.RawMessage, error) {
	if len(data) == 0 {
		return nullResult, nil
	}
	return data, nil
}

// handleSearch never fails: data it cannot read is treated as an empty search.
func handleSearch(_ context.Context, data json.RawMessage) (json.RawMessage, error) {
	var in SearchInput
	if !isNull(data) {
		if err := json.Unmarshal(data, &in); err != nil {
			in = SearchInput{}
		}
	}

	matches := make([]json.RawMessage, 0)
	query := chat.NewQuery(in.Query)
	if !query.Empty() {
		for _, m := range in.Messages {
			if query.Match(messageContent(m)) {
				matches = append(matches, m)
			}
		}
	}

	b, err := json.Marshal(matches)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode search result: %w", logPrefix, err)
	}
	return b, nil
}

// messageContent returns the content field of a raw message, or "" when it is missing
// or not a string.
func messageContent(raw json.RawMessage) string {
	var m struct {
		Content interface{} `json:"content"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	s, _ := m.Content.(string)
	return s
}

func handleParse(_ context.Context, in *ParseInput) (*ParseOutput, error) {
	msgs, err := chat.ParseExport(strings.NewReader(in.Text), chat.ParseOptions{IncludeSystem: in.IncludeSystem})
	if err != nil {
		return nil, &ActionError{Code: CodeInvalidArgument, Message: err.Error()}
	}
	return &ParseOutput{Messages: msgs, Senders: chat.Senders(msgs)}, nil
}

func handleStats(_ context.Context, in *MessagesInput) (*chat.Statistics, error) {
	return chat.CalculateStatistics(in.Messages), nil
}

func handleKeywords(_ context.Context, in *KeywordsInput) (*chat.KeywordAnalysis, error) {
	return chat.ExtractKeywords(in.Messages, in.Limit), nil
}

func handleSentiment(_ context.Context, in *MessagesInput) (*chat.SentimentAnalysis, error) {
	return chat.AnalyzeSentiment(in.Messages), nil
}
