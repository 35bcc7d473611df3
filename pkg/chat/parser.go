package chat

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

const parserLogPrefix = "chat:parser"

// maxLineSize bounds a single export line; long pasted messages can exceed bufio's default.
const maxLineSize = 1 << 20

var (
	// [18/05/2023, 08:39:07] John: Hello
	bracketHeader = regexp.MustCompile(`^\[(\d{1,2}/\d{1,2}/\d{2,4}),? (\d{1,2}:\d{2}(?::\d{2})?(?: ?[AaPp][Mm])?)\] (.*)$`)
	// 18/05/2023, 08:39 - John: Hello
	// 5/18/23, 8:39 PM - John: Hello
	dashHeader = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}),? (\d{1,2}:\d{2}(?::\d{2})?(?: ?[AaPp][Mm])?) - (.*)$`)

	ampmSuffix = regexp.MustCompile(`(?i) ?([ap])m$`)
)

var systemNotices = []string{
	"messages and calls are end-to-end encrypted",
	"messages to this group are now secured with end-to-end encryption",
	"security code changed",
	"your security code with",
	"created group",
	"created this group",
	"added you",
	"changed the subject",
	"changed this group's icon",
	"changed the group description",
	"this message was deleted",
	"you deleted this message",
}

// ParseOptions tunes ParseExport.
type ParseOptions struct {
	// IncludeSystem keeps system events (group changes, encryption notices) as TypeSystem messages.
	IncludeSystem bool
}

// ParseExport reads a WhatsApp "export chat" text file and returns its messages in file order.
func ParseExport(r io.Reader, opts ParseOptions) ([]Message, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	p := &exportParser{opts: opts, messages: make([]Message, 0)}
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		p.feed(normalizeLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s - failed to read export: %w", parserLogPrefix, err)
	}
	p.flush()

	slog.Debug(fmt.Sprintf("%s - parsed %d messages", parserLogPrefix, len(p.messages)))
	return p.messages, nil
}

type exportParser struct {
	opts     ParseOptions
	messages []Message
	current  *Message
	lines    []string
}

func (p *exportParser) feed(line string) {
	msg, ok := parseHeader(line)
	if !ok {
		if p.current != nil {
			p.lines = append(p.lines, line)
		}
		return
	}
	p.flush()
	p.current = msg
	p.lines = []string{msg.Content}
}

func (p *exportParser) flush() {
	if p.current == nil {
		return
	}
	msg := *p.current
	p.current = nil
	msg.Content = strings.TrimRight(strings.Join(p.lines, "\n"), "\n ")
	p.lines = nil

	if msg.Type == TypeSystem || isSystemNotice(msg.Content) {
		if !p.opts.IncludeSystem {
			return
		}
		msg.Type = TypeSystem
	} else {
		msg.Type = DetectType(msg.Content)
	}
	msg.ID = fmt.Sprintf("msg_%d", len(p.messages)+1)
	p.messages = append(p.messages, msg)
}

// parseHeader recognises a line that starts a new message. Lines whose timestamp does not
// parse are treated as continuation text.
func parseHeader(line string) (*Message, bool) {
	m := bracketHeader.FindStringSubmatch(line)
	if m == nil {
		m = dashHeader.FindStringSubmatch(line)
	}
	if m == nil {
		return nil, false
	}

	ts, err := parseTimestamp(m[1], m[2])
	if err != nil {
		return nil, false
	}

	rest := m[3]
	sender, content, found := strings.Cut(rest, ": ")
	if !found {
		// "John: " with an empty body still has a sender
		if s, ok := strings.CutSuffix(rest, ":"); ok && s != "" {
			return &Message{Timestamp: ts, Sender: strings.TrimSpace(s), Type: TypeText}, true
		}
		return &Message{Timestamp: ts, Content: rest, Type: TypeSystem}, true
	}
	return &Message{Timestamp: ts, Sender: strings.TrimSpace(sender), Content: content, Type: TypeText}, true
}

var (
	dayFirstDates   = []string{"2/1/2006", "2/1/06"}
	monthFirstDates = []string{"1/2/2006", "1/2/06"}
	clockLayouts    = []string{"15:04:05", "15:04", "3:04:05 PM", "3:04 PM"}
)

// parseTimestamp parses the date and clock parts of an export header. Exports are
// day-first in most locales; month-first is tried when day-first cannot be valid.
func parseTimestamp(date, clock string) (time.Time, error) {
	clock = ampmSuffix.ReplaceAllStringFunc(clock, func(s string) string {
		return " " + strings.ToUpper(strings.TrimSpace(s))
	})

	for _, dates := range [][]string{dayFirstDates, monthFirstDates} {
		for _, d := range dates {
			for _, c := range clockLayouts {
				if t, err := time.Parse(d+", "+c, date+", "+clock); err == nil {
					return t.UTC(), nil
				}
			}
		}
	}
	return time.Time{}, fmt.Errorf("%s - unrecognised timestamp %q", parserLogPrefix, date+", "+clock)
}

func isSystemNotice(content string) bool {
	lower := strings.ToLower(content)
	for _, n := range systemNotices {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// normalizeLine strips the direction marks and odd spaces that iOS exports embed.
func normalizeLine(line string) string {
	line = strings.TrimRight(line, "\r")
	line = strings.ReplaceAll(line, "\u200e", "")
	line = strings.ReplaceAll(line, "\u200f", "")
	line = strings.ReplaceAll(line, "\u202f", " ")
	return strings.ReplaceAll(line, "\u00a0", " ")
}
