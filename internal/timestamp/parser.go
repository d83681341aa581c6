// Package timestamp finds and parses timestamps in log text and JSON fields.
package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of ParseFromText.
type Result struct {
	Timestamp time.Time
	Found     bool
	Remaining string // text after the timestamp, or the original text
}

type textFormat struct {
	re      *regexp.Regexp
	layouts []string
	// timeOnly formats are anchored to the current day.
	timeOnly bool
	// noYear formats are anchored to the current year.
	noYear bool
}

// Parser recognizes the timestamp shapes emitted by common loggers.
type Parser struct {
	formats []textFormat
	now     func() time.Time
}

// NewParser returns a parser with the built-in formats.
func NewParser() *Parser {
	return &Parser{
		now: time.Now,
		formats: []textFormat{
			{
				re:      regexp.MustCompile(`^\[?(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?(?:Z|[+-]\d{2}:?\d{2})?)\]?`),
				layouts: []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999Z0700", "2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05.999999999"},
			},
			{
				re:      regexp.MustCompile(`^([A-Z][a-z]{2} +\d{1,2} \d{2}:\d{2}:\d{2})`),
				layouts: []string{time.Stamp},
				noYear:  true,
			},
			{
				re:       regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?)`),
				layouts:  []string{"15:04:05.999999999"},
				timeOnly: true,
			},
		},
	}
}

// ParseFromText looks for a timestamp at the start of text.
func (p *Parser) ParseFromText(text string) Result {
	trimmed := strings.TrimLeft(text, " \t")
	for _, f := range p.formats {
		m := f.re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		raw := strings.Replace(m[1], ",", ".", 1)
		for _, layout := range f.layouts {
			ts, err := time.Parse(layout, raw)
			if err != nil {
				continue
			}
			now := p.now()
			switch {
			case f.timeOnly:
				y, mo, d := now.Date()
				ts = time.Date(y, mo, d, ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), now.Location())
			case f.noYear:
				ts = time.Date(now.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, now.Location())
			}
			return Result{
				Timestamp: ts,
				Found:     true,
				Remaining: strings.TrimLeft(trimmed[len(m[0]):], " \t"),
			}
		}
	}
	return Result{Remaining: text}
}

// ParseTimestamp interprets a JSON field value as a time. Strings are tried
// as RFC3339 variants and then as numbers; numbers are Unix time with the
// unit picked by magnitude.
func (p *Parser) ParseTimestamp(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		if r := p.ParseFromText(s); r.Found && r.Remaining == "" {
			return r.Timestamp, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromUnix(f), true
		}
	case float64:
		return fromUnix(v), true
	case int:
		return fromUnix(float64(v)), true
	case int64:
		return fromUnix(float64(v)), true
	}
	return time.Time{}, false
}

// fromUnix treats values below 1e11 as seconds, below 1e14 as milliseconds,
// below 1e17 as microseconds and anything larger as nanoseconds.
func fromUnix(v float64) time.Time {
	switch {
	case v < 1e11:
		sec := int64(v)
		return time.Unix(sec, int64((v-float64(sec))*1e9))
	case v < 1e14:
		return time.UnixMilli(int64(v))
	case v < 1e17:
		return time.UnixMicro(int64(v))
	default:
		return time.Unix(0, int64(v))
	}
}
