package action

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ondergetekende/logshipper/message"
)

// strptimeDirectives maps the common subset of C strptime()/Python
// datetime directives onto Go's reference-time layout tokens, which is
// what a configured "format" parameter is expressed in (spec.md §4.2).
var strptimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'f': "000000",
	'z': "-0700",
	'Z': "MST",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'p': "PM",
	'j': "002",
}

// strptimeToLayout translates a strptime-style format string into a Go
// time layout.
func strptimeToLayout(format string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return "", fmt.Errorf("strptime: trailing %%")
		}
		directive, ok := strptimeDirectives[format[i]]
		if !ok {
			return "", fmt.Errorf("strptime: unsupported directive %%%c", format[i])
		}
		out.WriteString(directive)
	}
	return out.String(), nil
}

// fuzzyLayouts is tried in order when no explicit format is configured,
// covering the timestamp shapes the other inputs in this daemon
// actually produce (RFC 3339 from JSON-ish sources, RFC 3164/5424 from
// syslog, and a couple of common log shapes). No fuzzy-datetime parser
// exists anywhere in the retrieved pack, so this ordered-attempt list is
// the stdlib-only substitute (DESIGN.md).
var fuzzyLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
	"Jan 2 15:04:05",
	"Jan  2 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
}

func parseFuzzy(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range fuzzyLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("strptime: could not parse %q with any known layout", value)
}

// newStrptime parses message[field] into a time.Time, using an explicit
// format when configured or falling back to a fixed sequence of common
// layouts otherwise, then attaches the configured (or local) time zone
// when the parsed value carries none (spec.md §4.2).
func newStrptime(params any) (Handler, int, error) {
	cfg, ok := params.(map[string]any)
	if !ok {
		return nil, 0, fmt.Errorf("strptime: parameters must be a mapping")
	}

	field, _ := cfg["field"].(string)
	if field == "" {
		field = message.FieldTimestamp
	}

	var layout string
	if format, ok := cfg["format"].(string); ok && format != "" {
		l, err := strptimeToLayout(format)
		if err != nil {
			return nil, 0, err
		}
		layout = l
	}

	loc := time.Local
	if tzName, ok := cfg["timezone"].(string); ok && tzName != "" {
		l, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, 0, fmt.Errorf("strptime: timezone: %w", err)
		}
		loc = l
	}

	handler := func(goctx context.Context, msg message.Message, ctx *message.Context) (Result, error) {
		raw := msg.GetString(field)
		if raw == "" {
			return Continue, fmt.Errorf("strptime: field %q is empty or missing", field)
		}

		var t time.Time
		var err error
		if layout != "" {
			t, err = time.ParseInLocation(layout, raw, loc)
		} else {
			t, err = parseFuzzy(raw, loc)
		}
		if err != nil {
			return Continue, err
		}

		msg[field] = t
		return Continue, nil
	}
	return handler, 0, nil
}
