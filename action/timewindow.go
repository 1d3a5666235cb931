package action

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ondergetekende/logshipper/message"
)

// deltaRe matches the delta grammar from spec.md §4.2:
// ([Nd][Nh][Nm][N(.N)?s]), every component optional but at least one
// required.
var deltaRe = regexp.MustCompile(
	`^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+(?:\.\d+)?)s)?$`)

func parseDelta(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	m := deltaRe.FindStringSubmatch(s)
	if m == nil || m[0] == "" {
		return 0, fmt.Errorf("timewindow: invalid delta %q", s)
	}

	var d time.Duration
	if m[1] != "" {
		n, _ := strconv.Atoi(m[1])
		d += time.Duration(n) * 24 * time.Hour
	}
	if m[2] != "" {
		n, _ := strconv.Atoi(m[2])
		d += time.Duration(n) * time.Hour
	}
	if m[3] != "" {
		n, _ := strconv.Atoi(m[3])
		d += time.Duration(n) * time.Minute
	}
	if m[4] != "" {
		f, _ := strconv.ParseFloat(m[4], 64)
		d += time.Duration(f * float64(time.Second))
	}
	return d, nil
}

// newTimewindow drops messages whose timestamp falls outside
// [now-lower, now+upper] (spec.md §4.2, scenario S5). A bare string
// delta X is the symmetric window -X..+X; a mapping with "lower" and
// "upper" keys configures an asymmetric window.
func newTimewindow(params any) (Handler, int, error) {
	var lower, upper time.Duration

	switch v := params.(type) {
	case string:
		d, err := parseDelta(v)
		if err != nil {
			return nil, 0, err
		}
		lower, upper = d, d
	case map[string]any:
		if raw, ok := v["lower"].(string); ok {
			d, err := parseDelta(raw)
			if err != nil {
				return nil, 0, err
			}
			lower = d
		}
		if raw, ok := v["upper"].(string); ok {
			d, err := parseDelta(raw)
			if err != nil {
				return nil, 0, err
			}
			upper = d
		}
	default:
		return nil, 0, fmt.Errorf("timewindow: parameters must be a delta string or a lower/upper mapping")
	}

	handler := func(goctx context.Context, msg message.Message, ctx *message.Context) (Result, error) {
		ts := msg.GetTime(message.FieldTimestamp)
		if ts.IsZero() {
			return Continue, nil
		}

		now := time.Now().UTC()
		if ts.Before(now.Add(-lower)) || ts.After(now.Add(upper)) {
			return SkipStep, nil
		}
		return Continue, nil
	}
	return handler, 0, nil
}
