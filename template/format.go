package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// formatSpecRe matches the Python-style mini format language:
//
//	[[fill]align][sign][#][0][width][,][.precision][type]
var formatSpecRe = regexp.MustCompile(
	`^(?:(.)?([<>^=]))?([+\- ])?(#)?(0)?(\d+)?(,)?(?:\.(\d+))?([a-zA-Z%])?$`)

type formatOpts struct {
	fill      rune
	align     byte // '<', '>', '^', '=' or 0
	sign      byte
	alt       bool
	zeroPad   bool
	width     int
	hasWidth  bool
	grouping  bool
	precision int
	hasPrec   bool
	typ       byte
}

func parseFormatSpec(spec string) (formatOpts, error) {
	var o formatOpts
	if spec == "" {
		return o, nil
	}
	m := formatSpecRe.FindStringSubmatch(spec)
	if m == nil {
		return o, fmt.Errorf("template: invalid format spec %q", spec)
	}
	if m[2] != "" {
		if m[1] != "" {
			o.fill = []rune(m[1])[0]
		} else {
			o.fill = ' '
		}
		o.align = m[2][0]
	}
	if m[3] != "" {
		o.sign = m[3][0]
	}
	o.alt = m[4] != ""
	o.zeroPad = m[5] != ""
	if m[6] != "" {
		o.width, _ = strconv.Atoi(m[6])
		o.hasWidth = true
	}
	o.grouping = m[7] != ""
	if m[8] != "" {
		o.precision, _ = strconv.Atoi(m[8])
		o.hasPrec = true
	}
	if m[9] != "" {
		o.typ = m[9][0]
	}
	return o, nil
}

// formatValue renders value according to a Python-style format spec
// (spec.md §3: "`:spec` — format spec, which may itself contain a
// nested `{…}` resolved against the same arguments"). The nested-brace
// resolution happens in fieldSpec.render before this is called; this
// function only applies the resulting literal spec string.
func formatValue(value any, spec string) (string, error) {
	opts, err := parseFormatSpec(spec)
	if err != nil {
		return "", err
	}

	body, numeric, err := renderBody(value, opts)
	if err != nil {
		return "", err
	}

	return pad(body, opts, numeric), nil
}

func renderBody(value any, opts formatOpts) (string, bool, error) {
	typ := opts.typ

	switch v := value.(type) {
	case int, int64, int32:
		n := toInt64(v)
		switch typ {
		case 'x':
			return strconv.FormatInt(n, 16), true, nil
		case 'X':
			return strings.ToUpper(strconv.FormatInt(n, 16)), true, nil
		case 'o':
			return strconv.FormatInt(n, 8), true, nil
		case 'b':
			return strconv.FormatInt(n, 2), true, nil
		case 'f', 'F':
			return strconv.FormatFloat(float64(n), 'f', precOrDefault(opts, 6), 64), true, nil
		case 's', 0:
			return applySign(strconv.FormatInt(n, 10), n < 0, opts), true, nil
		default:
			return strconv.FormatInt(n, 10), true, nil
		}
	case float64, float32:
		f := toFloat64(v)
		switch typ {
		case 'd':
			return strconv.FormatInt(int64(f), 10), true, nil
		case 'e':
			return strconv.FormatFloat(f, 'e', precOrDefault(opts, 6), 64), true, nil
		case 'E':
			return strings.ToUpper(strconv.FormatFloat(f, 'e', precOrDefault(opts, 6), 64)), true, nil
		case '%':
			return strconv.FormatFloat(f*100, 'f', precOrDefault(opts, 6), 64) + "%", true, nil
		default: // 'f', 'g', 's', or unset
			return applySign(strconv.FormatFloat(f, 'f', precOrDefault(opts, 6), 64), f < 0, opts), true, nil
		}
	case bool:
		s := strconv.FormatBool(v)
		return truncate(s, opts), false, nil
	case string:
		return truncate(v, opts), false, nil
	default:
		return truncate(fmt.Sprintf("%v", v), opts), false, nil
	}
}

func precOrDefault(opts formatOpts, def int) int {
	if opts.hasPrec {
		return opts.precision
	}
	return def
}

func truncate(s string, opts formatOpts) string {
	if opts.hasPrec && opts.precision < len(s) {
		return s[:opts.precision]
	}
	return s
}

func applySign(s string, negative bool, opts formatOpts) string {
	if negative || opts.sign == 0 {
		return s
	}
	switch opts.sign {
	case '+':
		return "+" + s
	case ' ':
		return " " + s
	default:
		return s
	}
}

func pad(s string, opts formatOpts, numeric bool) string {
	if !opts.hasWidth || len(s) >= opts.width {
		return s
	}
	fill := opts.fill
	align := opts.align
	if align == 0 {
		if numeric {
			align = '>'
		} else {
			align = '<'
		}
		if fill == 0 {
			fill = ' '
		}
	}
	if fill == 0 {
		fill = ' '
	}
	if opts.zeroPad && numeric && align != '^' {
		align = '='
		fill = '0'
	}

	deficit := opts.width - len(s)
	switch align {
	case '>':
		return strings.Repeat(string(fill), deficit) + s
	case '^':
		left := deficit / 2
		right := deficit - left
		return strings.Repeat(string(fill), left) + s + strings.Repeat(string(fill), right)
	case '=':
		sign := ""
		body := s
		if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
			sign = s[:1]
			body = s[1:]
		}
		return sign + strings.Repeat(string(fill), deficit) + body
	default: // '<'
		return s + strings.Repeat(string(fill), deficit)
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
