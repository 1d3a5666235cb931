package action

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ondergetekende/logshipper/message"
)

// fieldRegex is one field→pattern pair from a match/extract/replace
// action's parameters.
type fieldRegex struct {
	field string
	re    *regexp.Regexp
}

// parseFieldRegexes accepts either a bare string (binds to the message
// field, spec.md §4.2) or a mapping field→pattern, and compiles every
// pattern once at factory time.
func parseFieldRegexes(params any) ([]fieldRegex, error) {
	switch v := params.(type) {
	case string:
		re, err := regexp.Compile(v)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp %q: %w", v, err)
		}
		return []fieldRegex{{field: message.FieldText, re: re}}, nil
	case map[string]any:
		out := make([]fieldRegex, 0, len(v))
		for field, pattern := range v {
			ps, ok := pattern.(string)
			if !ok {
				return nil, fmt.Errorf("field %q: pattern must be a string", field)
			}
			re, err := regexp.Compile(ps)
			if err != nil {
				return nil, fmt.Errorf("field %q: invalid regexp %q: %w", field, ps, err)
			}
			out = append(out, fieldRegex{field: field, re: re})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("match: parameters must be a string or a field->pattern mapping")
	}
}

// runMatch searches every configured field's regex against the message,
// populating ctx on success as described for the match action. It
// returns SkipStep on the first field that fails to match. The caller
// (match and extract) handles phase/return plumbing.
func runMatch(fields []fieldRegex, msg message.Message, ctx *message.Context) ([]*regexp.Regexp, []message.MatchResult, Result) {
	results := make([]message.MatchResult, len(fields))
	res := make([]*regexp.Regexp, len(fields))

	for i, fr := range fields {
		text := msg.GetString(fr.field)
		loc := fr.re.FindStringSubmatchIndex(text)
		if loc == nil {
			return nil, nil, SkipStep
		}

		groups := make([]string, 0, len(loc)/2)
		named := make(map[string]string)
		for gi, name := range fr.re.SubexpNames() {
			start, end := loc[2*gi], loc[2*gi+1]
			var text2 string
			if start >= 0 && end >= 0 {
				text2 = text[start:end]
			}
			groups = append(groups, text2)
			if name != "" {
				named[name] = text2
			}
		}

		results[i] = message.MatchResult{
			Start:  loc[0],
			End:    loc[1],
			Groups: groups,
			Named:  named,
		}
		res[i] = fr.re
	}
	return res, results, Continue
}

func newMatch(params any) (Handler, int, error) {
	fields, err := parseFieldRegexes(params)
	if err != nil {
		return nil, 0, err
	}

	handler := func(goctx context.Context, msg message.Message, ctx *message.Context) (Result, error) {
		_, results, verdict := runMatch(fields, msg, ctx)
		if verdict != Continue {
			return verdict, nil
		}

		matches := make(map[string]*message.MatchResult, len(fields))
		for i, fr := range fields {
			mr := results[i]
			matches[fr.field] = &mr
			for name, val := range mr.Named {
				msg[name] = val
			}
		}
		ctx.Matches = matches

		if len(fields) == 1 {
			mr := results[0]
			ctx.Match = &mr
			field := fields[0].field
			ctx.MatchField = &field
			ctx.Backreferences = mr.Groups
		} else {
			ctx.Match = nil
			ctx.MatchField = nil
			ctx.Backreferences = nil
		}

		return Continue, nil
	}
	return handler, 0, nil
}
