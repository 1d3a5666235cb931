package action

import (
	"context"

	"github.com/ondergetekende/logshipper/message"
)

// newExtract is match followed by elision of the matched span from its
// source field (spec.md §4.2, scenario S3): whatever matched is cut out
// of the field, leaving the pre-match prefix joined to the post-match
// suffix.
func newExtract(params any) (Handler, int, error) {
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

			text := msg.GetString(fr.field)
			msg[fr.field] = text[:mr.Start] + text[mr.End:]
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
