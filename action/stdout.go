package action

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ondergetekende/logshipper/message"
	"github.com/ondergetekende/logshipper/template"
)

// newStdout interpolates a format template per message and writes it to
// standard output, terminated with exactly one newline (spec.md §4.2,
// `filters.py: prepare_stdout`). Parameters may be a bare format string
// or a mapping with a "format" key; the default format is "{message}".
func newStdout(params any) (Handler, int, error) {
	format := "{message}"
	switch v := params.(type) {
	case nil:
	case string:
		format = v
	case map[string]any:
		if f, ok := v["format"].(string); ok {
			format = f
		}
	default:
		return nil, 0, fmt.Errorf("stdout: parameters must be a string or a mapping with a \"format\" key")
	}
	format = strings.TrimRight(format, "\r\n")

	tmpl, err := template.Compile(format)
	if err != nil {
		return nil, 0, fmt.Errorf("stdout: %w", err)
	}

	handler := func(goctx context.Context, msg message.Message, ctx *message.Context) (Result, error) {
		line, err := tmpl.ExecuteString(msg, ctx)
		if err != nil {
			return Continue, err
		}
		_, err = fmt.Fprintln(os.Stdout, line)
		return Continue, err
	}
	return handler, 0, nil
}
