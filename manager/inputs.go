package manager

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ondergetekende/logshipper/input"
	"github.com/ondergetekende/logshipper/input/command"
	"github.com/ondergetekende/logshipper/input/stdin"
	"github.com/ondergetekende/logshipper/input/syslog"
	"github.com/ondergetekende/logshipper/input/tail"
	"github.com/ondergetekende/logshipper/pipeline"
)

// buildInput resolves one "inputs" entry from a pipeline document into
// a runnable input.Input. This switch is the one place that knows
// about every concrete input kind, the same role
// original_source/logshipper/pipeline.py's input-loading plays for the
// Python classes in input.py.
func buildInput(cfg pipeline.InputConfig) (input.Input, error) {
	params, _ := cfg.Params.(map[string]any)

	switch cfg.Name {
	case "stdin":
		return stdin.New(), nil

	case "tail":
		globs, err := stringList(params["filename"])
		if err != nil {
			return nil, fmt.Errorf("tail: filename: %w", err)
		}
		if len(globs) == 0 {
			return nil, fmt.Errorf("tail: filename is required")
		}
		return tail.New(tail.Config{Globs: globs}), nil

	case "command":
		c := command.Config{
			Separator: stringParam(params, "separator", "\n"),
			Interval:  time.Duration(intParam(params, "interval", 60)) * time.Second,
			Env:       stringMap(params["env"]),
		}
		switch v := params["commandline"].(type) {
		case string:
			c.Shell = v
		case []any:
			for _, item := range v {
				c.Argv = append(c.Argv, fmt.Sprintf("%v", item))
			}
		default:
			return nil, fmt.Errorf("command: commandline is required")
		}
		return command.New(c), nil

	case "syslog":
		sc := syslog.Config{
			Bind: stringParam(params, "bind", "127.0.0.1"),
			Port: intParam(params, "port", 514),
		}
		switch stringParam(params, "protocol", "auto") {
		case "rfc3164":
			sc.Protocol = syslog.RFC3164
		case "rfc5424":
			sc.Protocol = syslog.RFC5424
		default:
			sc.Protocol = syslog.Auto
		}
		return syslog.New(sc), nil

	default:
		return nil, fmt.Errorf("unknown input kind %q", cfg.Name)
	}
}

func stringParam(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intParam(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func stringList(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or list of strings, got %T", v)
	}
}

func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = strings.TrimSpace(fmt.Sprintf("%v", val))
	}
	return out
}
