package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ondergetekende/logshipper/message"
	"github.com/ondergetekende/logshipper/sink"
	"github.com/ondergetekende/logshipper/template"
)

func stringParam(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

func floatParam(cfg map[string]any, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
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

func boolParam(cfg map[string]any, key string, def bool) bool {
	if v, ok := cfg[key]; ok {
		s := strings.ToLower(fmt.Sprintf("%v", v))
		return s == "1" || s == "true" || s == "yes" || s == "on"
	}
	return def
}

// newStatsdAction wires the statsd sink client behind the action
// contract (spec.md §6, `filters.py: prepare_statsd`). Name and value
// may be templated; a fixed value is parsed once at load time.
func newStatsdAction(params any) (Handler, int, error) {
	cfg, ok := params.(map[string]any)
	if !ok {
		return nil, 0, fmt.Errorf("statsd: parameters must be a mapping")
	}

	host := stringParam(cfg, "host", "127.0.0.1")
	port := intParam(cfg, "port", 8125)
	sampleRate := floatParam(cfg, "sample_rate", 1.0)
	multiplier := floatParam(cfg, "multiplier", 1.0)

	var kind sink.StatsdKind
	var delta bool
	switch stringParam(cfg, "type", "counter") {
	case "counter":
		kind, delta = sink.StatsdCounter, true
	case "gauge":
		kind, delta = sink.StatsdGauge, boolParam(cfg, "delta", false)
	case "timer":
		kind, delta = sink.StatsdTimer, false
	default:
		return nil, 0, fmt.Errorf("statsd: unknown type %q", cfg["type"])
	}

	client, err := sink.NewStatsdClient(host, port, sampleRate)
	if err != nil {
		return nil, 0, err
	}

	nameTmpl, err := template.Compile(cfg["name"])
	if err != nil {
		return nil, 0, fmt.Errorf("statsd: name: %w", err)
	}

	rawValue := cfg["value"]
	if rawValue == nil {
		rawValue = "1"
	}
	valTmpl, err := template.Compile(rawValue)
	if err != nil {
		return nil, 0, fmt.Errorf("statsd: value: %w", err)
	}

	handler := func(goctx context.Context, msg message.Message, mctx *message.Context) (Result, error) {
		name, err := nameTmpl.ExecuteString(msg, mctx)
		if err != nil {
			return Continue, err
		}
		valStr, err := valTmpl.ExecuteString(msg, mctx)
		if err != nil {
			return Continue, err
		}
		value, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return Continue, fmt.Errorf("statsd: value %q is not numeric: %w", valStr, err)
		}

		if err := client.Send(kind, name, value*multiplier, delta); err != nil {
			return Continue, fmt.Errorf("statsd: %w", err)
		}
		return Continue, nil
	}
	return handler, 0, nil
}

// newRabbitmqAction wires the NATS-backed rabbitmq sink client (spec.md
// §6; DESIGN.md/SPEC_FULL.md §B explain the NATS substitution).
func newRabbitmqAction(params any) (Handler, int, error) {
	cfg, _ := params.(map[string]any)

	host := stringParam(cfg, "host", "127.0.0.1")
	port := intParam(cfg, "port", 4222)
	exchange := stringParam(cfg, "exchange", "logshipper")
	key := stringParam(cfg, "key", "logshipper")

	url := fmt.Sprintf("nats://%s:%d", host, port)
	subject := exchange + "." + key

	client, err := sink.NewRabbitClient(url, subject)
	if err != nil {
		return nil, 0, err
	}

	handler := func(goctx context.Context, msg message.Message, mctx *message.Context) (Result, error) {
		body, err := json.Marshal(msg)
		if err != nil {
			return Continue, fmt.Errorf("rabbitmq: %w", err)
		}
		if err := client.Publish(body); err != nil {
			return Continue, fmt.Errorf("rabbitmq: %w", err)
		}
		return Continue, nil
	}
	return handler, 0, nil
}

// newElasticsearchAction wires the elasticsearch_http sink client
// (spec.md §6).
func newElasticsearchAction(params any) (Handler, int, error) {
	cfg, ok := params.(map[string]any)
	if !ok {
		return nil, 0, fmt.Errorf("elasticsearch_http: parameters must be a mapping")
	}

	base := stringParam(cfg, "base", "http://127.0.0.1:9200")
	doctype := stringParam(cfg, "doctype", "logshipper")
	client := sink.NewElasticsearchClient(base, doctype)

	var indexTmpl, idTmpl *template.Template
	if v, ok := cfg["index"]; ok {
		t, err := template.Compile(v)
		if err != nil {
			return nil, 0, fmt.Errorf("elasticsearch_http: index: %w", err)
		}
		indexTmpl = t
	}
	if v, ok := cfg["id"]; ok {
		t, err := template.Compile(v)
		if err != nil {
			return nil, 0, fmt.Errorf("elasticsearch_http: id: %w", err)
		}
		idTmpl = t
	}

	handler := func(goctx context.Context, msg message.Message, mctx *message.Context) (Result, error) {
		var index, id string
		var err error
		if indexTmpl != nil {
			if index, err = indexTmpl.ExecuteString(msg, mctx); err != nil {
				return Continue, err
			}
		}
		if idTmpl != nil {
			if id, err = idTmpl.ExecuteString(msg, mctx); err != nil {
				return Continue, err
			}
		}

		if err := client.Index(index, id, msg); err != nil {
			return Continue, err
		}
		return Continue, nil
	}
	return handler, 0, nil
}

// newLoggingAction wires the structured-logging sink: a templated
// message plus a fixed set of field templates, dispatched through
// log/slog (spec.md §6).
func newLoggingAction(params any) (Handler, int, error) {
	cfg, ok := params.(map[string]any)
	if !ok {
		return nil, 0, fmt.Errorf("logging: parameters must be a mapping")
	}

	msgTmpl, err := template.Compile(stringParam(cfg, "message", "{message}"))
	if err != nil {
		return nil, 0, fmt.Errorf("logging: message: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(stringParam(cfg, "level", "INFO")))); err != nil {
		return nil, 0, fmt.Errorf("logging: level: %w", err)
	}

	fieldsCfg, _ := cfg["fields"].(map[string]any)
	fieldTmpls := make(map[string]*template.Template, len(fieldsCfg))
	for name, raw := range fieldsCfg {
		t, err := template.Compile(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("logging: fields.%s: %w", name, err)
		}
		fieldTmpls[name] = t
	}

	client := sink.NewLoggingClient(slog.NewJSONHandler(os.Stdout, nil), level)

	handler := func(goctx context.Context, msg message.Message, mctx *message.Context) (Result, error) {
		text, err := msgTmpl.ExecuteString(msg, mctx)
		if err != nil {
			return Continue, err
		}

		fields := make(map[string]any, len(fieldTmpls))
		for name, t := range fieldTmpls {
			v, err := t.Execute(msg, mctx)
			if err != nil {
				return Continue, err
			}
			fields[name] = v
		}

		client.Log(goctx, text, fields)
		return Continue, nil
	}
	return handler, 0, nil
}
