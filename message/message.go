// Package message defines the value types carried through a pipeline:
// the dynamically-typed Message map and the per-traversal Context.
package message

import (
	"os"
	"sync"
	"time"
)

// Message is a mapping from field name to a dynamically-typed value.
// Values are one of: string, int64, float64, bool, time.Time,
// []any, or map[string]any.
type Message map[string]any

const (
	FieldText      = "message"
	FieldTimestamp = "timestamp"
	FieldHostname  = "hostname"
)

var (
	hostnameOnce sync.Once
	hostname     string
)

func localHostname() string {
	hostnameOnce.Do(func() {
		h, err := os.Hostname()
		if err != nil {
			h = "localhost"
		}
		hostname = h
	})
	return hostname
}

// New builds a Message, stamping the mandatory fields (message, timestamp,
// hostname) whenever the supplied fields map omits them. Every input's
// emit shim calls this so invariant 1 (spec.md §3) holds for every
// message that ever enters a pipeline.
func New(fields Message) Message {
	if fields == nil {
		fields = Message{}
	}
	if _, ok := fields[FieldText]; !ok {
		fields[FieldText] = ""
	}
	if _, ok := fields[FieldTimestamp]; !ok {
		fields[FieldTimestamp] = time.Now().UTC()
	}
	if _, ok := fields[FieldHostname]; !ok {
		fields[FieldHostname] = localHostname()
	}
	return fields
}

// Clone returns a shallow copy of the message, suitable for call/jump/fork
// dispatch to another pipeline: the destination pipeline must not be able
// to mutate fields still visible to the caller's continuation.
func (m Message) Clone() Message {
	out := make(Message, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GetString returns the field as a string, or "" when absent or not a
// string. Used by actions that read text fields (match, strptime, ...).
func (m Message) GetString(field string) string {
	v, ok := m[field]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetTime returns the field as a time.Time, the zero value when absent or
// not a time.Time.
func (m Message) GetTime(field string) time.Time {
	v, ok := m[field]
	if !ok {
		return time.Time{}
	}
	t, _ := v.(time.Time)
	return t
}
