package action

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ondergetekende/logshipper/message"
	"github.com/ondergetekende/logshipper/template"
)

// edgeEntry is one tracked key in an edge action's bounded dictionary.
type edgeEntry struct {
	key       string
	touchedAt time.Time
}

// edgeState is one edge action instance's LRU: a doubly-linked list in
// least-recently-touched-first order, plus an index for O(1) lookup.
// evictOldest scans the whole list to apply the (touchedAt, key)
// tie-break; container/list is the standard library's doubly-linked list, the
// idiomatic choice at the scale a per-action backlog operates at
// (DESIGN.md).
type edgeState struct {
	mu      sync.Mutex
	backlog int
	order   *list.List
	index   map[string]*list.Element
}

func newEdgeState(backlog int) *edgeState {
	return &edgeState{
		backlog: backlog,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
}

// touch returns true when key was already tracked (a repeat, so the
// step should skip), refreshing its position to most-recently-touched
// either way. When key is new and the backlog is full, it evicts the
// entry with the smallest (touchedAt, key) pair first — the
// least-recently-touched entry, with key as a deterministic tie-break
// (DESIGN.md's resolution of the spec's eviction-tie note).
func (s *edgeState) touch(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[key]; ok {
		el.Value.(*edgeEntry).touchedAt = now
		s.order.MoveToBack(el)
		return true
	}

	if s.order.Len() >= s.backlog {
		s.evictOldest()
	}

	el := s.order.PushBack(&edgeEntry{key: key, touchedAt: now})
	s.index[key] = el
	return false
}

func (s *edgeState) evictOldest() {
	oldest := s.order.Front()
	if oldest == nil {
		return
	}
	for el := oldest.Next(); el != nil; el = el.Next() {
		oe := oldest.Value.(*edgeEntry)
		ce := el.Value.(*edgeEntry)
		if ce.touchedAt.Before(oe.touchedAt) ||
			(ce.touchedAt.Equal(oe.touchedAt) && ce.key < oe.key) {
			oldest = el
		}
	}
	entry := oldest.Value.(*edgeEntry)
	delete(s.index, entry.key)
	s.order.Remove(oldest)
}

// newEdge compiles the keying template and builds a bounded LRU
// (spec.md §4.2, scenario S4). Parameters are either a bare template
// string (backlog defaults to 1) or a mapping with "value" (the
// template) and optional "backlog".
func newEdge(params any) (Handler, int, error) {
	var valueParam any
	backlog := 1

	switch v := params.(type) {
	case string:
		valueParam = v
	case map[string]any:
		val, ok := v["value"]
		if !ok {
			return nil, 0, fmt.Errorf("edge: mapping form requires a \"value\" template")
		}
		valueParam = val
		if b, ok := v["backlog"]; ok {
			n, err := toInt(b)
			if err != nil {
				return nil, 0, fmt.Errorf("edge: backlog: %w", err)
			}
			backlog = n
		}
	default:
		return nil, 0, fmt.Errorf("edge: parameters must be a template string or a mapping")
	}

	tmpl, err := template.Compile(valueParam)
	if err != nil {
		return nil, 0, fmt.Errorf("edge: %w", err)
	}
	if backlog < 1 {
		backlog = 1
	}

	state := newEdgeState(backlog)

	handler := func(goctx context.Context, msg message.Message, ctx *message.Context) (Result, error) {
		key, err := tmpl.ExecuteString(msg, ctx)
		if err != nil {
			return Continue, err
		}

		if state.touch(key, time.Now().UTC()) {
			return SkipStep, nil
		}
		return Continue, nil
	}
	return handler, 0, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}
