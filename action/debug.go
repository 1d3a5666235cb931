package action

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ondergetekende/logshipper/message"
)

// newDebug prints a deterministic key=value rendering of the whole
// message (sorted keys, all on one timestamp-prefixed line), the typed-Go
// stand-in for the original's `repr(message)` dump (`filters.py:
// prepare_debug`). It is distinct from the templated single-line
// `stdout` action.
func newDebug(any) (Handler, int, error) {
	handler := func(goctx context.Context, msg message.Message, ctx *message.Context) (Result, error) {
		keys := make([]string, 0, len(msg))
		for k := range msg {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		line := fmt.Sprintf("%s debug:", time.Now().UTC().Format(time.RFC3339Nano))
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, msg[k])
		}
		_, err := fmt.Fprintln(os.Stdout, line)
		return Continue, err
	}
	return handler, 0, nil
}
