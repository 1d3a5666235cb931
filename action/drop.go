package action

import (
	"context"

	"github.com/ondergetekende/logshipper/message"
)

// newDrop unconditionally ends the message's traversal of the pipeline
// (spec.md §4.2). Parameters are ignored.
func newDrop(any) (Handler, int, error) {
	handler := func(context.Context, message.Message, *message.Context) (Result, error) {
		return DropMessage, nil
	}
	return handler, 0, nil
}
