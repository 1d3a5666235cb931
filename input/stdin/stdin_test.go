package stdin

import (
	"context"
	"testing"
	"time"

	"github.com/ondergetekende/logshipper/message"
)

// Stop cannot interrupt a blocked read from os.Stdin (documented
// limitation), so Stop is exercised with a timeout rather than a direct
// blocking call: `go test`'s stdin is normally closed/empty and reaches
// EOF almost immediately, but this must not hang the suite if it doesn't.
func TestStartIsIdempotentAndStopEventuallyReturns(t *testing.T) {
	in := New()

	if err := in.Start(context.Background(), func(fields message.Message) {}); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := in.Start(context.Background(), func(fields message.Message) {}); err != nil {
		t.Fatalf("second (idempotent) Start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- in.Stop(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Skip("stdin did not reach EOF in time; Stop cannot interrupt a blocked read (documented limitation)")
	}
}
