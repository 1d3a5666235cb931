package input

import (
	"testing"

	"github.com/ondergetekende/logshipper/message"
)

func TestEmitStampsMandatoryFields(t *testing.T) {
	var got message.Message
	emitter := Emitter(func(fields message.Message) { got = fields })

	Emit(emitter, message.Message{message.FieldText: "hello"})

	if got[message.FieldText] != "hello" {
		t.Errorf("message field = %v, want hello", got[message.FieldText])
	}
	if _, ok := got[message.FieldTimestamp]; !ok {
		t.Error("expected a stamped timestamp")
	}
	if _, ok := got[message.FieldHostname]; !ok {
		t.Error("expected a stamped hostname")
	}
}
