package message

import "testing"

func TestNextStepClearsMatchScratch(t *testing.T) {
	c := NewContext(nil)
	field := "message"
	c.Match = &MatchResult{Start: 0, End: 3}
	c.MatchField = &field
	c.Backreferences = []string{"abc"}
	c.Matches = map[string]*MatchResult{"message": {}}

	c.NextStep()

	if c.Match != nil || c.MatchField != nil || c.Backreferences != nil || c.Matches != nil {
		t.Error("NextStep did not clear all match-scratch fields")
	}
}

func TestNextStepPreservesDepthAndManager(t *testing.T) {
	c := NewContext(nil)
	c.Depth = 4

	c.NextStep()

	if c.Depth != 4 {
		t.Errorf("NextStep must not reset Depth, got %d", c.Depth)
	}
}
