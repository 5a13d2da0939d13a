package respcache

import "testing"

func TestSetThenGetHits(t *testing.T) {
	c := New()
	resp := Response{SpeechText: "your next meeting is standup"}
	c.Set("next_meeting", 1, Params{"format": "short"}, resp)

	got, ok := c.Get("next_meeting", 1, Params{"format": "short"})
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got.SpeechText != resp.SpeechText {
		t.Errorf("SpeechText = %q, want %q", got.SpeechText, resp.SpeechText)
	}
}

func TestGetMissOnDifferentVersion(t *testing.T) {
	c := New()
	c.Set("next_meeting", 1, Params{}, Response{SpeechText: "v1"})

	_, ok := c.Get("next_meeting", 2, Params{})
	if ok {
		t.Error("expected a miss once the window version changes")
	}
}

func TestGetMissOnDifferentParams(t *testing.T) {
	c := New()
	c.Set("next_meeting", 1, Params{"format": "short"}, Response{SpeechText: "short"})

	_, ok := c.Get("next_meeting", 1, Params{"format": "long"})
	if ok {
		t.Error("expected a miss for a different parameter value")
	}
}

func TestParamKeyOrderDoesNotAffectKey(t *testing.T) {
	c := New()
	c.Set("summary", 1, Params{"a": "1", "b": "2"}, Response{SpeechText: "ordered"})

	got, ok := c.Get("summary", 1, Params{"b": "2", "a": "1"})
	if !ok {
		t.Fatal("expected params to hash identically regardless of map iteration order")
	}
	if got.SpeechText != "ordered" {
		t.Errorf("SpeechText = %q, want %q", got.SpeechText, "ordered")
	}
}

func TestGetMissOnDifferentIntent(t *testing.T) {
	c := New()
	c.Set("next_meeting", 1, Params{}, Response{SpeechText: "a"})

	_, ok := c.Get("done_for_day", 1, Params{})
	if ok {
		t.Error("expected a miss for a different intent name")
	}
}
