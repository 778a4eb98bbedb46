package conversation

import (
	"testing"
	"time"
)

func TestNewTurn(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	turn, err := NewTurn(RoleUser, "hi", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.Timestamp.Location() != time.UTC {
		t.Error("expected UTC timestamp")
	}
	if _, err := NewTurn("system", "x", at); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestExchange(t *testing.T) {
	at := time.Now()
	answer := "They run small."

	turns := Exchange("do they fit?", &answer, at)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Text != "do they fit?" {
		t.Errorf("unexpected user turn: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Text != answer {
		t.Errorf("unexpected assistant turn: %+v", turns[1])
	}

	turns = Exchange("hello?", nil, at)
	if turns[1].Text != NoAnswerMarker {
		t.Errorf("expected marker, got %q", turns[1].Text)
	}
}

func TestLast(t *testing.T) {
	turns := []Turn{{Text: "1"}, {Text: "2"}, {Text: "3"}}
	if got := Last(turns, 2); len(got) != 2 || got[0].Text != "2" {
		t.Errorf("unexpected tail: %+v", got)
	}
	if got := Last(turns, 10); len(got) != 3 {
		t.Errorf("expected all turns, got %d", len(got))
	}
	if got := Last(turns, 0); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestTranscript(t *testing.T) {
	got := Transcript([]Turn{
		{Role: RoleUser, Text: "q"},
		{Role: RoleAssistant, Text: "a"},
	})
	if got != "user: q\nassistant: a\n" {
		t.Errorf("unexpected transcript %q", got)
	}
}
