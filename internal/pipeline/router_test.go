package pipeline

import (
	"strings"
	"testing"

	"github.com/engramdev/engram/internal/parse"
)

func TestRoute_ThresholdBoundary(t *testing.T) {
	messages := []parse.Message{
		{ID: "at", Text: strings.Repeat("a", 2400)},
		{ID: "over", Text: strings.Repeat("a", 2401)},
	}

	short, large := Route(messages, 2400)
	if len(short) != 1 || short[0].ID != "at" {
		t.Errorf("short = %+v", short)
	}
	if len(large) != 1 || large[0].ID != "over" {
		t.Errorf("large = %+v", large)
	}
}

func TestRoute_CountsCharactersNotBytes(t *testing.T) {
	// 10 three-byte runes: 10 characters, 30 bytes
	messages := []parse.Message{{ID: "cjk", Text: strings.Repeat("通", 10)}}
	short, large := Route(messages, 10)
	if len(short) != 1 || len(large) != 0 {
		t.Fatalf("multibyte text misrouted: short=%d large=%d", len(short), len(large))
	}
}

func TestRoute_Empty(t *testing.T) {
	short, large := Route(nil, 2400)
	if len(short) != 0 || len(large) != 0 {
		t.Fatal("expected empty partitions")
	}
}
