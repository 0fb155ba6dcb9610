package models

import (
	"testing"
)

func TestResolveAnswerPayload(t *testing.T) {
	t.Run("string becomes text", func(t *testing.T) {
		p, err := ResolveAnswerPayload("option-b")
		if err != nil {
			t.Fatalf("ResolveAnswerPayload failed: %v", err)
		}
		if p.Kind != PayloadText || p.Text != "option-b" {
			t.Errorf("payload = %+v, want text %q", p, "option-b")
		}
	})

	t.Run("bool and number are stringified", func(t *testing.T) {
		p, err := ResolveAnswerPayload(true)
		if err != nil {
			t.Fatalf("ResolveAnswerPayload failed: %v", err)
		}
		if p.Text != "true" {
			t.Errorf("Text = %q, want %q", p.Text, "true")
		}

		p, err = ResolveAnswerPayload(float64(42))
		if err != nil {
			t.Fatalf("ResolveAnswerPayload failed: %v", err)
		}
		if p.Text != "42" {
			t.Errorf("Text = %q, want %q (no fractional part)", p.Text, "42")
		}
	})

	t.Run("array becomes selection", func(t *testing.T) {
		p, err := ResolveAnswerPayload([]interface{}{"a", "c"})
		if err != nil {
			t.Fatalf("ResolveAnswerPayload failed: %v", err)
		}
		if p.Kind != PayloadSelection || len(p.Selection) != 2 {
			t.Fatalf("payload = %+v, want selection of 2", p)
		}
		if p.Selection[0] != "a" || p.Selection[1] != "c" {
			t.Errorf("Selection = %v, want [a c]", p.Selection)
		}
	})

	t.Run("map becomes true/false map with stringified values", func(t *testing.T) {
		p, err := ResolveAnswerPayload(map[string]interface{}{"1": true, "2": "false"})
		if err != nil {
			t.Fatalf("ResolveAnswerPayload failed: %v", err)
		}
		if p.Kind != PayloadTrueFalseMap {
			t.Fatalf("Kind = %s, want true_false_map", p.Kind)
		}
		if p.TrueFalseMap["1"] != "true" || p.TrueFalseMap["2"] != "false" {
			t.Errorf("TrueFalseMap = %v, want stringified bools", p.TrueFalseMap)
		}
	})

	t.Run("nil is an empty text payload", func(t *testing.T) {
		p, err := ResolveAnswerPayload(nil)
		if err != nil {
			t.Fatalf("ResolveAnswerPayload failed: %v", err)
		}
		if !p.IsEmpty() {
			t.Errorf("payload = %+v, want empty", p)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		if _, err := ResolveAnswerPayload(struct{}{}); err == nil {
			t.Fatal("expected error for unsupported payload type")
		}
	})
}

func TestAnswerPayloadIsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		payload AnswerPayload
		want    bool
	}{
		{name: "empty text", payload: AnswerPayload{Kind: PayloadText}, want: true},
		{name: "text", payload: AnswerPayload{Kind: PayloadText, Text: "x"}, want: false},
		{name: "empty selection", payload: AnswerPayload{Kind: PayloadSelection}, want: true},
		{name: "selection", payload: AnswerPayload{Kind: PayloadSelection, Selection: []string{"a"}}, want: false},
		{name: "empty map", payload: AnswerPayload{Kind: PayloadTrueFalseMap}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.payload.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}
