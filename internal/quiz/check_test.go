package quiz_test

import (
	"errors"
	"testing"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

func TestDefinitionCheck(t *testing.T) {
	if err := sampleDefinition().Check(); err != nil {
		t.Fatalf("sample should pass: %v", err)
	}

	tests := map[string]func(d *quiz.Definition){
		"two correct single choice": func(d *quiz.Definition) { d.Questions[0].Choices[1].IsCorrect = true },
		"choice question without choices": func(d *quiz.Definition) { d.Questions[1].Choices = nil },
		"exact match without answer":      func(d *quiz.Definition) { d.Questions[2].ExpectedAnswer = nil },
		"free text with choices": func(d *quiz.Definition) {
			d.Questions[3].Choices = []quiz.Choice{{ID: "x", Text: "x"}}
		},
		"duplicate question id": func(d *quiz.Definition) { d.Questions[1].ID = "q1" },
		"duplicate choice id":   func(d *quiz.Definition) { d.Questions[1].Choices[0].ID = "q1a" },
		"mode on choice question": func(d *quiz.Definition) {
			d.Questions[0].FreeTextMode = quiz.ModeManual
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			d := sampleDefinition()
			mutate(&d)
			if err := d.Check(); !errors.Is(err, quiz.ErrInvalidDefinition) {
				t.Fatalf("want ErrInvalidDefinition, got %v", err)
			}
		})
	}
}
