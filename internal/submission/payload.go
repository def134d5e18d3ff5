package submission

import (
	"fmt"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// AnswerPayload is the normalized answer to one question. Exactly one of
// SingleChoice, MultiChoice, FreeText or Empty.
type AnswerPayload interface {
	isAnswerPayload()
}

type SingleChoice struct{ ChoiceID string }

type MultiChoice struct{ ChoiceIDs []string }

type FreeText struct{ Text string }

// Empty clears any stored answer.
type Empty struct{}

func (SingleChoice) isAnswerPayload() {}
func (MultiChoice) isAnswerPayload()  {}
func (FreeText) isAnswerPayload()     {}
func (Empty) isAnswerPayload()        {}

// PayloadFor turns client input into the payload kind the question's type allows.
func PayloadFor(q quiz.Question, in AnswerInput) (AnswerPayload, error) {
	text := ""
	if in.TextResponse != nil {
		text = *in.TextResponse
	}
	switch q.Type {
	case quiz.TypeFreeText:
		if len(in.ChoiceIDs) > 0 {
			return nil, fmt.Errorf("%w: question %s takes a text response", ErrInvalidAnswer, q.ID)
		}
		if text == "" {
			return Empty{}, nil
		}
		return FreeText{Text: text}, nil

	case quiz.TypeSingleChoice, quiz.TypeMultiAnswer:
		if text != "" {
			return nil, fmt.Errorf("%w: question %s takes choices", ErrInvalidAnswer, q.ID)
		}
		ids := dedupe(in.ChoiceIDs)
		for _, id := range ids {
			if !q.HasChoice(id) {
				return nil, fmt.Errorf("%w: choice %s is not part of question %s", ErrInvalidAnswer, id, q.ID)
			}
		}
		switch {
		case len(ids) == 0:
			return Empty{}, nil
		case q.Type == quiz.TypeMultiAnswer:
			return MultiChoice{ChoiceIDs: ids}, nil
		case len(ids) > 1:
			return nil, fmt.Errorf("%w: question %s accepts a single choice", ErrInvalidAnswer, q.ID)
		default:
			return SingleChoice{ChoiceID: ids[0]}, nil
		}
	}
	return nil, fmt.Errorf("%w: unsupported question type %q", ErrInvalidAnswer, q.Type)
}

// answerRows expands a payload into the stored answer-row convention:
// one row per chosen choice, or a single text row, or nothing.
func answerRows(p AnswerPayload) []answerRow {
	switch v := p.(type) {
	case SingleChoice:
		return []answerRow{{choiceID: &v.ChoiceID}}
	case MultiChoice:
		out := make([]answerRow, 0, len(v.ChoiceIDs))
		for i := range v.ChoiceIDs {
			out = append(out, answerRow{choiceID: &v.ChoiceIDs[i]})
		}
		return out
	case FreeText:
		return []answerRow{{text: &v.Text}}
	default:
		return nil
	}
}

type answerRow struct {
	choiceID *string
	text     *string
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
