package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Selection is a student's answer to one question: a single option id for
// single-correct questions, or a set of option ids for multiple-correct ones.
// Exactly one of the two fields is populated. On the wire and in jsonb a
// single selection is a bare uuid string and a multi selection is an array,
// matching the shape the web form produces.
type Selection struct {
	Option  *uuid.UUID
	Options []uuid.UUID
}

// SingleSelection builds a single-correct selection.
func SingleSelection(optionID uuid.UUID) Selection {
	return Selection{Option: &optionID}
}

// MultiSelection builds a multiple-correct selection.
func MultiSelection(optionIDs ...uuid.UUID) Selection {
	return Selection{Options: optionIDs}
}

// IsMulti reports whether the selection carries a set of option ids.
func (s Selection) IsMulti() bool {
	return s.Option == nil
}

// OptionSet returns the selected option ids as a set, duplicates collapsed.
func (s Selection) OptionSet() map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(s.Options)+1)
	if s.Option != nil {
		set[*s.Option] = struct{}{}
	}
	for _, id := range s.Options {
		set[id] = struct{}{}
	}
	return set
}

func (s Selection) MarshalJSON() ([]byte, error) {
	if s.Option != nil {
		return json.Marshal(*s.Option)
	}
	return json.Marshal(s.Options)
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		s.Option = nil
		return json.Unmarshal(data, &s.Options)
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("selection: %w", err)
	}
	s.Option = &id
	s.Options = nil
	return nil
}

// AnswerSet maps question id to the student's selection. uuid.UUID
// implements encoding.TextMarshaler, so the map serializes with string keys.
type AnswerSet map[uuid.UUID]Selection

// Merge overlays other onto a, overwriting by question id. Questions absent
// from other keep their previous selection; reapplying the same payload is a
// no-op.
func (a AnswerSet) Merge(other AnswerSet) AnswerSet {
	if a == nil {
		a = make(AnswerSet, len(other))
	}
	for qid, sel := range other {
		a[qid] = sel
	}
	return a
}

// AnswerPayload is one question's answer as posted by the client.
// Exactly one of option_id / option_ids must be present.
type AnswerPayload struct {
	QuestionID uuid.UUID   `json:"question_id" binding:"required"`
	OptionID   *uuid.UUID  `json:"option_id"`
	OptionIDs  []uuid.UUID `json:"option_ids"`
}

// ErrAmbiguousSelection marks a payload carrying both selection shapes.
var ErrAmbiguousSelection = errors.New("option_id and option_ids are mutually exclusive")

// BuildAnswerSet converts posted payloads to an AnswerSet. A payload with
// both or neither field set is malformed.
func BuildAnswerSet(payloads []AnswerPayload) (AnswerSet, error) {
	set := make(AnswerSet, len(payloads))
	for _, p := range payloads {
		switch {
		case p.OptionID != nil && len(p.OptionIDs) > 0:
			return nil, fmt.Errorf("question %s: %w", p.QuestionID, ErrAmbiguousSelection)
		case p.OptionID != nil:
			set[p.QuestionID] = SingleSelection(*p.OptionID)
		case len(p.OptionIDs) > 0:
			set[p.QuestionID] = MultiSelection(p.OptionIDs...)
		default:
			// No selection for this question; skip rather than store an
			// empty answer.
		}
	}
	return set, nil
}
