package grading

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oesys/oes-backend/internal/model"
)

var (
	optA = uuid.New()
	optB = uuid.New()
	optC = uuid.New()
	optD = uuid.New()
)

func singleQuestion(points int, correct uuid.UUID) model.Question {
	q := model.Question{ID: uuid.New(), Points: points}
	for _, id := range []uuid.UUID{optA, optB, optC} {
		q.Options = append(q.Options, model.Option{ID: id, QuestionID: q.ID, IsCorrect: id == correct})
	}
	return q
}

func multiQuestion(points int, correct ...uuid.UUID) model.Question {
	q := model.Question{ID: uuid.New(), Points: points, MultipleCorrect: true}
	correctSet := make(map[uuid.UUID]bool, len(correct))
	for _, id := range correct {
		correctSet[id] = true
	}
	for _, id := range []uuid.UUID{optA, optB, optC, optD} {
		q.Options = append(q.Options, model.Option{ID: id, QuestionID: q.ID, IsCorrect: correctSet[id]})
	}
	return q
}

func TestScore_SingleCorrect(t *testing.T) {
	q := singleQuestion(5, optB)

	tests := []struct {
		name string
		sel  *model.Selection
		want int
	}{
		{name: "correct option", sel: &model.Selection{Option: &optB}, want: 5},
		{name: "wrong option", sel: &model.Selection{Option: &optA}, want: 0},
		{name: "unanswered", sel: nil, want: 0},
		{name: "multi selection against single question", sel: &model.Selection{Options: []uuid.UUID{optB}}, want: 0},
		{name: "unknown option id", sel: &model.Selection{Option: &optD}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			answers := model.AnswerSet{}
			if tc.sel != nil {
				answers[q.ID] = *tc.sel
			}
			if got := Score([]model.Question{q}, answers); got != tc.want {
				t.Errorf("Score() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestScore_MultipleCorrectAllOrNothing(t *testing.T) {
	// Correct set {A, C}: only the exact selection scores.
	q := multiQuestion(4, optA, optC)

	tests := []struct {
		name     string
		selected []uuid.UUID
		want     int
	}{
		{name: "exact set", selected: []uuid.UUID{optA, optC}, want: 4},
		{name: "exact set reversed", selected: []uuid.UUID{optC, optA}, want: 4},
		{name: "duplicates collapse", selected: []uuid.UUID{optA, optA, optC}, want: 4},
		{name: "subset", selected: []uuid.UUID{optA}, want: 0},
		{name: "superset", selected: []uuid.UUID{optA, optB, optC}, want: 0},
		{name: "empty selection", selected: []uuid.UUID{}, want: 0},
		{name: "disjoint", selected: []uuid.UUID{optB, optD}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			answers := model.AnswerSet{q.ID: model.MultiSelection(tc.selected...)}
			if got := Score([]model.Question{q}, answers); got != tc.want {
				t.Errorf("Score() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestScore_Totals(t *testing.T) {
	q1 := singleQuestion(3, optA)
	q2 := multiQuestion(4, optB, optD)
	q3 := singleQuestion(2, optC)

	answers := model.AnswerSet{
		q1.ID: model.SingleSelection(optA),      // +3
		q2.ID: model.MultiSelection(optD, optB), // +4
		q3.ID: model.SingleSelection(optA),      // wrong, +0
	}

	if got := Score([]model.Question{q1, q2, q3}, answers); got != 7 {
		t.Errorf("Score() = %d, want 7", got)
	}

	// No negative marking: all wrong still floors at zero.
	wrong := model.AnswerSet{
		q1.ID: model.SingleSelection(optB),
		q2.ID: model.MultiSelection(optA),
		q3.ID: model.SingleSelection(optB),
	}
	if got := Score([]model.Question{q1, q2, q3}, wrong); got != 0 {
		t.Errorf("Score() = %d, want 0", got)
	}
}

func TestScore_MultiWithNoCorrectOptionsNeverAwards(t *testing.T) {
	q := multiQuestion(5) // no correct options
	answers := model.AnswerSet{q.ID: model.MultiSelection()}
	if got := Score([]model.Question{q}, answers); got != 0 {
		t.Errorf("Score() = %d, want 0", got)
	}
}
