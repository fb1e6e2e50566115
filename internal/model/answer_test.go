package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestSelection_WireShapes(t *testing.T) {
	single := uuid.New()
	a, b := uuid.New(), uuid.New()

	set := AnswerSet{
		uuid.MustParse("11111111-1111-1111-1111-111111111111"): SingleSelection(single),
		uuid.MustParse("22222222-2222-2222-2222-222222222222"): MultiSelection(a, b),
	}

	raw, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Singles travel as bare uuid strings, multis as arrays.
	var shapes map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shapes); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if s := shapes["11111111-1111-1111-1111-111111111111"]; s[0] != '"' {
		t.Fatalf("single selection encoded as %s, want bare string", s)
	}
	if m := shapes["22222222-2222-2222-2222-222222222222"]; m[0] != '[' {
		t.Fatalf("multi selection encoded as %s, want array", m)
	}

	var back AnswerSet
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	gotSingle := back[uuid.MustParse("11111111-1111-1111-1111-111111111111")]
	if gotSingle.IsMulti() || *gotSingle.Option != single {
		t.Fatalf("single came back as %+v", gotSingle)
	}
	gotMulti := back[uuid.MustParse("22222222-2222-2222-2222-222222222222")]
	if !gotMulti.IsMulti() || len(gotMulti.Options) != 2 {
		t.Fatalf("multi came back as %+v", gotMulti)
	}
}

func TestSelection_RejectsGarbage(t *testing.T) {
	var s Selection
	if err := json.Unmarshal([]byte(`"not-a-uuid"`), &s); err == nil {
		t.Fatal("want error for malformed uuid")
	}
}

func TestAnswerSet_Merge(t *testing.T) {
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	oldOpt, newOpt, keptOpt, addedOpt := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	base := AnswerSet{
		q1: SingleSelection(oldOpt),
		q2: SingleSelection(keptOpt),
	}

	merged := base.Merge(AnswerSet{
		q1: SingleSelection(newOpt),
		q3: MultiSelection(addedOpt),
	})

	if *merged[q1].Option != newOpt {
		t.Fatal("overwrite by question id failed")
	}
	if *merged[q2].Option != keptOpt {
		t.Fatal("untouched question lost its selection")
	}
	if len(merged[q3].Options) != 1 {
		t.Fatal("new question not merged in")
	}

	// Replaying the same partial write changes nothing.
	again := merged.Merge(AnswerSet{q1: SingleSelection(newOpt)})
	if len(again) != 3 || *again[q1].Option != newOpt {
		t.Fatal("merge is not idempotent")
	}
}

func TestAnswerSet_MergeIntoNil(t *testing.T) {
	q := uuid.New()
	var base AnswerSet

	merged := base.Merge(AnswerSet{q: SingleSelection(uuid.New())})
	if len(merged) != 1 {
		t.Fatalf("merged = %d entries, want 1", len(merged))
	}
}

func TestBuildAnswerSet(t *testing.T) {
	q1, q2 := uuid.New(), uuid.New()
	opt := uuid.New()

	set, err := BuildAnswerSet([]AnswerPayload{
		{QuestionID: q1, OptionID: &opt},
		{QuestionID: q2}, // no selection, skipped
	})
	if err != nil {
		t.Fatalf("BuildAnswerSet: %v", err)
	}
	if len(set) != 1 {
		t.Fatalf("set = %d entries, want 1 (empty payload skipped)", len(set))
	}

	_, err = BuildAnswerSet([]AnswerPayload{
		{QuestionID: q1, OptionID: &opt, OptionIDs: []uuid.UUID{opt}},
	})
	if !errors.Is(err, ErrAmbiguousSelection) {
		t.Fatalf("err = %v, want ErrAmbiguousSelection", err)
	}
}
