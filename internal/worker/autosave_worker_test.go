package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oesys/oes-backend/internal/model"
	"github.com/oesys/oes-backend/internal/service"
	"github.com/rs/zerolog"
)

// fakeAutosaveStore merges applied payloads into one attempt's state the
// way the real repository's guarded jsonb update does.
type fakeAutosaveStore struct {
	open     bool
	answers  model.AnswerSet
	feedback string
	err      error
	calls    int
}

func (f *fakeAutosaveStore) ApplyAutosave(_ context.Context, _ uuid.UUID, answers model.AnswerSet, feedback *string, _ time.Time) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if !f.open {
		return false, nil
	}
	f.answers = f.answers.Merge(answers)
	if feedback != nil {
		f.feedback = *feedback
	}
	return true, nil
}

func autosaveRaw(t *testing.T, p service.AutosavePayload) string {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return string(raw)
}

func TestAutosaveApply_MergesPayload(t *testing.T) {
	store := &fakeAutosaveStore{open: true}
	w := NewAutosaveWorker(store, nil, zerolog.Nop())

	q1, q2 := uuid.New(), uuid.New()
	feedback := "draft"
	raw := autosaveRaw(t, service.AutosavePayload{
		SubmissionID: uuid.New(),
		Answers: model.AnswerSet{
			q1: model.SingleSelection(uuid.New()),
			q2: model.MultiSelection(uuid.New(), uuid.New()),
		},
		Feedback: &feedback,
	})

	if requeue := w.apply(context.Background(), raw); requeue {
		t.Fatal("successful apply requested a requeue")
	}
	if len(store.answers) != 2 {
		t.Fatalf("stored answers = %d, want 2", len(store.answers))
	}
	if store.feedback != feedback {
		t.Fatalf("stored feedback = %q, want %q", store.feedback, feedback)
	}
}

func TestAutosaveApply_FeedbackLastWriteWins(t *testing.T) {
	store := &fakeAutosaveStore{open: true}
	w := NewAutosaveWorker(store, nil, zerolog.Nop())
	id := uuid.New()

	first, second := "halfway", "almost done"
	w.apply(context.Background(), autosaveRaw(t, service.AutosavePayload{SubmissionID: id, Feedback: &first}))
	w.apply(context.Background(), autosaveRaw(t, service.AutosavePayload{SubmissionID: id, Feedback: &second}))

	if store.feedback != second {
		t.Fatalf("stored feedback = %q, want %q", store.feedback, second)
	}
}

func TestAutosaveApply_DuplicateIsIdempotent(t *testing.T) {
	store := &fakeAutosaveStore{open: true}
	w := NewAutosaveWorker(store, nil, zerolog.Nop())

	q := uuid.New()
	opt := uuid.New()
	raw := autosaveRaw(t, service.AutosavePayload{
		SubmissionID: uuid.New(),
		Answers:      model.AnswerSet{q: model.SingleSelection(opt)},
	})

	w.apply(context.Background(), raw)
	w.apply(context.Background(), raw)

	if len(store.answers) != 1 {
		t.Fatalf("stored answers = %d after replay, want 1", len(store.answers))
	}
	if sel := store.answers[q]; sel.Option == nil || *sel.Option != opt {
		t.Fatalf("stored selection = %+v, want option %s", sel, opt)
	}
}

func TestAutosaveApply_DiscardsMalformed(t *testing.T) {
	store := &fakeAutosaveStore{open: true}
	w := NewAutosaveWorker(store, nil, zerolog.Nop())

	if requeue := w.apply(context.Background(), "{not json"); requeue {
		t.Fatal("malformed payload requested a requeue")
	}
	if store.calls != 0 {
		t.Fatalf("store called %d times for malformed payload, want 0", store.calls)
	}
}

func TestAutosaveApply_RequeuesOnStoreError(t *testing.T) {
	store := &fakeAutosaveStore{open: true, err: errors.New("connection reset")}
	w := NewAutosaveWorker(store, nil, zerolog.Nop())

	raw := autosaveRaw(t, service.AutosavePayload{SubmissionID: uuid.New()})
	if requeue := w.apply(context.Background(), raw); !requeue {
		t.Fatal("store error did not request a requeue")
	}
}

func TestAutosaveApply_DropsWhenFinalized(t *testing.T) {
	store := &fakeAutosaveStore{open: false}
	w := NewAutosaveWorker(store, nil, zerolog.Nop())

	raw := autosaveRaw(t, service.AutosavePayload{SubmissionID: uuid.New()})
	if requeue := w.apply(context.Background(), raw); requeue {
		t.Fatal("finalized attempt's payload requested a requeue")
	}
	if store.calls != 1 {
		t.Fatalf("store called %d times, want 1", store.calls)
	}
}
