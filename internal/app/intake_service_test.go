package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"counseling-intake/internal/app"
	"counseling-intake/internal/catalog"
	"counseling-intake/internal/classify"
	"counseling-intake/internal/domain"
	"counseling-intake/internal/infra/memory"
)

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestIntakeEndToEnd(t *testing.T) {
	ctx := context.Background()
	service, sessions := newTestService(t)

	r := register(t, service, "Dr. Mehta")

	snap, err := service.StartSession(ctx, r.ID, []string{"assessment-4", "assessment-3", "assessment-3"})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if len(snap.Instruments) != 2 || snap.Instruments[0] != "assessment-3" || snap.Instruments[1] != "assessment-4" {
		t.Fatalf("expected sorted unique instruments, got %v", snap.Instruments)
	}
	if snap.InstrumentID != "assessment-3" || len(snap.Answers) != 14 {
		t.Fatalf("expected HAM-A with 14 empty answers, got %+v", snap)
	}

	answerAll(t, service, snap.ID, 14, "2")
	done, err := service.Complete(ctx, snap.ID)
	if err != nil {
		t.Fatalf("complete HAM-A: %v", err)
	}
	if done.Score.RawScore != 28 || done.Level.Label != "Moderate-Severe" {
		t.Fatalf("expected 28 / Moderate-Severe, got %v / %s", done.Score.RawScore, done.Level.Label)
	}
	if done.Session.Finished || done.Session.InstrumentID != "assessment-4" || len(done.Session.Answers) != 17 {
		t.Fatalf("expected session to advance to HDRS, got %+v", done.Session)
	}

	answerAll(t, service, snap.ID, 17, "1")
	done, err = service.Complete(ctx, snap.ID)
	if err != nil {
		t.Fatalf("complete HDRS: %v", err)
	}
	if done.Score.RawScore != 17 || done.Level.Label != "Mild" {
		t.Fatalf("expected 17 / Mild, got %v / %s", done.Score.RawScore, done.Level.Label)
	}
	if !done.Session.Finished {
		t.Fatalf("expected session finished")
	}
	if _, ok := sessions.Get(snap.ID); ok {
		t.Fatalf("expected finished session to be dropped")
	}

	summary, err := service.Summary(ctx, r.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.Results) != 2 || summary.Results[0].InstrumentID != "assessment-3" || summary.Results[1].InstrumentID != "assessment-4" {
		t.Fatalf("unexpected results %+v", summary.Results)
	}
	// round((28 + 17) / 2) = 23
	if summary.Overall != 23 || summary.OverallLevel.Label != "At Risk" {
		t.Fatalf("expected overall 23 / At Risk, got %d / %s", summary.Overall, summary.OverallLevel.Label)
	}
}

func TestIncompleteAnswersAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	r := register(t, service, "Dr. Mehta")

	snap, err := service.StartSession(ctx, r.ID, []string{"assessment-6"})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	answerAll(t, service, snap.ID, 19, "3")

	if _, err := service.Complete(ctx, snap.ID); !errors.Is(err, domain.ErrInvalidAnswer) {
		t.Fatalf("expected invalid answer, got %v", err)
	}
	summary, _ := service.Summary(ctx, r.ID)
	if len(summary.Results) != 0 {
		t.Fatalf("expected nothing persisted, got %+v", summary.Results)
	}

	current, err := service.Session(ctx, snap.ID)
	if err != nil {
		t.Fatalf("session should survive a failed completion: %v", err)
	}
	if current.Answered != 19 || current.InstrumentID != "assessment-6" {
		t.Fatalf("unexpected session state %+v", current)
	}
}

func TestAnswerValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	r := register(t, service, "Dr. Mehta")

	snap, _ := service.StartSession(ctx, r.ID, []string{"assessment-4"})

	if _, err := service.Answer(ctx, snap.ID, 17, "1"); !errors.Is(err, domain.ErrQuestionOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if _, err := service.Answer(ctx, snap.ID, -1, "1"); !errors.Is(err, domain.ErrQuestionOutOfRange) {
		t.Fatalf("expected out of range for negative index, got %v", err)
	}
	// item 4 of HDRS is scored 0-2
	if _, err := service.Answer(ctx, snap.ID, 3, "4"); !errors.Is(err, domain.ErrInvalidAnswer) {
		t.Fatalf("expected invalid option, got %v", err)
	}
	if _, err := service.Answer(ctx, "missing", 0, "1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}

	got, err := service.Answer(ctx, snap.ID, 3, "2")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got.Answers[3] != "2" || got.Answered != 1 {
		t.Fatalf("expected answer recorded, got %+v", got)
	}
}

func TestStartSessionValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	r := register(t, service, "Dr. Mehta")

	if _, err := service.StartSession(ctx, "nobody", []string{"assessment-1"}); !errors.Is(err, domain.ErrRespondentNotFound) {
		t.Fatalf("expected respondent not found, got %v", err)
	}
	if _, err := service.StartSession(ctx, r.ID, nil); !errors.Is(err, domain.ErrNoInstruments) {
		t.Fatalf("expected no instruments, got %v", err)
	}
	if _, err := service.StartSession(ctx, r.ID, []string{"assessment-1", "assessment-99"}); !errors.Is(err, domain.ErrUnknownInstrument) {
		t.Fatalf("expected unknown instrument, got %v", err)
	}
}

func TestRegisterValidatesConsent(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	valid := domain.Consent{
		Name:          "Asha Rao",
		RollNumber:    "21A91A0501",
		PhoneNumber:   "9876543210",
		CounselorName: "Dr. Mehta",
		SignatureDate: "2025-03-01",
	}
	broken := []func(*domain.Consent){
		func(c *domain.Consent) { c.Name = "A" },
		func(c *domain.Consent) { c.RollNumber = "  " },
		func(c *domain.Consent) { c.PhoneNumber = "98765" },
		func(c *domain.Consent) { c.CounselorName = "" },
		func(c *domain.Consent) { c.SignatureDate = "" },
	}
	for i, mutate := range broken {
		c := valid
		mutate(&c)
		if _, err := service.RegisterRespondent(ctx, c); !errors.Is(err, domain.ErrInvalidConsent) {
			t.Fatalf("case %d: expected invalid consent, got %v", i, err)
		}
	}

	r, err := service.RegisterRespondent(ctx, valid)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.ID == "" || r.Scores == nil || !r.DateCompleted.Equal(fixedNow) {
		t.Fatalf("unexpected respondent %+v", r)
	}
}

func TestSubscribeReceivesCompletions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	r := register(t, service, "Dr. Mehta")

	events, cancel := service.Subscribe()
	defer cancel()

	snap, _ := service.StartSession(ctx, r.ID, []string{"assessment-6"})
	answerAll(t, service, snap.ID, 20, "4")
	if _, err := service.Complete(ctx, snap.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	select {
	case ev := <-events:
		if ev.RespondentID != r.ID || ev.InstrumentID != "assessment-6" || ev.Level.Label != "Severe" {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Name != "Asha Rao" || ev.CounselorName != "Dr. Mehta" {
			t.Fatalf("expected identity on event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected completion event")
	}
}

func TestCompleteAfterFinishFails(t *testing.T) {
	ctx := context.Background()
	records := memory.NewRecordStore()
	sessions := memory.NewSessionStore()
	service := newServiceWith(t, records, sessions, "")

	r := register(t, service, "Dr. Mehta")
	// a finished session that is still registered
	sessions.Put(app.NewSession("s-done", r.ID, []string{}, 0))

	if _, err := service.Complete(ctx, "s-done"); !errors.Is(err, domain.ErrSessionFinished) {
		t.Fatalf("expected finished, got %v", err)
	}
	if _, err := service.Answer(ctx, "s-done", 0, "1"); !errors.Is(err, domain.ErrSessionFinished) {
		t.Fatalf("expected finished on answer, got %v", err)
	}
}

func TestAdminPassword(t *testing.T) {
	open := newServiceWith(t, memory.NewRecordStore(), memory.NewSessionStore(), "")
	if err := open.VerifyAdminPassword("anything"); !errors.Is(err, domain.ErrAdminNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}

	guarded := newServiceWith(t, memory.NewRecordStore(), memory.NewSessionStore(), "s3cret")
	if err := guarded.VerifyAdminPassword("wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := guarded.VerifyAdminPassword("s3cret"); err != nil {
		t.Fatalf("expected password accepted, got %v", err)
	}
}

func TestRecordsFiltersAndCounselors(t *testing.T) {
	ctx := context.Background()
	records := memory.NewRecordStore()
	service := newServiceWith(t, records, memory.NewSessionStore(), "s3cret")

	a := register(t, service, "Dr. Mehta")
	b := register(t, service, "Ms. Iyer")
	_ = register(t, service, "Dr. Mehta")

	// a: IAT 90 -> overall 90 Excellent; b: HAM-A 20 -> overall 20 At Risk
	_ = records.SaveScore(ctx, a.ID, domain.Score{InstrumentID: "assessment-6", RawScore: 90})
	_ = records.SaveScore(ctx, b.ID, domain.Score{InstrumentID: "assessment-3", RawScore: 20})

	all, err := service.Records(ctx, app.RecordFilter{})
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}

	mehta, _ := service.Records(ctx, app.RecordFilter{Counselor: "Dr. Mehta"})
	if len(mehta) != 2 {
		t.Fatalf("expected 2 records for Dr. Mehta, got %d", len(mehta))
	}

	excellent, _ := service.Records(ctx, app.RecordFilter{Level: "Excellent"})
	if len(excellent) != 1 || excellent[0].ID != a.ID {
		t.Fatalf("expected only a as Excellent, got %+v", excellent)
	}
	if excellent[0].Results[0].Level.Label != "Severe" {
		t.Fatalf("expected per-instrument level Severe, got %s", excellent[0].Results[0].Level.Label)
	}

	lo, hi := 10, 50
	mid, _ := service.Records(ctx, app.RecordFilter{MinOverall: &lo, MaxOverall: &hi})
	if len(mid) != 1 || mid[0].ID != b.ID {
		t.Fatalf("expected only b in 10..50, got %+v", mid)
	}

	counselors, err := service.Counselors(ctx)
	if err != nil {
		t.Fatalf("counselors: %v", err)
	}
	if fmt.Sprint(counselors) != "[Dr. Mehta Ms. Iyer]" {
		t.Fatalf("unexpected counselors %v", counselors)
	}

	if err := service.ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	all, _ = service.Records(ctx, app.RecordFilter{})
	if len(all) != 0 {
		t.Fatalf("expected no records after clear, got %d", len(all))
	}
}

func newTestService(t *testing.T) (*app.IntakeService, *memory.SessionStore) {
	t.Helper()
	sessions := memory.NewSessionStore()
	return newServiceWith(t, memory.NewRecordStore(), sessions, "s3cret"), sessions
}

func newServiceWith(t *testing.T, records app.RecordStore, sessions app.SessionRepository, password string) *app.IntakeService {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return app.NewIntakeService(records, sessions, cat, classify.Default(), app.Options{
		AdminPassword: password,
		Now:           func() time.Time { return fixedNow },
	})
}

func register(t *testing.T, service *app.IntakeService, counselor string) domain.Respondent {
	t.Helper()
	r, err := service.RegisterRespondent(context.Background(), domain.Consent{
		Name:          "Asha Rao",
		RollNumber:    "21A91A0501",
		PhoneNumber:   "9876543210",
		CounselorName: counselor,
		SignatureDate: "2025-03-01",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return r
}

func answerAll(t *testing.T, service *app.IntakeService, sessionID string, n int, value string) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := service.Answer(context.Background(), sessionID, i, value); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
}
