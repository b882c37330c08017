package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatsaysai/debt-reminder/internal/models"
	"github.com/oatsaysai/debt-reminder/internal/reminder"
	"github.com/oatsaysai/debt-reminder/internal/scheduler"
)

type mockTrigger struct {
	TriggerFunc func(ctx context.Context) error
	next        time.Time
}

func (m *mockTrigger) TriggerNow(ctx context.Context) error {
	if m.TriggerFunc != nil {
		return m.TriggerFunc(ctx)
	}
	return nil
}

func (m *mockTrigger) NextRun() time.Time { return m.next }

type mockSummaries struct{ summary *reminder.Summary }

func (m *mockSummaries) LastSummary() *reminder.Summary { return m.summary }

type mockLister struct {
	ListFunc func(ctx context.Context, userID, limit int) ([]models.Reminder, error)
}

func (m *mockLister) ListReminders(ctx context.Context, userID, limit int) ([]models.Reminder, error) {
	return m.ListFunc(ctx, userID, limit)
}

func do(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestHealth(t *testing.T) {
	s := NewServer(&mockTrigger{}, &mockSummaries{}, &mockLister{})
	rec, body := do(t, s, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestTriggerReminders(t *testing.T) {
	called := false
	s := NewServer(&mockTrigger{TriggerFunc: func(context.Context) error {
		called = true
		return nil
	}}, &mockSummaries{}, &mockLister{})

	rec, body := do(t, s, http.MethodPost, "/api/admin/trigger-reminders")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Reminder processing triggered successfully", body["message"])
}

func TestTriggerRemindersBusy(t *testing.T) {
	s := NewServer(&mockTrigger{TriggerFunc: func(context.Context) error {
		return scheduler.ErrRunInProgress
	}}, &mockSummaries{}, &mockLister{})

	rec, body := do(t, s, http.MethodPost, "/api/admin/trigger-reminders")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, scheduler.ErrRunInProgress.Error(), body["message"])
}

func TestTriggerRemindersFailure(t *testing.T) {
	s := NewServer(&mockTrigger{TriggerFunc: func(context.Context) error {
		return errors.New("reminder run panicked: boom")
	}}, &mockSummaries{}, &mockLister{})

	rec, body := do(t, s, http.MethodPost, "/api/admin/trigger-reminders")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "reminder run panicked: boom", body["message"])
}

func TestTriggerRemindersOutlivesCaller(t *testing.T) {
	var runErr error
	s := NewServer(&mockTrigger{TriggerFunc: func(ctx context.Context) error {
		runErr = ctx.Err()
		return nil
	}}, &mockSummaries{}, &mockLister{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/trigger-reminders", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, runErr)
}

func TestSchedulerStatus(t *testing.T) {
	next := time.Date(2024, 6, 2, 1, 0, 0, 0, time.UTC)
	summary := &reminder.Summary{Kinds: []reminder.KindSummary{{Kind: "7_days", Found: 2, Sent: 2}}}
	s := NewServer(&mockTrigger{next: next}, &mockSummaries{summary: summary}, &mockLister{})

	rec, body := do(t, s, http.MethodGet, "/api/admin/scheduler")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-06-02T01:00:00Z", body["next_run"])
	kinds := body["last_summary"].(map[string]any)["kinds"].([]any)
	assert.Equal(t, "7_days", kinds[0].(map[string]any)["kind"])
}

func TestSchedulerStatusStopped(t *testing.T) {
	s := NewServer(&mockTrigger{}, &mockSummaries{}, &mockLister{})
	rec, body := do(t, s, http.MethodGet, "/api/admin/scheduler")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["next_run"])
	assert.Nil(t, body["last_summary"])
}

func TestListReminders(t *testing.T) {
	var gotUser, gotLimit int
	lister := &mockLister{ListFunc: func(_ context.Context, userID, limit int) ([]models.Reminder, error) {
		gotUser, gotLimit = userID, limit
		return []models.Reminder{{ID: 1, DebtID: 10, UserID: 3, Kind: "7_days", Status: models.ReminderSent}}, nil
	}}
	s := NewServer(&mockTrigger{}, &mockSummaries{}, lister)

	req := httptest.NewRequest(http.MethodGet, "/api/users/3/reminders?limit=5", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, gotUser)
	assert.Equal(t, 5, gotLimit)

	var reminders []models.Reminder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reminders))
	require.Len(t, reminders, 1)
	assert.Equal(t, "7_days", reminders[0].Kind)

	req = httptest.NewRequest(http.MethodGet, "/api/reminders", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, gotUser)
	assert.Equal(t, 100, gotLimit)
}

func TestListRemindersBadInput(t *testing.T) {
	s := NewServer(&mockTrigger{}, &mockSummaries{}, &mockLister{})

	rec, _ := do(t, s, http.MethodGet, "/api/users/abc/reminders")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/reminders?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRemindersStoreError(t *testing.T) {
	lister := &mockLister{ListFunc: func(context.Context, int, int) ([]models.Reminder, error) {
		return nil, errors.New("db down")
	}}
	s := NewServer(&mockTrigger{}, &mockSummaries{}, lister)

	rec, body := do(t, s, http.MethodGet, "/api/reminders")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to list reminders", body["error"])
}
