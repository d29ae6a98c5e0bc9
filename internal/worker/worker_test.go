package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cabinrent/internal/database"
	"cabinrent/internal/events"
	"cabinrent/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestProcessTaskSuccess(t *testing.T) {
	reports := &fakeReports{}
	archive := &fakeArchive{}
	worker := NewArchiveWorker(reports, archive, nil, RetryPolicy{}, nil)
	worker.now = fixedNow

	ctx := context.Background()
	if err := worker.Enqueue(ctx, Task{Type: TaskStatement, ReservationID: 7}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	if task.ID == "" || task.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be set, got %+v", task)
	}
	worker.processTask(ctx, &task)

	if reports.statementCalls != 1 {
		t.Fatalf("expected statement call, got %d", reports.statementCalls)
	}
	keys := archive.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected 1 archived object, got %d", len(keys))
	}
	want := fmt.Sprintf("statements/2025-07/statement_7_%s.xlsx", task.ID[:8])
	if keys[0] != want {
		t.Fatalf("expected key %s, got %s", want, keys[0])
	}
}

func TestProcessTaskRetry(t *testing.T) {
	reports := &fakeReports{err: errors.New("boom")}
	worker := NewArchiveWorker(reports, &fakeArchive{}, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond}, nil)

	ctx := context.Background()
	task := Task{ID: "t1", Type: TaskStatement, ReservationID: 2}
	worker.processTask(ctx, &task)

	if task.Attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", task.Attempts)
	}
	if task.LastError == "" {
		t.Fatalf("expected last error to be recorded")
	}

	select {
	case requeued := <-worker.queue:
		if requeued.ID != "t1" || requeued.Attempts != 1 {
			t.Fatalf("unexpected requeued task: %+v", requeued)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected task to be requeued")
	}
	if len(worker.DeadLetters()) != 0 {
		t.Fatalf("expected no dead letters")
	}
}

func TestProcessTaskFail(t *testing.T) {
	reports := &fakeReports{err: errors.New("fatal")}
	worker := NewArchiveWorker(reports, &fakeArchive{}, nil, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	task := Task{ID: "t2", Type: TaskPaymentsReport, From: day(1), To: day(31)}
	worker.processTask(ctx, &task)

	dead := worker.DeadLetters()
	if len(dead) != 1 || dead[0].ID != "t2" {
		t.Fatalf("expected task in dead letters, got %+v", dead)
	}
}

func TestProcessTaskMissingReservation(t *testing.T) {
	reports := &fakeReports{err: fmt.Errorf("reservation 9: %w", database.ErrNotFound)}
	worker := NewArchiveWorker(reports, &fakeArchive{}, nil, RetryPolicy{MaxRetries: 5}, nil)

	task := Task{ID: "t3", Type: TaskStatement, ReservationID: 9}
	worker.processTask(context.Background(), &task)

	if len(worker.DeadLetters()) != 1 {
		t.Fatalf("expected missing reservation to be dead-lettered without retries")
	}
}

func TestEnqueueValidation(t *testing.T) {
	worker := NewArchiveWorker(&fakeReports{}, &fakeArchive{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		task Task
	}{
		{"EmptyType", Task{ReservationID: 1}},
		{"UnknownType", Task{Type: "sheets_sync", ReservationID: 1}},
		{"MissingReservation", Task{Type: TaskStatement}},
		{"InvertedWindow", Task{Type: TaskReservationsReport, From: day(10), To: day(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := worker.Enqueue(ctx, tt.task); err == nil {
				t.Fatalf("expected error for %+v", tt.task)
			}
		})
	}
}

func TestEnqueueMonthlyReports(t *testing.T) {
	reports := &fakeReports{}
	archive := &fakeArchive{}
	worker := NewArchiveWorker(reports, archive, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	if err := worker.EnqueueMonthlyReports(ctx, models.NewDate(2025, time.February, 14)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	for i := 0; i < 2; i++ {
		task, ok := worker.tryLocalQueue()
		if !ok {
			t.Fatalf("expected task %d in queue", i)
		}
		if task.From.String() != "2025-02-01" || task.To.String() != "2025-02-28" {
			t.Fatalf("unexpected window %s - %s", task.From, task.To)
		}
		worker.processTask(ctx, &task)
	}

	keys := archive.Keys()
	want := []string{
		"reports/2025-02/reservations_2025-02-01_to_2025-02-28.xlsx",
		"reports/2025-02/payments_2025-02-01_to_2025-02-28.xlsx",
	}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestMonthRollover(t *testing.T) {
	worker := NewArchiveWorker(&fakeReports{}, &fakeArchive{}, nil, RetryPolicy{}, nil)
	now := time.Date(2025, time.July, 31, 23, 0, 0, 0, time.UTC)
	worker.now = func() time.Time { return now }
	worker.lastMonth = models.DateOf(now).FirstOfMonth()

	ctx := context.Background()
	worker.checkMonthRollover(ctx)
	if len(worker.queue) != 0 {
		t.Fatalf("expected no tasks within the same month")
	}

	now = now.Add(2 * time.Hour)
	worker.checkMonthRollover(ctx)
	if len(worker.queue) != 2 {
		t.Fatalf("expected two report tasks after rollover, got %d", len(worker.queue))
	}
	task, _ := worker.tryLocalQueue()
	if task.From.String() != "2025-07-01" || task.To.String() != "2025-07-31" {
		t.Fatalf("expected July window, got %s - %s", task.From, task.To)
	}

	worker.checkMonthRollover(ctx)
	if len(worker.queue) != 1 {
		t.Fatalf("expected rollover to fire once, got %d queued", len(worker.queue))
	}
}

func TestSubscribeQueuesStatementOnCheckOut(t *testing.T) {
	worker := NewArchiveWorker(&fakeReports{}, &fakeArchive{}, nil, RetryPolicy{}, nil)
	bus := events.NewEventBus()
	worker.Subscribe(bus)

	publish := func(status string) {
		payload := events.ReservationEventPayload{ReservationID: 11, Status: status}
		if err := bus.PublishJSON(events.EventReservationStatusChanged, payload); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	publish(models.StatusCleaning)
	if len(worker.queue) != 0 {
		t.Fatalf("expected no statement before check_out")
	}

	publish(models.StatusCheckOut)
	task, ok := worker.tryLocalQueue()
	if !ok || task.Type != TaskStatement || task.ReservationID != 11 {
		t.Fatalf("expected statement task, got %+v (ok=%v)", task, ok)
	}
}

func TestRedisQueue(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	worker := NewArchiveWorker(&fakeReports{err: errors.New("fatal")}, &fakeArchive{}, client, RetryPolicy{MaxRetries: 1}, nil)
	ctx := context.Background()

	if err := worker.Enqueue(ctx, Task{Type: TaskStatement, ReservationID: 5}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(worker.queue) != 0 {
		t.Fatalf("expected task in redis, not in memory")
	}

	task, ok := worker.tryRedis(ctx)
	if !ok || task.ReservationID != 5 {
		t.Fatalf("expected task from redis, got %+v", task)
	}

	worker.processTask(ctx, &task)
	raw, err := client.LRange(ctx, worker.deadLetterKey, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected 1 dead letter in redis, got %d", len(raw))
	}
	var dead Task
	if err := json.Unmarshal([]byte(raw[0]), &dead); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if dead.Attempts != 1 || dead.LastError == "" {
		t.Fatalf("unexpected dead letter %+v", dead)
	}
}

func TestRedisDownFallsBackToMemory(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer client.Close()
	s.Close()

	worker := NewArchiveWorker(&fakeReports{}, &fakeArchive{}, client, RetryPolicy{}, nil)
	if err := worker.Enqueue(context.Background(), Task{Type: TaskStatement, ReservationID: 5}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(worker.queue) != 1 {
		t.Fatalf("expected task in memory queue")
	}
}

func TestStartProcessesQueue(t *testing.T) {
	archive := &fakeArchive{}
	worker := NewArchiveWorker(&fakeReports{}, archive, nil, RetryPolicy{}, nil)
	worker.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	if err := worker.Enqueue(ctx, Task{Type: TaskStatement, ReservationID: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(archive.Keys()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if len(archive.Keys()) != 1 {
		t.Fatalf("expected worker loop to archive the statement")
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestRetry(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond}
	ctx := context.Background()

	calls := 0
	var retried []int
	err := Retry(ctx, policy, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 || len(retried) != 2 {
		t.Fatalf("expected 3 calls and 2 retries, got %d and %v", calls, retried)
	}

	cause := errors.New("down")
	err = Retry(ctx, policy, func(context.Context) error { return cause }, nil)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = Retry(cancelled, RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour}, func(context.Context) error { return cause }, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// Helpers

func day(d int) models.Date {
	return models.NewDate(2025, time.July, d)
}

func fixedNow() time.Time {
	return time.Date(2025, time.July, 15, 10, 0, 0, 0, time.UTC)
}

type fakeReports struct {
	err            error
	statementCalls int
}

func (f *fakeReports) Reservations(context.Context, models.Date, models.Date) ([]byte, error) {
	return []byte("reservations"), f.err
}

func (f *fakeReports) Payments(context.Context, models.Date, models.Date) ([]byte, error) {
	return []byte("payments"), f.err
}

func (f *fakeReports) Statement(context.Context, int64) ([]byte, error) {
	f.statementCalls++
	return []byte("statement"), f.err
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeArchive) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "mem://" + key, nil
}

func (f *fakeArchive) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}
