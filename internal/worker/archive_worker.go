package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cabinrent/internal/database"
	"cabinrent/internal/events"
	"cabinrent/internal/metrics"
	"cabinrent/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskStatement          = "statement"
	TaskReservationsReport = "reservations_report"
	TaskPaymentsReport     = "payments_report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Task describes one archive job. It is stored as JSON in the redis queue.
type Task struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	ReservationID int64       `json:"reservation_id,omitempty"`
	From          models.Date `json:"from,omitempty"`
	To            models.Date `json:"to,omitempty"`
	Attempts      int         `json:"attempts"`
	LastError     string      `json:"last_error,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (t Task) validate() error {
	switch t.Type {
	case TaskStatement:
		if t.ReservationID == 0 {
			return errors.New("reservation id is required")
		}
	case TaskReservationsReport, TaskPaymentsReport:
		if t.From.IsZero() || t.To.IsZero() || t.To.Before(t.From) {
			return errors.New("report window is invalid")
		}
	case "":
		return errors.New("task type is required")
	default:
		return fmt.Errorf("unknown task type: %s", t.Type)
	}
	return nil
}

// Reports renders the workbooks the worker archives.
type Reports interface {
	Reservations(ctx context.Context, from, to models.Date) ([]byte, error)
	Payments(ctx context.Context, from, to models.Date) ([]byte, error)
	Statement(ctx context.Context, reservationID int64) ([]byte, error)
}

type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ArchiveWorker renders reports in the background and stores them in the archive.
type ArchiveWorker struct {
	reports       Reports
	archive       Archive
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan Task
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	logger        *zerolog.Logger

	mu          sync.Mutex
	deadLetters []Task
	lastMonth   models.Date
	now         func() time.Time
}

// NewArchiveWorker builds a worker with sane defaults. redisClient may be nil.
func NewArchiveWorker(reports Reports, archive Archive, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *ArchiveWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &ArchiveWorker{
		reports:       reports,
		archive:       archive,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan Task, 128),
		redisQueueKey: "cabinrent:archive:queue",
		deadLetterKey: "cabinrent:archive:deadletter",
		pollInterval:  2 * time.Second,
		logger:        logger,
		now:           time.Now,
	}
}

// Subscribe queues a guest statement whenever a reservation reaches check_out.
func (w *ArchiveWorker) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventReservationStatusChanged, func(event *events.Event) error {
		var payload events.ReservationEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("decode status change: %w", err)
		}
		if payload.Status != models.StatusCheckOut {
			return nil
		}
		return w.Enqueue(context.Background(), Task{Type: TaskStatement, ReservationID: payload.ReservationID})
	})
}

// Enqueue schedules task via redis, or the in-memory queue when redis is missing or failing.
func (w *ArchiveWorker) Enqueue(ctx context.Context, task Task) error {
	if err := task.validate(); err != nil {
		return err
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = w.now()
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return fmt.Errorf("archive queue is full, task %s dropped", task.ID)
	}
}

// EnqueueMonthlyReports queues the reservations and payments reports of the month containing day.
func (w *ArchiveWorker) EnqueueMonthlyReports(ctx context.Context, day models.Date) error {
	from := day.FirstOfMonth()
	to := from.AddDays(32).FirstOfMonth().AddDays(-1)
	for _, taskType := range []string{TaskReservationsReport, TaskPaymentsReport} {
		if err := w.Enqueue(ctx, Task{Type: taskType, From: from, To: to}); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *ArchiveWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Archive worker started")
	defer w.logger.Info().Msg("Archive worker stopped")

	w.mu.Lock()
	w.lastMonth = models.DateOf(w.now()).FirstOfMonth()
	w.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.checkMonthRollover(ctx)

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if w.redis != nil {
			// BRPOP already waited
			continue
		}
		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, &t)
		case <-time.After(w.pollInterval):
		}
	}
}

// checkMonthRollover archives last month's reports once the calendar month changes.
func (w *ArchiveWorker) checkMonthRollover(ctx context.Context) {
	current := models.DateOf(w.now()).FirstOfMonth()

	w.mu.Lock()
	previous := w.lastMonth
	if previous.IsZero() || !current.After(previous) {
		w.mu.Unlock()
		return
	}
	w.lastMonth = current
	w.mu.Unlock()

	if err := w.EnqueueMonthlyReports(ctx, previous); err != nil {
		w.logger.Error().Err(err).Str("month", previous.String()).Msg("Failed to queue monthly reports")
	}
}

func (w *ArchiveWorker) tryLocalQueue() (Task, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return Task{}, false
	}
}

func (w *ArchiveWorker) tryRedis(ctx context.Context) (Task, bool) {
	if w.redis == nil {
		return Task{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return Task{}, false
		}
		w.logger.Error().Err(err).Msg("Redis BRPOP error")
		return Task{}, false
	}
	if len(res) != 2 {
		return Task{}, false
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode redis task")
		return Task{}, false
	}
	return task, true
}

func (w *ArchiveWorker) processTask(ctx context.Context, task *Task) {
	location, err := w.handleTask(ctx, task)
	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncArchiveTask(task.Type, "done")
	w.logger.Info().Str("task_id", task.ID).Str("type", task.Type).Str("location", location).Msg("Archive task completed")
}

func (w *ArchiveWorker) handleTask(ctx context.Context, task *Task) (string, error) {
	if err := task.validate(); err != nil {
		return "", err
	}

	var (
		data []byte
		name string
		err  error
	)
	created := task.CreatedAt
	if created.IsZero() {
		created = w.now()
	}
	month := models.DateOf(created).FirstOfMonth()
	switch task.Type {
	case TaskStatement:
		data, err = w.reports.Statement(ctx, task.ReservationID)
		name = fmt.Sprintf("statements/%s/statement_%d_%s.xlsx", month.String()[:7], task.ReservationID, shortID(task.ID))
	case TaskReservationsReport:
		data, err = w.reports.Reservations(ctx, task.From, task.To)
		name = fmt.Sprintf("reports/%s/reservations_%s_to_%s.xlsx", task.From.String()[:7], task.From, task.To)
	case TaskPaymentsReport:
		data, err = w.reports.Payments(ctx, task.From, task.To)
		name = fmt.Sprintf("reports/%s/payments_%s_to_%s.xlsx", task.From.String()[:7], task.From, task.To)
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", task.Type, err)
	}

	return w.archive.Put(ctx, name, data, xlsxContentType)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (w *ArchiveWorker) retryOrFail(ctx context.Context, task *Task, cause error) {
	task.Attempts++
	task.LastError = cause.Error()

	// a deleted reservation will not come back
	if task.Attempts >= w.retryPolicy.MaxRetries || errors.Is(cause, database.ErrNotFound) || task.validate() != nil {
		metrics.IncArchiveTask(task.Type, "failed")
		w.logger.Error().Err(cause).Str("task_id", task.ID).Int("attempts", task.Attempts).Msg("Archive task failed")
		w.pushDeadLetter(ctx, *task)
		return
	}

	metrics.IncArchiveTask(task.Type, "retry")
	delay := w.retryPolicy.NextDelay(task.Attempts)
	w.logger.Warn().Err(cause).Str("task_id", task.ID).Dur("delay", delay).Msg("Archive task will be retried")

	retry := *task
	time.AfterFunc(delay, func() {
		if err := w.Enqueue(context.Background(), retry); err != nil {
			w.logger.Error().Err(err).Str("task_id", retry.ID).Msg("Failed to requeue archive task")
		}
	})
}

// DeadLetters returns tasks that exhausted their retries while redis was unavailable.
func (w *ArchiveWorker) DeadLetters() []Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Task(nil), w.deadLetters...)
}

func (w *ArchiveWorker) pushRedis(ctx context.Context, key string, task Task) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *ArchiveWorker) pushDeadLetter(ctx context.Context, task Task) {
	if w.redis != nil {
		err := w.pushRedis(ctx, w.deadLetterKey, task)
		if err == nil {
			return
		}
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("Deadletter push failed")
	}
	w.mu.Lock()
	w.deadLetters = append(w.deadLetters, task)
	w.mu.Unlock()
}
