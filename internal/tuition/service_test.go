package tuition

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuition/internal/queue"
)

const teacher = "teacher-1"

type testEnv struct {
	svc   *Service
	store *MemoryStore
	queue *queue.InMemory
	clock time.Time
}

func newTestEnv(t *testing.T, start time.Time) *testEnv {
	t.Helper()
	env := &testEnv{store: NewMemoryStore(), queue: queue.NewInMemory(16), clock: start}
	env.svc = NewService(env.store, nil, env.queue, slog.New(slog.NewTextHandler(io.Discard, nil)))
	env.svc.now = func() time.Time { return env.clock }
	env.store.now = env.svc.now
	return env
}

func (e *testEnv) batch(t *testing.T, name string, fee float64, schedule ...ScheduleEntry) Batch {
	t.Helper()
	b, err := e.svc.CreateBatch(context.Background(), teacher, BatchInput{Name: name, MonthlyFee: fee, Schedule: schedule})
	require.NoError(t, err)
	return b
}

func (e *testEnv) student(t *testing.T, batchID, name string) Student {
	t.Helper()
	s, err := e.svc.CreateStudent(context.Background(), teacher, StudentInput{
		BatchID:     batchID,
		Name:        name,
		Phone:       "98765 43210",
		JoiningDate: e.clock.AddDate(0, 0, -1),
	})
	require.NoError(t, err)
	return s
}

var nov2023 = time.Date(2023, 11, 15, 10, 0, 0, 0, time.UTC)

func TestCreateBatchValidates(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx := context.Background()

	_, err := env.svc.CreateBatch(ctx, teacher, BatchInput{Name: "  "})
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = env.svc.CreateBatch(ctx, teacher, BatchInput{Name: "X", MonthlyFee: -1})
	assert.ErrorIs(t, err, ErrInvalidFee)
	_, err = env.svc.CreateBatch(ctx, teacher, BatchInput{Name: "X", Schedule: []ScheduleEntry{{Day: 9, Time: "09:00 AM"}}})
	assert.ErrorIs(t, err, ErrInvalidDay)
	assert.True(t, IsValidation(err))
	_, err = env.svc.CreateBatch(ctx, teacher, BatchInput{Name: "X", Schedule: []ScheduleEntry{{Day: 1, Time: "00:30 AM"}}})
	assert.ErrorIs(t, err, ErrInvalidTime)

	b := env.batch(t, " Class 10 ", 1500, ScheduleEntry{Day: 2, Time: "4:00 pm"})
	assert.Equal(t, "Class 10", b.Name)
	assert.Equal(t, []ScheduleEntry{{Day: 2, Time: "04:00 PM"}}, b.Schedule)
	assert.Equal(t, nov2023, b.CreatedAt)
}

func TestBatchesAreScopedToTeacher(t *testing.T) {
	env := newTestEnv(t, nov2023)
	b := env.batch(t, "Mine", 100)

	_, err := env.svc.GetBatch(context.Background(), "someone-else", b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.DeleteBatch(context.Background(), "someone-else", b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := env.svc.ListBatches(context.Background(), "someone-else")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateBatchKeepsCreationTime(t *testing.T) {
	env := newTestEnv(t, nov2023)
	b := env.batch(t, "Old", 100)
	env.clock = nov2023.AddDate(0, 2, 0)

	updated, err := env.svc.UpdateBatch(context.Background(), teacher, b.ID, BatchInput{Name: "New", MonthlyFee: 200})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, nov2023, updated.CreatedAt)

	got, err := env.svc.GetBatch(context.Background(), teacher, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.MonthlyFee)
}

func TestDeleteBatchCascadesToStudents(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx := context.Background()
	doomed := env.batch(t, "Doomed", 100)
	kept := env.batch(t, "Kept", 100)
	s1 := env.student(t, doomed.ID, "Asha")
	env.student(t, doomed.ID, "Ravi")
	s3 := env.student(t, kept.ID, "Meera")

	removed, err := env.svc.DeleteBatch(ctx, teacher, doomed.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = env.svc.GetStudent(ctx, teacher, s1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.GetStudent(ctx, teacher, s3.ID)
	assert.NoError(t, err)
	_, err = env.svc.ListStudents(ctx, teacher, doomed.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateStudentValidates(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx := context.Background()
	b := env.batch(t, "B", 100)
	valid := StudentInput{BatchID: b.ID, Name: "Asha", Phone: "9876543210", JoiningDate: nov2023}

	in := valid
	in.BatchID = ""
	_, err := env.svc.CreateStudent(ctx, teacher, in)
	assert.ErrorIs(t, err, ErrBatchRequired)

	in = valid
	in.Phone = "12345"
	_, err = env.svc.CreateStudent(ctx, teacher, in)
	assert.ErrorIs(t, err, ErrInvalidPhone)

	in = valid
	in.Phone = "98765x3210"
	_, err = env.svc.CreateStudent(ctx, teacher, in)
	assert.ErrorIs(t, err, ErrInvalidPhone)

	in = valid
	in.JoiningDate = nov2023.AddDate(0, 0, 1)
	_, err = env.svc.CreateStudent(ctx, teacher, in)
	assert.ErrorIs(t, err, ErrFutureJoining)

	in = valid
	in.JoiningDate = time.Time{}
	_, err = env.svc.CreateStudent(ctx, teacher, in)
	assert.ErrorIs(t, err, ErrJoiningRequired)

	in = valid
	in.BatchID = "missing"
	_, err = env.svc.CreateStudent(ctx, teacher, in)
	assert.ErrorIs(t, err, ErrNotFound)

	s, err := env.svc.CreateStudent(ctx, teacher, valid)
	require.NoError(t, err)
	assert.Equal(t, "9876543210", s.Phone)
	assert.Empty(t, s.Fees)
}

func TestUpdateStudentMovesBatchAndKeepsFees(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx := context.Background()
	from := env.batch(t, "From", 100)
	to := env.batch(t, "To", 100)
	s := env.student(t, from.ID, "Asha")
	_, err := env.svc.SetFeePaid(ctx, teacher, s.ID, MonthOf(nov2023), true)
	require.NoError(t, err)

	updated, err := env.svc.UpdateStudent(ctx, teacher, s.ID, StudentInput{BatchID: to.ID, Name: "Asha K", Phone: "9876543210", JoiningDate: nov2023})
	require.NoError(t, err)
	assert.Equal(t, to.ID, updated.BatchID)
	assert.True(t, updated.Paid(MonthOf(nov2023)))

	_, err = env.svc.UpdateStudent(ctx, teacher, s.ID, StudentInput{BatchID: "nope", Name: "Asha", Phone: "9876543210", JoiningDate: nov2023})
	assert.ErrorIs(t, err, ErrNotFound)

	kept, err := env.svc.UpdateStudent(ctx, teacher, s.ID, StudentInput{Name: "Asha", Phone: "9876543210", JoiningDate: nov2023})
	require.NoError(t, err)
	assert.Equal(t, to.ID, kept.BatchID)
}

func TestSetFeePaidIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx := context.Background()
	b := env.batch(t, "B", 100)
	s := env.student(t, b.ID, "Asha")
	month := MonthOf(nov2023)

	first, err := env.svc.SetFeePaid(ctx, teacher, s.ID, month, true)
	require.NoError(t, err)
	paidAt := first.Fees[month.String()].PaidAt
	assert.Equal(t, FeeStatusPaid, first.Fees[month.String()].Status)

	env.clock = env.clock.Add(time.Hour)
	second, err := env.svc.SetFeePaid(ctx, teacher, s.ID, month, true)
	require.NoError(t, err)
	assert.Equal(t, paidAt, second.Fees[month.String()].PaidAt)

	cleared, err := env.svc.SetFeePaid(ctx, teacher, s.ID, month, false)
	require.NoError(t, err)
	assert.False(t, cleared.Paid(month))

	again, err := env.svc.SetFeePaid(ctx, teacher, s.ID, month, false)
	require.NoError(t, err)
	assert.False(t, again.Paid(month))

	stored, err := env.svc.GetStudent(ctx, teacher, s.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Fees)
}

func TestSetFeePaidRejectsMonthsOutsideFeePeriod(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx := context.Background()
	b := env.batch(t, "B", 100)
	s := env.student(t, b.ID, "Asha")
	env.clock = time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)

	_, err := env.svc.SetFeePaid(ctx, teacher, s.ID, mk(10, 2023), true)
	assert.ErrorIs(t, err, ErrMonthOutOfRange)
	_, err = env.svc.SetFeePaid(ctx, teacher, s.ID, mk(3, 2024), true)
	assert.ErrorIs(t, err, ErrMonthOutOfRange)

	for _, m := range []MonthKey{mk(11, 2023), mk(12, 2023), mk(1, 2024), mk(2, 2024)} {
		_, err := env.svc.SetFeePaid(ctx, teacher, s.ID, m, true)
		assert.NoError(t, err, m.String())
	}
}

func TestMonthViewNavigationAndTotals(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx := context.Background()
	b := env.batch(t, "B", 500)
	asha := env.student(t, b.ID, "Asha")
	env.student(t, b.ID, "Ravi")
	env.clock = time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	_, err := env.svc.SetFeePaid(ctx, teacher, asha.ID, mk(12, 2023), true)
	require.NoError(t, err)

	current, err := env.svc.MonthView(ctx, teacher, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, mk(1, 2024), current.Month)
	require.NotNil(t, current.Prev)
	assert.Equal(t, mk(12, 2023), *current.Prev)
	assert.Nil(t, current.Next)
	assert.Equal(t, 0, current.PaidCount)
	assert.Equal(t, 1000.0, current.Pending)

	dec, err := env.svc.MonthView(ctx, teacher, b.ID, "12-2023")
	require.NoError(t, err)
	assert.Equal(t, 1, dec.PaidCount)
	assert.Equal(t, 1, dec.UnpaidCount)
	assert.Equal(t, 500.0, dec.Collected)
	assert.Equal(t, 500.0, dec.Pending)
	require.Len(t, dec.Students, 2)
	assert.Equal(t, "Asha", dec.Students[0].Name)
	assert.True(t, dec.Students[0].Paid)
	assert.NotNil(t, dec.Students[0].PaidAt)

	early, err := env.svc.MonthView(ctx, teacher, b.ID, "01-2020")
	require.NoError(t, err)
	assert.Equal(t, mk(11, 2023), early.Month)
	assert.Nil(t, early.Prev)

	late, err := env.svc.MonthView(ctx, teacher, b.ID, "06-2030")
	require.NoError(t, err)
	assert.Equal(t, mk(1, 2024), late.Month)

	_, err = env.svc.MonthView(ctx, teacher, b.ID, "2024-01")
	assert.ErrorIs(t, err, ErrInvalidMonthKey)
}

func TestFeeHistoryNewestFirst(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx := context.Background()
	b := env.batch(t, "B", 100)
	s := env.student(t, b.ID, "Asha")
	_, err := env.svc.SetFeePaid(ctx, teacher, s.ID, mk(11, 2023), true)
	require.NoError(t, err)
	env.clock = time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

	history, err := env.svc.FeeHistory(ctx, teacher, s.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, mk(1, 2024), history[0].Month)
	assert.False(t, history[0].Paid)
	assert.Equal(t, mk(11, 2023), history[2].Month)
	assert.True(t, history[2].Paid)
}

type countingCache struct {
	NopCache
	stored      map[string]Dashboard
	invalidated int
}

func (c *countingCache) Get(_ context.Context, id string) (Dashboard, bool) {
	d, ok := c.stored[id]
	return d, ok
}

func (c *countingCache) Set(_ context.Context, id string, d Dashboard) { c.stored[id] = d }

func (c *countingCache) Invalidate(_ context.Context, id string) {
	c.invalidated++
	delete(c.stored, id)
}

func TestDashboard(t *testing.T) {
	// 2024-06-05 is a Wednesday (ISO day 3).
	wednesday := time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC)
	env := newTestEnv(t, wednesday)
	cache := &countingCache{stored: map[string]Dashboard{}}
	env.svc.cache = cache
	ctx := context.Background()

	evening := env.batch(t, "Evening", 800, ScheduleEntry{Day: 3, Time: "06:00 PM"})
	morning := env.batch(t, "Morning", 600, ScheduleEntry{Day: 3, Time: "07:00 AM"}, ScheduleEntry{Day: 5, Time: "07:00 AM"})
	env.batch(t, "Weekend", 400, ScheduleEntry{Day: 6, Time: "10:00 AM"})
	paid := env.student(t, evening.ID, "Asha")
	env.student(t, morning.ID, "Ravi")
	_, err := env.svc.SetFeePaid(ctx, teacher, paid.ID, MonthOf(wednesday), true)
	require.NoError(t, err)

	d, err := env.svc.Dashboard(ctx, teacher)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Batches)
	assert.Equal(t, 2, d.Students)
	assert.Equal(t, 800.0, d.Collected)
	assert.Equal(t, 600.0, d.Pending)
	require.Len(t, d.Today, 2)
	assert.Equal(t, "Morning", d.Today[0].Name)
	assert.Equal(t, "Evening", d.Today[1].Name)
	assert.Contains(t, cache.stored, teacher)

	env.batch(t, "Another", 100)
	assert.NotContains(t, cache.stored, teacher)

	// A cached dashboard from another day is recomputed.
	cache.stored[teacher] = Dashboard{Date: "2000-01-01"}
	d, err = env.svc.Dashboard(ctx, teacher)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Batches)
}

func TestSendAndProcessReminders(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := env.batch(t, "B", 100)
	asha := env.student(t, b.ID, "Asha")
	ravi := env.student(t, b.ID, "Ravi")
	meera := env.student(t, b.ID, "Meera")
	_, err := env.svc.SetFeePaid(ctx, teacher, asha.ID, MonthOf(nov2023), true)
	require.NoError(t, err)

	reminders, err := env.svc.SendReminders(ctx, teacher, b.ID, "")
	require.NoError(t, err)
	require.Len(t, reminders, 2)

	msgs, err := env.queue.Consume(ctx)
	require.NoError(t, err)
	var ids []string
	for i := 0; i < 2; i++ {
		msg := <-msgs
		assert.Equal(t, ReminderMessageType, msg.Type)
		var job ReminderJob
		require.NoError(t, json.Unmarshal(msg.Body, &job))
		ids = append(ids, job.ReminderID)
	}

	// Ravi pays before the worker gets to his reminder.
	_, err = env.svc.SetFeePaid(ctx, teacher, ravi.ID, MonthOf(nov2023), true)
	require.NoError(t, err)

	outcomes := map[string]string{}
	for _, id := range ids {
		rem, err := env.svc.ProcessReminder(ctx, id)
		require.NoError(t, err)
		outcomes[rem.StudentID] = rem.Status
		require.NotNil(t, rem.ProcessedAt)
	}
	assert.Equal(t, ReminderSkipped, outcomes[ravi.ID])
	assert.Equal(t, ReminderSent, outcomes[meera.ID])

	again, err := env.svc.ProcessReminder(ctx, ids[0])
	require.NoError(t, err)
	assert.NotEqual(t, ReminderQueued, again.Status)

	listed, err := env.svc.ListReminders(ctx, teacher, 10)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestSendRemindersWhenEveryonePaid(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx := context.Background()
	b := env.batch(t, "B", 100)
	s := env.student(t, b.ID, "Asha")
	_, err := env.svc.SetFeePaid(ctx, teacher, s.ID, MonthOf(nov2023), true)
	require.NoError(t, err)

	_, err = env.svc.SendReminders(ctx, teacher, b.ID, "")
	assert.ErrorIs(t, err, ErrNothingToRemind)
	_, err = env.svc.SendReminders(ctx, teacher, b.ID, "01-2030")
	assert.ErrorIs(t, err, ErrMonthOutOfRange)
}

func TestSendRemindersSkipsAlreadyQueued(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx := context.Background()
	b := env.batch(t, "B", 100)
	asha := env.student(t, b.ID, "Asha")

	first, err := env.svc.SendReminders(ctx, teacher, b.ID, "")
	require.NoError(t, err)
	require.Len(t, first, 1)

	for i := 0; i < 2; i++ {
		_, err = env.svc.SendReminders(ctx, teacher, b.ID, "")
		assert.ErrorIs(t, err, ErrNothingToRemind)
	}

	ravi := env.student(t, b.ID, "Ravi")
	added, err := env.svc.SendReminders(ctx, teacher, b.ID, "")
	require.NoError(t, err)
	require.Len(t, added, 1, "only the new student gets a reminder")
	assert.Equal(t, ravi.ID, added[0].StudentID)

	// Once delivered, the month can be reminded again.
	_, err = env.svc.ProcessReminder(ctx, first[0].ID)
	require.NoError(t, err)
	again, err := env.svc.SendReminders(ctx, teacher, b.ID, "")
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, asha.ID, again[0].StudentID)

	listed, err := env.svc.ListReminders(ctx, teacher, 10)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}
