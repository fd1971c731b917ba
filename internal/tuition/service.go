package tuition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"tuition/internal/metrics"
	"tuition/internal/queue"
)

// ReminderMessageType tags queue messages that carry a reminder id.
const ReminderMessageType = "fee.reminder"

const maxNameLen = 100

// ReminderJob is the queue payload for one reminder.
type ReminderJob struct {
	ReminderID string `json:"reminder_id"`
}

// Service holds the business rules around batches, students and fees.
type Service struct {
	store Store
	cache DashboardCache
	queue queue.Queue
	log   *slog.Logger
	now   func() time.Time
}

// NewService creates a service backed by a store. cache, q and logger may be nil.
func NewService(store Store, cache DashboardCache, q queue.Queue, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, queue: q, log: logger, now: time.Now}
}

// feePeriod is the inclusive range of months a batch can hold fee entries for.
func (s *Service) feePeriod(b Batch) (MonthKey, MonthKey) {
	hi := MonthOf(s.now())
	lo := MonthOf(b.CreatedAt.In(s.now().Location()))
	if lo.After(hi) {
		lo = hi
	}
	return lo, hi
}

func validateBatch(in BatchInput) (BatchInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Standard = strings.TrimSpace(in.Standard)
	if in.Name == "" {
		return in, ErrNameRequired
	}
	if len([]rune(in.Name)) > maxNameLen {
		return in, ErrNameTooLong
	}
	if in.MonthlyFee < 0 {
		return in, ErrInvalidFee
	}
	schedule, err := normalizeSchedule(in.Schedule)
	if err != nil {
		return in, err
	}
	in.Schedule = schedule
	return in, nil
}

// CreateBatch validates and stores a new batch.
func (s *Service) CreateBatch(ctx context.Context, teacherID string, in BatchInput) (Batch, error) {
	in, err := validateBatch(in)
	if err != nil {
		return Batch{}, err
	}
	b, err := s.store.InsertBatch(ctx, Batch{
		TeacherID:  teacherID,
		Name:       in.Name,
		Standard:   in.Standard,
		MonthlyFee: in.MonthlyFee,
		Schedule:   in.Schedule,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return Batch{}, fmt.Errorf("insert batch: %w", err)
	}
	s.cache.Invalidate(ctx, teacherID)
	return b, nil
}

// UpdateBatch replaces the editable fields of a batch. The creation time, and so
// the fee period, never moves.
func (s *Service) UpdateBatch(ctx context.Context, teacherID, id string, in BatchInput) (Batch, error) {
	in, err := validateBatch(in)
	if err != nil {
		return Batch{}, err
	}
	b, err := s.store.GetBatch(ctx, teacherID, id)
	if err != nil {
		return Batch{}, err
	}
	b.Name, b.Standard, b.MonthlyFee, b.Schedule = in.Name, in.Standard, in.MonthlyFee, in.Schedule
	if err := s.store.UpdateBatch(ctx, b); err != nil {
		return Batch{}, fmt.Errorf("update batch %s: %w", id, err)
	}
	s.cache.Invalidate(ctx, teacherID)
	return b, nil
}

func (s *Service) GetBatch(ctx context.Context, teacherID, id string) (Batch, error) {
	return s.store.GetBatch(ctx, teacherID, id)
}

func (s *Service) ListBatches(ctx context.Context, teacherID string) ([]Batch, error) {
	batches, err := s.store.ListBatches(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []Batch{}
	}
	return batches, nil
}

// DeleteBatch removes the batch and every student in it.
func (s *Service) DeleteBatch(ctx context.Context, teacherID, id string) (int, error) {
	removed, err := s.store.DeleteBatch(ctx, teacherID, id)
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate(ctx, teacherID)
	s.log.Info("batch deleted", "teacher_id", teacherID, "batch_id", id, "students_removed", removed)
	return removed, nil
}

func normalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return "", ErrInvalidPhone
		}
	}
	if b.Len() != 10 {
		return "", ErrInvalidPhone
	}
	return b.String(), nil
}

func (s *Service) validateStudent(in StudentInput) (StudentInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, ErrNameRequired
	}
	if len([]rune(in.Name)) > maxNameLen {
		return in, ErrNameTooLong
	}
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return in, err
	}
	in.Phone = phone
	if in.JoiningDate.IsZero() {
		return in, ErrJoiningRequired
	}
	y, m, d := in.JoiningDate.Date()
	in.JoiningDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ty, tm, td := s.now().Date()
	if in.JoiningDate.After(time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)) {
		return in, ErrFutureJoining
	}
	return in, nil
}

// CreateStudent enrolls a student in one of the teacher's batches.
func (s *Service) CreateStudent(ctx context.Context, teacherID string, in StudentInput) (Student, error) {
	if in.BatchID == "" {
		return Student{}, ErrBatchRequired
	}
	in, err := s.validateStudent(in)
	if err != nil {
		return Student{}, err
	}
	if _, err := s.store.GetBatch(ctx, teacherID, in.BatchID); err != nil {
		return Student{}, fmt.Errorf("batch %s: %w", in.BatchID, err)
	}
	st, err := s.store.InsertStudent(ctx, Student{
		TeacherID:   teacherID,
		BatchID:     in.BatchID,
		Name:        in.Name,
		Phone:       in.Phone,
		JoiningDate: in.JoiningDate,
		Fees:        map[string]FeePayment{},
	})
	if err != nil {
		return Student{}, fmt.Errorf("insert student: %w", err)
	}
	s.cache.Invalidate(ctx, teacherID)
	return st, nil
}

// UpdateStudent edits a student; an empty BatchID keeps the current batch.
func (s *Service) UpdateStudent(ctx context.Context, teacherID, id string, in StudentInput) (Student, error) {
	st, err := s.store.GetStudent(ctx, teacherID, id)
	if err != nil {
		return Student{}, err
	}
	if in.BatchID == "" {
		in.BatchID = st.BatchID
	}
	in, err = s.validateStudent(in)
	if err != nil {
		return Student{}, err
	}
	if in.BatchID != st.BatchID {
		if _, err := s.store.GetBatch(ctx, teacherID, in.BatchID); err != nil {
			return Student{}, fmt.Errorf("batch %s: %w", in.BatchID, err)
		}
	}
	st.BatchID, st.Name, st.Phone, st.JoiningDate = in.BatchID, in.Name, in.Phone, in.JoiningDate
	if err := s.store.UpdateStudent(ctx, st); err != nil {
		return Student{}, fmt.Errorf("update student %s: %w", id, err)
	}
	s.cache.Invalidate(ctx, teacherID)
	return st, nil
}

func (s *Service) GetStudent(ctx context.Context, teacherID, id string) (Student, error) {
	return s.store.GetStudent(ctx, teacherID, id)
}

// ListStudents returns the students of a batch the teacher owns.
func (s *Service) ListStudents(ctx context.Context, teacherID, batchID string) ([]Student, error) {
	if _, err := s.store.GetBatch(ctx, teacherID, batchID); err != nil {
		return nil, err
	}
	students, err := s.store.ListStudents(ctx, teacherID, batchID)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []Student{}
	}
	return students, nil
}

func (s *Service) DeleteStudent(ctx context.Context, teacherID, id string) error {
	if err := s.store.DeleteStudent(ctx, teacherID, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, teacherID)
	return nil
}

// SetFeePaid marks or clears one month. Both directions are idempotent: marking a
// paid month keeps its original paid_at and clearing an unpaid month is a no-op.
func (s *Service) SetFeePaid(ctx context.Context, teacherID, studentID string, month MonthKey, paid bool) (Student, error) {
	st, err := s.store.GetStudent(ctx, teacherID, studentID)
	if err != nil {
		return Student{}, err
	}
	b, err := s.store.GetBatch(ctx, teacherID, st.BatchID)
	if err != nil {
		return Student{}, fmt.Errorf("batch of student %s: %w", studentID, err)
	}
	if lo, hi := s.feePeriod(b); !month.Within(lo, hi) {
		return Student{}, fmt.Errorf("%s not in %s..%s: %w", month, lo, hi, ErrMonthOutOfRange)
	}

	if paid {
		fee, err := s.store.PutFee(ctx, teacherID, studentID, month, FeePayment{Status: FeeStatusPaid, PaidAt: s.now().UTC()})
		if err != nil {
			return Student{}, fmt.Errorf("mark %s paid: %w", month, err)
		}
		if st.Fees == nil {
			st.Fees = map[string]FeePayment{}
		}
		st.Fees[month.String()] = fee
		metrics.FeeUpdates.WithLabelValues("paid").Inc()
	} else {
		if err := s.store.DeleteFee(ctx, teacherID, studentID, month); err != nil {
			return Student{}, fmt.Errorf("clear %s: %w", month, err)
		}
		delete(st.Fees, month.String())
		metrics.FeeUpdates.WithLabelValues("cleared").Inc()
	}
	s.cache.Invalidate(ctx, teacherID)
	return st, nil
}

// resolveMonth parses raw ("" means the current month) and clamps it into the
// batch's fee period.
func (s *Service) resolveMonth(b Batch, raw string) (MonthKey, MonthKey, MonthKey, error) {
	lo, hi := s.feePeriod(b)
	month := hi
	if raw != "" {
		parsed, err := ParseMonthKey(raw)
		if err != nil {
			return MonthKey{}, lo, hi, err
		}
		month = parsed.Clamp(lo, hi)
	}
	return month, lo, hi, nil
}

// MonthView builds the fee sheet of a batch for one month.
func (s *Service) MonthView(ctx context.Context, teacherID, batchID, rawMonth string) (MonthView, error) {
	b, err := s.store.GetBatch(ctx, teacherID, batchID)
	if err != nil {
		return MonthView{}, err
	}
	month, lo, hi, err := s.resolveMonth(b, rawMonth)
	if err != nil {
		return MonthView{}, err
	}
	students, err := s.store.ListStudents(ctx, teacherID, batchID)
	if err != nil {
		return MonthView{}, err
	}

	view := MonthView{BatchID: b.ID, Month: month, Students: make([]StudentFee, 0, len(students))}
	if HasPrev(month, lo) {
		prev := month.Add(-1)
		view.Prev = &prev
	}
	if HasNext(month, hi) {
		next := month.Add(1)
		view.Next = &next
	}
	for _, st := range students {
		row := StudentFee{StudentID: st.ID, Name: st.Name, Phone: st.Phone}
		if fee, ok := st.Fees[month.String()]; ok {
			paidAt := fee.PaidAt
			row.Paid, row.PaidAt = true, &paidAt
			view.PaidCount++
			view.Collected += b.MonthlyFee
		} else {
			view.UnpaidCount++
			view.Pending += b.MonthlyFee
		}
		view.Students = append(view.Students, row)
	}
	return view, nil
}

// FeeHistory lists every month of the student's batch fee period, newest first.
func (s *Service) FeeHistory(ctx context.Context, teacherID, studentID string) ([]MonthStatus, error) {
	st, err := s.store.GetStudent(ctx, teacherID, studentID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetBatch(ctx, teacherID, st.BatchID)
	if err != nil {
		return nil, fmt.Errorf("batch of student %s: %w", studentID, err)
	}
	lo, hi := s.feePeriod(b)
	months := MonthsBetween(lo, hi)
	out := make([]MonthStatus, 0, len(months))
	for i := len(months) - 1; i >= 0; i-- {
		status := MonthStatus{Month: months[i]}
		if fee, ok := st.Fees[months[i].String()]; ok {
			paidAt := fee.PaidAt
			status.Paid, status.PaidAt = true, &paidAt
		}
		out = append(out, status)
	}
	return out, nil
}

// Dashboard returns counts, today's classes and the current month's totals.
func (s *Service) Dashboard(ctx context.Context, teacherID string) (Dashboard, error) {
	now := s.now()
	today := now.Format(time.DateOnly)
	if d, ok := s.cache.Get(ctx, teacherID); ok && d.Date == today {
		return d, nil
	}

	batches, err := s.store.ListBatches(ctx, teacherID)
	if err != nil {
		return Dashboard{}, err
	}
	students, err := s.store.ListAllStudents(ctx, teacherID)
	if err != nil {
		return Dashboard{}, err
	}

	month := MonthOf(now)
	fees := make(map[string]float64, len(batches))
	for _, b := range batches {
		fees[b.ID] = b.MonthlyFee
	}
	d := Dashboard{
		Date:     today,
		Batches:  len(batches),
		Students: len(students),
		Month:    month,
		Today:    TodaySchedule(batches, now),
	}
	for _, st := range students {
		if st.Paid(month) {
			d.Collected += fees[st.BatchID]
		} else {
			d.Pending += fees[st.BatchID]
		}
	}
	s.cache.Set(ctx, teacherID, d)
	return d, nil
}

// SendReminders queues a reminder for every student of the batch who has not
// paid for the month and has no reminder for it still waiting in the queue.
func (s *Service) SendReminders(ctx context.Context, teacherID, batchID, rawMonth string) ([]Reminder, error) {
	b, err := s.store.GetBatch(ctx, teacherID, batchID)
	if err != nil {
		return nil, err
	}
	lo, hi := s.feePeriod(b)
	month := hi
	if rawMonth != "" {
		if month, err = ParseMonthKey(rawMonth); err != nil {
			return nil, err
		}
		if !month.Within(lo, hi) {
			return nil, fmt.Errorf("%s not in %s..%s: %w", month, lo, hi, ErrMonthOutOfRange)
		}
	}
	students, err := s.store.ListStudents(ctx, teacherID, batchID)
	if err != nil {
		return nil, err
	}

	var out []Reminder
	for _, st := range students {
		if st.Paid(month) {
			continue
		}
		rem, err := s.store.InsertReminder(ctx, Reminder{
			TeacherID: teacherID,
			BatchID:   batchID,
			StudentID: st.ID,
			Month:     month,
			Status:    ReminderQueued,
		})
		if errors.Is(err, ErrReminderQueued) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("insert reminder for %s: %w", st.ID, err)
		}
		out = append(out, rem)
		metrics.RemindersQueued.Inc()
		if s.queue == nil {
			continue
		}
		body, err := json.Marshal(ReminderJob{ReminderID: rem.ID})
		if err != nil {
			return out, err
		}
		if err := s.queue.Publish(ctx, queue.Message{Type: ReminderMessageType, Body: body}); err != nil {
			s.log.Warn("reminder publish failed", "reminder_id", rem.ID, "error", err)
		}
	}
	if len(out) == 0 {
		return nil, ErrNothingToRemind
	}
	return out, nil
}

func (s *Service) ListReminders(ctx context.Context, teacherID string, limit int) ([]Reminder, error) {
	reminders, err := s.store.ListReminders(ctx, teacherID, limit)
	if err != nil {
		return nil, err
	}
	if reminders == nil {
		reminders = []Reminder{}
	}
	return reminders, nil
}

// ProcessReminder delivers a queued reminder, or skips it when the student has
// since paid or left. Reminders that are no longer queued are returned as is.
func (s *Service) ProcessReminder(ctx context.Context, id string) (Reminder, error) {
	rem, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	if rem.Status != ReminderQueued {
		return rem, nil
	}

	status := ReminderSent
	st, err := s.store.GetStudent(ctx, rem.TeacherID, rem.StudentID)
	switch {
	case errors.Is(err, ErrNotFound):
		status = ReminderSkipped
	case err != nil:
		return Reminder{}, err
	case st.Paid(rem.Month):
		status = ReminderSkipped
	default:
		s.log.Info("fee reminder",
			"reminder_id", rem.ID,
			"student", st.Name,
			"phone", st.Phone,
			"month", rem.Month.String(),
		)
	}

	at := s.now().UTC()
	if err := s.store.MarkReminder(ctx, rem.ID, status, at); err != nil {
		return Reminder{}, fmt.Errorf("mark reminder %s: %w", rem.ID, err)
	}
	rem.Status, rem.ProcessedAt = status, &at
	metrics.RemindersProcessed.WithLabelValues(status).Inc()
	return rem, nil
}
