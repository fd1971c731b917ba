package tuition

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists tuition data in Postgres. Schedules and fee maps are
// JSONB document columns.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const batchColumns = `id, teacher_id, name, standard, monthly_fee, schedule, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (Batch, error) {
	var (
		b        Batch
		schedule []byte
	)
	if err := row.Scan(&b.ID, &b.TeacherID, &b.Name, &b.Standard, &b.MonthlyFee, &schedule, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, ErrNotFound
		}
		return Batch{}, err
	}
	if err := json.Unmarshal(schedule, &b.Schedule); err != nil {
		return Batch{}, fmt.Errorf("decode schedule of batch %s: %w", b.ID, err)
	}
	return b, nil
}

// InsertBatch writes a new batch.
func (r *Repository) InsertBatch(ctx context.Context, b Batch) (Batch, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	schedule, err := json.Marshal(b.Schedule)
	if err != nil {
		return Batch{}, err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO batches (id, teacher_id, name, standard, monthly_fee, schedule, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, COALESCE($7, NOW()))
		RETURNING created_at
	`, b.ID, b.TeacherID, b.Name, b.Standard, b.MonthlyFee, string(schedule), nullTime(b.CreatedAt))
	if err := row.Scan(&b.CreatedAt); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// UpdateBatch overwrites the editable fields of a batch.
func (r *Repository) UpdateBatch(ctx context.Context, b Batch) error {
	schedule, err := json.Marshal(b.Schedule)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE batches
		SET name = $3, standard = $4, monthly_fee = $5, schedule = $6::jsonb
		WHERE id = $1 AND teacher_id = $2
	`, b.ID, b.TeacherID, b.Name, b.Standard, b.MonthlyFee, string(schedule))
	return expectOne(res, err)
}

// GetBatch returns a single batch.
func (r *Repository) GetBatch(ctx context.Context, teacherID, id string) (Batch, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	return scanBatch(row)
}

// ListBatches returns a teacher's batches, newest first.
func (r *Repository) ListBatches(ctx context.Context, teacherID string) ([]Batch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+batchColumns+` FROM batches
		WHERE teacher_id = $1
		ORDER BY created_at DESC
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// DeleteBatch removes a batch together with its students in one transaction.
func (r *Repository) DeleteBatch(ctx context.Context, teacherID, id string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE batch_id = $1 AND teacher_id = $2`, id, teacherID)
	if err != nil {
		return 0, fmt.Errorf("delete students: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	res, err = tx.ExecContext(ctx, `DELETE FROM batches WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	if err := expectOne(res, err); err != nil {
		return 0, err
	}
	return int(removed), tx.Commit()
}

const studentColumns = `id, teacher_id, batch_id, name, phone, joining_date, fees, created_at`

func scanStudent(row rowScanner) (Student, error) {
	var (
		s    Student
		fees []byte
	)
	if err := row.Scan(&s.ID, &s.TeacherID, &s.BatchID, &s.Name, &s.Phone, &s.JoiningDate, &fees, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, err
	}
	if err := json.Unmarshal(fees, &s.Fees); err != nil {
		return Student{}, fmt.Errorf("decode fees of student %s: %w", s.ID, err)
	}
	if s.Fees == nil {
		s.Fees = map[string]FeePayment{}
	}
	return s, nil
}

// InsertStudent writes a new student with an empty fee map.
func (r *Repository) InsertStudent(ctx context.Context, s Student) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Fees == nil {
		s.Fees = map[string]FeePayment{}
	}
	fees, err := json.Marshal(s.Fees)
	if err != nil {
		return Student{}, err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, teacher_id, batch_id, name, phone, joining_date, fees)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		RETURNING created_at
	`, s.ID, s.TeacherID, s.BatchID, s.Name, s.Phone, s.JoiningDate, string(fees))
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Student{}, err
	}
	return s, nil
}

// UpdateStudent overwrites the editable fields; the fee map is left alone.
func (r *Repository) UpdateStudent(ctx context.Context, s Student) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students
		SET batch_id = $3, name = $4, phone = $5, joining_date = $6
		WHERE id = $1 AND teacher_id = $2
	`, s.ID, s.TeacherID, s.BatchID, s.Name, s.Phone, s.JoiningDate)
	return expectOne(res, err)
}

// GetStudent returns a single student.
func (r *Repository) GetStudent(ctx context.Context, teacherID, id string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	return scanStudent(row)
}

// ListStudents returns the students of one batch ordered by name.
func (r *Repository) ListStudents(ctx context.Context, teacherID, batchID string) ([]Student, error) {
	return r.queryStudents(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE teacher_id = $1 AND batch_id = $2
		ORDER BY LOWER(name), id
	`, teacherID, batchID)
}

// ListAllStudents returns every student of a teacher ordered by name.
func (r *Repository) ListAllStudents(ctx context.Context, teacherID string) ([]Student, error) {
	return r.queryStudents(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE teacher_id = $1
		ORDER BY LOWER(name), id
	`, teacherID)
}

func (r *Repository) queryStudents(ctx context.Context, query string, args ...any) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// DeleteStudent removes a student.
func (r *Repository) DeleteStudent(ctx context.Context, teacherID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	return expectOne(res, err)
}

// PutFee merges the entry under the existing map so an earlier payment wins:
// on a key clash jsonb || keeps the right-hand operand, which is the stored fees.
func (r *Repository) PutFee(ctx context.Context, teacherID, studentID string, month MonthKey, fee FeePayment) (FeePayment, error) {
	payload, err := json.Marshal(fee)
	if err != nil {
		return FeePayment{}, err
	}
	var stored []byte
	err = r.db.QueryRowContext(ctx, `
		UPDATE students
		SET fees = jsonb_build_object($3::text, $4::jsonb) || fees
		WHERE id = $1 AND teacher_id = $2
		RETURNING fees -> $3::text
	`, studentID, teacherID, month.String(), string(payload)).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FeePayment{}, ErrNotFound
		}
		return FeePayment{}, err
	}
	var out FeePayment
	if err := json.Unmarshal(stored, &out); err != nil {
		return FeePayment{}, fmt.Errorf("decode fee %s of student %s: %w", month, studentID, err)
	}
	return out, nil
}

// DeleteFee drops the month's entry; dropping a missing entry is not an error.
func (r *Repository) DeleteFee(ctx context.Context, teacherID, studentID string, month MonthKey) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students SET fees = fees - $3::text
		WHERE id = $1 AND teacher_id = $2
	`, studentID, teacherID, month.String())
	return expectOne(res, err)
}

const reminderColumns = `id, teacher_id, batch_id, student_id, month, status, created_at, processed_at`

func scanReminder(row rowScanner) (Reminder, error) {
	var (
		rem   Reminder
		month string
	)
	if err := row.Scan(&rem.ID, &rem.TeacherID, &rem.BatchID, &rem.StudentID, &month, &rem.Status, &rem.CreatedAt, &rem.ProcessedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reminder{}, ErrNotFound
		}
		return Reminder{}, err
	}
	key, err := ParseMonthKey(month)
	if err != nil {
		return Reminder{}, err
	}
	rem.Month = key
	return rem, nil
}

// InsertReminder writes a queued reminder.
func (r *Repository) InsertReminder(ctx context.Context, rem Reminder) (Reminder, error) {
	if rem.ID == "" {
		rem.ID = uuid.NewString()
	}
	if rem.Status == "" {
		rem.Status = ReminderQueued
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO reminders (id, teacher_id, batch_id, student_id, month, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, month) WHERE status = 'queued' DO NOTHING
		RETURNING created_at
	`, rem.ID, rem.TeacherID, rem.BatchID, rem.StudentID, rem.Month.String(), rem.Status)
	if err := row.Scan(&rem.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reminder{}, ErrReminderQueued
		}
		return Reminder{}, err
	}
	return rem, nil
}

// GetReminder returns a reminder by id regardless of owner; the worker uses it.
func (r *Repository) GetReminder(ctx context.Context, id string) (Reminder, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id)
	return scanReminder(row)
}

// ListReminders returns a teacher's most recent reminders.
func (r *Repository) ListReminders(ctx context.Context, teacherID string, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE teacher_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, teacherID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rem)
	}
	return res, rows.Err()
}

// MarkReminder records the worker's outcome.
func (r *Repository) MarkReminder(ctx context.Context, id, status string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reminders SET status = $2, processed_at = $3 WHERE id = $1`, id, status, at)
	return expectOne(res, err)
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
