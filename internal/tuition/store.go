package tuition

import (
	"context"
	"time"
)

// Store persists batches, students, and reminders. Every method is scoped to a
// teacher; rows owned by someone else report ErrNotFound.
type Store interface {
	InsertBatch(ctx context.Context, b Batch) (Batch, error)
	UpdateBatch(ctx context.Context, b Batch) error
	GetBatch(ctx context.Context, teacherID, id string) (Batch, error)
	ListBatches(ctx context.Context, teacherID string) ([]Batch, error)
	// DeleteBatch removes the batch and its students, returning how many students went with it.
	DeleteBatch(ctx context.Context, teacherID, id string) (int, error)

	InsertStudent(ctx context.Context, s Student) (Student, error)
	UpdateStudent(ctx context.Context, s Student) error
	GetStudent(ctx context.Context, teacherID, id string) (Student, error)
	ListStudents(ctx context.Context, teacherID, batchID string) ([]Student, error)
	ListAllStudents(ctx context.Context, teacherID string) ([]Student, error)
	DeleteStudent(ctx context.Context, teacherID, id string) error

	// PutFee records a payment unless one already exists for the month.
	PutFee(ctx context.Context, teacherID, studentID string, month MonthKey, fee FeePayment) (FeePayment, error)
	DeleteFee(ctx context.Context, teacherID, studentID string, month MonthKey) error

	// InsertReminder fails with ErrReminderQueued while the student already has
	// a queued reminder for the same month.
	InsertReminder(ctx context.Context, r Reminder) (Reminder, error)
	GetReminder(ctx context.Context, id string) (Reminder, error)
	ListReminders(ctx context.Context, teacherID string, limit int) ([]Reminder, error)
	MarkReminder(ctx context.Context, id, status string, at time.Time) error
}
