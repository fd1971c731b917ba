//go:build integration

package tuition

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuition/internal/store"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/tuition
func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	teacherID := uuid.NewString()
	_, err = db.Client.ExecContext(ctx, `INSERT INTO teachers (id, name, email) VALUES ($1, $2, $3)`,
		teacherID, "Repo Test", teacherID+"@example.com")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Client.ExecContext(context.Background(), `DELETE FROM teachers WHERE id = $1`, teacherID)
	})
	return NewRepository(db.Client), teacherID
}

func TestRepositoryFeeToggleIsIdempotent(t *testing.T) {
	repo, teacherID := newTestRepository(t)
	ctx := context.Background()

	b, err := repo.InsertBatch(ctx, Batch{TeacherID: teacherID, Name: "B", MonthlyFee: 100, Schedule: []ScheduleEntry{}})
	require.NoError(t, err)
	st, err := repo.InsertStudent(ctx, Student{
		TeacherID:   teacherID,
		BatchID:     b.ID,
		Name:        "Asha",
		Phone:       "9876543210",
		JoiningDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	month := MonthKey{Year: 2024, Month: 3}
	firstPaid := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	got, err := repo.PutFee(ctx, teacherID, st.ID, month, FeePayment{Status: FeeStatusPaid, PaidAt: firstPaid})
	require.NoError(t, err)
	assert.True(t, got.PaidAt.Equal(firstPaid))

	got, err = repo.PutFee(ctx, teacherID, st.ID, month, FeePayment{Status: FeeStatusPaid, PaidAt: firstPaid.AddDate(0, 0, 7)})
	require.NoError(t, err)
	assert.True(t, got.PaidAt.Equal(firstPaid), "the first payment is kept")

	other := MonthKey{Year: 2024, Month: 4}
	_, err = repo.PutFee(ctx, teacherID, st.ID, other, FeePayment{Status: FeeStatusPaid, PaidAt: firstPaid})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteFee(ctx, teacherID, st.ID, month))
	require.NoError(t, repo.DeleteFee(ctx, teacherID, st.ID, month), "clearing an unpaid month is a no-op")

	loaded, err := repo.GetStudent(ctx, teacherID, st.ID)
	require.NoError(t, err)
	assert.False(t, loaded.Paid(month))
	assert.True(t, loaded.Paid(other))

	_, err = repo.PutFee(ctx, "someone-else", st.ID, month, FeePayment{Status: FeeStatusPaid, PaidAt: firstPaid})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryRejectsDuplicateQueuedReminder(t *testing.T) {
	repo, teacherID := newTestRepository(t)
	ctx := context.Background()

	rem := Reminder{TeacherID: teacherID, BatchID: "b", StudentID: uuid.NewString(), Month: MonthKey{Year: 2024, Month: 3}}
	first, err := repo.InsertReminder(ctx, rem)
	require.NoError(t, err)
	_, err = repo.InsertReminder(ctx, rem)
	assert.ErrorIs(t, err, ErrReminderQueued)

	require.NoError(t, repo.MarkReminder(ctx, first.ID, ReminderSent, time.Now()))
	_, err = repo.InsertReminder(ctx, rem)
	assert.NoError(t, err)
}
