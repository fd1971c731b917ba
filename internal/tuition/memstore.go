package tuition

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It backs STORE_BACKEND=memory
// for local runs and the tests.
type MemoryStore struct {
	mu        sync.RWMutex
	batches   map[string]Batch
	students  map[string]Student
	reminders map[string]Reminder
	now       func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches:   make(map[string]Batch),
		students:  make(map[string]Student),
		reminders: make(map[string]Reminder),
		now:       time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func cloneBatch(b Batch) Batch {
	b.Schedule = append([]ScheduleEntry(nil), b.Schedule...)
	return b
}

func cloneStudent(s Student) Student {
	fees := make(map[string]FeePayment, len(s.Fees))
	for k, v := range s.Fees {
		fees[k] = v
	}
	s.Fees = fees
	return s
}

func (m *MemoryStore) InsertBatch(_ context.Context, b Batch) (Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = m.now().UTC()
	}
	m.batches[b.ID] = cloneBatch(b)
	return cloneBatch(b), nil
}

func (m *MemoryStore) UpdateBatch(_ context.Context, b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.batches[b.ID]
	if !ok || cur.TeacherID != b.TeacherID {
		return ErrNotFound
	}
	cur.Name, cur.Standard, cur.MonthlyFee, cur.Schedule = b.Name, b.Standard, b.MonthlyFee, b.Schedule
	m.batches[b.ID] = cloneBatch(cur)
	return nil
}

func (m *MemoryStore) GetBatch(_ context.Context, teacherID, id string) (Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[id]
	if !ok || b.TeacherID != teacherID {
		return Batch{}, ErrNotFound
	}
	return cloneBatch(b), nil
}

func (m *MemoryStore) ListBatches(_ context.Context, teacherID string) ([]Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Batch
	for _, b := range m.batches {
		if b.TeacherID == teacherID {
			res = append(res, cloneBatch(b))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *MemoryStore) DeleteBatch(_ context.Context, teacherID, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok || b.TeacherID != teacherID {
		return 0, ErrNotFound
	}
	removed := 0
	for sid, s := range m.students {
		if s.BatchID == id {
			delete(m.students, sid)
			removed++
		}
	}
	delete(m.batches, id)
	return removed, nil
}

func (m *MemoryStore) InsertStudent(_ context.Context, s Student) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.batches[s.BatchID]; !ok || b.TeacherID != s.TeacherID {
		return Student{}, ErrNotFound
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now().UTC()
	}
	m.students[s.ID] = cloneStudent(s)
	return cloneStudent(s), nil
}

func (m *MemoryStore) UpdateStudent(_ context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.students[s.ID]
	if !ok || cur.TeacherID != s.TeacherID {
		return ErrNotFound
	}
	if b, ok := m.batches[s.BatchID]; !ok || b.TeacherID != s.TeacherID {
		return ErrNotFound
	}
	cur.BatchID, cur.Name, cur.Phone, cur.JoiningDate = s.BatchID, s.Name, s.Phone, s.JoiningDate
	m.students[s.ID] = cur
	return nil
}

func (m *MemoryStore) GetStudent(_ context.Context, teacherID, id string) (Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok || s.TeacherID != teacherID {
		return Student{}, ErrNotFound
	}
	return cloneStudent(s), nil
}

func (m *MemoryStore) ListStudents(_ context.Context, teacherID, batchID string) ([]Student, error) {
	return m.filterStudents(func(s Student) bool {
		return s.TeacherID == teacherID && s.BatchID == batchID
	}), nil
}

func (m *MemoryStore) ListAllStudents(_ context.Context, teacherID string) ([]Student, error) {
	return m.filterStudents(func(s Student) bool { return s.TeacherID == teacherID }), nil
}

func (m *MemoryStore) filterStudents(keep func(Student) bool) []Student {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Student
	for _, s := range m.students {
		if keep(s) {
			res = append(res, cloneStudent(s))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		a, b := strings.ToLower(res[i].Name), strings.ToLower(res[j].Name)
		if a != b {
			return a < b
		}
		return res[i].ID < res[j].ID
	})
	return res
}

func (m *MemoryStore) DeleteStudent(_ context.Context, teacherID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok || s.TeacherID != teacherID {
		return ErrNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *MemoryStore) PutFee(_ context.Context, teacherID, studentID string, month MonthKey, fee FeePayment) (FeePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok || s.TeacherID != teacherID {
		return FeePayment{}, ErrNotFound
	}
	if existing, ok := s.Fees[month.String()]; ok {
		return existing, nil
	}
	if s.Fees == nil {
		s.Fees = map[string]FeePayment{}
	}
	s.Fees[month.String()] = fee
	m.students[studentID] = s
	return fee, nil
}

func (m *MemoryStore) DeleteFee(_ context.Context, teacherID, studentID string, month MonthKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok || s.TeacherID != teacherID {
		return ErrNotFound
	}
	delete(s.Fees, month.String())
	return nil
}

func (m *MemoryStore) InsertReminder(_ context.Context, r Reminder) (Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReminderQueued
	}
	if r.Status == ReminderQueued {
		for _, cur := range m.reminders {
			if cur.Status == ReminderQueued && cur.StudentID == r.StudentID && cur.Month == r.Month {
				return Reminder{}, ErrReminderQueued
			}
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now().UTC()
	}
	m.reminders[r.ID] = r
	return r, nil
}

func (m *MemoryStore) GetReminder(_ context.Context, id string) (Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reminders[id]
	if !ok {
		return Reminder{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) ListReminders(_ context.Context, teacherID string, limit int) ([]Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var res []Reminder
	for _, r := range m.reminders {
		if r.TeacherID == teacherID {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) MarkReminder(_ context.Context, id, status string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.ProcessedAt = &at
	m.reminders[id] = r
	return nil
}
