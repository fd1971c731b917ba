package tuition

import "time"

// FeeStatusPaid is the only status a stored fee entry carries.
const FeeStatusPaid = "paid"

// ScheduleEntry is one weekly class slot. Day is ISO (1 = Monday .. 7 = Sunday),
// Time is a 12-hour clock string like "04:30 PM".
type ScheduleEntry struct {
	Day  int    `json:"day"`
	Time string `json:"time"`
}

// Batch is a recurring class a teacher runs for a group of students.
type Batch struct {
	ID         string          `json:"id"`
	TeacherID  string          `json:"teacher_id"`
	Name       string          `json:"name"`
	Standard   string          `json:"standard,omitempty"`
	MonthlyFee float64         `json:"monthly_fee"`
	Schedule   []ScheduleEntry `json:"schedule"`
	CreatedAt  time.Time       `json:"created_at"`
}

// FeePayment marks a month as paid. A missing entry means unpaid.
type FeePayment struct {
	Status string    `json:"status"`
	PaidAt time.Time `json:"paid_at"`
}

// Student is enrolled in exactly one batch.
type Student struct {
	ID          string                `json:"id"`
	TeacherID   string                `json:"teacher_id"`
	BatchID     string                `json:"batch_id"`
	Name        string                `json:"name"`
	Phone       string                `json:"phone"`
	JoiningDate time.Time             `json:"joining_date"`
	Fees        map[string]FeePayment `json:"fees"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Paid reports whether the student has a fee entry for the month.
func (s Student) Paid(month MonthKey) bool {
	_, ok := s.Fees[month.String()]
	return ok
}

// BatchInput carries the editable fields of a batch.
type BatchInput struct {
	Name       string          `json:"name"`
	Standard   string          `json:"standard"`
	MonthlyFee float64         `json:"monthly_fee"`
	Schedule   []ScheduleEntry `json:"schedule"`
}

// StudentInput carries the editable fields of a student.
type StudentInput struct {
	BatchID     string    `json:"batch_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	JoiningDate time.Time `json:"joining_date"`
}

// StudentFee is one row of a batch's month view.
type StudentFee struct {
	StudentID string     `json:"student_id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Paid      bool       `json:"paid"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// MonthView is the fee sheet of one batch for one month.
type MonthView struct {
	BatchID     string       `json:"batch_id"`
	Month       MonthKey     `json:"month"`
	Prev        *MonthKey    `json:"prev"`
	Next        *MonthKey    `json:"next"`
	Students    []StudentFee `json:"students"`
	PaidCount   int          `json:"paid_count"`
	UnpaidCount int          `json:"unpaid_count"`
	Collected   float64      `json:"collected"`
	Pending     float64      `json:"pending"`
}

// MonthStatus is one entry of a student's fee history.
type MonthStatus struct {
	Month  MonthKey   `json:"month"`
	Paid   bool       `json:"paid"`
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// Dashboard summarises a teacher's workload for today and the current month.
type Dashboard struct {
	Date      string         `json:"date"`
	Batches   int            `json:"batches"`
	Students  int            `json:"students"`
	Month     MonthKey       `json:"month"`
	Collected float64        `json:"collected"`
	Pending   float64        `json:"pending"`
	Today     []ScheduleSlot `json:"today"`
}

// Reminder statuses.
const (
	ReminderQueued  = "queued"
	ReminderSent    = "sent"
	ReminderSkipped = "skipped"
)

// Reminder is a request to nudge a student about an unpaid month.
type Reminder struct {
	ID          string     `json:"id"`
	TeacherID   string     `json:"teacher_id"`
	BatchID     string     `json:"batch_id"`
	StudentID   string     `json:"student_id"`
	Month       MonthKey   `json:"month"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
