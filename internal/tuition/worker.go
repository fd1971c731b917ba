package tuition

import (
	"context"
	"encoding/json"

	"tuition/internal/queue"
)

// RunReminderWorker consumes reminder jobs from q until ctx is done or the
// queue closes. A failed job is logged and dropped; its reminder stays queued.
func (s *Service) RunReminderWorker(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	s.log.Info("reminder worker started")
	for msg := range messages {
		if msg.Type != ReminderMessageType {
			s.log.Debug("skipping message", "type", msg.Type)
			continue
		}
		var job ReminderJob
		if err := json.Unmarshal(msg.Body, &job); err != nil || job.ReminderID == "" {
			s.log.Warn("bad reminder job", "body", string(msg.Body), "error", err)
			continue
		}
		rem, err := s.ProcessReminder(ctx, job.ReminderID)
		if err != nil {
			s.log.Error("process reminder failed", "reminder_id", job.ReminderID, "error", err)
			continue
		}
		s.log.Info("reminder processed", "reminder_id", rem.ID, "status", rem.Status)
	}
	s.log.Info("reminder worker stopped")
	return nil
}
