// ABOUTME: Dashboard summary for trainers and clients.
// ABOUTME: Trainers get client and daily session counts; clients get their next session.
package domain

import (
	"context"
	"time"

	"github.com/harperreed/forma/internal/models"
)

// Summary is the dashboard view of the store for one session.
type Summary struct {
	Role          models.Role            `json:"role"`
	ClientCount   int                    `json:"clientCount,omitempty"`
	TodaySessions []*models.ScheduleItem `json:"todaySessions,omitempty"`
	NextSession   *models.ScheduleItem   `json:"nextSession,omitempty"`
	ProgressCount int                    `json:"progressCount,omitempty"`
}

// Dashboard computes summaries.
type Dashboard struct {
	dir      *Directory
	schedule *Schedule
	progress *Progress
}

// Summary builds the dashboard for sess as of now.
func (d *Dashboard) Summary(ctx context.Context, sess *models.Session, now time.Time) (*Summary, error) {
	if sess == nil {
		return nil, nil
	}
	out := &Summary{Role: sess.Role}

	if sess.IsTrainer() {
		clients, err := d.dir.WithRole(ctx, models.RoleClient)
		if err != nil {
			return nil, err
		}
		out.ClientCount = len(clients)
		if out.TodaySessions, err = d.schedule.On(ctx, now.Format(models.DateLayout)); err != nil {
			return nil, err
		}
		return out, nil
	}

	next, err := d.schedule.Next(ctx, sess, now)
	if err != nil {
		return nil, err
	}
	out.NextSession = next
	if out.ProgressCount, err = d.progress.Count(ctx, sess.UserID); err != nil {
		return nil, err
	}
	return out, nil
}
