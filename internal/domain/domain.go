// ABOUTME: Domain services enforcing integrity rules before writes.
// ABOUTME: Services bundles every service over one Store.
package domain

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

var (
	// ErrSchedulingConflict is wrapped by *ConflictError.
	ErrSchedulingConflict = errors.New("scheduling conflict")

	// ErrNotFound is returned when an operation needs a record that does not exist.
	ErrNotFound = errors.New("not found")
)

// ConflictError names the schedule item occupying the requested slot.
type ConflictError struct {
	Existing *models.ScheduleItem
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: client %s already has a session on %s at %s (%s)",
		ErrSchedulingConflict, e.Existing.ClientID, e.Existing.Date, e.Existing.Time, e.Existing.ID)
}

func (e *ConflictError) Unwrap() error { return ErrSchedulingConflict }

// Services groups the domain services.
type Services struct {
	Directory *Directory
	Profiles  *Profiles
	Schedule  *Schedule
	Progress  *Progress
	Plans     *Plans
	Messages  *Messages
	Journal   *Journal
	Dashboard *Dashboard
}

// New builds every service over store. A nil logger discards output.
func New(store *storage.Store, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := &Directory{store: store}
	sched := &Schedule{store: store, dir: dir, logger: logger}
	prog := &Progress{store: store}
	return &Services{
		Directory: dir,
		Profiles:  &Profiles{store: store, logger: logger},
		Schedule:  sched,
		Progress:  prog,
		Plans:     &Plans{store: store, dir: dir},
		Messages:  &Messages{store: store, dir: dir},
		Journal:   &Journal{store: store},
		Dashboard: &Dashboard{dir: dir, schedule: sched, progress: prog},
	}
}

// validDate reports whether s is a calendar date in YYYY-MM-DD form.
func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}

// validClock reports whether s is a 24-hour HH:MM time.
func validClock(s string) bool {
	if len(s) != len(models.TimeLayout) {
		return false
	}
	_, err := time.Parse(models.TimeLayout, s)
	return err == nil
}
