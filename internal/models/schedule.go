// ABOUTME: ScheduleItem, Plan and Message models.
// ABOUTME: Records linking a trainer and a client.
package models

import "time"

// Date and clock layouts used by schedule and progress records.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ScheduleItem is a training session booked for a client.
type ScheduleItem struct {
	ID        string `json:"id"`
	ClientID  string `json:"clientId"`
	TrainerID string `json:"trainerId,omitempty"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Title     string `json:"title,omitempty"`
}

func (s *ScheduleItem) RecordID() string      { return s.ID }
func (s *ScheduleItem) SetRecordID(id string) { s.ID = id }

// SortKey orders items chronologically by date then time.
func (s *ScheduleItem) SortKey() string { return s.Date + " " + s.Time }

// Slot reports whether the item occupies the given client/date/time slot.
func (s *ScheduleItem) Slot(clientID, date, clock string) bool {
	return s.ClientID == clientID && s.Date == date && s.Time == clock
}

// PlanType distinguishes training plans from nutrition plans.
type PlanType string

const (
	PlanTraining  PlanType = "training"
	PlanNutrition PlanType = "nutrition"
)

// IsValidPlanType checks if a string is a known plan type.
func IsValidPlanType(s string) bool {
	return s == string(PlanTraining) || s == string(PlanNutrition)
}

// Plan is a training or nutrition plan a trainer writes for a client.
type Plan struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	TrainerID string    `json:"trainerId,omitempty"`
	Type      PlanType  `json:"type"`
	Title     string    `json:"title"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *Plan) RecordID() string      { return p.ID }
func (p *Plan) SetRecordID(id string) { p.ID = id }

// Message is one chat message between two users.
type Message struct {
	ID     string    `json:"id"`
	FromID string    `json:"fromId"`
	ToID   string    `json:"toId"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

func (m *Message) RecordID() string      { return m.ID }
func (m *Message) SetRecordID(id string) { m.ID = id }

// Between reports whether the message belongs to the conversation of a and b.
func (m *Message) Between(a, b string) bool {
	return (m.FromID == a && m.ToID == b) || (m.FromID == b && m.ToID == a)
}
