// ABOUTME: Table names and the Record contract shared by every stored entity.
// ABOUTME: Maps each table to its concrete record type for decoding raw JSON.
package models

import (
	"encoding/json"
	"fmt"
)

// Table names a collection of records of one entity type.
type Table string

const (
	TableUsers     Table = "users"
	TableProfiles  Table = "profiles"
	TableWorkouts  Table = "workouts"
	TableNutrition Table = "nutrition"
	TableSchedules Table = "schedules"
	TableProgress  Table = "progress"
	TableMessages  Table = "messages"
	TablePlans     Table = "plans"
)

// AllTables lists every table in seed/export order.
var AllTables = []Table{
	TableUsers, TableProfiles, TableWorkouts, TableNutrition,
	TableSchedules, TableProgress, TableMessages, TablePlans,
}

// IsValidTable checks if a string names a known table.
func IsValidTable(s string) bool {
	for _, t := range AllTables {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Record is a uniquely identified value stored in a table.
type Record interface {
	RecordID() string
	SetRecordID(id string)
}

// NewRecord returns a pointer to a zero value of the record type stored in t.
func NewRecord(t Table) (Record, error) {
	switch t {
	case TableUsers:
		return &User{}, nil
	case TableProfiles:
		return &Profile{}, nil
	case TableWorkouts:
		return &WorkoutEntry{}, nil
	case TableNutrition:
		return &NutritionEntry{}, nil
	case TableSchedules:
		return &ScheduleItem{}, nil
	case TableProgress:
		return &ProgressEntry{}, nil
	case TableMessages:
		return &Message{}, nil
	case TablePlans:
		return &Plan{}, nil
	default:
		return nil, fmt.Errorf("unknown table: %q", t)
	}
}

// DecodeRecord decodes raw JSON into the record type stored in t.
func DecodeRecord(t Table, raw []byte) (Record, error) {
	rec, err := NewRecord(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", t, err)
	}
	return rec, nil
}
