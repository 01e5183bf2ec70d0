// ABOUTME: Record identifier generation.
// ABOUTME: IDs look like {prefix}_{random}_{timestamp-base36}.
package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID prefixes used when creating records.
const (
	PrefixUser      = "usr"
	PrefixProfile   = "profile"
	PrefixSchedule  = "sess"
	PrefixProgress  = "prog"
	PrefixPlan      = "plan"
	PrefixMessage   = "msg"
	PrefixWorkout   = "wo"
	PrefixNutrition = "nut"
)

// NewID generates a record id with the given prefix.
func NewID(prefix string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return prefix + "_" + random + "_" + ts
}

// Now returns the current time in UTC without a monotonic reading, so values
// survive a JSON round trip unchanged.
func Now() time.Time {
	return time.Now().UTC()
}
