// ABOUTME: CUE-backed record validation applied at the store boundary.
// ABOUTME: Each table maps to a closed definition in forma.cue.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/harperreed/forma/internal/models"
)

//go:embed forma.cue
var source []byte

var definitions = map[models.Table]string{
	models.TableUsers:     "#User",
	models.TableProfiles:  "#Profile",
	models.TableWorkouts:  "#WorkoutEntry",
	models.TableNutrition: "#NutritionEntry",
	models.TableSchedules: "#ScheduleItem",
	models.TableProgress:  "#ProgressEntry",
	models.TableMessages:  "#Message",
	models.TablePlans:     "#Plan",
}

// Validator checks encoded records against the compiled schema.
// A cue.Context is not safe for concurrent use, so calls are serialized.
type Validator struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[models.Table]cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(source, cue.Filename("forma.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	defs := make(map[models.Table]cue.Value, len(definitions))
	for table, name := range definitions {
		def := root.LookupPath(cue.ParsePath(name))
		if !def.Exists() {
			return nil, fmt.Errorf("schema definition %s missing", name)
		}
		defs[table] = def
	}

	return &Validator{ctx: ctx, defs: defs}, nil
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// Default returns a process-wide validator compiled on first use.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = New()
	})
	return defaultValidator, defaultErr
}

// Validate checks raw JSON for a table. Schema mismatches are returned as
// *models.ValidationError.
func (v *Validator) Validate(table models.Table, raw []byte) error {
	def, ok := v.defs[table]
	if !ok {
		return fmt.Errorf("no schema for table %q", table)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	data := v.ctx.CompileBytes(raw, cue.Filename(string(table)+".json"))
	if err := data.Err(); err != nil {
		return fmt.Errorf("parse %s record: %w", table, err)
	}

	err := def.Unify(data).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	return toValidationError(table, err)
}

// ValidateRecord encodes rec and validates it.
func (v *Validator) ValidateRecord(table models.Table, rec models.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", table, err)
	}
	return v.Validate(table, raw)
}

func toValidationError(table models.Table, err error) error {
	violations := models.Violations{}
	for _, e := range cueerrors.Errors(err) {
		field := strings.Join(e.Path(), ".")
		if field == "" {
			field = "record"
		}
		format, args := e.Msg()
		violations.Add(field, fmt.Sprintf(format, args...))
	}
	if len(violations) == 0 {
		violations.Add("record", err.Error())
	}
	return violations.Err(table)
}
