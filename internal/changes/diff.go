// Package changes computes field-level diffs used as audit details.
package changes

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"

	"tasktrail/internal/domain"
)

// FieldChange is the before/after pair recorded for one field.
type FieldChange struct {
	From any `json:"from" bson:"from"`
	To   any `json:"to" bson:"to"`
}

// CloneDetail copies both sides so stored log entries never share slices with callers.
func (c FieldChange) CloneDetail() any {
	return FieldChange{From: domain.CloneDetailValue(c.From), To: domain.CloneDetailValue(c.To)}
}

// Diff compares the supplied values against the current ones, restricted to fields.
// A field is reported only when it was supplied and its canonical text differs.
func Diff(current, supplied map[string]any, fields []string) map[string]FieldChange {
	out := map[string]FieldChange{}
	for _, f := range fields {
		next, ok := supplied[f]
		if !ok {
			continue
		}
		prev := current[f]
		if Canonical(prev) == Canonical(next) {
			continue
		}
		out[f] = FieldChange{From: Value(prev), To: Value(next)}
	}
	return out
}

// Details converts a diff into the activity log payload.
func Details(diff map[string]FieldChange) domain.Details {
	d := domain.Details{}
	for k, v := range diff {
		d[k] = v
	}
	return d
}

// Canonical renders v as the text used for equality checks.
func Canonical(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return ""
		}
		return Canonical(*x)
	case []string:
		return strings.Join(x, ",")
	case fmt.Stringer:
		return x.String()
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String()
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Value renders v in a form suitable for storing in a log entry.
func Value(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return Value(*x)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case []string:
		return append([]string{}, x...)
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String()
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return v
}
