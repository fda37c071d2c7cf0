package observability

import (
	"time"

	"go.uber.org/zap"
)

// Field is re-exported so call sites log through this package without
// importing zap directly.
type Field = zap.Field

// String constructs a string field.
func String(key, val string) Field { return zap.String(key, val) }

// Strings constructs a string-slice field.
func Strings(key string, vals []string) Field { return zap.Strings(key, vals) }

// Int constructs an int field.
func Int(key string, val int) Field { return zap.Int(key, val) }

// Duration constructs a duration field.
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

// Error constructs an error field under the standard "error" key.
func Error(err error) Field { return zap.Error(err) }

// Any constructs a field with the best available representation of val.
func Any(key string, val interface{}) Field { return zap.Any(key, val) }
