package validator

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const msgRequired = "field is required"

// RequiredString validates that a string is not empty after trimming whitespace.
func RequiredString(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return strings.TrimSpace(value) != ""
		},
		Error: ValidationError{Field: field, Message: msgRequired},
	}
}

func MaxLenString(field, value string, max int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) <= max
		},
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters long", max)},
	}
}

func RequiredSlice[T any](field string, value []T) Rule {
	return Rule{
		Check: func() bool {
			return len(value) > 0
		},
		Error: ValidationError{Field: field, Message: msgRequired},
	}
}

func MaxLenSlice[T any](field string, value []T, max int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) <= max
		},
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must have at most %d items", max)},
	}
}

// EachString validates that check holds for every element of value.
func EachString(field string, value []string, message string, check func(string) bool) Rule {
	return Rule{
		Check: func() bool {
			for _, v := range value {
				if !check(v) {
					return false
				}
			}
			return true
		},
		Error: ValidationError{Field: field, Message: message},
	}
}

// InListCaseInsensitive validates that value is one of allowed, ignoring case.
func InListCaseInsensitive(field, value string, allowed []string) Rule {
	return Rule{
		Check: func() bool {
			return slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(a, value) })
		},
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", "))},
	}
}

func MinNum[T Numeric](field string, value T, min T) Rule {
	return Rule{
		Check: func() bool {
			return value >= min
		},
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at least %v", min)},
	}
}

func MaxNum[T Numeric](field string, value T, max T) Rule {
	return Rule{
		Check: func() bool {
			return value <= max
		},
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %v", max)},
	}
}

// NotFutureDate validates that value is not after now. Zero values pass.
func NotFutureDate(field string, value, now time.Time) Rule {
	return Rule{
		Check: func() bool {
			return value.IsZero() || !value.After(now)
		},
		Error: ValidationError{Field: field, Message: "must not be in the future"},
	}
}

// Custom wraps an arbitrary check.
func Custom(field, message string, check func() bool) Rule {
	return Rule{
		Check: check,
		Error: ValidationError{Field: field, Message: message},
	}
}
