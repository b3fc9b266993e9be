package validator

import (
	"slices"
	"strings"
)

// Validator collects field errors while a request is being checked.
type Validator struct {
	Errors map[string]string
}

func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid returns true if the errors map doesn't contain any entries.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError adds an error message to the map, the first message for a key wins.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check adds an error message to the map only if a validation check is not 'ok'.
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// PermittedValue returns true if value is in permittedValues.
func PermittedValue[T comparable](value T, permittedValues ...T) bool {
	return slices.Contains(permittedValues, value)
}

// NotBlank reports whether s has non-space characters.
func NotBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

// Between reports whether n lies in [lo, hi].
func Between[T int | float64](n, lo, hi T) bool {
	return n >= lo && n <= hi
}
