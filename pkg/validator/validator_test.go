package validator_test

import (
	"testing"

	"github.com/Temutjin2k/ride-match/pkg/validator"
	"github.com/stretchr/testify/assert"
)

func TestValidator_FirstErrorWins(t *testing.T) {
	v := validator.New()
	assert.True(t, v.Valid())

	v.Check(false, "rating", "must be between 1 and 5")
	v.Check(false, "rating", "second message")
	v.Check(true, "comment", "never added")

	assert.False(t, v.Valid())
	assert.Equal(t, map[string]string{"rating": "must be between 1 and 5"}, v.Errors)
}

func TestHelpers(t *testing.T) {
	assert.True(t, validator.PermittedValue("Pakyaw", "Motor Taxi", "Pakyaw"))
	assert.False(t, validator.PermittedValue("Taxi", "Motor Taxi", "Pakyaw"))
	assert.True(t, validator.NotBlank(" a "))
	assert.False(t, validator.NotBlank("   "))
	assert.True(t, validator.Between(5, 1, 5))
	assert.False(t, validator.Between(91.0, -90, 90))
}
