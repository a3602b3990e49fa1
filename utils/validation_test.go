package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestStruct struct {
	Name   *string  `json:"name" validate:"required,max=10"`
	Age    *int     `json:"age" validate:"required,gte=0"`
	Score  *float64 `json:"score,omitempty" validate:"omitempty,gte=0,lte=1"`
	Hidden string   `json:"-" validate:"max=3"`
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := TestStruct{Name: strPtr("John"), Age: intPtr(30)}
		assert.NoError(t, ValidateStruct(&s))
	})

	t.Run("explicit zero satisfies required", func(t *testing.T) {
		s := TestStruct{Name: strPtr(""), Age: intPtr(0)}
		assert.NoError(t, ValidateStruct(&s))
	})

	t.Run("missing fields in declaration order", func(t *testing.T) {
		err := ValidateStruct(&TestStruct{})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"name", "age"}, verr.Missing)

		field, ok := FirstMissingField(err)
		assert.True(t, ok)
		assert.Equal(t, "name", field)

		s := TestStruct{Name: strPtr("x")}
		field, ok = FirstMissingField(ValidateStruct(&s))
		assert.True(t, ok)
		assert.Equal(t, "age", field)
	})

	t.Run("range violation uses json field name", func(t *testing.T) {
		score := 1.5
		s := TestStruct{Name: strPtr("John"), Age: intPtr(1), Score: &score}

		err := ValidateStruct(&s)
		require.Error(t, err)

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "score")
		_, missing := FirstMissingField(err)
		assert.False(t, missing)
	})

	t.Run("field without json name falls back to struct name", func(t *testing.T) {
		s := TestStruct{Name: strPtr("John"), Age: intPtr(1), Hidden: "toolong"}
		fields := GetValidationFields(ValidateStruct(&s))
		assert.Contains(t, fields, "Hidden")
	})
}

func TestGetValidationFields_NonValidationError(t *testing.T) {
	assert.Nil(t, GetValidationFields(assert.AnError))
	_, ok := FirstMissingField(assert.AnError)
	assert.False(t, ok)
}

func TestValidateRequired(t *testing.T) {
	assert.NoError(t, ValidateRequired("biz-1", "business_id"))
	assert.EqualError(t, ValidateRequired("", "business_id"), "business_id is required")
	assert.Error(t, ValidateRequired("   ", "business_id"))
}

func TestValidateStringLength(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		min, max  int
		wantError bool
	}{
		{"within bounds", "abc", 1, 5, false},
		{"too short", "", 1, 5, true},
		{"too long", "abcdef", 1, 5, true},
		{"no max", "abcdefghij", 0, 0, false},
		{"multi-byte within bounds", "ñandú", 1, 5, false},
		{"multi-byte too long", "ñandúes", 1, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStringLength(tt.value, "field", tt.min, tt.max)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
