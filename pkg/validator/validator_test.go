package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type contactPayload struct {
	Phone string `json:"phone" validate:"required,phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestPhoneRule(t *testing.T) {
	cases := []struct {
		name  string
		phone string
		valid bool
	}{
		{"ten digits", "9876543210", true},
		{"fifteen digits", "987654321098765", true},
		{"too short", "12345", false},
		{"too long", "123456789012345678", false},
		{"letters", "98765abc10", false},
		{"separators", "987-654-3210", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStruct(contactPayload{Phone: tc.phone})
			if tc.valid {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			ve, ok := err.(ValidationErrors)
			require.True(t, ok)
			require.Equal(t, "phone", ve[0].Field)
		})
	}
}

func TestFieldNamesComeFromJSONTags(t *testing.T) {
	err := ValidateStruct(contactPayload{Phone: "9876543210", Email: "not-an-email"})
	require.Error(t, err)

	ve, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Equal(t, "email", ve[0].Field)
	require.Equal(t, "email", ve[0].Tag)
}
