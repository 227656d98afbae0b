package validate

import (
	"strings"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotBlank(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "looks good", false},
		{"empty string", "", true},
		{"only spaces", "   ", true},
		{"only tabs", "\t\t", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NotBlank(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "NotBlank(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		})
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"ulid", "01HV6Z9X1J4Q8K2M3N4P5R6S7T", false},
		{"with hyphen", "doc-1", false},
		{"with colon", "block:42", false},
		{"unicode letters", "文書1", false},
		{"empty string", "", true},
		{"with space", "doc 1", true},
		{"with newline", "doc\n1", true},
		{"too long", strings.Repeat("a", MaxIDLength+1), true},
		{"at limit", strings.Repeat("a", MaxIDLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Identifier(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "Identifier(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		})
	}
}

func TestFieldValidators(t *testing.T) {
	err := criterio.ValidateStruct(
		IDField("documentId", ""),
		Required("content", "  "),
		Required("author", "ann"),
	)
	require.Error(t, err)

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 2)
	assert.Equal(t, "documentId", fieldErrs[0].Field)
	assert.Equal(t, "content", fieldErrs[1].Field)
}
