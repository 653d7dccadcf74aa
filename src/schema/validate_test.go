package schema

import (
	"strings"
	"testing"
)

// TestValidateIdentifier tests the identifier validation function
func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		strict     bool
		wantErr    bool
	}{
		{
			name:       "valid simple identifier",
			identifier: "users",
			strict:     true,
			wantErr:    false,
		},
		{
			name:       "valid identifier with underscore",
			identifier: "user_accounts",
			strict:     true,
			wantErr:    false,
		},
		{
			name:       "valid identifier starting with underscore",
			identifier: "_private_table",
			strict:     true,
			wantErr:    false,
		},
		{
			name:       "valid identifier with numbers",
			identifier: "table_123",
			strict:     true,
			wantErr:    false,
		},
		{
			name:       "empty identifier",
			identifier: "",
			strict:     true,
			wantErr:    true,
		},
		{
			name:       "identifier with spaces",
			identifier: "user table",
			strict:     true,
			wantErr:    true,
		},
		{
			name:       "identifier starting with digit",
			identifier: "1users",
			strict:     true,
			wantErr:    true,
		},
		{
			name:       "SQL injection attempt",
			identifier: "users; DROP TABLE users;--",
			strict:     true,
			wantErr:    true,
		},
		{
			name:       "identifier too long",
			identifier: strings.Repeat("a", 64),
			strict:     true,
			wantErr:    true,
		},
		{
			name:       "non-strict allows unusual but safe names",
			identifier: "user table",
			strict:     false,
			wantErr:    false,
		},
		{
			name:       "non-strict rejects statement separator",
			identifier: "users; DROP TABLE users",
			strict:     false,
			wantErr:    true,
		},
		{
			name:       "non-strict rejects quote",
			identifier: "users'",
			strict:     false,
			wantErr:    true,
		},
		{
			name:       "non-strict rejects comment",
			identifier: "users--",
			strict:     false,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.identifier, tt.strict)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %q", tt.identifier)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// TestValidateTypeName tests the cast type name validation function
func TestValidateTypeName(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		wantErr  bool
	}{
		{
			name:     "simple type",
			typeName: "int8",
			wantErr:  false,
		},
		{
			name:     "array type",
			typeName: "text[]",
			wantErr:  false,
		},
		{
			name:     "multi-word type",
			typeName: "double precision",
			wantErr:  false,
		},
		{
			name:     "type with precision",
			typeName: "numeric(10,2)",
			wantErr:  false,
		},
		{
			name:     "varying with length",
			typeName: "character varying(255)",
			wantErr:  false,
		},
		{
			name:     "user defined type",
			typeName: "order_status",
			wantErr:  false,
		},
		{
			name:     "empty type name",
			typeName: "",
			wantErr:  true,
		},
		{
			name:     "SQL injection attempt",
			typeName: "int8) AS x; DROP TABLE users; --",
			wantErr:  true,
		},
		{
			name:     "unbalanced parenthesis",
			typeName: "text)",
			wantErr:  true,
		},
		{
			name:     "quote in type name",
			typeName: "text'",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTypeName(tt.typeName)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %q", tt.typeName)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
