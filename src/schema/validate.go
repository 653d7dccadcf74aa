package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRegex matches safe SQL identifiers (alphanumeric and underscore,
// not starting with a digit).
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// typeNameRegex matches PostgreSQL type names as they may appear in a cast:
// multi-word names (double precision), precision arguments (numeric(10,2))
// and array suffixes (text[]).
var typeNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_ ]*(\([0-9]+(, ?[0-9]+)?\))?(\[\])?$`)

// ValidateIdentifier checks if a string is acceptable as a PostgreSQL
// identifier before it is embedded in statement text.
// In strict mode (recommended) only alphanumeric and underscore characters are
// allowed. In non-strict mode basic safety checks are still performed to
// prevent SQL injection through quoting or statement separators.
func ValidateIdentifier(name string, strict bool) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	// PostgreSQL truncates identifiers at 63 bytes
	if len(name) > 63 {
		return fmt.Errorf("identifier exceeds maximum length of 63 characters")
	}

	if strict {
		if !identifierRegex.MatchString(name) {
			return fmt.Errorf("invalid identifier: %s (must contain only alphanumeric and underscore, not start with a digit)", name)
		}
		return nil
	}

	dangerous := []string{";", "'", "\"", "\\", "--", "/*", "*/", "\x00"}
	for _, seq := range dangerous {
		if strings.Contains(name, seq) {
			return fmt.Errorf("identifier contains forbidden sequence %q", seq)
		}
	}

	return nil
}

// ValidateTypeName checks that a string is acceptable as a PostgreSQL type
// name before it is embedded in statement text as a cast.
func ValidateTypeName(name string) error {
	if name == "" {
		return fmt.Errorf("type name cannot be empty")
	}
	if !typeNameRegex.MatchString(name) {
		return fmt.Errorf("invalid type name: %s", name)
	}
	return nil
}
