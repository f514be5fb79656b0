package migrations

import (
	"errors"
	"strings"
)

var errSemicolonInLiteral = errors.New("semicolon inside a string literal cannot be split safely")

// splitStatements drops blank and "--" comment lines and splits the rest on
// semicolons. Migration files must keep semicolons out of string literals
// and block comments; validateNoSemicolonInStrings enforces the first rule.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings scans single-quoted literals, treating a
// doubled quote as an escape, and rejects any that contain a semicolon.
func validateNoSemicolonInStrings(sql string) error {
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if quoted && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			quoted = !quoted
		case ';':
			if quoted {
				return errSemicolonInLiteral
			}
		}
	}
	return nil
}
