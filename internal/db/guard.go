package db

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotReadOnly is returned for statements other than a single SELECT or WITH query.
var ErrNotReadOnly = errors.New("only a single read-only SELECT or WITH statement is allowed")

var writeKeywords = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|MERGE|DROP|CREATE|ALTER|TRUNCATE|ATTACH|DETACH|COPY|EXPORT|IMPORT|INSTALL|LOAD|PRAGMA|SET|RESET|CALL|CHECKPOINT|VACUUM|GRANT|REVOKE|USE)\b`)

// fileFunctions are the table functions that read host files or URLs.
var fileFunctions = regexp.MustCompile(`(?i)\b(read_\w+|\w+_scan|glob|sniff_csv|st_read|st_read_meta|query_table)\s*\(`)

var leadingKeyword = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)

// CheckReadOnly returns the statement without trailing semicolons when it
// is a single SELECT or WITH query, and ErrNotReadOnly otherwise. String
// literals, quoted identifiers and comments are ignored when looking for
// statement separators and write keywords.
func CheckReadOnly(query string) (string, error) {
	stmt := strings.TrimSpace(query)
	for strings.HasSuffix(stmt, ";") {
		stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	}
	if stmt == "" {
		return "", fmt.Errorf("empty query: %w", ErrNotReadOnly)
	}

	code := stripLiterals(stmt)
	if strings.Contains(code, ";") {
		return "", fmt.Errorf("multiple statements: %w", ErrNotReadOnly)
	}
	if !leadingKeyword.MatchString(code) {
		return "", ErrNotReadOnly
	}
	if m := writeKeywords.FindString(code); m != "" {
		return "", fmt.Errorf("%s is not allowed: %w", strings.ToUpper(m), ErrNotReadOnly)
	}
	if m := fileFunctions.FindStringSubmatch(code); m != nil {
		return "", fmt.Errorf("%s() is not allowed: %w", strings.ToLower(m[1]), ErrNotReadOnly)
	}
	return stmt, nil
}

// LimitQuery wraps a read-only query so at most limit rows come back.
func LimitQuery(query string, limit int) string {
	if limit <= 0 {
		return query
	}
	return fmt.Sprintf("SELECT * FROM (\n%s\n) AS limited_query LIMIT %d", query, limit)
}

// stripLiterals blanks out string literals, quoted identifiers and
// comments so keyword checks only see SQL code.
func stripLiterals(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\'' || c == '"':
			b.WriteRune(' ')
			for i++; i < len(runes); i++ {
				if runes[i] == c {
					if i+1 < len(runes) && runes[i+1] == c {
						i++
						continue
					}
					break
				}
			}
		case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			b.WriteRune('\n')
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++
			b.WriteRune(' ')
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
