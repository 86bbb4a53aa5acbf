package etl

import (
	"fmt"
	"strings"

	"github.com/semlayer/semlayer/internal/source"
)

var (
	tableReplacer  = strings.NewReplacer(" ", "_", "-", "_", "$", "", "'", "")
	columnReplacer = strings.NewReplacer(" ", "_", "$", "", "#", "")
)

// SanitizeTableName turns a source table name into a raw-layer table name.
func SanitizeTableName(name string) string {
	sanitized := strings.ToLower(tableReplacer.Replace(source.TrimQuotes(name)))
	if sanitized != "" && sanitized[0] >= '0' && sanitized[0] <= '9' {
		sanitized = "t_" + sanitized
	}
	return sanitized
}

// SanitizeColumnNames cleans source column names. Case is kept; empty
// names become col_<position> and repeats get a numeric suffix.
func SanitizeColumnNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		clean := columnReplacer.Replace(strings.TrimSpace(name))
		if clean == "" {
			clean = fmt.Sprintf("col_%d", i+1)
		}

		// DuckDB identifiers are case-insensitive
		candidate := clean
		for n := 2; seen[strings.ToLower(candidate)]; n++ {
			candidate = fmt.Sprintf("%s_%d", clean, n)
		}
		seen[strings.ToLower(candidate)] = true
		out[i] = candidate
	}
	return out
}
