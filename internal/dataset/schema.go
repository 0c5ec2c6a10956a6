package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownColumn means a requested column is not part of the canonical set.
var ErrUnknownColumn = errors.New("unknown column")

// CanonicalColumns is the normalized schema every report file is projected
// onto, in fixed output order. Files missing a column get typed nulls.
var CanonicalColumns = []string{
	"User ID",
	"User Name",
	"User Group",
	"Access Risk ID",
	"Risk Description",
	"Role ID",
	"Risk Level",
	"Function",
	"Function Description",
	"System",
	"Action",
	"Action Description",
	"Last Executed On",
	"Business Process",
	"Composite/Business Role Description",
	"ReportType",
	"IsCritical",
}

// DefaultColumns is the subset returned when a query names no columns.
var DefaultColumns = []string{
	"User ID",
	"User Name",
	"Role ID",
	"Risk Level",
	"Action",
	"Action Description",
	"System",
	"Last Executed On",
	"IsCritical",
	"ReportType",
}

// ResolveColumns maps requested names onto canonical ones, case-insensitively
// and order-preserving. A nil/empty request resolves to DefaultColumns.
func ResolveColumns(requested []string) ([]string, error) {
	if len(requested) == 0 {
		resolved := make([]string, len(DefaultColumns))
		copy(resolved, DefaultColumns)
		return resolved, nil
	}

	canonical := make(map[string]string, len(CanonicalColumns))
	for _, name := range CanonicalColumns {
		canonical[strings.ToLower(name)] = name
	}

	resolved := make([]string, 0, len(requested))
	for _, column := range requested {
		name, ok := canonical[strings.ToLower(strings.TrimSpace(column))]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
		}
		resolved = append(resolved, name)
	}
	return resolved, nil
}

// ResolveColumn resolves a single column name against the canonical set.
func ResolveColumn(requested string) (string, error) {
	resolved, err := ResolveColumns([]string{requested})
	if err != nil {
		return "", err
	}
	return resolved[0], nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
