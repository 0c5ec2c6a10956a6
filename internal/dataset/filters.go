package dataset

import (
	"fmt"
	"strings"
	"time"
)

// userSearchColumns are the identity columns the free-text user filter ORs
// across. A term matching any one of them includes the row.
var userSearchColumns = []string{"User ID", "User Name"}

// exactMatchColumn maps each exact-match filter to its designated column.
var exactMatchColumns = map[string]string{
	"role":       "Role ID",
	"risk_level": "Risk Level",
	"system":     "System",
	"action":     "Action",
}

const dateColumn = "Last Executed On"

// Filters holds the optional query constraints. Zero values mean "no
// constraint"; all provided filters are AND-combined.
type Filters struct {
	User      string
	Role      string
	RiskLevel string
	System    string
	Action    string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// buildWhere renders the composed predicate as a SQL fragment plus bind args.
// The empty string means no WHERE clause at all.
func (f Filters) buildWhere() (string, []any) {
	var conds []string
	var args []any

	if f.User != "" {
		parts := make([]string, len(userSearchColumns))
		for i, column := range userSearchColumns {
			parts[i] = fmt.Sprintf("contains(lower(%s), lower(?))", quoteIdent(column))
			args = append(args, f.User)
		}
		conds = append(conds, "("+strings.Join(parts, " OR ")+")")
	}

	for _, match := range []struct {
		key   string
		value string
	}{
		{"role", f.Role},
		{"risk_level", f.RiskLevel},
		{"system", f.System},
		{"action", f.Action},
	} {
		if match.value == "" {
			continue
		}
		conds = append(conds, fmt.Sprintf("lower(%s) = lower(?)", quoteIdent(exactMatchColumns[match.key])))
		args = append(args, match.value)
	}

	// Loose date parsing: rows whose date column fails to parse become NULL
	// and drop out of range filtering instead of matching.
	if f.DateFrom != nil {
		conds = append(conds, fmt.Sprintf("TRY_CAST(%s AS DATE) >= CAST(? AS DATE)", quoteIdent(dateColumn)))
		args = append(args, f.DateFrom.Format("2006-01-02"))
	}
	if f.DateTo != nil {
		conds = append(conds, fmt.Sprintf("TRY_CAST(%s AS DATE) <= CAST(? AS DATE)", quoteIdent(dateColumn)))
		args = append(args, f.DateTo.Format("2006-01-02"))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Fields returns the filters that were actually provided, for request logs.
func (f Filters) Fields() map[string]string {
	fields := make(map[string]string)
	if f.User != "" {
		fields["user"] = f.User
	}
	if f.Role != "" {
		fields["role"] = f.Role
	}
	if f.RiskLevel != "" {
		fields["risk_level"] = f.RiskLevel
	}
	if f.System != "" {
		fields["system"] = f.System
	}
	if f.Action != "" {
		fields["action"] = f.Action
	}
	if f.DateFrom != nil {
		fields["date_from"] = f.DateFrom.Format("2006-01-02")
	}
	if f.DateTo != nil {
		fields["date_to"] = f.DateTo.Format("2006-01-02")
	}
	return fields
}
