package dataset

import (
	"bufio"
	"context"
	"crypto/sha1"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"riskquery-backend/internal/reports"
)

// Family is a client-visible logical dataset combining a regular and a
// critical-variant category.
type Family string

const (
	FamilyActions     Family = "actions"
	FamilyPermissions Family = "permissions"
)

// Families lists the queryable families.
var Families = []Family{FamilyActions, FamilyPermissions}

// familyCategories holds each family's backing categories in fixed order:
// regular first, critical second. The order feeds the bundle fingerprint.
var familyCategories = map[Family][2]reports.Category{
	FamilyActions:     {reports.CategoryActions, reports.CategoryCritActions},
	FamilyPermissions: {reports.CategoryPerms, reports.CategoryCritPerms},
}

// Bundle is the logical queryable unit backing one request: a composed
// (unexecuted) SELECT over the family's current files plus the combined
// fingerprint of those files. Equal fingerprints guarantee equal results.
type Bundle struct {
	Family      Family
	Fingerprint string
	selectSQL   string
}

// Loader composes DuckDB queries over the latest report files. Scans,
// normalization, filters and slicing all stay in SQL text until a fetch
// method executes it, so column pruning and predicates push into the reader.
type Loader struct {
	db    *sql.DB
	index *reports.Index
}

func NewLoader(db *sql.DB, index *reports.Index) *Loader {
	return &Loader{db: db, index: index}
}

// LoadFamily resolves the family's two categories and builds its Bundle.
func (l *Loader) LoadFamily(ctx context.Context, family Family) (*Bundle, error) {
	categories, ok := familyCategories[family]
	if !ok {
		return nil, fmt.Errorf("unknown report family %q", family)
	}

	selects := make([]string, 0, len(categories))
	fingerprints := make([]string, 0, len(categories))
	for _, category := range categories {
		record, err := l.index.Resolve(ctx, category)
		if err != nil {
			return nil, err
		}
		normalized, err := normalizedSelect(record, family)
		if err != nil {
			return nil, err
		}
		selects = append(selects, normalized)
		fingerprints = append(fingerprints, record.Fingerprint)
	}

	return &Bundle{
		Family:      family,
		Fingerprint: combineFingerprints(fingerprints),
		selectSQL:   "(" + strings.Join(selects, ") UNION ALL BY NAME (") + ")",
	}, nil
}

// combineFingerprints hashes the constituent fingerprints in their fixed
// regular|critical order, so swapping files never collides with rotation.
func combineFingerprints(fingerprints []string) string {
	sum := sha1.Sum([]byte(strings.Join(fingerprints, "|")))
	return fmt.Sprintf("%x", sum)
}

// normalizedSelect builds the projection of one physical file onto the
// canonical schema.
func normalizedSelect(record reports.FileRecord, family Family) (string, error) {
	present, err := readHeaderColumns(record.Path)
	if err != nil {
		return "", err
	}

	// The file name is the authoritative critical-flag source; any IsCritical
	// column inside the file is overridden.
	isCritical := strings.Contains(strings.ToLower(filepath.Base(record.Path)), "crit")

	projection := make([]string, 0, len(CanonicalColumns))
	for _, column := range CanonicalColumns {
		switch {
		case column == "IsCritical":
			projection = append(projection, fmt.Sprintf("%t AS %s", isCritical, quoteIdent(column)))
		case column == "ReportType":
			projection = append(projection, fmt.Sprintf("%s AS %s", quoteString(reportLabel(family, isCritical)), quoteIdent(column)))
		case present[column]:
			projection = append(projection, quoteIdent(column))
		default:
			projection = append(projection, fmt.Sprintf("CAST(NULL AS VARCHAR) AS %s", quoteIdent(column)))
		}
	}

	scan := fmt.Sprintf(
		`read_csv(%s, delim='\t', header=true, all_varchar=true, ignore_errors=true)`,
		quoteString(record.Path),
	)
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(projection, ", "), scan), nil
}

func reportLabel(family Family, isCritical bool) string {
	switch family {
	case FamilyPermissions:
		if isCritical {
			return "Critical Permission"
		}
		return "Permission"
	default:
		if isCritical {
			return "Critical Action"
		}
		return "Action"
	}
}

// readHeaderColumns reads just the header line of a TSV report.
func readHeaderColumns(path string) (map[string]bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
		}
		return map[string]bool{}, nil
	}

	header := strings.TrimPrefix(strings.TrimRight(scanner.Text(), "\r"), "\uFEFF")
	present := make(map[string]bool)
	for _, name := range strings.Split(header, "\t") {
		present[strings.TrimSpace(name)] = true
	}
	return present, nil
}

// FetchPage materializes one page of the filtered, projected view. It asks
// for one row beyond limit so hasMore needs no separate count query.
func (l *Loader) FetchPage(ctx context.Context, bundle *Bundle, filters Filters, columns []string, limit, offset int) ([]map[string]any, bool, error) {
	where, args := filters.buildWhere()

	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = quoteIdent(column)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM (%s) AS report%s LIMIT ? OFFSET ?",
		strings.Join(quoted, ", "), bundle.selectSQL, where,
	)
	args = append(args, limit+1, offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("page query failed: %w", err)
	}
	defer rows.Close()

	page, err := scanRows(rows, columns)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	return page, hasMore, nil
}

// SummaryRow is one group of a grouped summary.
type SummaryRow struct {
	Group    any      `json:"group"`
	Count    int64    `json:"count"`
	Examples []string `json:"examples"`
}

// Summarize groups the filtered view by one column and returns the top
// groups by count, each with up to three example user names.
func (l *Loader) Summarize(ctx context.Context, bundle *Bundle, filters Filters, groupBy string, top int) ([]SummaryRow, error) {
	where, args := filters.buildWhere()

	query := fmt.Sprintf(
		`SELECT %[1]s AS group_value, count(*) AS group_count,
			(list("User Name") FILTER (WHERE "User Name" IS NOT NULL))[1:3] AS examples
		FROM (%[2]s) AS report%[3]s
		GROUP BY 1
		ORDER BY group_count DESC, group_value
		LIMIT ?`,
		quoteIdent(groupBy), bundle.selectSQL, where,
	)
	args = append(args, top)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary query failed: %w", err)
	}
	defer rows.Close()

	summaries := []SummaryRow{}
	for rows.Next() {
		var group, examples any
		var count int64
		if err := rows.Scan(&group, &count, &examples); err != nil {
			return nil, err
		}
		summaries = append(summaries, SummaryRow{
			Group:    normalizeValue(group),
			Count:    count,
			Examples: toStringSlice(examples),
		})
	}
	return summaries, rows.Err()
}

// Facet is one value of a column with its frequency.
type Facet struct {
	Value any   `json:"value"`
	Count int64 `json:"count"`
}

// Facets returns the top-n most frequent values of a column across both
// bundles combined.
func (l *Loader) Facets(ctx context.Context, actions, permissions *Bundle, column string, n int) ([]Facet, error) {
	query := fmt.Sprintf(
		`SELECT %[1]s AS facet_value, count(*) AS facet_count
		FROM ((%[2]s) UNION ALL BY NAME (%[3]s)) AS report
		GROUP BY 1
		ORDER BY facet_count DESC, facet_value
		LIMIT ?`,
		quoteIdent(column), actions.selectSQL, permissions.selectSQL,
	)

	rows, err := l.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("facet query failed: %w", err)
	}
	defer rows.Close()

	facets := []Facet{}
	for rows.Next() {
		var value any
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		facets = append(facets, Facet{Value: normalizeValue(value), Count: count})
	}
	return facets, rows.Err()
}

// Schema reports the column types of the combined normalized view, as
// inferred by the engine rather than restated by hand.
func (l *Loader) Schema(ctx context.Context, actions, permissions *Bundle) (map[string]string, error) {
	query := fmt.Sprintf(
		"SELECT column_name, column_type FROM (DESCRIBE SELECT * FROM ((%s) UNION ALL BY NAME (%s)) AS report)",
		actions.selectSQL, permissions.selectSQL,
	)

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("schema query failed: %w", err)
	}
	defer rows.Close()

	schema := make(map[string]string)
	for rows.Next() {
		var name, columnType string
		if err := rows.Scan(&name, &columnType); err != nil {
			return nil, err
		}
		schema[name] = typeLabel(columnType)
	}
	return schema, rows.Err()
}

func typeLabel(duckdbType string) string {
	switch strings.ToUpper(duckdbType) {
	case "VARCHAR":
		return "String"
	case "BOOLEAN":
		return "Boolean"
	case "DATE":
		return "Date"
	case "BIGINT", "INTEGER":
		return "Int64"
	case "DOUBLE", "FLOAT":
		return "Float64"
	default:
		return duckdbType
	}
}

func scanRows(rows *sql.Rows, columns []string) ([]map[string]any, error) {
	page := []map[string]any{}
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		page = append(page, row)
	}
	return page, rows.Err()
}

// normalizeValue maps driver byte slices to strings for JSON encoding.
func normalizeValue(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

func toStringSlice(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return []string{}
	}
	examples := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		examples = append(examples, fmt.Sprintf("%v", item))
	}
	return examples
}
