package reports

import (
	"regexp"
	"time"
)

// Category identifies one of the four physical report kinds dropped by the
// upstream risk export. Each kind has its own fixed file name template.
type Category string

const (
	CategoryActions     Category = "actions"
	CategoryCritActions Category = "crit_actions"
	CategoryPerms       Category = "perms"
	CategoryCritPerms   Category = "crit_perms"
)

// Categories lists every known category, in the order families combine them.
var Categories = []Category{
	CategoryActions,
	CategoryCritActions,
	CategoryPerms,
	CategoryCritPerms,
}

var namePatterns = map[Category]*regexp.Regexp{
	CategoryActions:     regexp.MustCompile(`^RS_Action_Lvl_(\d{8})_(\d{6})\.txt$`),
	CategoryCritActions: regexp.MustCompile(`^RS_CritAction_Lvl_(\d{8})_(\d{6})\.txt$`),
	CategoryPerms:       regexp.MustCompile(`^RS_Perm_Lvl_(\d{8})_(\d{6})\.txt$`),
	CategoryCritPerms:   regexp.MustCompile(`^RS_CritPerm_Lvl_(\d{8})_(\d{6})\.txt$`),
}

// MatchName reports whether name belongs to category and, if so, the
// production timestamp embedded in the name. Names that don't match are not
// an error; directories holding unrelated files are tolerated by skipping.
func MatchName(category Category, name string) (time.Time, bool) {
	pattern, ok := namePatterns[category]
	if !ok {
		return time.Time{}, false
	}
	groups := pattern.FindStringSubmatch(name)
	if groups == nil {
		return time.Time{}, false
	}
	producedAt, err := time.ParseInLocation("20060102150405", groups[1]+groups[2], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return producedAt, true
}
