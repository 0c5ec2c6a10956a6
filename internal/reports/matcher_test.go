package reports

import (
	"testing"
	"time"
)

func TestMatchNameExtractsTimestamp(t *testing.T) {
	producedAt, ok := MatchName(CategoryActions, "RS_Action_Lvl_20240102_020000.txt")
	if !ok {
		t.Fatal("expected name to match actions category")
	}

	want := time.Date(2024, 1, 2, 2, 0, 0, 0, time.Local)
	if !producedAt.Equal(want) {
		t.Errorf("expected %v, got %v", want, producedAt)
	}
}

func TestMatchNamePerCategory(t *testing.T) {
	cases := map[Category]string{
		CategoryActions:     "RS_Action_Lvl_20240101_010000.txt",
		CategoryCritActions: "RS_CritAction_Lvl_20240101_010000.txt",
		CategoryPerms:       "RS_Perm_Lvl_20240101_010000.txt",
		CategoryCritPerms:   "RS_CritPerm_Lvl_20240101_010000.txt",
	}

	for category, name := range cases {
		if _, ok := MatchName(category, name); !ok {
			t.Errorf("expected %q to match %s", name, category)
		}
		// Each template is exclusive to its own category.
		for other := range cases {
			if other == category {
				continue
			}
			if _, ok := MatchName(other, name); ok {
				t.Errorf("%q should not match %s", name, other)
			}
		}
	}
}

func TestMatchNameRejectsUnrelatedFiles(t *testing.T) {
	rejected := []string{
		"notes.txt",
		"RS_Action_Lvl_20240101_010000.csv",
		"rs_action_lvl_20240101_010000.txt", // case-sensitive prefix
		"RS_Action_Lvl_2024_010000.txt",     // short date
		"RS_Action_Lvl_20240101_010000.txt.bak",
		"prefix_RS_Action_Lvl_20240101_010000.txt",
	}

	for _, name := range rejected {
		if _, ok := MatchName(CategoryActions, name); ok {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}
