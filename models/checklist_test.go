package models

import (
	"fmt"
	"math/rand"
	"testing"
)

func assertItemInvariants(t *testing.T, item *ChecklistItem, step string) {
	t.Helper()
	if item.NotApplicable && (!item.Checked || item.Deviation || item.Corrected || item.RequiresInstaller) {
		t.Fatalf("%s: IA invariant broken: %+v", step, item)
	}
	if item.Deviation && item.NotApplicable {
		t.Fatalf("%s: deviation coexists with IA: %+v", step, item)
	}
	if !item.Deviation && (item.Corrected || item.RequiresInstaller) {
		t.Fatalf("%s: corrected/installer without deviation: %+v", step, item)
	}
}

func TestToggleSequenceKeepsInvariants(t *testing.T) {
	toggles := []struct {
		name  string
		apply func(*ChecklistItem)
	}{
		{"checked", func(i *ChecklistItem) { i.ToggleChecked() }},
		{"ia", func(i *ChecklistItem) { i.ToggleNotApplicable() }},
		{"deviation", func(i *ChecklistItem) { i.ToggleDeviation() }},
		{"corrected", func(i *ChecklistItem) { i.ToggleCorrected() }},
		{"installer", func(i *ChecklistItem) { i.ToggleInstaller() }},
	}

	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 500; run++ {
		item := ChecklistItem{ChecklistItemTemplate: ChecklistItemTemplate{ID: "1.1"}}
		for step := 0; step < 40; step++ {
			tg := toggles[rng.Intn(len(toggles))]
			tg.apply(&item)
			assertItemInvariants(t, &item, fmt.Sprintf("run %d step %d (%s)", run, step, tg.name))

			// only toggles ran, so the comment must still be system text
			if item.Comment != "" && item.Comment != autoCommentOK && item.Comment != autoCommentIA {
				t.Fatalf("run %d step %d: unexpected comment %q", run, step, item.Comment)
			}
		}
	}
}

func TestTogglesNeverTouchUserComment(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	item := ChecklistItem{ChecklistItemTemplate: ChecklistItemTemplate{ID: "3.2"}}
	item.SetComment("Skada deksel på sikringsskap")

	toggles := []func(*ChecklistItem){
		func(i *ChecklistItem) { i.ToggleChecked() },
		func(i *ChecklistItem) { i.ToggleNotApplicable() },
		func(i *ChecklistItem) { i.ToggleDeviation() },
		func(i *ChecklistItem) { i.ToggleCorrected() },
		func(i *ChecklistItem) { i.ToggleInstaller() },
	}
	for step := 0; step < 200; step++ {
		toggles[rng.Intn(len(toggles))](&item)
		if item.Comment != "Skada deksel på sikringsskap" {
			t.Fatalf("step %d: user comment rewritten to %q", step, item.Comment)
		}
	}
}

func TestApplyAutoCommentIdempotent(t *testing.T) {
	comments := []string{"", "OK", "IA", " ok ", "ia", "fritekst frå montør"}
	for mask := 0; mask < 8; mask++ {
		for _, comment := range comments {
			item := ChecklistItem{
				Checked:       mask&1 != 0,
				NotApplicable: mask&2 != 0,
				Deviation:     mask&4 != 0,
				Comment:       comment,
			}
			item.applyAutoComment()
			first := item.Comment
			item.applyAutoComment()
			if item.Comment != first {
				t.Errorf("mask=%d comment=%q: first=%q second=%q", mask, comment, first, item.Comment)
			}
		}
	}
}

func TestAutoCommentPriority(t *testing.T) {
	tests := []struct {
		name string
		item ChecklistItem
		want string
	}{
		{"ia over blank", ChecklistItem{Checked: true, NotApplicable: true}, "IA"},
		{"ia over auto ok", ChecklistItem{Checked: true, NotApplicable: true, Comment: "OK"}, "IA"},
		{"ia keeps user text", ChecklistItem{Checked: true, NotApplicable: true, Comment: "sjå bilete"}, "sjå bilete"},
		{"deviation clears auto ok", ChecklistItem{Checked: true, Deviation: true, Comment: "OK"}, ""},
		{"deviation keeps user text", ChecklistItem{Checked: true, Deviation: true, Comment: "jordfeil"}, "jordfeil"},
		{"checked fills blank", ChecklistItem{Checked: true}, "OK"},
		{"checked replaces stale ia", ChecklistItem{Checked: true, Comment: "IA"}, "OK"},
		{"unchecked clears markers", ChecklistItem{Comment: "OK"}, ""},
		{"unchecked keeps user text", ChecklistItem{Comment: "manglar merking"}, "manglar merking"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.item.applyAutoComment()
			if tc.item.Comment != tc.want {
				t.Fatalf("comment = %q, want %q", tc.item.Comment, tc.want)
			}
		})
	}
}

// Walks item 2.5 through IA then deviation: the IA marker must be cleared on
// the way, not promoted to OK or left behind.
func TestNotApplicableThenDeviation(t *testing.T) {
	item := ChecklistItem{ChecklistItemTemplate: ChecklistItemTemplate{ID: "2.5"}}

	advance := item.ToggleNotApplicable()
	if !advance {
		t.Fatal("turning IA on should hint focus advance")
	}
	if !item.Checked || !item.NotApplicable || item.Comment != "IA" {
		t.Fatalf("after IA: %+v", item)
	}

	item.ToggleDeviation()
	if item.NotApplicable {
		t.Fatal("deviation must clear IA")
	}
	if !item.Deviation || !item.Checked {
		t.Fatalf("after deviation: %+v", item)
	}
	if item.Comment != "" {
		t.Fatalf("comment = %q, want empty", item.Comment)
	}
}

func TestUncheckClearsNotApplicable(t *testing.T) {
	item := ChecklistItem{}
	item.ToggleNotApplicable()
	item.ToggleChecked()
	if item.Checked || item.NotApplicable {
		t.Fatalf("after uncheck: %+v", item)
	}
	if item.Comment != "" {
		t.Fatalf("comment = %q, want empty", item.Comment)
	}
}

func TestCorrectedNeedsActiveDeviation(t *testing.T) {
	item := ChecklistItem{}
	item.ToggleCorrected()
	item.ToggleInstaller()
	if item.Corrected || item.RequiresInstaller {
		t.Fatalf("flags set without deviation: %+v", item)
	}

	item.ToggleDeviation()
	item.ToggleCorrected()
	item.ToggleInstaller()
	if !item.Corrected || !item.RequiresInstaller {
		t.Fatalf("flags not set under deviation: %+v", item)
	}

	item.ToggleDeviation()
	if item.Corrected || item.RequiresInstaller {
		t.Fatalf("flags survive deviation removal: %+v", item)
	}
}

func TestNewChecklistTemplates(t *testing.T) {
	items := NewChecklist()
	if len(items) != len(DefaultItems) {
		t.Fatalf("len = %d, want %d", len(items), len(DefaultItems))
	}
	seen := map[string]bool{}
	for _, item := range items {
		if item.Checked || item.NotApplicable || item.Deviation || item.Comment != "" {
			t.Fatalf("item %s not pristine: %+v", item.ID, item)
		}
		if seen[item.ID] {
			t.Fatalf("duplicate item id %s", item.ID)
		}
		seen[item.ID] = true
	}
	for _, cat := range Categories {
		found := false
		for _, item := range items {
			if item.CategoryNum == cat.Num {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("category %d (%s) has no items", cat.Num, cat.Name)
		}
	}
}
