// Package axstate implements a pure accessibility-snapshot diff. Diff is
// free of I/O so it can be property-tested and used to reproduce model
// prompts deterministically.
package axstate

import (
	"fmt"
	"strings"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

const (
	textPreviewLimit = 30
	valuePreviewLimit = 20
)

// Diff compares two snapshots and returns a StateDiff. If no tracked facet
// changed, Summary contains exactly one entry: model.NoChangeSentinel.
func Diff(before, after model.StateSnapshot) model.StateDiff {
	var d model.StateDiff
	var summary []string

	// 1. App bundle id changed.
	if before.FocusedApplication != after.FocusedApplication {
		d.AppChanged = true
		d.AppBefore, d.AppAfter = before.FocusedApplication, after.FocusedApplication
		summary = append(summary, fmt.Sprintf("App changed: %s → %s", preview(before.FocusedApplication), preview(after.FocusedApplication)))
	}

	// 2. Focused window title/identifier changed — suppressed when app changed.
	if !d.AppChanged {
		bTitle, aTitle := windowLabel(before.FocusedWindow), windowLabel(after.FocusedWindow)
		if bTitle != aTitle {
			d.WindowFocusChanged = true
			d.WindowBefore, d.WindowAfter = bTitle, aTitle
			summary = append(summary, fmt.Sprintf("Window changed: %s → %s", preview(bTitle), preview(aTitle)))
		}
	}

	// 3. Focused element tuple changed.
	if elementTupleChanged(before.FocusedElement, after.FocusedElement) {
		d.FocusChanged = true
		summary = append(summary, fmt.Sprintf("Focus changed: %s", elementSummary(after.FocusedElement)))
	}

	// 4. Element at recorded click point changed by the same tuple.
	if elementTupleChanged(before.ElementAtPoint, after.ElementAtPoint) {
		d.ElementAtPointChanged = true
		summary = append(summary, fmt.Sprintf("Clicked: %s", elementSummary(after.ElementAtPoint)))
	}

	// 5. Busy state toggled.
	if boolOf(before.FocusedElement, func(e *model.Element) bool { return e.Busy }) != boolOf(after.FocusedElement, func(e *model.Element) bool { return e.Busy }) {
		d.BusyChanged = true
		summary = append(summary, "Busy state changed")
	}

	// Windows opened/closed, keyed by title-or-identifier.
	d.WindowsOpened, d.WindowsClosed = diffWindowKeys(before.Windows, after.Windows)
	for _, w := range d.WindowsOpened {
		summary = append(summary, fmt.Sprintf("Window opened: %s", preview(w)))
	}
	for _, w := range d.WindowsClosed {
		summary = append(summary, fmt.Sprintf("Window closed: %s", preview(w)))
	}

	// Sheets added/removed.
	d.SheetsOpened, d.SheetsClosed = diffTitledKeys(sheetTitles(before.Sheets), sheetTitles(after.Sheets))
	for _, s := range d.SheetsOpened {
		summary = append(summary, fmt.Sprintf("Sheet opened: %s", preview(s)))
	}
	for _, s := range d.SheetsClosed {
		summary = append(summary, fmt.Sprintf("Sheet closed: %s", preview(s)))
	}

	// Menus added/removed; empty-to-nonempty counts as opened.
	d.MenusOpened, d.MenusClosed = diffTitledKeys(menuTitles(before.OpenMenus), menuTitles(after.OpenMenus))
	for _, m := range d.MenusOpened {
		summary = append(summary, fmt.Sprintf("Menu opened: %s", preview(m)))
	}
	for _, m := range d.MenusClosed {
		summary = append(summary, fmt.Sprintf("Menu closed: %s", preview(m)))
	}

	// Tabs added/removed; active tab change.
	d.TabsOpened, d.TabsClosed = diffTitledKeys(tabTitles(before.Tabs), tabTitles(after.Tabs))
	for _, t := range d.TabsOpened {
		summary = append(summary, fmt.Sprintf("Tab opened: %s", preview(t)))
	}
	for _, t := range d.TabsClosed {
		summary = append(summary, fmt.Sprintf("Tab closed: %s", preview(t)))
	}
	bActive, aActive := activeTab(before.Tabs), activeTab(after.Tabs)
	if bActive != aActive {
		d.ActiveTabChanged = true
		d.ActiveTabBefore, d.ActiveTabAfter = bActive, aActive
		summary = append(summary, fmt.Sprintf("Active tab changed: %s → %s", preview(bActive), preview(aActive)))
	}

	// Expanded/value/enabled of the focused element.
	bE, aE := before.FocusedElement, after.FocusedElement
	if boolOf(bE, func(e *model.Element) bool { return e.Expanded }) != boolOf(aE, func(e *model.Element) bool { return e.Expanded }) {
		d.ExpandedChanged = true
		summary = append(summary, "Expanded state changed")
	}
	if stringOf(bE, func(e *model.Element) string { return e.Value }) != stringOf(aE, func(e *model.Element) string { return e.Value }) {
		d.ValueChanged = true
		summary = append(summary, fmt.Sprintf("Value changed: %s", valuePreview(stringOf(aE, func(e *model.Element) string { return e.Value }))))
	}
	if boolOf(bE, func(e *model.Element) bool { return e.Enabled }) != boolOf(aE, func(e *model.Element) bool { return e.Enabled }) {
		d.EnabledChanged = true
		summary = append(summary, "Enabled state changed")
	}

	// Selection changed (count or titles).
	if selectionChanged(before.Selections, after.Selections) {
		d.SelectionChanged = true
		summary = append(summary, "Selection changed")
	}

	// Browser columns count or tail-selection changed.
	if before.BrowserColumns != after.BrowserColumns || before.BrowserTailSelected != after.BrowserTailSelected {
		d.BrowserChanged = true
		summary = append(summary, "Browser columns changed")
	}

	if len(summary) == 0 {
		summary = []string{model.NoChangeSentinel}
	}
	d.Summary = summary
	return d
}

func windowLabel(w *model.Window) string {
	if w == nil {
		return ""
	}
	if w.Identifier != "" {
		return w.Identifier
	}
	return w.Title
}

func elementTupleChanged(before, after *model.Element) bool {
	br, bt, bv, bf, bs, be := tupleOf(before)
	ar, at, av, af, as, ae := tupleOf(after)
	return br != ar || bt != at || bv != av || bf != af || bs != as || be != ae
}

func tupleOf(e *model.Element) (role, title, value string, focused, selected, expanded bool) {
	if e == nil {
		return "", "", "", false, false, false
	}
	return e.Role, e.Title, e.Value, e.Focused, e.Selected, e.Expanded
}

func elementSummary(e *model.Element) string {
	if e == nil {
		return "(none)"
	}
	parts := []string{}
	if e.Role != "" {
		parts = append(parts, e.Role)
	}
	if e.Title != "" {
		parts = append(parts, preview(e.Title))
	}
	if len(parts) == 0 {
		return "(unnamed element)"
	}
	return strings.Join(parts, " ")
}

func boolOf(e *model.Element, f func(*model.Element) bool) bool {
	if e == nil {
		return false
	}
	return f(e)
}

func stringOf(e *model.Element, f func(*model.Element) string) string {
	if e == nil {
		return ""
	}
	return f(e)
}

func diffWindowKeys(before, after []model.Window) (opened, closed []string) {
	beforeSet := map[string]bool{}
	for _, w := range before {
		beforeSet[windowLabel(&w)] = true
	}
	afterSet := map[string]bool{}
	for _, w := range after {
		k := windowLabel(&w)
		afterSet[k] = true
		if !beforeSet[k] {
			opened = append(opened, windowLabel(&w))
		}
	}
	for _, w := range before {
		k := windowLabel(&w)
		if !afterSet[k] {
			closed = append(closed, windowLabel(&w))
		}
	}
	return opened, closed
}

func diffTitledKeys(before, after []string) (opened, closed []string) {
	beforeSet := map[string]bool{}
	for _, t := range before {
		beforeSet[t] = true
	}
	afterSet := map[string]bool{}
	for _, t := range after {
		afterSet[t] = true
		if !beforeSet[t] {
			opened = append(opened, t)
		}
	}
	for _, t := range before {
		if !afterSet[t] {
			closed = append(closed, t)
		}
	}
	return opened, closed
}

func sheetTitles(sheets []model.Sheet) []string {
	out := make([]string, len(sheets))
	for i, s := range sheets {
		out[i] = s.Title
	}
	return out
}

func menuTitles(menus []model.Menu) []string {
	out := make([]string, len(menus))
	for i, m := range menus {
		out[i] = m.Title
	}
	return out
}

func tabTitles(tabs []model.Tab) []string {
	out := make([]string, len(tabs))
	for i, t := range tabs {
		out[i] = t.Title
	}
	return out
}

func activeTab(tabs []model.Tab) string {
	for _, t := range tabs {
		if t.Active {
			return t.Title
		}
	}
	return ""
}

func selectionChanged(before, after []model.Selection) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if len(before[i].Titles) != len(after[i].Titles) {
			return true
		}
		for j := range before[i].Titles {
			if before[i].Titles[j] != after[i].Titles[j] {
				return true
			}
		}
	}
	return false
}

func preview(s string) string {
	if s == "" {
		return "(none)"
	}
	r := []rune(s)
	if len(r) <= textPreviewLimit {
		return s
	}
	return string(r[:textPreviewLimit]) + "…"
}

func valuePreview(s string) string {
	r := []rune(s)
	if len(r) <= valuePreviewLimit {
		return s
	}
	return string(r[:valuePreviewLimit]) + "…"
}

// FormatForAgent renders a StateDiff's summary as the <reminder> block the
// agent core appends to computer feedback when nothing changed, or the
// summary lines joined one per line otherwise.
func FormatForAgent(d model.StateDiff) string {
	if len(d.Summary) == 1 && d.Summary[0] == model.NoChangeSentinel {
		return "<reminder>\n" +
			"No significant UI changes detected after the last action.\n" +
			"The previous strategy may not be working. Consider:\n" +
			"- Taking a fresh screenshot to confirm the current state\n" +
			"- Trying a different element or coordinate\n" +
			"- Checking whether the target application has focus\n" +
			"</reminder>"
	}
	return strings.Join(d.Summary, "\n")
}
