// Package report renders service results as aligned text tables. Column
// widths are measured in terminal cells so CJK names line up.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"gymledger/internal/core"
	"gymledger/pkg/calendar"
	"gymledger/pkg/domain"
)

// NotApplicable fills the remaining-days cell of inactive records.
const NotApplicable = "---"

// Table accumulates rows and writes them padded to the widest cell.
type Table struct {
	header []string
	rows   [][]string
}

// NewTable starts a table with the given column titles.
func NewTable(header ...string) *Table {
	return &Table{header: header}
}

// Append adds one row; missing cells render empty.
func (t *Table) Append(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len reports the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the header, a rule and every row.
func (t *Table) Render(w io.Writer) error {
	widths := make([]int, len(t.header))
	measure := func(cells []string) {
		for i, c := range cells {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if cw := runewidth.StringWidth(c); cw > widths[i] {
				widths[i] = cw
			}
		}
	}
	measure(t.header)
	for _, r := range t.rows {
		measure(r)
	}

	var b strings.Builder
	line := func(cells []string) {
		for i, width := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(widths)-1 {
				b.WriteString(cell)
			} else {
				b.WriteString(runewidth.FillRight(cell, width))
				b.WriteString("  ")
			}
		}
		b.WriteByte('\n')
	}
	line(t.header)
	rule := make([]string, len(widths))
	for i, width := range widths {
		rule[i] = strings.Repeat("-", width)
	}
	line(rule)
	for _, r := range t.rows {
		line(r)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Members renders the member list evaluated on today.
func Members(w io.Writer, members []domain.Member, today calendar.Date) error {
	t := NewTable("ID", "Name", "Gender", "Age", "Phone", "Joined", "Plan", "Expires", "Status", "Days left")
	for _, m := range members {
		t.Append(memberRow(m, today)...)
	}
	if t.Len() == 0 {
		_, err := fmt.Fprintln(w, "no members")
		return err
	}
	return t.Render(w)
}

func memberRow(m domain.Member, today calendar.Date) []string {
	left := NotApplicable
	if n, ok := m.DaysLeft(today); ok {
		left = strconv.Itoa(n)
	}
	return []string{
		strconv.Itoa(m.ID),
		m.Name,
		string(m.Gender),
		strconv.Itoa(m.Age),
		m.Phone,
		m.JoinDate.String(),
		string(m.Plan),
		m.ExpiryDate().String(),
		status(m.Active),
		left,
	}
}

func status(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// Member renders one record as a key/value block.
func Member(w io.Writer, m domain.Member, today calendar.Date) error {
	row := memberRow(m, today)
	t := NewTable("Field", "Value")
	for i, title := range []string{"ID", "Name", "Gender", "Age", "Phone", "Joined", "Plan", "Expires", "Status", "Days left"} {
		t.Append(title, row[i])
	}
	t.Append("Bonus days", strconv.Itoa(m.BonusDays))
	return t.Render(w)
}

// NearExpiry renders the warning list.
func NearExpiry(w io.Writer, list []core.ExpiringMember, window int) error {
	if len(list) == 0 {
		_, err := fmt.Fprintf(w, "no active members expire within %d days\n", window)
		return err
	}
	t := NewTable("ID", "Name", "Phone", "Plan", "Expires", "Days left")
	for _, e := range list {
		t.Append(strconv.Itoa(e.Member.ID), e.Member.Name, e.Member.Phone, string(e.Member.Plan),
			e.Member.ExpiryDate().String(), strconv.Itoa(e.DaysLeft))
	}
	return t.Render(w)
}

// Statistics renders totals, plan shares of active members and the
// near-expiry list.
func Statistics(w io.Writer, st core.Statistics) error {
	if _, err := fmt.Fprintf(w, "as of %s: %d members, %d active, %d inactive\n\n",
		st.AsOf.String(), st.Total, st.Active, st.Inactive); err != nil {
		return err
	}
	t := NewTable("Plan", "Active", "Share")
	for _, p := range st.Plans {
		t.Append(string(p.Plan), strconv.Itoa(p.Active), fmt.Sprintf("%.1f%%", p.Percent))
	}
	if err := t.Render(w); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return NearExpiry(w, st.NearExpiry, st.Window)
}
