package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"gymledger/internal/core"
	"gymledger/pkg/calendar"
	"gymledger/pkg/domain"
)

func sample(id int, name string, join string, plan domain.PlanType, active bool) domain.Member {
	return domain.Member{
		ID: id, Name: name, Gender: domain.GenderFemale, Age: 30, Phone: "13912345678",
		JoinDate: calendar.MustParse(join), Plan: plan, Active: active,
	}
}

func TestTableAlignsWideGlyphs(t *testing.T) {
	tbl := NewTable("Name", "Plan")
	tbl.Append("张三", "yearly")
	tbl.Append("Bob", "monthly")
	var buf bytes.Buffer
	if err := tbl.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and two rows, got %q", buf.String())
	}
	col := func(line, cell string) int {
		return runewidth.StringWidth(line[:strings.Index(line, cell)])
	}
	if col(lines[2], "yearly") != col(lines[3], "monthly") || col(lines[0], "Plan") != col(lines[2], "yearly") {
		t.Fatalf("second column not aligned:\n%s", buf.String())
	}
	if strings.HasSuffix(lines[2], " ") {
		t.Fatalf("last column must not be padded: %q", lines[2])
	}
}

func TestMembersShowsNotApplicableForInactive(t *testing.T) {
	today := calendar.MustParse("2024-01-10")
	var buf bytes.Buffer
	err := Members(&buf, []domain.Member{
		sample(1001, "王五", "2024-01-01", domain.PlanMonthly, true),
		sample(1002, "李四", "2022-01-01", domain.PlanMonthly, false),
	}, today)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	active, inactive := strings.Fields(lines[2]), strings.Fields(lines[3])
	if active[len(active)-2] != "active" || active[len(active)-1] != "21" {
		t.Fatalf("unexpected active row %q", lines[2])
	}
	if inactive[len(inactive)-2] != "inactive" || inactive[len(inactive)-1] != NotApplicable {
		t.Fatalf("unexpected inactive row %q", lines[3])
	}
	if !strings.Contains(lines[2], "2024-01-31") {
		t.Fatalf("expiry column missing: %q", lines[2])
	}

	buf.Reset()
	if err := Members(&buf, nil, today); err != nil || buf.String() != "no members\n" {
		t.Fatalf("empty list rendered %q (%v)", buf.String(), err)
	}
}

func TestMemberDetail(t *testing.T) {
	m := sample(1003, "赵六", "2024-01-01", domain.PlanQuarterly, true)
	m.BonusDays = 90
	var buf bytes.Buffer
	if err := Member(&buf, m, calendar.MustParse("2024-01-10")); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"赵六", "2024-06-29", "Bonus days", "90", "171"} {
		if !strings.Contains(out, want) {
			t.Fatalf("detail missing %q:\n%s", want, out)
		}
	}
}

func TestStatistics(t *testing.T) {
	st := core.Statistics{
		AsOf:     calendar.MustParse("2024-03-01"),
		Total:    3,
		Active:   2,
		Inactive: 1,
		Plans: []core.PlanShare{
			{Plan: domain.PlanMonthly, Active: 1, Percent: 50},
			{Plan: domain.PlanQuarterly, Active: 0, Percent: 0},
			{Plan: domain.PlanYearly, Active: 1, Percent: 50},
		},
		NearExpiry: []core.ExpiringMember{{Member: sample(7, "Ann", "2024-02-01", domain.PlanMonthly, true), DaysLeft: 1}},
		Window:     30,
	}
	var buf bytes.Buffer
	if err := Statistics(&buf, st); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"as of 2024-03-01: 3 members, 2 active, 1 inactive", "50.0%", "0.0%", "Ann", "2024-03-02"} {
		if !strings.Contains(out, want) {
			t.Fatalf("statistics missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := NearExpiry(&buf, nil, 14); err != nil || !strings.Contains(buf.String(), "within 14 days") {
		t.Fatalf("empty warning list rendered %q (%v)", buf.String(), err)
	}
}
