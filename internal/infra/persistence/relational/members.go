// Package relational holds the SQL snapshot logic shared by the sqlite and
// postgres backends. The full record set lives in a single members table and
// every save replaces its contents inside one transaction.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gymledger/pkg/calendar"
	"gymledger/pkg/domain"
)

// Dialect captures the differences between SQL engines.
type Dialect struct {
	Name string
	// Placeholder renders the i-th (1-based) bind parameter.
	Placeholder func(i int) string
	// DDL creates the members table if it does not exist.
	DDL string
}

var columns = []string{"position", "id", "name", "gender", "age", "phone", "join_date", "plan", "active", "bonus_days"}

// EnsureSchema applies the dialect DDL.
func EnsureSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	if _, err := db.ExecContext(ctx, d.DDL); err != nil {
		return fmt.Errorf("ensure members table: %w", err)
	}
	return nil
}

// Load reads every row in position order. Rows that fail validation are
// counted in Skipped rather than aborting the load.
func Load(ctx context.Context, db *sql.DB) (domain.LoadResult, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, gender, age, phone, join_date, plan, active, bonus_days FROM members ORDER BY position`)
	if err != nil {
		return domain.LoadResult{}, fmt.Errorf("select members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var res domain.LoadResult
	for pos := 1; rows.Next(); pos++ {
		var (
			id, age, active, bonus                 int64
			name, gender, phone, joinDate, planTok string
		)
		if err := rows.Scan(&id, &name, &gender, &age, &phone, &joinDate, &planTok, &active, &bonus); err != nil {
			return domain.LoadResult{}, fmt.Errorf("scan member: %w", err)
		}
		m, err := decodeRow(id, name, gender, age, phone, joinDate, planTok, active, bonus)
		if err != nil {
			res.Skip(pos, err.Error())
			continue
		}
		res.Members = append(res.Members, m)
	}
	if err := rows.Err(); err != nil {
		return domain.LoadResult{}, fmt.Errorf("iterate members: %w", err)
	}
	return res, nil
}

func decodeRow(id int64, name, gender string, age int64, phone, joinDate, planTok string, active, bonus int64) (domain.Member, error) {
	g, err := domain.ParseGender(gender)
	if err != nil {
		return domain.Member{}, err
	}
	p, err := domain.ParsePlanType(planTok)
	if err != nil {
		return domain.Member{}, err
	}
	joined, err := calendar.Parse(joinDate)
	if err != nil {
		return domain.Member{}, &domain.ValidationError{Field: "join_date", Value: joinDate, Reason: "not a calendar date"}
	}
	if active != 0 && active != 1 {
		return domain.Member{}, &domain.ValidationError{Field: "active", Value: fmt.Sprint(active), Reason: "must be 0 or 1"}
	}
	m := domain.Member{
		ID:        int(id),
		Name:      name,
		Gender:    g,
		Age:       int(age),
		Phone:     phone,
		JoinDate:  joined,
		Plan:      p,
		Active:    active == 1,
		BonusDays: int(bonus),
	}
	if err := m.Validate(); err != nil {
		return domain.Member{}, err
	}
	return m, nil
}

// Save replaces the table contents with members inside one transaction. A
// failure rolls back and leaves the previously committed rows in place.
func Save(ctx context.Context, db *sql.DB, d Dialect, members []domain.Member) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM members`); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	insert := insertStatement(d)
	for i, m := range members {
		active := 0
		if m.Active {
			active = 1
		}
		if _, err := tx.ExecContext(ctx, insert,
			i, m.ID, m.Name, string(m.Gender), m.Age, m.Phone, m.JoinDate.String(), string(m.Plan), active, m.BonusDays,
		); err != nil {
			return fmt.Errorf("insert member %d: %w", m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func insertStatement(d Dialect) string {
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO members (%s) VALUES (%s)", strings.Join(columns, ", "), strings.Join(marks, ", "))
}
