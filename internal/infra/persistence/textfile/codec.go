package textfile

import (
	"fmt"
	"strconv"
	"strings"

	"gymledger/pkg/calendar"
	"gymledger/pkg/domain"
)

const (
	fieldSep   = "|"
	fieldCount = 9
)

// EncodeLine renders m as id|name|gender|age|phone|joinDate|plan|active|bonusDays.
func EncodeLine(m domain.Member) string {
	active := "0"
	if m.Active {
		active = "1"
	}
	return strings.Join([]string{
		strconv.Itoa(m.ID),
		m.Name,
		string(m.Gender),
		strconv.Itoa(m.Age),
		m.Phone,
		m.JoinDate.String(),
		string(m.Plan),
		active,
		strconv.Itoa(m.BonusDays),
	}, fieldSep)
}

// DecodeLine parses and validates one persisted line.
func DecodeLine(line string) (domain.Member, error) {
	fields := strings.Split(line, fieldSep)
	if len(fields) != fieldCount {
		return domain.Member{}, fmt.Errorf("want %d fields, got %d", fieldCount, len(fields))
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return domain.Member{}, &domain.ValidationError{Field: "id", Value: fields[0], Reason: "not an integer"}
	}
	gender, err := domain.ParseGender(fields[2])
	if err != nil {
		return domain.Member{}, err
	}
	age, err := strconv.Atoi(fields[3])
	if err != nil {
		return domain.Member{}, &domain.ValidationError{Field: "age", Value: fields[3], Reason: "not an integer"}
	}
	joined, err := calendar.Parse(fields[5])
	if err != nil {
		return domain.Member{}, &domain.ValidationError{Field: "join_date", Value: fields[5], Reason: err.Error()}
	}
	plan, err := domain.ParsePlanType(fields[6])
	if err != nil {
		return domain.Member{}, err
	}
	var active bool
	switch fields[7] {
	case "1":
		active = true
	case "0":
		active = false
	default:
		return domain.Member{}, &domain.ValidationError{Field: "active", Value: fields[7], Reason: "must be 1 or 0"}
	}
	bonus, err := strconv.Atoi(fields[8])
	if err != nil {
		return domain.Member{}, &domain.ValidationError{Field: "bonus_days", Value: fields[8], Reason: "not an integer"}
	}
	m := domain.Member{
		ID:        id,
		Name:      fields[1],
		Gender:    gender,
		Age:       age,
		Phone:     fields[4],
		JoinDate:  joined,
		Plan:      plan,
		Active:    active,
		BonusDays: bonus,
	}
	if err := m.Validate(); err != nil {
		return domain.Member{}, err
	}
	return m, nil
}
