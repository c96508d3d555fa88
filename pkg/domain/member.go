// Package domain defines the gym membership record, its enumerations and the
// validation and error vocabulary shared by the store, the lifecycle engine
// and the persistence backends.
package domain

import (
	"strings"
	"unicode"

	"github.com/asaskevich/govalidator"

	"gymledger/pkg/calendar"
)

// Validation bounds.
const (
	MinAge        = 18
	MaxAge        = 80
	PhoneDigits   = 11
	MaxNameLength = 29
)

// Gender enumerates the accepted member genders.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

var genderAliases = map[string]Gender{
	"male":   GenderMale,
	"female": GenderFemale,
	"m":      GenderMale,
	"f":      GenderFemale,
	"男":      GenderMale,
	"女":      GenderFemale,
}

// ParseGender maps canonical and legacy tokens onto a Gender.
func ParseGender(s string) (Gender, error) {
	if g, ok := genderAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return g, nil
	}
	return "", &ValidationError{Field: "gender", Value: s, Reason: "must be male or female"}
}

// PlanType enumerates the canonical membership durations.
type PlanType string

const (
	PlanMonthly   PlanType = "monthly"
	PlanQuarterly PlanType = "quarterly"
	PlanYearly    PlanType = "yearly"
)

// Plans lists every plan type in display order.
var Plans = []PlanType{PlanMonthly, PlanQuarterly, PlanYearly}

var planDurations = map[PlanType]int{
	PlanMonthly:   30,
	PlanQuarterly: 90,
	PlanYearly:    365,
}

var planAliases = map[string]PlanType{
	"monthly":   PlanMonthly,
	"quarterly": PlanQuarterly,
	"yearly":    PlanYearly,
	"month":     PlanMonthly,
	"quarter":   PlanQuarterly,
	"year":      PlanYearly,
	"月卡":        PlanMonthly,
	"季卡":        PlanQuarterly,
	"年卡":        PlanYearly,
}

// ParsePlanType maps canonical and legacy tokens onto a PlanType.
func ParsePlanType(s string) (PlanType, error) {
	if p, ok := planAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}
	return "", &ValidationError{Field: "plan", Value: s, Reason: "must be monthly, quarterly or yearly"}
}

// BaseDays returns the plan's base duration in days, or 0 for unknown plans.
func (p PlanType) BaseDays() int {
	return planDurations[p]
}

// Valid reports whether p is one of the canonical plans.
func (p PlanType) Valid() bool {
	_, ok := planDurations[p]
	return ok
}

// Member is one membership record. Active caches whether the validity window
// computed from JoinDate, Plan and BonusDays still covers the current day;
// the lifecycle engine is responsible for keeping it current.
type Member struct {
	ID        int           `json:"id"`
	Name      string        `json:"name"`
	Gender    Gender        `json:"gender"`
	Age       int           `json:"age"`
	Phone     string        `json:"phone"`
	JoinDate  calendar.Date `json:"join_date"`
	Plan      PlanType      `json:"plan"`
	Active    bool          `json:"active"`
	BonusDays int           `json:"bonus_days"`
}

// ExpiryOrdinal returns ordinal(JoinDate) + base(Plan) + BonusDays.
func (m Member) ExpiryOrdinal() int64 {
	return m.JoinDate.Ordinal() + int64(m.Plan.BaseDays()) + int64(m.BonusDays)
}

// ExpiryDate is the last day covered by the membership.
func (m Member) ExpiryDate() calendar.Date {
	return calendar.FromOrdinal(m.ExpiryOrdinal())
}

// Lapsed reports whether the validity window ended before today, regardless
// of the cached Active flag.
func (m Member) Lapsed(today calendar.Date) bool {
	return m.ExpiryOrdinal()-today.Ordinal() < 0
}

// DaysLeft returns the remaining days for an active member. The second result
// is false for inactive members, for whom the figure is not applicable.
func (m Member) DaysLeft(today calendar.Date) (int, bool) {
	if !m.Active {
		return 0, false
	}
	return int(m.ExpiryOrdinal() - today.Ordinal()), true
}

// NewMember carries the operator-supplied fields of a member being added.
type NewMember struct {
	Name   string
	Gender string
	Age    int
	Phone  string
	Plan   string
}

// Build validates the input and returns a Member without id or join date.
func (n NewMember) Build() (Member, error) {
	if err := ValidateName(n.Name); err != nil {
		return Member{}, err
	}
	gender, err := ParseGender(n.Gender)
	if err != nil {
		return Member{}, err
	}
	if err := ValidateAge(n.Age); err != nil {
		return Member{}, err
	}
	if err := ValidatePhone(n.Phone); err != nil {
		return Member{}, err
	}
	plan, err := ParsePlanType(n.Plan)
	if err != nil {
		return Member{}, err
	}
	return Member{Name: n.Name, Gender: gender, Age: n.Age, Phone: n.Phone, Plan: plan}, nil
}

// ValidateName requires a non-empty token without whitespace or the field
// delimiter used by the text persister.
func ValidateName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Value: name, Reason: "must not be empty"}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{Field: "name", Value: name, Reason: "too long"}
	}
	if strings.ContainsRune(name, '|') || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return &ValidationError{Field: "name", Value: name, Reason: "must not contain whitespace or '|'"}
	}
	return nil
}

// ValidateAge enforces the 18..80 bound.
func ValidateAge(age int) error {
	if age < MinAge || age > MaxAge {
		return &ValidationError{Field: "age", Value: govalidator.ToString(age), Reason: "must be between 18 and 80"}
	}
	return nil
}

// ValidatePhone requires exactly eleven decimal digits.
func ValidatePhone(phone string) error {
	if !govalidator.StringLength(phone, "11", "11") || !isASCIIDigits(phone) {
		return &ValidationError{Field: "phone", Value: phone, Reason: "must be exactly 11 digits"}
	}
	return nil
}

// govalidator.IsNumeric admits non-ASCII digits, so check bytes directly.
func isASCIIDigits(s string) bool {
	if !govalidator.IsNumeric(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Validate checks every field of a stored record, including the invariant that
// BonusDays only ever accumulates whole extensions of the same plan.
func (m Member) Validate() error {
	if m.ID <= 0 {
		return &ValidationError{Field: "id", Value: govalidator.ToString(m.ID), Reason: "must be positive"}
	}
	if err := ValidateName(m.Name); err != nil {
		return err
	}
	if m.Gender != GenderMale && m.Gender != GenderFemale {
		return &ValidationError{Field: "gender", Value: string(m.Gender), Reason: "must be male or female"}
	}
	if err := ValidateAge(m.Age); err != nil {
		return err
	}
	if err := ValidatePhone(m.Phone); err != nil {
		return err
	}
	if !m.JoinDate.Valid() {
		return &ValidationError{Field: "join_date", Value: m.JoinDate.String(), Reason: "not a calendar date"}
	}
	if !m.Plan.Valid() {
		return &ValidationError{Field: "plan", Value: string(m.Plan), Reason: "must be monthly, quarterly or yearly"}
	}
	if m.BonusDays < 0 || m.BonusDays%m.Plan.BaseDays() != 0 {
		return &ValidationError{Field: "bonus_days", Value: govalidator.ToString(m.BonusDays), Reason: "must be a non-negative multiple of the plan duration"}
	}
	return nil
}
