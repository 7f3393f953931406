package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"automation-service/internal/utils"

	"github.com/google/uuid"
)

var (
	ErrInvalidRuleConfig = errors.New("invalid rule config")
	ErrUnknownRuleType   = errors.New("unknown rule type")
)

type Rule struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	ProfileID string     `json:"profile_id" db:"profile_id"`
	AdType    AdType     `json:"ad_type" db:"ad_type"`
	RuleType  RuleType   `json:"rule_type" db:"rule_type"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	LastRunAt *time.Time `json:"last_run_at,omitempty" db:"last_run_at"`
	Scope     RuleScope  `json:"scope" db:"scope"`
	Config    RuleConfig `json:"config" db:"config"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// RuleRecord is an automation_rules row with scope and config still encoded, so a
// malformed rule is reported on its own instead of failing the whole query.
type RuleRecord struct {
	ID        uuid.UUID  `db:"id"`
	Name      string     `db:"name"`
	ProfileID string     `db:"profile_id"`
	AdType    AdType     `db:"ad_type"`
	RuleType  RuleType   `db:"rule_type"`
	IsActive  bool       `db:"is_active"`
	LastRunAt *time.Time `db:"last_run_at"`
	Scope     []byte     `db:"scope"`
	Config    []byte     `db:"config"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// Decode parses scope and config. The returned rule always carries the row's
// identity; on error its scope and config are left zero.
func (r RuleRecord) Decode() (*Rule, error) {
	rule := &Rule{
		ID:        r.ID,
		Name:      r.Name,
		ProfileID: r.ProfileID,
		AdType:    r.AdType,
		RuleType:  r.RuleType,
		IsActive:  r.IsActive,
		LastRunAt: r.LastRunAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	var scope RuleScope
	if len(bytes.TrimSpace(r.Scope)) > 0 {
		if err := scope.Scan(r.Scope); err != nil {
			return rule, fmt.Errorf("%w: scope: %v", ErrInvalidRuleConfig, err)
		}
	}
	var cfg RuleConfig
	if len(bytes.TrimSpace(r.Config)) > 0 {
		if err := cfg.Scan(r.Config); err != nil {
			return rule, fmt.Errorf("%w: config: %v", ErrInvalidRuleConfig, err)
		}
	}

	rule.Scope = scope
	rule.Config = cfg
	return rule, nil
}

// RuleScope limits a rule to explicit campaigns. An empty list matches nothing.
type RuleScope struct {
	CampaignIDs IDList `json:"campaignIds"`
}

func (s RuleScope) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *RuleScope) Scan(value any) error {
	return utils.ScanJSON(value, s, "RuleScope")
}

// IDList accepts both numeric and string ids, the ads platform emits either.
type IDList []string

func (l *IDList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(IDList, 0, len(raw))
	for _, r := range raw {
		id, err := rawID(r)
		if err != nil {
			return err
		}
		if id != "" {
			out = append(out, id)
		}
	}
	*l = out
	return nil
}

func rawID(r json.RawMessage) (string, error) {
	r = bytes.TrimSpace(r)
	if len(r) == 0 || string(r) == "null" {
		return "", nil
	}
	if r[0] == '"' {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(r, &n); err != nil {
		return "", fmt.Errorf("id must be a string or number: %w", err)
	}
	return n.String(), nil
}

type RuleConfig struct {
	ConditionGroups []ConditionGroup `json:"conditionGroups"`
	Frequency       Frequency        `json:"frequency"`
	Cooldown        Cooldown         `json:"cooldown"`
}

func (c RuleConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *RuleConfig) Scan(value any) error {
	return utils.ScanJSON(value, c, "RuleConfig")
}

type ConditionGroup struct {
	Conditions []Condition `json:"conditions"`
	Action     RuleAction  `json:"action"`
}

type Condition struct {
	Metric     Metric     `json:"metric"`
	TimeWindow TimeWindow `json:"timeWindow"`
	Operator   Operator   `json:"operator"`
	Value      float64    `json:"value"`
}

// String renders the comparison part, e.g. "> 4".
func (c Condition) String() string {
	return fmt.Sprintf("%s %s", c.Operator, strconv.FormatFloat(c.Value, 'f', -1, 64))
}

// TimeWindow is a trailing number of days, or the current day when Today is set.
type TimeWindow struct {
	Days  int
	Today bool
}

func Days(n int) TimeWindow { return TimeWindow{Days: n} }

var Today = TimeWindow{Today: true}

// LengthDays is the number of calendar days the window covers.
func (w TimeWindow) LengthDays() int {
	if w.Today {
		return 1
	}
	return w.Days
}

func (w TimeWindow) String() string {
	if w.Today {
		return "TODAY"
	}
	return strconv.Itoa(w.Days)
}

func (w TimeWindow) MarshalJSON() ([]byte, error) {
	if w.Today {
		return json.Marshal("TODAY")
	}
	return json.Marshal(w.Days)
}

func (w *TimeWindow) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.EqualFold(s, "TODAY") {
			*w = Today
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("timeWindow must be a number of days or TODAY, got %q", s)
		}
		*w = Days(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("timeWindow must be a number of days or TODAY: %w", err)
	}
	*w = Days(int(f))
	return nil
}

type RuleAction struct {
	Type      ActionType `json:"type"`
	Value     float64    `json:"value"`
	MinBid    *float64   `json:"minBid,omitempty"`
	MaxBid    *float64   `json:"maxBid,omitempty"`
	MatchType MatchType  `json:"matchType,omitempty"`
}

type Frequency struct {
	Unit      TimeUnit `json:"unit"`
	Value     int      `json:"value"`
	StartTime string   `json:"startTime,omitempty"`
}

// Interval is the rolling period between runs.
func (f Frequency) Interval() time.Duration {
	return unitDuration(f.Unit) * time.Duration(f.Value)
}

// ClockTime parses StartTime as HH:MM.
func (f Frequency) ClockTime() (hour, minute int, err error) {
	t, err := time.Parse("15:04", f.StartTime)
	if err != nil {
		return 0, 0, fmt.Errorf("startTime must be HH:MM, got %q", f.StartTime)
	}
	return t.Hour(), t.Minute(), nil
}

func (f Frequency) Validate() error {
	if !f.Unit.IsValid() {
		return fmt.Errorf("%w: frequency unit %q", ErrInvalidRuleConfig, f.Unit)
	}
	if f.Value <= 0 {
		return fmt.Errorf("%w: frequency value must be positive", ErrInvalidRuleConfig)
	}
	if f.StartTime != "" {
		if _, _, err := f.ClockTime(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRuleConfig, err)
		}
	}
	return nil
}

type Cooldown struct {
	Unit  TimeUnit `json:"unit"`
	Value int      `json:"value"`
}

// Enabled is false for a zero cooldown, which disables throttling entirely.
func (c Cooldown) Enabled() bool {
	return c.Value > 0
}

func (c Cooldown) Duration() time.Duration {
	return unitDuration(c.Unit) * time.Duration(c.Value)
}

func unitDuration(u TimeUnit) time.Duration {
	switch u {
	case TimeUnitMinutes:
		return time.Minute
	case TimeUnitHours:
		return time.Hour
	case TimeUnitDays:
		return 24 * time.Hour
	}
	return 0
}

// Validate checks the config against the actions allowed for ruleType.
func (c RuleConfig) Validate(ruleType RuleType) error {
	if !ruleType.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownRuleType, ruleType)
	}
	if err := c.Frequency.Validate(); err != nil {
		return err
	}
	if c.Cooldown.Value < 0 {
		return fmt.Errorf("%w: cooldown value must not be negative", ErrInvalidRuleConfig)
	}
	if c.Cooldown.Enabled() && !c.Cooldown.Unit.IsValid() {
		return fmt.Errorf("%w: cooldown unit %q", ErrInvalidRuleConfig, c.Cooldown.Unit)
	}
	if len(c.ConditionGroups) == 0 {
		return fmt.Errorf("%w: at least one condition group is required", ErrInvalidRuleConfig)
	}

	for i, group := range c.ConditionGroups {
		if len(group.Conditions) == 0 {
			return fmt.Errorf("%w: group %d has no conditions", ErrInvalidRuleConfig, i)
		}
		for j, cond := range group.Conditions {
			if !cond.Metric.IsValid() {
				return fmt.Errorf("%w: group %d condition %d: unknown metric %q", ErrInvalidRuleConfig, i, j, cond.Metric)
			}
			if !cond.Operator.IsValid() {
				return fmt.Errorf("%w: group %d condition %d: unknown operator %q", ErrInvalidRuleConfig, i, j, cond.Operator)
			}
			if cond.TimeWindow.LengthDays() <= 0 {
				return fmt.Errorf("%w: group %d condition %d: time window must be positive", ErrInvalidRuleConfig, i, j)
			}
		}
		if err := validateAction(ruleType, group.Action); err != nil {
			return fmt.Errorf("%w: group %d: %v", ErrInvalidRuleConfig, i, err)
		}
	}
	return nil
}

func validateAction(ruleType RuleType, a RuleAction) error {
	switch ruleType {
	case RuleTypeBidAdjustment:
		if a.Type != ActionAdjustBidPercent {
			return fmt.Errorf("action %q not allowed for bid rules", a.Type)
		}
		if a.MinBid != nil && a.MaxBid != nil && *a.MinBid > *a.MaxBid {
			return fmt.Errorf("minBid %.2f exceeds maxBid %.2f", *a.MinBid, *a.MaxBid)
		}
	case RuleTypeSearchTermAutomation:
		if a.Type != ActionNegateSearchTerm {
			return fmt.Errorf("action %q not allowed for search term rules", a.Type)
		}
		if a.MatchType != MatchTypeNegativeExact && a.MatchType != MatchTypeNegativePhrase {
			return fmt.Errorf("negative match type must be NEGATIVE_EXACT or NEGATIVE_PHRASE, got %q", a.MatchType)
		}
	case RuleTypeBudgetAcceleration:
		switch a.Type {
		case ActionIncreaseBudgetPercent:
		case ActionSetBudgetAmount:
			if a.Value <= 0 {
				return fmt.Errorf("budget amount must be positive")
			}
		default:
			return fmt.Errorf("action %q not allowed for budget rules", a.Type)
		}
	}
	return nil
}
