package services

import (
	"context"
	"time"

	"automation-service/internal/amazonads"
	"automation-service/internal/models"

	"github.com/google/uuid"
)

// AdsAPI is the subset of the Sponsored Products API the engine mutates and reads.
type AdsAPI interface {
	ListKeywords(ctx context.Context, profileID string, keywordIDs []string) ([]amazonads.Keyword, error)
	ListTargets(ctx context.Context, profileID string, targetIDs []string) ([]amazonads.TargetingClause, error)
	ListAdGroups(ctx context.Context, profileID string, adGroupIDs []string) ([]amazonads.AdGroup, error)
	ListCampaigns(ctx context.Context, profileID string, campaignIDs []string) ([]amazonads.Campaign, error)
	UpdateKeywordBids(ctx context.Context, profileID string, updates []amazonads.KeywordBidUpdate) (amazonads.BulkResult, error)
	UpdateTargetBids(ctx context.Context, profileID string, updates []amazonads.TargetBidUpdate) (amazonads.BulkResult, error)
	CreateNegativeKeywords(ctx context.Context, profileID string, negatives []amazonads.NegativeKeyword) (amazonads.BulkResult, error)
	CreateNegativeTargets(ctx context.Context, profileID string, negatives []amazonads.NegativeTarget) (amazonads.BulkResult, error)
	UpdateCampaignBudgets(ctx context.Context, profileID string, updates []amazonads.CampaignBudgetUpdate) (amazonads.BulkResult, error)
}

type PerformanceStore interface {
	StreamEntityDaily(ctx context.Context, campaignIDs []string, start, end time.Time, tz string) ([]models.PerformanceRow, error)
	ReportEntityDaily(ctx context.Context, campaignIDs []string, start, end time.Time) ([]models.PerformanceRow, error)
	ReportSearchTermDaily(ctx context.Context, campaignIDs []string, start, end time.Time) ([]models.PerformanceRow, error)
	StreamCampaignDay(ctx context.Context, campaignIDs []string, day time.Time, tz string) ([]models.CampaignDayTotals, error)
}

type ThrottleStore interface {
	ListThrottled(ctx context.Context, ruleID uuid.UUID, now time.Time) ([]string, error)
	Upsert(ctx context.Context, ruleID uuid.UUID, entityIDs []string, until time.Time) error
}

type BudgetOverrideStore interface {
	InsertIfAbsent(ctx context.Context, o *models.DailyBudgetOverride) (bool, error)
	ListPending(ctx context.Context, date time.Time) ([]models.DailyBudgetOverride, error)
	MarkReverted(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type RuleStore interface {
	ListActive(ctx context.Context) ([]models.RuleRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.RuleRecord, error)
	UpdateLastRunAt(ctx context.Context, id uuid.UUID, at time.Time) error
}

type AutomationLogStore interface {
	Create(ctx context.Context, entry *models.AutomationLog) error
	ListByRule(ctx context.Context, ruleID uuid.UUID, limit int) ([]models.AutomationLog, error)
}

// LogPublisher fans audit entries out to downstream consumers.
type LogPublisher interface {
	PublishAutomationLog(ctx context.Context, entry models.AutomationLog) error
}

// Archiver keeps a copy of sweep manifests.
type Archiver interface {
	Archive(ctx context.Context, objectName string, data []byte) error
}

// PerformanceFetcher builds the per-run performance map for a rule.
type PerformanceFetcher interface {
	Fetch(ctx context.Context, rule *models.Rule) (models.PerformanceMap, error)
}

// RuleEvaluator is implemented once per rule type.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, rule *models.Rule, perf models.PerformanceMap, throttled map[string]struct{}) (*models.ActionResult, error)
}

// Calendar resolves "today" in the reporting zone. Calendar days are represented as
// midnight UTC so they compare cleanly with DATE columns.
type Calendar struct {
	Location *time.Location
	Now      func() time.Time
}

func NewCalendar(loc *time.Location) Calendar {
	return Calendar{Location: loc, Now: time.Now}
}

func (c Calendar) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Calendar) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return CalendarDay(c.now().In(loc))
}

func (c Calendar) ZoneName() string {
	if c.Location == nil {
		return "UTC"
	}
	return c.Location.String()
}

// CalendarDay drops the clock and zone of t, keeping its wall-clock date.
func CalendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func AddDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}
