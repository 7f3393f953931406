package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"automation-service/internal/amazonads"
	"automation-service/internal/models"

	"github.com/google/uuid"
)

var errRuleMissing = errors.New("rule not found")

type fakeAds struct {
	mu sync.Mutex

	keywords  []amazonads.Keyword
	targets   []amazonads.TargetingClause
	adGroups  []amazonads.AdGroup
	campaigns []amazonads.Campaign

	listErr    error
	keywordErr error
	targetErr  error
	updateErr  error
	failed    map[int]string

	keywordBidCalls   [][]amazonads.KeywordBidUpdate
	targetBidCalls    [][]amazonads.TargetBidUpdate
	negKeywordCalls   [][]amazonads.NegativeKeyword
	negTargetCalls    [][]amazonads.NegativeTarget
	budgetCalls       [][]amazonads.CampaignBudgetUpdate
	budgetCallProfile []string
	adGroupLookups    [][]string
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAds) ListKeywords(_ context.Context, _ string, _ []string) ([]amazonads.Keyword, error) {
	return f.keywords, firstErr(f.keywordErr, f.listErr)
}

func (f *fakeAds) ListTargets(_ context.Context, _ string, _ []string) ([]amazonads.TargetingClause, error) {
	return f.targets, firstErr(f.targetErr, f.listErr)
}

func (f *fakeAds) ListAdGroups(_ context.Context, _ string, adGroupIDs []string) ([]amazonads.AdGroup, error) {
	f.mu.Lock()
	f.adGroupLookups = append(f.adGroupLookups, adGroupIDs)
	f.mu.Unlock()
	return f.adGroups, f.listErr
}

func (f *fakeAds) ListCampaigns(_ context.Context, _ string, _ []string) ([]amazonads.Campaign, error) {
	return f.campaigns, f.listErr
}

func (f *fakeAds) result() (amazonads.BulkResult, error) {
	if f.updateErr != nil {
		return amazonads.BulkResult{}, f.updateErr
	}
	return amazonads.BulkResult{Failed: f.failed}, nil
}

func (f *fakeAds) UpdateKeywordBids(_ context.Context, _ string, updates []amazonads.KeywordBidUpdate) (amazonads.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keywordBidCalls = append(f.keywordBidCalls, updates)
	return f.result()
}

func (f *fakeAds) UpdateTargetBids(_ context.Context, _ string, updates []amazonads.TargetBidUpdate) (amazonads.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targetBidCalls = append(f.targetBidCalls, updates)
	return f.result()
}

func (f *fakeAds) CreateNegativeKeywords(_ context.Context, _ string, negatives []amazonads.NegativeKeyword) (amazonads.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.negKeywordCalls = append(f.negKeywordCalls, negatives)
	return f.result()
}

func (f *fakeAds) CreateNegativeTargets(_ context.Context, _ string, negatives []amazonads.NegativeTarget) (amazonads.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.negTargetCalls = append(f.negTargetCalls, negatives)
	return f.result()
}

func (f *fakeAds) UpdateCampaignBudgets(_ context.Context, profileID string, updates []amazonads.CampaignBudgetUpdate) (amazonads.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.budgetCalls = append(f.budgetCalls, updates)
	f.budgetCallProfile = append(f.budgetCallProfile, profileID)
	return f.result()
}

type fakeOverrides struct {
	rows       []models.DailyBudgetOverride
	insertErr  error
	listErr    error
	markErr    error
	markedIDs  []uuid.UUID
	markedAt   time.Time
	markCalled bool
}

func (f *fakeOverrides) InsertIfAbsent(_ context.Context, o *models.DailyBudgetOverride) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	for _, r := range f.rows {
		if r.CampaignID == o.CampaignID && r.OverrideDate.Equal(o.OverrideDate) {
			return false, nil
		}
	}
	row := *o
	row.ID = uuid.New()
	f.rows = append(f.rows, row)
	return true, nil
}

func (f *fakeOverrides) ListPending(_ context.Context, date time.Time) ([]models.DailyBudgetOverride, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.DailyBudgetOverride
	for _, r := range f.rows {
		if r.OverrideDate.Equal(date) && r.RevertedAt == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeOverrides) MarkReverted(_ context.Context, ids []uuid.UUID, at time.Time) error {
	f.markCalled = true
	if f.markErr != nil {
		return f.markErr
	}
	f.markedIDs = append(f.markedIDs, ids...)
	f.markedAt = at
	return nil
}

type fakeThrottleStore struct {
	until map[string]time.Time // key: ruleID|entityID
	err   error
}

func newFakeThrottleStore() *fakeThrottleStore {
	return &fakeThrottleStore{until: map[string]time.Time{}}
}

func (f *fakeThrottleStore) ListThrottled(_ context.Context, ruleID uuid.UUID, now time.Time) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	prefix := ruleID.String() + "|"
	var ids []string
	for key, until := range f.until {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix && until.After(now) {
			ids = append(ids, key[len(prefix):])
		}
	}
	return ids, nil
}

func (f *fakeThrottleStore) Upsert(_ context.Context, ruleID uuid.UUID, entityIDs []string, until time.Time) error {
	if f.err != nil {
		return f.err
	}
	for _, id := range entityIDs {
		f.until[ruleID.String()+"|"+id] = until
	}
	return nil
}

type fakeRules struct {
	rules      []models.Rule
	broken     []models.RuleRecord
	listErr    error
	lastRunAt  map[uuid.UUID]time.Time
	updateCtxs []context.Context
}

func recordOf(rule models.Rule) models.RuleRecord {
	scope, _ := json.Marshal(rule.Scope)
	cfg, _ := json.Marshal(rule.Config)
	return models.RuleRecord{
		ID:        rule.ID,
		Name:      rule.Name,
		ProfileID: rule.ProfileID,
		AdType:    rule.AdType,
		RuleType:  rule.RuleType,
		IsActive:  rule.IsActive,
		LastRunAt: rule.LastRunAt,
		Scope:     scope,
		Config:    cfg,
	}
}

func (f *fakeRules) ListActive(_ context.Context) ([]models.RuleRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	records := append([]models.RuleRecord{}, f.broken...)
	for _, rule := range f.rules {
		records = append(records, recordOf(rule))
	}
	return records, nil
}

func (f *fakeRules) GetByID(_ context.Context, id uuid.UUID) (*models.RuleRecord, error) {
	for i := range f.broken {
		if f.broken[i].ID == id {
			return &f.broken[i], nil
		}
	}
	for _, rule := range f.rules {
		if rule.ID == id {
			rec := recordOf(rule)
			return &rec, nil
		}
	}
	return nil, errRuleMissing
}

func (f *fakeRules) UpdateLastRunAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	if f.lastRunAt == nil {
		f.lastRunAt = map[uuid.UUID]time.Time{}
	}
	f.lastRunAt[id] = at
	f.updateCtxs = append(f.updateCtxs, ctx)
	return nil
}

type fakeLogs struct {
	entries []models.AutomationLog
	err     error
}

func (f *fakeLogs) Create(_ context.Context, entry *models.AutomationLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLogs) ListByRule(_ context.Context, ruleID uuid.UUID, _ int) ([]models.AutomationLog, error) {
	var out []models.AutomationLog
	for _, e := range f.entries {
		if e.RuleID == ruleID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePublisher struct {
	published []models.AutomationLog
}

func (f *fakePublisher) PublishAutomationLog(_ context.Context, entry models.AutomationLog) error {
	f.published = append(f.published, entry)
	return nil
}

type fakeFetcher struct {
	perf  models.PerformanceMap
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ *models.Rule) (models.PerformanceMap, error) {
	f.calls++
	return f.perf, f.err
}

type fakeEvaluator struct {
	result    *models.ActionResult
	err       error
	panicWith any
	throttled map[string]struct{}
	calls     int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ *models.Rule, _ models.PerformanceMap, throttled map[string]struct{}) (*models.ActionResult, error) {
	f.calls++
	f.throttled = throttled
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.result, f.err
}

type fakeArchiver struct {
	objects map[string][]byte
	err     error
}

func (f *fakeArchiver) Archive(_ context.Context, objectName string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[objectName] = data
	return nil
}

type fakePerformanceStore struct {
	streamRows   []models.PerformanceRow
	reportRows   []models.PerformanceRow
	searchRows   []models.PerformanceRow
	campaignDay  []models.CampaignDayTotals
	reportCalled bool
	reportStart  time.Time
	reportEnd    time.Time
	streamStart  time.Time
	streamEnd    time.Time
	searchStart  time.Time
	searchEnd    time.Time
}

func (f *fakePerformanceStore) StreamEntityDaily(_ context.Context, _ []string, start, end time.Time, _ string) ([]models.PerformanceRow, error) {
	f.streamStart, f.streamEnd = start, end
	return f.streamRows, nil
}

func (f *fakePerformanceStore) ReportEntityDaily(_ context.Context, _ []string, start, end time.Time) ([]models.PerformanceRow, error) {
	f.reportCalled = true
	f.reportStart, f.reportEnd = start, end
	return f.reportRows, nil
}

func (f *fakePerformanceStore) ReportSearchTermDaily(_ context.Context, _ []string, start, end time.Time) ([]models.PerformanceRow, error) {
	f.searchStart, f.searchEnd = start, end
	return f.searchRows, nil
}

func (f *fakePerformanceStore) StreamCampaignDay(_ context.Context, _ []string, _ time.Time, _ string) ([]models.CampaignDayTotals, error) {
	return f.campaignDay, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func floatPtr(v float64) *float64 { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
