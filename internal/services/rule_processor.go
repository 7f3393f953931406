package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"automation-service/internal/amazonads"
	"automation-service/internal/metrics"
	"automation-service/internal/models"
	"automation-service/internal/utils"

	"github.com/google/uuid"
)

const (
	summaryNoEntities    = "No entities to process; scope may be empty or no data found."
	summaryNoMatch       = "No entities met the rule criteria."
	summarySBSDSkipped   = "SB/SD rule execution is not yet implemented."
	summaryRunFailed     = "Rule processing failed due to an error."
	summaryEmptyScopeLog = "rule has an empty campaign scope, skipping"
)

type RuleProcessorDeps struct {
	Rules       RuleStore
	Logs        AutomationLogStore
	Publisher   LogPublisher
	Fetcher     PerformanceFetcher
	Throttle    *ThrottleTracker
	BidRules    RuleEvaluator
	SearchTerms RuleEvaluator
	Budgets     RuleEvaluator
	Metrics     *metrics.EngineMetrics
	ScheduleLoc *time.Location
	Now         func() time.Time
}

// RuleProcessor runs due rules one at a time and records an audit entry per run.
type RuleProcessor struct {
	RuleProcessorDeps
}

// NewRuleProcessor creates a processor, defaulting Now to time.Now and ScheduleLoc to UTC
func NewRuleProcessor(deps RuleProcessorDeps) *RuleProcessor {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ScheduleLoc == nil {
		deps.ScheduleLoc = time.UTC
	}
	return &RuleProcessor{RuleProcessorDeps: deps}
}

type runOutcome struct {
	status  models.LogStatus
	summary string
	details any
	skipLog bool
	result  *models.ActionResult
}

// RunDueRules is one scheduler tick: load active rules, keep the due ones and process
// them sequentially. A failing rule never stops the rest of the tick.
func (p *RuleProcessor) RunDueRules(ctx context.Context) error {
	started := p.Now()

	records, err := p.Rules.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active rules: %w", err)
	}

	type dueRule struct {
		rule      *models.Rule
		decodeErr error
	}
	var due []dueRule
	for _, rec := range records {
		// an undecodable rule has a zero frequency, so it comes due once per retry window
		rule, decodeErr := rec.Decode()
		if IsRuleDue(rule, started, p.ScheduleLoc) {
			due = append(due, dueRule{rule: rule, decodeErr: decodeErr})
		}
	}

	if len(due) == 0 {
		slog.Debug("No rules are due to run")
		p.Metrics.ObserveTick(0, p.Now().Sub(started))
		return nil
	}

	slog.Info("Processing due rules", "count", len(due))
	for i, d := range due {
		if ctx.Err() != nil {
			slog.Warn("Tick cancelled before all due rules ran", "remaining", len(due)-i)
			break
		}
		p.processRule(ctx, d.rule, d.decodeErr)
	}

	p.Metrics.ObserveTick(len(due), p.Now().Sub(started))
	return nil
}

// RunRuleByID processes a single rule immediately, regardless of its schedule.
func (p *RuleProcessor) RunRuleByID(ctx context.Context, id uuid.UUID) (*models.AutomationLog, error) {
	rec, err := p.Rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, decodeErr := rec.Decode()
	return p.processRule(ctx, rule, decodeErr), nil
}

// ProcessRule runs the full pipeline for one rule. It returns the audit entry that was
// written, or nil when the run was skipped without one. lastRunAt is always updated.
func (p *RuleProcessor) ProcessRule(ctx context.Context, rule *models.Rule) *models.AutomationLog {
	return p.processRule(ctx, rule, nil)
}

func (p *RuleProcessor) processRule(ctx context.Context, rule *models.Rule, decodeErr error) (entry *models.AutomationLog) {
	started := p.Now()
	slog.Info("Processing rule", "rule_id", rule.ID, "name", rule.Name, "rule_type", rule.RuleType)

	// bookkeeping must survive a cancelled tick
	finalCtx := context.WithoutCancel(ctx)
	status := "SKIPPED"

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic recovered while processing rule", "rule_id", rule.ID, "panic", r, "stack", string(debug.Stack()))
			entry = p.writeLog(finalCtx, rule, models.LogStatusFailure, summaryRunFailed,
				map[string]any{"error": fmt.Sprint(r)})
			status = string(models.LogStatusFailure)
		}
		if err := p.Rules.UpdateLastRunAt(finalCtx, rule.ID, p.Now()); err != nil {
			slog.Error("Failed to update last_run_at", "rule_id", rule.ID, "error", err)
		}
		p.Metrics.ObserveRuleRun(string(rule.RuleType), status, p.Now().Sub(started))
	}()

	outcome, err := p.execute(ctx, rule, decodeErr)
	if err != nil {
		slog.Error("Rule processing failed", "rule_id", rule.ID, "error", err)
		entry = p.writeLog(finalCtx, rule, models.LogStatusFailure, summaryRunFailed, failureDetails(err))
		status = string(models.LogStatusFailure)
		return entry
	}
	if outcome.skipLog {
		return nil
	}

	if outcome.result != nil {
		changes, negatives := outcome.result.Details.CountChanges()
		p.Metrics.AddActions(string(rule.RuleType), "changes", changes)
		p.Metrics.AddActions(string(rule.RuleType), "negatives", negatives)
	}

	status = string(outcome.status)
	return p.writeLog(finalCtx, rule, outcome.status, outcome.summary, outcome.details)
}

func (p *RuleProcessor) execute(ctx context.Context, rule *models.Rule, decodeErr error) (*runOutcome, error) {
	if decodeErr != nil {
		return nil, decodeErr
	}
	if err := rule.Config.Validate(rule.RuleType); err != nil {
		return nil, err
	}

	campaignIDs := []string(rule.Scope.CampaignIDs)
	if len(campaignIDs) == 0 {
		slog.Info(summaryEmptyScopeLog, "rule_id", rule.ID)
		return &runOutcome{skipLog: true}, nil
	}

	var evaluator RuleEvaluator
	switch rule.RuleType {
	case models.RuleTypeBidAdjustment:
		if rule.AdType == models.AdTypeSB || rule.AdType == models.AdTypeSD {
			return &runOutcome{status: models.LogStatusNoAction, summary: summarySBSDSkipped, details: map[string]any{}}, nil
		}
		evaluator = p.BidRules
	case models.RuleTypeSearchTermAutomation:
		evaluator = p.SearchTerms
	case models.RuleTypeBudgetAcceleration:
		evaluator = p.Budgets
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownRuleType, rule.RuleType)
	}
	if evaluator == nil {
		return nil, fmt.Errorf("no evaluator configured for rule type %s", rule.RuleType)
	}

	throttled, err := p.Throttle.Throttled(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("failed to load throttled entities: %w", err)
	}
	if len(throttled) > 0 {
		slog.Info("Entities on cooldown", "rule_id", rule.ID, "count", len(throttled))
	}

	perf, err := p.Fetcher.Fetch(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch performance data: %w", err)
	}

	if len(perf) == 0 && rule.RuleType != models.RuleTypeBudgetAcceleration {
		return &runOutcome{
			status:  models.LogStatusNoAction,
			summary: summaryNoEntities,
			details: models.EmptyActionDetails(campaignIDs),
		}, nil
	}

	result, err := evaluator.Evaluate(ctx, rule, perf, throttled)
	if err != nil {
		return nil, err
	}

	if err := p.Throttle.Apply(ctx, rule, result.ActedOnEntities); err != nil {
		slog.Error("Failed to apply cooldown", "rule_id", rule.ID, "entities", len(result.ActedOnEntities), "error", err)
	} else if len(result.ActedOnEntities) > 0 && participates(rule) {
		slog.Info("Applied cooldown", "rule_id", rule.ID, "entities", len(result.ActedOnEntities),
			"duration", rule.Config.Cooldown.Duration().String())
	}

	if result.Details.HasActions() {
		return &runOutcome{status: models.LogStatusSuccess, summary: result.Summary, details: result.Details, result: result}, nil
	}

	empty := models.EmptyActionDetails(campaignIDs)
	empty.BatchErrors = result.Details.BatchErrors
	summary := summaryNoMatch
	if len(empty.BatchErrors) > 0 {
		summary = result.Summary
	}
	return &runOutcome{status: models.LogStatusNoAction, summary: summary, details: empty, result: result}, nil
}

// writeLog persists and publishes an audit entry. Neither failure is fatal.
func (p *RuleProcessor) writeLog(ctx context.Context, rule *models.Rule, status models.LogStatus, summary string, details any) *models.AutomationLog {
	detailMap, err := utils.ToJSONMap(details)
	if err != nil {
		slog.Error("Failed to serialize log details", "rule_id", rule.ID, "error", err)
		detailMap = utils.JSONMap{"error": err.Error()}
	}

	entry := &models.AutomationLog{
		ID:      uuid.New(),
		RuleID:  rule.ID,
		Status:  status,
		Summary: summary,
		Details: detailMap,
		RunAt:   p.Now(),
	}

	if err := p.Logs.Create(ctx, entry); err != nil {
		slog.Error("Failed to write automation log", "rule_id", rule.ID, "status", status, "error", err)
	}

	if p.Publisher != nil {
		if err := p.Publisher.PublishAutomationLog(ctx, *entry); err != nil {
			slog.Warn("Failed to publish automation log event", "rule_id", rule.ID, "error", err)
		}
	}

	slog.Info("Rule run recorded", "rule_id", rule.ID, "status", status, "summary", summary)
	return entry
}

func failureDetails(err error) map[string]any {
	details := map[string]any{"error": err.Error()}
	if apiErr, ok := amazonads.AsAPIError(err); ok {
		details["details"] = map[string]any{
			"status": apiErr.Status,
			"method": apiErr.Method,
			"path":   apiErr.Path,
			"body":   apiErr.DetailsValue(),
		}
	}
	if errors.Is(err, models.ErrInvalidRuleConfig) || errors.Is(err, models.ErrUnknownRuleType) {
		details["kind"] = "configuration"
	}
	return details
}
