package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"automation-service/internal/amazonads"
	"automation-service/internal/metrics"
	"automation-service/internal/models"

	"github.com/google/uuid"
)

var ErrBudgetResetRejected = errors.New("budget restoration rejected by ads platform")

// BudgetResetReport summarizes one restoration sweep.
type BudgetResetReport struct {
	Date      string                       `json:"date"`
	Profiles  int                          `json:"profiles"`
	Restored  int                          `json:"restored"`
	Overrides []models.DailyBudgetOverride `json:"overrides"`
	Archived  bool                         `json:"archived"`
}

// BudgetResetService restores accelerated campaigns to the budget they had before the
// first acceleration of the day. Rows are only marked reverted when every profile's
// update went through, so a failed sweep can simply be retried.
type BudgetResetService struct {
	overrides BudgetOverrideStore
	ads       AdsAPI
	archive   Archiver
	cal       Calendar
	metrics   *metrics.EngineMetrics
	now       func() time.Time
}

// NewBudgetResetService creates the nightly budget restoration sweep. archive may be nil.
func NewBudgetResetService(overrides BudgetOverrideStore, ads AdsAPI, archive Archiver, cal Calendar, m *metrics.EngineMetrics) *BudgetResetService {
	return &BudgetResetService{
		overrides: overrides,
		ads:       ads,
		archive:   archive,
		cal:       cal,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *BudgetResetService) ResetBudgets(ctx context.Context) (*BudgetResetReport, error) {
	today := s.cal.Today()
	report := &BudgetResetReport{Date: today.Format(time.DateOnly)}

	pending, err := s.overrides.ListPending(ctx, today)
	if err != nil {
		s.metrics.AddBudgetResets("failed", 1)
		return nil, err
	}
	report.Overrides = pending
	if len(pending) == 0 {
		slog.Info("No budget overrides to restore", "date", report.Date)
		return report, nil
	}

	byProfile := map[string][]models.DailyBudgetOverride{}
	for _, o := range pending {
		byProfile[o.ProfileID] = append(byProfile[o.ProfileID], o)
	}
	profiles := make([]string, 0, len(byProfile))
	for p := range byProfile {
		profiles = append(profiles, p)
	}
	sort.Strings(profiles)
	report.Profiles = len(profiles)

	report.Archived = s.archiveManifest(ctx, report)

	for _, profileID := range profiles {
		rows := byProfile[profileID]
		updates := make([]amazonads.CampaignBudgetUpdate, len(rows))
		for i, o := range rows {
			updates[i] = amazonads.CampaignBudgetUpdate{
				CampaignID: o.CampaignID,
				Budget:     amazonads.CampaignBudget{Budget: o.OriginalBudget, BudgetType: "DAILY"},
			}
		}

		result, err := s.ads.UpdateCampaignBudgets(ctx, profileID, updates)
		if err != nil {
			slog.Error("Budget restoration failed, aborting sweep", "profile_id", profileID, "campaigns", len(rows), "error", err)
			s.metrics.AddBudgetResets("failed", len(pending))
			return report, fmt.Errorf("failed to restore budgets for profile %s: %w", profileID, err)
		}
		if len(result.Failed) > 0 {
			slog.Error("Budget restoration partially rejected, aborting sweep",
				"profile_id", profileID, "rejected", len(result.Failed), "failures", result.Failed)
			s.metrics.AddBudgetResets("failed", len(pending))
			return report, fmt.Errorf("%w: profile %s, %d of %d campaign(s)",
				ErrBudgetResetRejected, profileID, len(result.Failed), len(rows))
		}
	}

	ids := make([]uuid.UUID, len(pending))
	for i, o := range pending {
		ids[i] = o.ID
	}
	if err := s.overrides.MarkReverted(ctx, ids, s.now()); err != nil {
		s.metrics.AddBudgetResets("failed", len(pending))
		return report, err
	}

	report.Restored = len(pending)
	s.metrics.AddBudgetResets("restored", len(pending))
	slog.Info("Restored accelerated budgets", "date", report.Date, "campaigns", report.Restored, "profiles", report.Profiles)
	return report, nil
}

// archiveManifest stores the sweep input in object storage. Failures are only logged.
func (s *BudgetResetService) archiveManifest(ctx context.Context, report *BudgetResetReport) bool {
	if s.archive == nil {
		return false
	}
	data, err := json.Marshal(report)
	if err != nil {
		slog.Warn("Failed to encode budget reset manifest", "error", err)
		return false
	}
	objectName := fmt.Sprintf("budget-resets/%s.json", report.Date)
	if err := s.archive.Archive(ctx, objectName, data); err != nil {
		slog.Warn("Failed to archive budget reset manifest", "object", objectName, "error", err)
		return false
	}
	return true
}
