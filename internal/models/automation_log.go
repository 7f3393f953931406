package models

import (
	"time"

	"automation-service/internal/utils"

	"github.com/google/uuid"
)

// AutomationLog is an append-only audit entry for one rule run.
type AutomationLog struct {
	ID      uuid.UUID     `json:"id" db:"id"`
	RuleID  uuid.UUID     `json:"rule_id" db:"rule_id"`
	Status  LogStatus     `json:"status" db:"status"`
	Summary string        `json:"summary" db:"summary"`
	Details utils.JSONMap `json:"details" db:"details"`
	RunAt   time.Time     `json:"run_at" db:"run_at"`
}

type TriggeringMetric struct {
	Metric     Metric     `json:"metric"`
	TimeWindow TimeWindow `json:"timeWindow"`
	Value      float64    `json:"value"`
	Condition  string     `json:"condition"`
}

// ChangeEntry records one bid or budget mutation. Exactly one of the bid or budget
// pairs is set.
type ChangeEntry struct {
	EntityType        EntityType         `json:"entityType"`
	EntityID          string             `json:"entityId"`
	EntityText        string             `json:"entityText"`
	OldBid            *float64           `json:"oldBid,omitempty"`
	NewBid            *float64           `json:"newBid,omitempty"`
	OldBudget         *float64           `json:"oldBudget,omitempty"`
	NewBudget         *float64           `json:"newBudget,omitempty"`
	TriggeringMetrics []TriggeringMetric `json:"triggeringMetrics"`
}

func NewBidChange(e *PerformanceEntity, oldBid, newBid float64, metrics []TriggeringMetric) ChangeEntry {
	return ChangeEntry{
		EntityType:        e.EntityType,
		EntityID:          e.EntityID,
		EntityText:        e.EntityText,
		OldBid:            &oldBid,
		NewBid:            &newBid,
		TriggeringMetrics: metrics,
	}
}

func NewBudgetChange(e *PerformanceEntity, oldBudget, newBudget float64, metrics []TriggeringMetric) ChangeEntry {
	return ChangeEntry{
		EntityType:        EntityTypeCampaign,
		EntityID:          e.CampaignID,
		EntityText:        e.EntityText,
		OldBudget:         &oldBudget,
		NewBudget:         &newBudget,
		TriggeringMetrics: metrics,
	}
}

type NegativeEntry struct {
	SearchTerm        string             `json:"searchTerm"`
	CampaignID        string             `json:"campaignId"`
	AdGroupID         string             `json:"adGroupId"`
	MatchType         MatchType          `json:"matchType"`
	TriggeringMetrics []TriggeringMetric `json:"triggeringMetrics"`
}

type CampaignActions struct {
	Changes      []ChangeEntry   `json:"changes"`
	NewNegatives []NegativeEntry `json:"newNegatives"`
}

// BatchError describes a bulk mutation that the ads platform rejected.
type BatchError struct {
	Operation string `json:"operation"`
	Count     int    `json:"count"`
	Error     string `json:"error"`
	Details   any    `json:"details,omitempty"`
}

type ActionDetails struct {
	ActionsByCampaign map[string]*CampaignActions `json:"actions_by_campaign"`
	BatchErrors       []BatchError                `json:"batch_errors,omitempty"`
}

func NewActionDetails() ActionDetails {
	return ActionDetails{ActionsByCampaign: map[string]*CampaignActions{}}
}

// EmptyActionDetails pre-fills an empty entry for every campaign in scope.
func EmptyActionDetails(campaignIDs []string) ActionDetails {
	d := NewActionDetails()
	for _, id := range campaignIDs {
		d.Campaign(id)
	}
	return d
}

// Campaign returns the entry for campaignID, creating it when missing.
func (d *ActionDetails) Campaign(campaignID string) *CampaignActions {
	if d.ActionsByCampaign == nil {
		d.ActionsByCampaign = map[string]*CampaignActions{}
	}
	ca, ok := d.ActionsByCampaign[campaignID]
	if !ok {
		ca = &CampaignActions{Changes: []ChangeEntry{}, NewNegatives: []NegativeEntry{}}
		d.ActionsByCampaign[campaignID] = ca
	}
	return ca
}

func (d ActionDetails) HasActions() bool {
	for _, ca := range d.ActionsByCampaign {
		if len(ca.Changes) > 0 || len(ca.NewNegatives) > 0 {
			return true
		}
	}
	return false
}

func (d ActionDetails) CountChanges() (changes, negatives int) {
	for _, ca := range d.ActionsByCampaign {
		changes += len(ca.Changes)
		negatives += len(ca.NewNegatives)
	}
	return changes, negatives
}

// ActionResult is what every rule evaluator hands back to the processor.
type ActionResult struct {
	Summary         string
	Details         ActionDetails
	ActedOnEntities []string
}

type DailyBudgetOverride struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ProfileID      string     `json:"profile_id" db:"profile_id"`
	CampaignID     string     `json:"campaign_id" db:"campaign_id"`
	OriginalBudget float64    `json:"original_budget" db:"original_budget"`
	OverrideDate   time.Time  `json:"override_date" db:"override_date"`
	RevertedAt     *time.Time `json:"reverted_at,omitempty" db:"reverted_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
