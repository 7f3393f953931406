package models

type RuleType string

const (
	RuleTypeBidAdjustment        RuleType = "BID_ADJUSTMENT"
	RuleTypeSearchTermAutomation RuleType = "SEARCH_TERM_AUTOMATION"
	RuleTypeBudgetAcceleration   RuleType = "BUDGET_ACCELERATION"
)

func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeBidAdjustment, RuleTypeSearchTermAutomation, RuleTypeBudgetAcceleration:
		return true
	}
	return false
}

type AdType string

const (
	AdTypeSP AdType = "SP"
	AdTypeSB AdType = "SB"
	AdTypeSD AdType = "SD"
)

type Metric string

const (
	MetricSpend             Metric = "spend"
	MetricSales             Metric = "sales"
	MetricACoS              Metric = "acos"
	MetricROAS              Metric = "roas"
	MetricOrders            Metric = "orders"
	MetricClicks            Metric = "clicks"
	MetricImpressions       Metric = "impressions"
	MetricBudgetUtilization Metric = "budgetUtilization"
)

func (m Metric) IsValid() bool {
	switch m {
	case MetricSpend, MetricSales, MetricACoS, MetricROAS, MetricOrders,
		MetricClicks, MetricImpressions, MetricBudgetUtilization:
		return true
	}
	return false
}

type Operator string

const (
	OperatorGreaterThan Operator = ">"
	OperatorLessThan    Operator = "<"
	OperatorEqual       Operator = "="
)

func (o Operator) IsValid() bool {
	return o == OperatorGreaterThan || o == OperatorLessThan || o == OperatorEqual
}

type TimeUnit string

const (
	TimeUnitMinutes TimeUnit = "minutes"
	TimeUnitHours   TimeUnit = "hours"
	TimeUnitDays    TimeUnit = "days"
)

func (u TimeUnit) IsValid() bool {
	return u == TimeUnitMinutes || u == TimeUnitHours || u == TimeUnitDays
}

type LogStatus string

const (
	LogStatusSuccess  LogStatus = "SUCCESS"
	LogStatusNoAction LogStatus = "NO_ACTION"
	LogStatusFailure  LogStatus = "FAILURE"
)

type ActionType string

const (
	ActionAdjustBidPercent      ActionType = "adjustBidPercent"
	ActionNegateSearchTerm      ActionType = "negateSearchTerm"
	ActionIncreaseBudgetPercent ActionType = "increaseBudgetPercent"
	ActionSetBudgetAmount       ActionType = "setBudgetAmount"
)

type EntityType string

const (
	EntityTypeKeyword    EntityType = "keyword"
	EntityTypeTarget     EntityType = "target"
	EntityTypeSearchTerm EntityType = "searchTerm"
	EntityTypeCampaign   EntityType = "campaign"
)

type MatchType string

const (
	MatchTypeBroad                 MatchType = "BROAD"
	MatchTypePhrase                MatchType = "PHRASE"
	MatchTypeExact                 MatchType = "EXACT"
	MatchTypeNegativeExact         MatchType = "NEGATIVE_EXACT"
	MatchTypeNegativePhrase        MatchType = "NEGATIVE_PHRASE"
	MatchTypeNegativeProductTarget MatchType = "NEGATIVE_PRODUCT_TARGET"
)

// IsKeywordMatch reports whether a report row with this match type belongs to a keyword
// rather than a product/auto target.
func (m MatchType) IsKeywordMatch() bool {
	return m == MatchTypeBroad || m == MatchTypePhrase || m == MatchTypeExact
}
