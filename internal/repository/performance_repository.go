package repository

import (
	"context"
	"fmt"
	"time"

	"automation-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PerformanceRepository reads delivery data from the near real-time stream table and
// the settled search term report.
type PerformanceRepository struct {
	db *sqlx.DB
}

// NewPerformanceRepository creates a repository over the stream and report tables
func NewPerformanceRepository(db *sqlx.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// StreamEntityDaily aggregates sp-traffic and sp-conversion events per keyword/target
// and reporting-zone day, for days in [start, end].
func (r *PerformanceRepository) StreamEntityDaily(ctx context.Context, campaignIDs []string, start, end time.Time, tz string) ([]models.PerformanceRow, error) {
	query := `
		SELECT
			((event_data->>'time_window_start')::timestamptz AT TIME ZONE $4)::date AS performance_date,
			COALESCE(event_data->>'keyword_id', event_data->>'target_id') AS entity_id,
			COALESCE(MAX(COALESCE(event_data->>'keyword_text', event_data->>'targeting')), '') AS entity_text,
			COALESCE(MAX(event_data->>'match_type'), '') AS match_type,
			COALESCE(MAX(event_data->>'campaign_id'), '') AS campaign_id,
			COALESCE(MAX(event_data->>'ad_group_id'), '') AS ad_group_id,
			COALESCE(SUM(CASE WHEN event_type = 'sp-traffic' THEN (event_data->>'impressions')::bigint END), 0)::bigint AS impressions,
			COALESCE(SUM(CASE WHEN event_type = 'sp-traffic' THEN (event_data->>'clicks')::bigint END), 0)::bigint AS clicks,
			COALESCE(SUM(CASE WHEN event_type = 'sp-traffic' THEN (event_data->>'cost')::numeric END), 0)::numeric AS spend,
			COALESCE(SUM(CASE WHEN event_type = 'sp-conversion' THEN (event_data->>'attributed_sales_1d')::numeric END), 0)::numeric AS sales,
			COALESCE(SUM(CASE WHEN event_type = 'sp-conversion' THEN (event_data->>'attributed_conversions_1d')::bigint END), 0)::bigint AS orders
		FROM raw_stream_events
		WHERE event_type IN ('sp-traffic', 'sp-conversion')
		  AND (event_data->>'campaign_id') = ANY($1)
		  AND COALESCE(event_data->>'keyword_id', event_data->>'target_id') IS NOT NULL
		  AND ((event_data->>'time_window_start')::timestamptz AT TIME ZONE $4)::date BETWEEN $2 AND $3
		GROUP BY 1, 2
		ORDER BY 2, 1`

	var rows []models.PerformanceRow
	err := r.db.SelectContext(ctx, &rows, query, pq.Array(campaignIDs), start.Format(time.DateOnly), end.Format(time.DateOnly), tz)
	if err != nil {
		return nil, fmt.Errorf("failed to query stream entity performance: %w", err)
	}
	return rows, nil
}

// ReportEntityDaily reads settled keyword/target rows for report dates in [start, end].
func (r *PerformanceRepository) ReportEntityDaily(ctx context.Context, campaignIDs []string, start, end time.Time) ([]models.PerformanceRow, error) {
	query := `
		SELECT
			report_date AS performance_date,
			keyword_id::text AS entity_id,
			COALESCE(MAX(COALESCE(keyword_text, targeting)), '') AS entity_text,
			COALESCE(MAX(match_type), '') AS match_type,
			MAX(campaign_id::text) AS campaign_id,
			COALESCE(MAX(ad_group_id::text), '') AS ad_group_id,
			COALESCE(SUM(impressions), 0)::bigint AS impressions,
			COALESCE(SUM(clicks), 0)::bigint AS clicks,
			COALESCE(SUM(cost), 0)::numeric AS spend,
			COALESCE(SUM(sales_1d), 0)::numeric AS sales,
			COALESCE(SUM(purchases_1d), 0)::bigint AS orders
		FROM sponsored_products_search_term_report
		WHERE report_date BETWEEN $2 AND $3
		  AND keyword_id IS NOT NULL
		  AND campaign_id::text = ANY($1)
		GROUP BY 1, 2
		ORDER BY 2, 1`

	var rows []models.PerformanceRow
	err := r.db.SelectContext(ctx, &rows, query, pq.Array(campaignIDs), start.Format(time.DateOnly), end.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query report entity performance: %w", err)
	}
	return rows, nil
}

// ReportSearchTermDaily reads settled rows per customer search term. EntityID and
// EntityText both carry the raw search term.
func (r *PerformanceRepository) ReportSearchTermDaily(ctx context.Context, campaignIDs []string, start, end time.Time) ([]models.PerformanceRow, error) {
	query := `
		SELECT
			report_date AS performance_date,
			customer_search_term AS entity_id,
			customer_search_term AS entity_text,
			'' AS match_type,
			campaign_id::text AS campaign_id,
			COALESCE(ad_group_id::text, '') AS ad_group_id,
			COALESCE(SUM(impressions), 0)::bigint AS impressions,
			COALESCE(SUM(clicks), 0)::bigint AS clicks,
			COALESCE(SUM(cost), 0)::numeric AS spend,
			COALESCE(SUM(sales_1d), 0)::numeric AS sales,
			COALESCE(SUM(purchases_1d), 0)::bigint AS orders
		FROM sponsored_products_search_term_report
		WHERE report_date BETWEEN $2 AND $3
		  AND customer_search_term IS NOT NULL
		  AND campaign_id::text = ANY($1)
		GROUP BY 1, 2, 3, 4, 5, 6
		ORDER BY 2, 5, 6, 1`

	var rows []models.PerformanceRow
	err := r.db.SelectContext(ctx, &rows, query, pq.Array(campaignIDs), start.Format(time.DateOnly), end.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query search term performance: %w", err)
	}
	return rows, nil
}

// StreamCampaignDay sums today's spend, sales and orders per campaign from the stream.
func (r *PerformanceRepository) StreamCampaignDay(ctx context.Context, campaignIDs []string, day time.Time, tz string) ([]models.CampaignDayTotals, error) {
	query := `
		SELECT
			(event_data->>'campaign_id') AS campaign_id,
			COALESCE(SUM(CASE WHEN event_type = 'sp-traffic' THEN (event_data->>'cost')::numeric END), 0)::numeric AS spend,
			COALESCE(SUM(CASE WHEN event_type = 'sp-conversion' THEN (event_data->>'attributed_sales_1d')::numeric END), 0)::numeric AS sales,
			COALESCE(SUM(CASE WHEN event_type = 'sp-conversion' THEN (event_data->>'attributed_conversions_1d')::bigint END), 0)::bigint AS orders
		FROM raw_stream_events
		WHERE event_type IN ('sp-traffic', 'sp-conversion')
		  AND (event_data->>'campaign_id') = ANY($1)
		  AND ((event_data->>'time_window_start')::timestamptz AT TIME ZONE $3)::date = $2
		GROUP BY 1`

	var rows []models.CampaignDayTotals
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(campaignIDs), day.Format(time.DateOnly), tz); err != nil {
		return nil, fmt.Errorf("failed to query stream campaign totals: %w", err)
	}
	return rows, nil
}
