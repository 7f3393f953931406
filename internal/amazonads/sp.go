package amazonads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	mediaKeyword        = "application/vnd.spKeyword.v3+json"
	mediaTarget         = "application/vnd.spTargetingClause.v3+json"
	mediaAdGroup        = "application/vnd.spAdGroup.v3+json"
	mediaCampaign       = "application/vnd.spCampaign.v3+json"
	mediaNegativeKw     = "application/vnd.spNegativeKeyword.v3+json"
	mediaNegativeTarget = "application/vnd.spNegativeTargetingClause.v3+json"

	DefaultLookupChunk = 100
	campaignPageSize   = 500
)

// FlexID decodes ids that arrive either as JSON strings or numbers.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

type Keyword struct {
	KeywordID   FlexID   `json:"keywordId"`
	CampaignID  FlexID   `json:"campaignId"`
	AdGroupID   FlexID   `json:"adGroupId"`
	KeywordText string   `json:"keywordText"`
	MatchType   string   `json:"matchType"`
	State       string   `json:"state"`
	Bid         *float64 `json:"bid"`
}

type TargetingClause struct {
	TargetID   FlexID   `json:"targetId"`
	CampaignID FlexID   `json:"campaignId"`
	AdGroupID  FlexID   `json:"adGroupId"`
	State      string   `json:"state"`
	Bid        *float64 `json:"bid"`
}

type AdGroup struct {
	AdGroupID  FlexID   `json:"adGroupId"`
	CampaignID FlexID   `json:"campaignId"`
	Name       string   `json:"name"`
	DefaultBid *float64 `json:"defaultBid"`
}

type CampaignBudget struct {
	Budget     float64 `json:"budget"`
	BudgetType string  `json:"budgetType"`
}

type Campaign struct {
	CampaignID FlexID          `json:"campaignId"`
	Name       string          `json:"name"`
	State      string          `json:"state"`
	Budget     *CampaignBudget `json:"budget"`
}

type KeywordBidUpdate struct {
	KeywordID string  `json:"keywordId"`
	Bid       float64 `json:"bid"`
}

type TargetBidUpdate struct {
	TargetID string  `json:"targetId"`
	Bid      float64 `json:"bid"`
}

type NegativeKeyword struct {
	CampaignID  string `json:"campaignId"`
	AdGroupID   string `json:"adGroupId"`
	KeywordText string `json:"keywordText"`
	MatchType   string `json:"matchType"`
	State       string `json:"state"`
}

type TargetExpression struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type NegativeTarget struct {
	CampaignID string             `json:"campaignId"`
	AdGroupID  string             `json:"adGroupId"`
	Expression []TargetExpression `json:"expression"`
	State      string             `json:"state"`
}

type CampaignBudgetUpdate struct {
	CampaignID string         `json:"campaignId"`
	Budget     CampaignBudget `json:"budget"`
}

// BulkResult lists per-item failures from a 207 multi-status response, keyed by the
// index of the item in the request.
type BulkResult struct {
	Failed map[int]string
}

func (r BulkResult) FailedAt(i int) (string, bool) {
	msg, ok := r.Failed[i]
	return msg, ok
}

// SponsoredProducts is the typed surface of the SP v3 endpoints used by the engine.
type SponsoredProducts struct {
	client    *Client
	chunkSize int
}

func NewSponsoredProducts(client *Client, chunkSize int) *SponsoredProducts {
	if chunkSize <= 0 || chunkSize > DefaultLookupChunk {
		chunkSize = DefaultLookupChunk
	}
	return &SponsoredProducts{client: client, chunkSize: chunkSize}
}

func vendorHeaders(media string) map[string]string {
	return map[string]string{"Content-Type": media, "Accept": media}
}

func idFilter(ids []string) map[string]any {
	return map[string]any{"include": ids}
}

// LookupError lists the ids whose lookup chunk failed. Results from the chunks
// that succeeded are returned alongside it.
type LookupError struct {
	Resource string
	Failed   []string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("failed to list %s for %d id(s): %v", e.Resource, len(e.Failed), e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// FailedIDs returns the requested ids a lookup could not resolve. Any error other
// than a *LookupError covers every requested id.
func FailedIDs(err error, requested []string) []string {
	if err == nil {
		return nil
	}
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.Failed
	}
	return requested
}

func listChunked[T any](ids []string, size int, resource string, fetch func(chunk []string) ([]T, error)) ([]T, error) {
	var out []T
	var lookupErr *LookupError
	for _, chunk := range Chunk(ids, size) {
		page, err := fetch(chunk)
		if err != nil {
			if lookupErr == nil {
				lookupErr = &LookupError{Resource: resource, Err: err}
			}
			lookupErr.Failed = append(lookupErr.Failed, chunk...)
			continue
		}
		out = append(out, page...)
	}
	if lookupErr != nil {
		return out, lookupErr
	}
	return out, nil
}

// ListKeywords looks up keywords in chunks. A failed chunk does not discard the
// others; its ids are reported through a *LookupError.
func (sp *SponsoredProducts) ListKeywords(ctx context.Context, profileID string, keywordIDs []string) ([]Keyword, error) {
	return listChunked(keywordIDs, sp.chunkSize, "keywords", func(chunk []string) ([]Keyword, error) {
		var page struct {
			Keywords []Keyword `json:"keywords"`
		}
		_, err := sp.client.Do(ctx, Request{
			Method:    http.MethodPost,
			Path:      "/sp/keywords/list",
			ProfileID: profileID,
			Body:      map[string]any{"keywordIdFilter": idFilter(chunk)},
			Headers:   vendorHeaders(mediaKeyword),
		}, &page)
		return page.Keywords, err
	})
}

func (sp *SponsoredProducts) ListTargets(ctx context.Context, profileID string, targetIDs []string) ([]TargetingClause, error) {
	return listChunked(targetIDs, sp.chunkSize, "targets", func(chunk []string) ([]TargetingClause, error) {
		var page struct {
			TargetingClauses []TargetingClause `json:"targetingClauses"`
		}
		_, err := sp.client.Do(ctx, Request{
			Method:    http.MethodPost,
			Path:      "/sp/targets/list",
			ProfileID: profileID,
			Body:      map[string]any{"targetIdFilter": idFilter(chunk)},
			Headers:   vendorHeaders(mediaTarget),
		}, &page)
		return page.TargetingClauses, err
	})
}

func (sp *SponsoredProducts) ListAdGroups(ctx context.Context, profileID string, adGroupIDs []string) ([]AdGroup, error) {
	return listChunked(adGroupIDs, sp.chunkSize, "ad groups", func(chunk []string) ([]AdGroup, error) {
		var page struct {
			AdGroups []AdGroup `json:"adGroups"`
		}
		_, err := sp.client.Do(ctx, Request{
			Method:    http.MethodPost,
			Path:      "/sp/adGroups/list",
			ProfileID: profileID,
			Body:      map[string]any{"adGroupIdFilter": idFilter(chunk)},
			Headers:   vendorHeaders(mediaAdGroup),
		}, &page)
		return page.AdGroups, err
	})
}

// ListCampaigns pages through /sp/campaigns/list with nextToken.
func (sp *SponsoredProducts) ListCampaigns(ctx context.Context, profileID string, campaignIDs []string) ([]Campaign, error) {
	var out []Campaign
	nextToken := ""
	for {
		body := map[string]any{
			"campaignIdFilter": idFilter(campaignIDs),
			"maxResults":       campaignPageSize,
		}
		if nextToken != "" {
			body["nextToken"] = nextToken
		}

		var page struct {
			Campaigns []Campaign `json:"campaigns"`
			NextToken string     `json:"nextToken"`
		}
		_, err := sp.client.Do(ctx, Request{
			Method:    http.MethodPost,
			Path:      "/sp/campaigns/list",
			ProfileID: profileID,
			Body:      body,
			Headers:   vendorHeaders(mediaCampaign),
		}, &page)
		if err != nil {
			return nil, fmt.Errorf("failed to list campaigns: %w", err)
		}
		out = append(out, page.Campaigns...)

		if page.NextToken == "" || page.NextToken == nextToken {
			return out, nil
		}
		nextToken = page.NextToken
	}
}

func (sp *SponsoredProducts) UpdateKeywordBids(ctx context.Context, profileID string, updates []KeywordBidUpdate) (BulkResult, error) {
	return sp.mutate(ctx, http.MethodPut, "/sp/keywords", profileID, "keywords", updates, mediaKeyword)
}

func (sp *SponsoredProducts) UpdateTargetBids(ctx context.Context, profileID string, updates []TargetBidUpdate) (BulkResult, error) {
	return sp.mutate(ctx, http.MethodPut, "/sp/targets", profileID, "targetingClauses", updates, mediaTarget)
}

func (sp *SponsoredProducts) CreateNegativeKeywords(ctx context.Context, profileID string, negatives []NegativeKeyword) (BulkResult, error) {
	return sp.mutate(ctx, http.MethodPost, "/sp/negativeKeywords", profileID, "negativeKeywords", negatives, mediaNegativeKw)
}

func (sp *SponsoredProducts) CreateNegativeTargets(ctx context.Context, profileID string, negatives []NegativeTarget) (BulkResult, error) {
	return sp.mutate(ctx, http.MethodPost, "/sp/negativeTargets", profileID, "negativeTargetingClauses", negatives, mediaNegativeTarget)
}

func (sp *SponsoredProducts) UpdateCampaignBudgets(ctx context.Context, profileID string, updates []CampaignBudgetUpdate) (BulkResult, error) {
	return sp.mutate(ctx, http.MethodPut, "/sp/campaigns", profileID, "campaigns", updates, mediaCampaign)
}

func (sp *SponsoredProducts) mutate(ctx context.Context, method, path, profileID, key string, items any, media string) (BulkResult, error) {
	raw, err := sp.client.Do(ctx, Request{
		Method:    method,
		Path:      path,
		ProfileID: profileID,
		Body:      map[string]any{key: items},
		Headers:   vendorHeaders(media),
	}, nil)
	if err != nil {
		return BulkResult{}, err
	}
	return ParseMultiStatus(raw, key), nil
}

// ParseMultiStatus reads the {"<key>": {"success": [...], "error": [...]}} envelope.
// Bodies of any other shape are treated as full success.
func ParseMultiStatus(raw []byte, key string) BulkResult {
	result := BulkResult{Failed: map[int]string{}}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return result
	}
	section, ok := envelope[key]
	if !ok {
		return result
	}

	var status struct {
		Error []struct {
			Index  int               `json:"index"`
			Errors []json.RawMessage `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal(section, &status); err != nil {
		return result
	}

	for _, e := range status.Error {
		parts := make([]string, 0, len(e.Errors))
		for _, detail := range e.Errors {
			parts = append(parts, string(detail))
		}
		result.Failed[e.Index] = strings.Join(parts, "; ")
	}
	return result
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
