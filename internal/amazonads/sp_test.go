package amazonads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	ids := make([]int, 250)
	chunks := Chunk(ids, 100)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[2], 50)

	assert.Empty(t, Chunk([]int{}, 100))
}

func TestFlexID_Unmarshal(t *testing.T) {
	var k Keyword
	require.NoError(t, json.Unmarshal([]byte(`{"keywordId": 123456789012345, "adGroupId": "77", "bid": 0.4}`), &k))
	assert.Equal(t, FlexID("123456789012345"), k.KeywordID)
	assert.Equal(t, FlexID("77"), k.AdGroupID)
	assert.Equal(t, 0.4, *k.Bid)
}

func TestListKeywords_ChunksLookups(t *testing.T) {
	var batches []int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sp/keywords/list", r.URL.Path)
		assert.Equal(t, mediaKeyword, r.Header.Get("Accept"))

		var body struct {
			KeywordIDFilter struct {
				Include []string `json:"include"`
			} `json:"keywordIdFilter"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		batches = append(batches, len(body.KeywordIDFilter.Include))

		var kws []map[string]any
		for _, id := range body.KeywordIDFilter.Include {
			kws = append(kws, map[string]any{"keywordId": id, "bid": 0.5})
		}
		json.NewEncoder(w).Encode(map[string]any{"keywords": kws})
	})

	ids := make([]string, 150)
	for i := range ids {
		ids[i] = fmt.Sprintf("kw-%d", i)
	}

	sp := NewSponsoredProducts(client, 100)
	kws, err := sp.ListKeywords(context.Background(), "p1", ids)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 50}, batches)
	assert.Len(t, kws, 150)
}

func TestListKeywords_FailedChunkKeepsOthers(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body struct {
			KeywordIDFilter struct {
				Include []string `json:"include"`
			} `json:"keywordIdFilter"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if calls == 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"code": "SERVER_IS_BUSY"}`))
			return
		}
		var kws []map[string]any
		for _, id := range body.KeywordIDFilter.Include {
			kws = append(kws, map[string]any{"keywordId": id, "bid": 0.5})
		}
		json.NewEncoder(w).Encode(map[string]any{"keywords": kws})
	})

	ids := []string{"k1", "k2", "k3", "k4", "k5"}
	sp := NewSponsoredProducts(client, 2)
	kws, err := sp.ListKeywords(context.Background(), "p1", ids)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, kws, 3)
	assert.Equal(t, []string{"k3", "k4"}, FailedIDs(err, ids))

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestFailedIDs(t *testing.T) {
	ids := []string{"a", "b"}
	assert.Nil(t, FailedIDs(nil, ids))
	assert.Equal(t, ids, FailedIDs(errors.New("timeout"), ids))
	assert.Equal(t, []string{"b"}, FailedIDs(fmt.Errorf("wrapped: %w", &LookupError{Failed: []string{"b"}}), ids))
}

func TestListCampaigns_FollowsNextToken(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(500), body["maxResults"])

		if body["nextToken"] == nil {
			w.Write([]byte(`{"campaigns": [{"campaignId": "c1", "budget": {"budget": 50, "budgetType": "DAILY"}}], "nextToken": "page-2"}`))
			return
		}
		assert.Equal(t, "page-2", body["nextToken"])
		w.Write([]byte(`{"campaigns": [{"campaignId": 2, "budget": {"budget": 20.5, "budgetType": "DAILY"}}]}`))
	})

	sp := NewSponsoredProducts(client, 100)
	campaigns, err := sp.ListCampaigns(context.Background(), "p1", []string{"c1", "2"})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	require.Len(t, campaigns, 2)
	assert.Equal(t, FlexID("2"), campaigns[1].CampaignID)
	assert.Equal(t, 20.5, campaigns[1].Budget.Budget)
}

func TestUpdateKeywordBids_ParsesMultiStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body struct {
			Keywords []KeywordBidUpdate `json:"keywords"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Keywords, 2)

		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(`{"keywords": {
			"success": [{"index": 0, "keywordId": "k1"}],
			"error": [{"index": 1, "errors": [{"errorType": "entityNotFound"}]}]
		}}`))
	})

	sp := NewSponsoredProducts(client, 100)
	res, err := sp.UpdateKeywordBids(context.Background(), "p1", []KeywordBidUpdate{
		{KeywordID: "k1", Bid: 0.2},
		{KeywordID: "k2", Bid: 0.3},
	})
	require.NoError(t, err)

	_, failed0 := res.FailedAt(0)
	msg, failed1 := res.FailedAt(1)
	assert.False(t, failed0)
	assert.True(t, failed1)
	assert.Contains(t, msg, "entityNotFound")
}

func TestParseMultiStatus_UnknownShapeIsSuccess(t *testing.T) {
	assert.Empty(t, ParseMultiStatus([]byte(`not json`), "keywords").Failed)
	assert.Empty(t, ParseMultiStatus([]byte(`{"other": {}}`), "keywords").Failed)
}

func TestCreateNegativeTargets_Payload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sp/negativeTargets", r.URL.Path)
		assert.Equal(t, mediaNegativeTarget, r.Header.Get("Content-Type"))
		var body map[string][]NegativeTarget
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body["negativeTargetingClauses"], 1)
		nt := body["negativeTargetingClauses"][0]
		assert.Equal(t, "ASIN_SAME_AS", nt.Expression[0].Type)
		assert.Equal(t, "B0ABCDEFGH", nt.Expression[0].Value)
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(`{}`))
	})

	sp := NewSponsoredProducts(client, 100)
	_, err := sp.CreateNegativeTargets(context.Background(), "p1", []NegativeTarget{{
		CampaignID: "c1", AdGroupID: "ag1", State: "ENABLED",
		Expression: []TargetExpression{{Type: "ASIN_SAME_AS", Value: "B0ABCDEFGH"}},
	}})
	assert.NoError(t, err)
}
