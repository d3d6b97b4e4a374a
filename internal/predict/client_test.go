package predict_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bimanual.report/internal/httputil"
	"github.com/banshee-data/bimanual.report/internal/predict"
	"github.com/banshee-data/bimanual.report/internal/store"
	"github.com/banshee-data/bimanual.report/internal/testutil"
)

var _ store.Predictor = (*predict.Client)(nil)

func TestPredictScore(t *testing.T) {
	m := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, `{"score": 2}`)
	c := predict.NewClient("http://scorer.local/v1/score", m)

	score, err := c.PredictScore(context.Background(), testutil.BoxTrial("t1", -1))
	require.NoError(t, err)
	assert.Equal(t, 2, score)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "http://scorer.local/v1/score", reqs[0].URL)
	var sent predict.Request
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	assert.Equal(t, "t1", sent.TrialID)
	assert.Equal(t, testutil.SampleRate, sent.SampleRate)
	assert.True(t, sent.ButtonPressed)
	assert.Len(t, sent.Left, testutil.BoxTrialSamples)
	assert.Len(t, sent.Right, testutil.BoxTrialSamples)
}

func TestPredictScore_Rejects(t *testing.T) {
	m := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"score": 5}`).
		AddResponse(http.StatusBadGateway, `upstream down`)
	c := predict.NewClient("http://scorer.local/v1/score", m)

	_, err := c.PredictScore(context.Background(), testutil.BoxTrial("t1", -1))
	assert.ErrorContains(t, err, "scorer returned 5")

	_, err = c.PredictScore(context.Background(), testutil.BoxTrial("t1", -1))
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}
