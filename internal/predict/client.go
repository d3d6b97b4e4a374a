// Package predict asks an external scoring service for a trial's quality
// score. The service owns the model; this side only ships samples and
// validates the answer.
package predict

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/bimanual.report/internal/httputil"
	"github.com/banshee-data/bimanual.report/internal/kinematics"
)

// DefaultTimeout bounds one scoring request.
const DefaultTimeout = 30 * time.Second

// Request is the body POSTed to the scoring endpoint.
type Request struct {
	TrialID       string              `json:"trial_id"`
	SampleRate    int                 `json:"sample_rate"`
	ButtonPressed bool                `json:"button_pressed"`
	Left          []kinematics.Sample `json:"left"`
	Right         []kinematics.Sample `json:"right"`
}

// Response is the scoring endpoint's answer.
type Response struct {
	Score int `json:"score"`
}

// Client calls a scoring endpoint over HTTP.
type Client struct {
	url  string
	http httputil.HTTPClient
}

// NewClient returns a Client posting to url. A nil hc uses an http.Client
// with DefaultTimeout.
func NewClient(url string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{url: url, http: hc}
}

// PredictScore returns the service's score for t, which must lie in
// 0..kinematics.ScoreGood.
func (c *Client) PredictScore(ctx context.Context, t kinematics.Trial) (int, error) {
	req := Request{
		TrialID:       t.ID,
		SampleRate:    t.SampleRate,
		ButtonPressed: t.ButtonPressed,
		Left:          t.Left,
		Right:         t.Right,
	}
	var resp Response
	if err := httputil.DoJSON(ctx, c.http, http.MethodPost, c.url, req, &resp); err != nil {
		return 0, err
	}
	if resp.Score < 0 || resp.Score > kinematics.ScoreGood {
		return 0, fmt.Errorf("scorer returned %d for trial %s, want 0..%d", resp.Score, t.ID, kinematics.ScoreGood)
	}
	return resp.Score, nil
}
