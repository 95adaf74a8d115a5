// Package analysis classifies video evidence attached to crime reports.
// A remote model is tried first; when it is unavailable a simulated result is returned.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/logger"
	"crimewatch/backend/internal/models"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	ModelVersion = "v1.0"

	SourceModel    = "model"
	SourceFallback = "fallback"

	modelTimeout  = 30 * time.Second
	minConfidence = 0.75
	confidenceGap = 0.20
)

// Result is what the evidence endpoint returns.
type Result struct {
	CrimeType         string    `json:"crimeType"`
	Confidence        float64   `json:"confidence"`
	Description       string    `json:"description"`
	AnalysisTimestamp time.Time `json:"analysisTimestamp"`
	Source            string    `json:"source"`
}

// Store persists results for a report.
type Store interface {
	SaveAnalysis(ctx context.Context, a *models.ReportAnalysis) error
}

type modelRequest struct {
	VideoURL string `json:"video_url"`
}

type modelResponse struct {
	CrimeType   string  `json:"crime_type"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

type Analyzer struct {
	modelURL string
	client   *retryablehttp.Client
	store    Store
	log      *logrus.Entry
	random   func() float64
	now      func() time.Time
}

type Option func(*Analyzer)

func WithLogger(l *logrus.Entry) Option { return func(a *Analyzer) { a.log = l } }

// WithRandom replaces the source used by the fallback classifier. f must return values in [0, 1).
func WithRandom(f func() float64) Option { return func(a *Analyzer) { a.random = f } }

func WithClock(now func() time.Time) Option { return func(a *Analyzer) { a.now = now } }

// WithHTTPClient replaces the transport used for the model call.
func WithHTTPClient(c *http.Client) Option { return func(a *Analyzer) { a.client.HTTPClient = c } }

// New builds an Analyzer. An empty modelURL always uses the fallback; a nil store skips persistence.
func New(modelURL string, store Store, opts ...Option) *Analyzer {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = modelTimeout

	a := &Analyzer{
		modelURL: strings.TrimSpace(modelURL),
		client:   client,
		store:    store,
		log:      logger.Discard(),
		random:   rand.Float64,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.client.Logger = a.log
	return a
}

// Analyze classifies the video at videoURL. When reportID is set the result is upserted
// into crime_report_analysis; a failed write is logged and does not fail the call.
func (a *Analyzer) Analyze(ctx context.Context, videoURL, reportID string) (*Result, error) {
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return nil, errs.ErrVideoURLRequired
	}

	res, err := a.callModel(ctx, videoURL)
	if err != nil {
		a.log.WithError(err).Info("analysis model unavailable, using fallback")
		res = a.fallback()
	}
	if res.Description == "" {
		res.Description = Description(res.CrimeType)
	}
	res.AnalysisTimestamp = a.now().UTC()

	if reportID != "" && a.store != nil {
		version := ModelVersion
		row := &models.ReportAnalysis{
			ReportID:     &reportID,
			CrimeType:    res.CrimeType,
			Confidence:   res.Confidence,
			Description:  res.Description,
			ModelVersion: &version,
		}
		if err := a.store.SaveAnalysis(ctx, row); err != nil {
			a.log.WithError(err).WithField("report_id", reportID).Error("failed to store analysis")
		}
	}
	return res, nil
}

func (a *Analyzer) callModel(ctx context.Context, videoURL string) (*Result, error) {
	if a.modelURL == "" {
		return nil, errors.New("no model configured")
	}

	body, err := json.Marshal(modelRequest{VideoURL: videoURL})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, modelTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequest(http.MethodPost, a.modelURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build model request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call model")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("model returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out modelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode model response")
	}
	if out.CrimeType == "" {
		return nil, errors.New("model response has no crime_type")
	}
	return &Result{
		CrimeType:   out.CrimeType,
		Confidence:  out.Confidence,
		Description: out.Description,
		Source:      SourceModel,
	}, nil
}

// fallback picks a crime type at random with confidence in [0.75, 0.95).
func (a *Analyzer) fallback() *Result {
	i := int(a.random() * float64(len(CrimeTypes)))
	if i >= len(CrimeTypes) {
		i = len(CrimeTypes) - 1
	}
	crimeType := CrimeTypes[i]
	return &Result{
		CrimeType:   crimeType,
		Confidence:  minConfidence + a.random()*confidenceGap,
		Description: Description(crimeType),
		Source:      SourceFallback,
	}
}
