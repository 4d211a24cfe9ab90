package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"
)

// Task selects the kind of analysis the model service runs.
type Task string

const (
	TaskRegression     Task = "regression"
	TaskClassification Task = "classification"
)

func ParseTask(v string) (Task, error) {
	switch Task(v) {
	case TaskRegression, TaskClassification:
		return Task(v), nil
	}
	return "", fmt.Errorf("%w: task must be regression or classification, got %q", ErrInvalidRequest, v)
}

// Dataset is a parsed table: header row first, all cells as text.
type Dataset [][]string

// AnalysisResult is the service's metrics mapping, kept as raw JSON per key.
type AnalysisResult map[string]json.RawMessage

// FeatureImportance returns the feature-importance entry, if present.
func (r AnalysisResult) FeatureImportance() (json.RawMessage, bool) {
	v, ok := r["feature_importance"]
	return v, ok
}

// PredictInput holds the ambient readings the power model takes.
type PredictInput struct {
	AT float64 `json:"AT"` // ambient temperature, °C
	V  float64 `json:"V"`  // exhaust vacuum, cm Hg
	AP float64 `json:"AP"` // ambient pressure, mbar
	RH float64 `json:"RH"` // relative humidity, %
}

type Prediction struct {
	PE         float64 `json:"PE"` // net power output, MW
	Efficiency float64 `json:"efficiency"`
	MTOE       float64 `json:"mtoe"`
	TWh        float64 `json:"twh"`
}

type UploadResult struct {
	Preview Dataset `json:"preview,omitempty"`
	Dataset Dataset `json:"dataset,omitempty"`
}

// AnalysisClient talks to the prediction/analysis service.
type AnalysisClient struct {
	client
}

func NewAnalysisClient(opts Options, log zerolog.Logger) *AnalysisClient {
	return &AnalysisClient{client: newClient("analysis", opts, log)}
}

// Analyze runs a regression or classification over a dataset.
func (c *AnalysisClient) Analyze(ctx context.Context, data Dataset, task Task) (AnalysisResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no dataset available", ErrInvalidRequest)
	}
	if _, err := ParseTask(string(task)); err != nil {
		return nil, err
	}

	req := struct {
		Dataset Dataset `json:"dataset"`
		Task    Task    `json:"task"`
	}{data, task}

	var result AnalysisResult
	if err := c.postJSON(ctx, "/analyze", req, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Predict asks the model for the power output at the given readings.
func (c *AnalysisClient) Predict(ctx context.Context, in PredictInput) (*Prediction, error) {
	var p Prediction
	if err := c.postJSON(ctx, "/predict", in, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upload sends a raw dataset file; the service parses it and returns a
// preview and the full table.
func (c *AnalysisClient) Upload(ctx context.Context, filename string, file io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	var result UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/upload", &body, mw.FormDataContentType(), nil, &result); err != nil {
		return nil, err
	}
	if len(result.Preview) == 0 && len(result.Dataset) == 0 {
		return nil, fmt.Errorf("%w: no data returned from server", ErrBadResponse)
	}
	return &result, nil
}
