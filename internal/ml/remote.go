package ml

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bird-conservation/internal/traits"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// FormatRemote is the format tag of an HTTP inference endpoint.
const FormatRemote = "remote"

// RemoteClassifier forwards records to an inference endpoint that hosts the
// trained pipeline. It never retries: a prediction is a single-shot call.
type RemoteClassifier struct {
	baseURL string
	rest    *resty.Client
}

// NewRemoteClassifier checks the endpoint's /health before returning.
func NewRemoteClassifier(ctx context.Context, baseURL string, timeout time.Duration) (*RemoteClassifier, error) {
	if baseURL == "" {
		return nil, unavailable("inference endpoint", baseURL, fmt.Errorf("no URL configured"))
	}

	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetRetryCount(0)

	c := &RemoteClassifier{baseURL: strings.TrimRight(baseURL, "/"), rest: r}

	resp, err := c.rest.R().SetContext(ctx).Get(c.baseURL + "/health")
	if err != nil {
		return nil, unavailable("inference endpoint", c.baseURL, err)
	}
	if resp.IsError() {
		return nil, unavailable("inference endpoint", c.baseURL, fmt.Errorf("health check returned %s", resp.Status()))
	}

	log.Info().Str("inference_url", c.baseURL).Msg("remote classifier ready")
	return c, nil
}

// Predict posts the record and returns the endpoint's class index. A 422
// answer with kind unknown_category maps to an UnknownCategoryError.
func (c *RemoteClassifier) Predict(ctx context.Context, rec traits.Record) (int, error) {
	var ok, failed processResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(processRequest{Columns: traits.FieldNames(), Record: rec.Map()}).
		SetResult(&ok).
		SetError(&failed).
		Post(c.baseURL + "/predict")
	if err != nil {
		return 0, unavailable("inference endpoint", c.baseURL, err)
	}

	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnprocessableEntity && failed.Kind == responseKindUnknownCategory {
			return 0, failed.failure()
		}
		detail := failed.Error
		if detail == "" {
			detail = strings.TrimSpace(resp.String())
		}
		return 0, unavailable("inference endpoint", c.baseURL, fmt.Errorf("%s: %s", resp.Status(), detail))
	}

	if ok.Prediction == nil {
		return 0, unavailable("inference endpoint", c.baseURL, fmt.Errorf("response has no prediction"))
	}
	return *ok.Prediction, nil
}
