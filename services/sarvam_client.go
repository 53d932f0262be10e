package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/janani/maai/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SarvamClient is the primary link of the translation chain.
type SarvamClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewSarvamClient builds a client for the remote translation API. The
// timeout bounds every call; there are no client-side retries because the
// translator already falls back to the language model.
func NewSarvamClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *SarvamClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("api-subscription-key", apiKey)

	return &SarvamClient{httpClient: client, logger: logger}
}

func (c *SarvamClient) Name() string { return "sarvam" }

// Translate implements TranslationStrategy.
func (c *SarvamClient) Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error) {
	c.logger.Debug("SARVAM: translate request",
		zap.String("source", sourceCode),
		zap.String("target", targetCode))

	var out models.SarvamTranslateResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(models.SarvamTranslateRequest{
			Input:              text,
			SourceLanguageCode: sourceCode,
			TargetLanguageCode: targetCode,
			SpeakerGender:      "Female",
			Mode:               "formal",
		}).
		SetResult(&out).
		Post("/translate")
	if err != nil {
		return "", fmt.Errorf("failed to call translation api: %w", err)
	}
	if !resp.IsSuccess() {
		body := resp.String()
		if len(body) > 120 {
			body = body[:120]
		}
		return "", fmt.Errorf("translation api returned status %d: %s", resp.StatusCode(), body)
	}
	if strings.TrimSpace(out.TranslatedText) == "" {
		return "", ErrEmptyTranslation
	}
	return out.TranslatedText, nil
}

// Ping checks the API is reachable; any HTTP answer counts.
func (c *SarvamClient) Ping(ctx context.Context) error {
	_, err := c.httpClient.R().SetContext(ctx).Head("/")
	return err
}
