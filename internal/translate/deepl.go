package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const deeplAPIURL = "https://api-free.deepl.com/v2/translate"

// DeepLClient is the secondary, dedicated translation provider.
type DeepLClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// DeepLConfig holds configuration for the DeepL client.
type DeepLConfig struct {
	APIKey     string
	HTTPClient *http.Client
}

// NewDeepLClient creates a new DeepL client.
func NewDeepLClient(cfg DeepLConfig) *DeepLClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &DeepLClient{
		apiKey:     cfg.APIKey,
		baseURL:    deeplAPIURL,
		httpClient: httpClient,
	}
}

func (c *DeepLClient) Name() string { return ProviderSecondary }

// deeplRequest represents a DeepL translate request.
type deeplRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
}

// deeplResponse represents a DeepL translate response.
type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate translates text via the DeepL HTTP API. Language codes are
// upper-cased the way DeepL expects; "auto" source means detection.
func (c *DeepLClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	req := deeplRequest{
		Text:       []string{text},
		TargetLang: strings.ToUpper(targetLang),
	}
	if sourceLang != "" && sourceLang != "auto" {
		req.SourceLang = strings.ToUpper(sourceLang)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("DeepL API error: %s - %s", resp.Status, string(respBody))
	}

	var deeplResp deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&deeplResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(deeplResp.Translations) == 0 {
		return "", fmt.Errorf("no translations in response")
	}
	return strings.TrimSpace(deeplResp.Translations[0].Text), nil
}
