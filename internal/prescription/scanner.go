// Package prescription extracts structured medication data from
// prescription images using multimodal AI APIs.
package prescription

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/carepulse/carepulse/internal/config"
	"github.com/carepulse/carepulse/internal/errors"
)

// Scanner defines the interface for prescription OCR
type Scanner interface {
	Scan(ctx context.Context, imageData []byte, mimeType string) (*ScanResult, error)
	Name() string
}

const scanPrompt = `Read this prescription image. Return ONLY a JSON object with this shape:
{"prescriber": "...", "medicines": [{"name": "...", "dosage": "...", "schedule": "...", "total_pills": 0, "notes": "..."}]}
Use schedule values like "morning", "afternoon", "evening", "night" or clock times like "8:00 AM".
If a field is unreadable, leave it empty.`

// apiScanner implements Scanner using multimodal AI APIs
type apiScanner struct {
	provider string
	apiKey   string
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*ScanResult]
}

// NewAPIScanner creates an API-based scanner. Upstream calls are rate
// limited and wrapped in a circuit breaker so a failing provider does
// not hold every caller on a timeout.
func NewAPIScanner(cfg config.ScannerConfig) Scanner {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Provider {
		case "gemini":
			baseURL = "https://generativelanguage.googleapis.com/v1beta"
		case "openai":
			baseURL = "https://api.openai.com/v1"
		}
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	perMin := cfg.RequestsPerMin
	if perMin <= 0 {
		perMin = 15
	}

	breaker := gobreaker.NewCircuitBreaker[*ScanResult](gobreaker.Settings{
		Name:    "prescription-scanner",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &apiScanner{
		provider: cfg.Provider,
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(perMin/60), 1),
		breaker:  breaker,
	}
}

// Name returns the scanner provider name
func (s *apiScanner) Name() string {
	return s.provider
}

// Scan extracts medicines from a prescription image
func (s *apiScanner) Scan(ctx context.Context, imageData []byte, mimeType string) (*ScanResult, error) {
	if s.apiKey == "" {
		return nil, errors.ErrScannerNotConfigured
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := s.breaker.Execute(func() (*ScanResult, error) {
		switch s.provider {
		case "gemini":
			return s.scanWithGemini(ctx, imageData, mimeType)
		case "openai":
			return s.scanWithOpenAI(ctx, imageData, mimeType)
		default:
			return nil, fmt.Errorf("unknown provider: %s", s.provider)
		}
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errors.Wrap(err, errors.ErrScannerUnavailable.Code, errors.ErrScannerUnavailable.Message)
		}
		return nil, err
	}
	return result, nil
}

// scanWithGemini uses Google's Gemini API
func (s *apiScanner) scanWithGemini(ctx context.Context, imageData []byte, mimeType string) (*ScanResult, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{
						"text": scanPrompt,
					},
					{
						"inlineData": map[string]string{
							"mimeType": mimeType,
							"data":     base64.StdEncoding.EncodeToString(imageData),
						},
					},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.2,
			"maxOutputTokens": 2048,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	model := "gemini-1.5-flash-latest"
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, model, s.apiKey)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := s.do(req)
	if err != nil {
		return nil, err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from API")
	}

	return parseScanResponse(result.Candidates[0].Content.Parts[0].Text), nil
}

// scanWithOpenAI uses OpenAI's vision-capable chat API
func (s *apiScanner) scanWithOpenAI(ctx context.Context, imageData []byte, mimeType string) (*ScanResult, error) {
	reqBody := map[string]interface{}{
		"model": "gpt-4o-mini",
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "text",
						"text": scanPrompt,
					},
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url": fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData)),
						},
					},
				},
			},
		},
		"max_tokens": 2048,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	body, err := s.do(req)
	if err != nil {
		return nil, err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no response from API")
	}

	return parseScanResponse(result.Choices[0].Message.Content), nil
}

func (s *apiScanner) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// parseScanResponse extracts the structured result from model output.
// The model sometimes wraps JSON in markdown fences or prose; when no
// JSON object can be recovered, only the raw text is returned.
func parseScanResponse(text string) *ScanResult {
	result := &ScanResult{RawText: text}

	jsonText := extractJSON(text)
	if jsonText == "" {
		return result
	}

	var parsed ScanResult
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return result
	}

	parsed.RawText = text
	return &parsed
}

// extractJSON pulls the first top-level JSON object out of text.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}
