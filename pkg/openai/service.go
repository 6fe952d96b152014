package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	dealdomain "dealsync-backend/internal/deal/domain"
	emaildomain "dealsync-backend/internal/email/domain"
	"dealsync-backend/internal/mailerr"
)

const completionsURL = "https://api.openai.com/v1/chat/completions"

// Service calls the OpenAI chat completions API to extract structured deal
// data from a campaign email.
type Service struct {
	apiKey string
	model  string
	client *http.Client
}

func NewService(apiKey, model string) *Service {
	return &Service{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

const systemPrompt = `You are an assistant that extracts brand-deal details from emails sent to content creators.
Reply with a single JSON object using exactly these fields:
isDeal (boolean), reason, campaignName, brand, draftRequired, draftDeadline, exclusivity, usageRights,
goLiveStart, goLiveEnd, payment (number), paymentStatus, paymentTerms, invoiceSentDate, expectedPaymentDate,
deliverables (array of {platform, deliverableType, quantity, dueDate, requirements}),
keyDates (array of {name, description, startDate, endDate}),
requiredActions (array of {name, description}), mustAvoids (array of {name, description}), notes.
Dates must be ISO 8601. Use null for anything the email does not state. Set isDeal to false when the
email is not a concrete brand partnership, and explain why in reason.`

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Extract runs one extraction call. Errors are normalized: throttling maps to
// a rate-limited kind (with the provider's Retry-After hint when present), an
// unparseable response maps to malformed, an empty response to no-content.
func (s *Service) Extract(ctx context.Context, msg *emaildomain.Message) (*dealdomain.Extraction, *dealdomain.CallMetadata, error) {
	userContent := fmt.Sprintf("From: %s\nSubject: %s\nReceived: %s\n\n%s",
		msg.From, msg.Subject, formatReceivedAt(msg.ReceivedAt), msg.BodyText)

	payload := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, completionsURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, mailerr.New(mailerr.KindTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, mailerr.New(mailerr.KindTransient, err)
	}
	latency := time.Since(start)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, nil, mailerr.RateLimited(fmt.Errorf("openai throttled: %s", respBody), retryAfterHeader(resp))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, nil, mailerr.New(mailerr.KindAuth, fmt.Errorf("openai auth error: %s", respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, mailerr.New(mailerr.KindTransient, fmt.Errorf("openai error %d: %s", resp.StatusCode, respBody))
	}

	extraction, meta, err := parseExtraction(respBody)
	if err != nil {
		return nil, nil, err
	}
	meta.Model = s.model
	meta.Latency = latency
	return extraction, meta, nil
}

// parseExtraction decodes the completions envelope and the JSON payload the
// model produced. Anything that does not match the expected shape is a
// malformed-response error, fatal for the message being processed.
func parseExtraction(respBody []byte) (*dealdomain.Extraction, *dealdomain.CallMetadata, error) {
	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, nil, mailerr.New(mailerr.KindMalformed, fmt.Errorf("unparseable completion envelope: %w", err))
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, nil, mailerr.New(mailerr.KindNoContent, fmt.Errorf("empty completion"))
	}

	var extraction dealdomain.Extraction
	decoder := json.NewDecoder(bytes.NewReader([]byte(parsed.Choices[0].Message.Content)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&extraction); err != nil {
		return nil, nil, mailerr.New(mailerr.KindMalformed, fmt.Errorf("extraction did not match schema: %w", err))
	}

	meta := &dealdomain.CallMetadata{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}
	return &extraction, meta, nil
}

func retryAfterHeader(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func formatReceivedAt(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}
