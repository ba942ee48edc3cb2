package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rentscout/internal/storage"
)

type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderNone      ProviderKind = "none"
)

// Service calls the external scoring provider. It is treated as untrusted:
// possibly slow, possibly down, possibly returning malformed output.
type Service struct {
	kind    ProviderKind
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewService(kind, baseURL, apiKey, model string, timeout time.Duration) *Service {
	return &Service{
		kind:    ProviderKind(kind),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// candidatePayload is one listing as presented to the provider: full
// description and amenity list, no truncation.
type candidatePayload struct {
	ListingID      string   `json:"listing_id"`
	Address        string   `json:"address"`
	Neighborhood   string   `json:"neighborhood,omitempty"`
	Rent           int      `json:"rent"`
	Bedrooms       int      `json:"bedrooms"`
	Bathrooms      float64  `json:"bathrooms"`
	Sqft           int      `json:"sqft,omitempty"`
	Description    string   `json:"description,omitempty"`
	Amenities      []string `json:"amenities"`
	QualityScore   int      `json:"data_quality_score"`
	HeuristicScore int      `json:"heuristic_score"`
}

// ScoreBatch sends the candidates and criteria to the provider and returns
// per-candidate scores. heuristics maps listing id to its heuristic score.
func (s *Service) ScoreBatch(ctx context.Context, c *storage.SearchCriteria, candidates []*storage.Listing, heuristics map[string]int) ([]storage.ListingScore, error) {
	if s.kind == ProviderNone || s.kind == "" {
		return nil, fmt.Errorf("scoring provider not configured")
	}

	prompt, err := s.buildPrompt(c, candidates, heuristics)
	if err != nil {
		return nil, err
	}

	var response string
	switch s.kind {
	case ProviderOpenAI:
		response, err = s.callOpenAI(ctx, prompt)
	case ProviderAnthropic:
		response, err = s.callAnthropic(ctx, prompt)
	default:
		return nil, fmt.Errorf("unknown provider: %s", s.kind)
	}
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Scores []storage.ListingScore `json:"scores"`
	}
	if err := json.Unmarshal([]byte(stripFences(response)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}
	if len(parsed.Scores) == 0 {
		return nil, fmt.Errorf("provider returned no scores")
	}
	for i := range parsed.Scores {
		sc := &parsed.Scores[i]
		if sc.Score < 0 {
			sc.Score = 0
		}
		if sc.Score > 100 {
			sc.Score = 100
		}
	}
	return parsed.Scores, nil
}

func (s *Service) buildPrompt(c *storage.SearchCriteria, candidates []*storage.Listing, heuristics map[string]int) (string, error) {
	payloads := make([]candidatePayload, 0, len(candidates))
	for _, l := range candidates {
		payloads = append(payloads, candidatePayload{
			ListingID:      l.ID,
			Address:        l.Address,
			Neighborhood:   l.Neighborhood,
			Rent:           l.Rent,
			Bedrooms:       l.Bedrooms,
			Bathrooms:      l.Bathrooms,
			Sqft:           l.Sqft,
			Description:    l.Description,
			Amenities:      l.Amenities,
			QualityScore:   l.DataQualityScore,
			HeuristicScore: heuristics[l.ID],
		})
	}
	criteriaJSON, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	candidatesJSON, err := json.Marshal(payloads)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are a rental search expert helping a renter choose between listings.

Renter criteria:
%s

Candidate listings:
%s

Rate how well each listing matches the renter, considering budget, the free-text preferences, amenities, neighborhood and value for money.

Return ONLY valid JSON (no markdown, no explanation) with this exact structure:
{
  "scores": [
    {
      "listing_id": "id from the candidate",
      "match_score": 0,
      "reasoning": "One or two sentences on fit",
      "highlights": ["short selling point", "another"]
    }
  ]
}

Important:
- match_score is an integer 0-100
- Include every candidate exactly once
- highlights are at most three short phrases, drawn from the listing data`,
		string(criteriaJSON), string(candidatesJSON)), nil
}

func (s *Service) callOpenAI(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a rental listing scorer. Return only valid JSON."},
			{"role": "user", "content": prompt},
		},
		"temperature":     0.1,
		"response_format": map[string]string{"type": "json_object"},
	}
	jsonData, _ := json.Marshal(reqBody)

	url := s.baseURL
	if url == "" {
		url = "https://api.openai.com"
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAI request failed after %v: %w", time.Since(start), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API error: %d", resp.StatusCode)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("OpenAI error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return result.Choices[0].Message.Content, nil
}

func (s *Service) callAnthropic(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model":      s.model,
		"max_tokens": 4096,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	jsonData, _ := json.Marshal(reqBody)

	url := s.baseURL
	if url == "" {
		url = "https://api.anthropic.com"
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Anthropic request failed after %v: %w", time.Since(start), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Anthropic API error: %d", resp.StatusCode)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("Anthropic error: %s", result.Error.Message)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("no response from Anthropic")
	}
	return result.Content[0].Text, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
