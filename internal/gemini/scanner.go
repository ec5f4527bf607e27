// Package gemini implements the product scanner on top of the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"scoutgate/internal/models"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ErrAPIKeyRequired is returned by New when no API key is configured.
var ErrAPIKeyRequired = errors.New("gemini API key is required")

// generator is the slice of the Gemini client the scanner needs.
type generator interface {
	generate(ctx context.Context, model, prompt string) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Scanner asks the model for candidate products matching the company profile.
type Scanner struct {
	gen    generator
	config models.ScanConfig
	now    func() time.Time
}

// New creates a Gemini-backed scanner.
func New(ctx context.Context, cfg models.ScanConfig) (*Scanner, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return newScanner(&genaiGenerator{client: client}, cfg), nil
}

func newScanner(gen generator, cfg models.ScanConfig) *Scanner {
	return &Scanner{gen: gen, config: cfg, now: time.Now}
}

// scanResult is the JSON document the prompt asks for.
type scanResult struct {
	Summary  string           `json:"summary"`
	Products []models.Product `json:"products"`
}

// Scan generates a report. Products are returned unfiltered; deduplication
// against history happens in the caller.
func (s *Scanner) Scan(ctx context.Context, exclude []string) (*models.Report, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	start := s.now()
	text, err := s.gen.generate(ctx, s.config.Model, BuildPrompt(s.config, exclude))
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}

	result, err := parseResult(text)
	if err != nil {
		return nil, err
	}

	slog.Debug("Gemini scan finished",
		"model", s.config.Model,
		"candidates", len(result.Products),
		"excluded", len(exclude),
		"duration", s.now().Sub(start))

	report := &models.Report{
		Summary:   result.Summary,
		Products:  result.Products,
		CreatedAt: start.UTC(),
	}
	report.Date = report.CreatedAt.Format(time.DateOnly)
	if report.Summary == "" {
		report.Summary = "Analysis complete."
	}
	return report, nil
}

// parseResult tolerates markdown code fences around the JSON body.
func parseResult(text string) (*scanResult, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		cleaned = "{}"
	}

	var result scanResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}
	return &result, nil
}

// BuildPrompt renders the scan instructions for cfg, listing exclude as
// products the model must not suggest again.
func BuildPrompt(cfg models.ScanConfig, exclude []string) string {
	techStack, _ := json.Marshal(cfg.TechStack)

	var b strings.Builder
	fmt.Fprintf(&b, "Perform a product scan on Amazon US for %s.\n", cfg.CompanyName)
	fmt.Fprintf(&b, "Tech Stack: %s\n\n", techStack)
	b.WriteString("STRATEGY: GENERATE CANDIDATES AND FILTER\n")
	fmt.Fprintf(&b, "Identify %d distinct electronic products (the best %d will be selected).\n",
		cfg.CandidateCount, cfg.ProductCount)
	fmt.Fprintf(&b, "Target Categories: %s.\n\n", strings.Join(cfg.Categories, ", "))

	if len(exclude) > 0 {
		fmt.Fprintf(&b, "STRICT EXCLUSION LIST (DO NOT SUGGEST): %s\n\n", strings.Join(exclude, ", "))
	}

	b.WriteString(`OUTPUT FORMAT (JSON ONLY):
{
  "summary": "Short analysis of this week's trends",
  "products": [
    {
      "name": "Product name",
      "price": "$XX.XX",
      "amazonRating": "4.5",
      "description": "Feature overview",
      "matchScore": 85,
      "reasoning": "Why it fits our capabilities",
      "requiredTech": ["tech 1", "tech 2"],
      "url": "An Amazon search URL such as https://www.amazon.com/s?k=Keywords. Do not guess /dp/ ASIN links.",
      "imageUrl": "A publicly accessible http(s) image URL, or empty if none can be found."
    }
  ]
}
`)
	return b.String()
}
