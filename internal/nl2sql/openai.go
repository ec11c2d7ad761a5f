package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAIGenerator talks to any OpenAI-compatible chat-completions endpoint.
type OpenAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIGenerator{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

const generateSystemPrompt = "You are an expert SQL writer. Based on the user's question and the provided " +
	"database schema, write a single, syntactically correct SQL query to answer the question. " +
	"Respond ONLY with the SQL query, no markdown and no explanation. " +
	"Use only tables and columns listed in the schema; do not assume or pluralize table names."

const correctSystemPrompt = "You are a SQL expert tasked with correcting a failed SQL query. " +
	"Respond ONLY with the corrected, single SQL query, no markdown and no explanation. " +
	"Use the exact table and column names from the schema and fix the query to answer the original question."

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, fmt.Errorf("question is required")
	}
	userPrompt := fmt.Sprintf(
		"User Question:\n%s\n\nDatabase Schema:\n%s\n",
		strings.TrimSpace(req.Question),
		req.SchemaDDL,
	)
	return g.chat(ctx, generateSystemPrompt, userPrompt)
}

func (g *OpenAIGenerator) Correct(ctx context.Context, req CorrectRequest) (Result, error) {
	if strings.TrimSpace(req.FailingSQL) == "" {
		return Result{}, fmt.Errorf("failing sql is required")
	}
	userPrompt := fmt.Sprintf(
		"The previous attempt failed.\n\nOriginal User Question:\n%s\n\nFaulty SQL Query:\n%s\n\nDatabase Schema (Source of Truth):\n%s\n\nError Detail:\n%s\n\nCorrected SQL Query:",
		strings.TrimSpace(req.Question),
		strings.TrimSpace(req.FailingSQL),
		req.SchemaDDL,
		strings.TrimSpace(req.ErrorDetail),
	)
	return g.chat(ctx, correctSystemPrompt, userPrompt)
}

func (g *OpenAIGenerator) chat(ctx context.Context, systemPrompt, userPrompt string) (Result, error) {
	payload := map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": g.temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("empty chat completion choices")
	}

	sql := CleanSQL(parsed.Choices[0].Message.Content)
	if sql == "" {
		return Result{}, fmt.Errorf("model returned empty SQL")
	}
	return Result{
		SQL:      sql,
		Provider: "openai-compatible",
		Model:    g.model,
	}, nil
}

// CleanSQL strips markdown fences from model output and normalizes the
// trailing semicolon.
func CleanSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.Index(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	if trimmed == "" {
		return ""
	}
	if !strings.HasSuffix(trimmed, ";") {
		trimmed += ";"
	}
	return trimmed
}
