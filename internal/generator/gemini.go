package generator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/flavumhive/hivemind/internal/config"
)

// Gemini generates content through the Google GenAI API with a model
// fallback list: when a model is throttled or missing, the next one is tried.
type Gemini struct {
	client      *genai.Client
	models      []string
	maxTokens   int
	temperature float64
}

// NewGemini builds a Gemini generator. The API key comes from the argument
// or the GEMINI_API_KEY environment variable.
func NewGemini(ctx context.Context, apiKey string, cfg config.GeneratorConfig) (*Gemini, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	models := []string{cfg.Model}
	if cfg.Model != "gemini-2.5-flash-lite" {
		models = append(models, "gemini-2.5-flash-lite")
	}
	return &Gemini{
		client:      client,
		models:      models,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// GeneratePost produces a new post body and a title derived from it.
func (g *Gemini) GeneratePost(ctx context.Context, pc PromptContext) (string, string, error) {
	where := pc.Platform
	if pc.Channel != "" {
		where = fmt.Sprintf("r/%s", pc.Channel)
	}
	bodyPrompt := fmt.Sprintf(
		"%s\n\nCreate an engaging post for %s. The post should be natural, informative, and spark discussion. Write 4-5 sentences in a conversational style.",
		pc.Persona, where)
	body, err := g.generate(ctx, bodyPrompt)
	if err != nil {
		return "", "", fmt.Errorf("generate post body: %w", err)
	}
	body = strings.ReplaceAll(body, `"`, "")

	titlePrompt := fmt.Sprintf(
		"Create a brief, engaging post title (max 300 characters) for this content:\n\n%s\n\nTitle:", body)
	title, err := g.generate(ctx, titlePrompt)
	if err != nil {
		return "", "", fmt.Errorf("generate post title: %w", err)
	}
	title = strings.TrimSpace(strings.ReplaceAll(title, `"`, ""))
	title = strings.TrimPrefix(title, "Title:")
	title = strings.TrimSpace(title)
	return title, body, nil
}

// GenerateComment produces a reply to an existing post in the persona's voice.
func (g *Gemini) GenerateComment(ctx context.Context, pc PromptContext, postTitle, postBody string) (string, error) {
	prompt := fmt.Sprintf(
		"This is your personality:\n\n%s\n\nRespond to this post:\n\nTitle: %s\n\n%s\n\nWrite a natural, engaging comment that fits your personality. Keep it concise but informative.",
		pc.Persona, postTitle, postBody)
	out, err := g.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate comment: %w", err)
	}
	return strings.ReplaceAll(out, `"`, ""), nil
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.maxTokens)
	}
	if g.temperature > 0 {
		t := float32(g.temperature)
		cfg.Temperature = &t
	}

	var lastErr error
	for _, model := range g.models {
		result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
		if err != nil {
			if isRetryableModelError(err) {
				lastErr = err
				continue
			}
			return "", err
		}
		if result != nil && len(result.Candidates) > 0 &&
			result.Candidates[0].Content != nil && len(result.Candidates[0].Content.Parts) > 0 {
			return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text), nil
		}
		lastErr = fmt.Errorf("model %s returned empty response", model)
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}

func isRetryableModelError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "exhausted", "404", "not found", "overloaded"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
