package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

const promptTemplate = `Today is %s. Extract task details from this text: %q.
Return a JSON object with title, description, priority (low, medium, or high), and dueDate (ISO 8601 format string).
If priority is not mentioned, infer it or default to medium.
If due date is not mentioned, set it to tomorrow's date.
Keep the title concise.`

// GeminiParser разбирает текст одним запросом к Gemini с фиксированной схемой ответа
type GeminiParser struct {
	client *genai.Client
	model  string
	now    func() time.Time
}

// NewGeminiParser создаёт клиента Gemini API. В cfg достаточно APIKey,
// HTTPClient и HTTPOptions.BaseURL подменяются в тестах.
func NewGeminiParser(ctx context.Context, model string, cfg genai.ClientConfig) (*GeminiParser, error) {
	cfg.Backend = genai.BackendGeminiAPI
	client, err := genai.NewClient(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("создание клиента gemini: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiParser{client: client, model: model, now: time.Now}, nil
}

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":       {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
		"priority":    {Type: genai.TypeString, Enum: []string{"low", "medium", "high"}},
		"dueDate":     {Type: genai.TypeString},
	},
	Required: []string{"title", "description", "priority", "dueDate"},
}

type rawSuggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueDate     string `json:"dueDate"`
}

func (p *GeminiParser) Parse(ctx context.Context, text string) (*Suggestion, error) {
	start := time.Now()

	prompt := fmt.Sprintf(promptTemplate, p.now().Format(time.DateOnly), text)
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("запрос к gemini: %w", err)
	}

	logger.Debug("Assist: Ответ gemini получен",
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)))

	body := responseText(resp)
	if body == "" {
		return nil, fmt.Errorf("%w: пустой ответ", ErrMalformed)
	}

	var raw rawSuggestion
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	due, err := task.ParseDueDate(raw.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &Suggestion{
		Title:       strings.TrimSpace(raw.Title),
		Description: raw.Description,
		Priority:    task.Priority(strings.ToLower(strings.TrimSpace(raw.Priority))),
		DueDate:     due,
	}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
