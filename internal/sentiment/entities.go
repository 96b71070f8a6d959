package sentiment

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fanpulse/fanpulse/internal/models"
)

const (
	openAIModel         = openai.GPT3Dot5Turbo1106
	openAIRetryAttempts = 5
)

// EntityExtractor pulls named entities (artists, songs, venues, people) out
// of feedback texts, keyed by source id.
type EntityExtractor interface {
	ExtractBatch(ctx context.Context, items []models.FeedbackItem) (map[string][]string, error)
}

// chatCompleter is the slice of the OpenAI client the extractor needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type OpenAIExtractor struct {
	client chatCompleter
}

func NewOpenAIExtractor(client chatCompleter) *OpenAIExtractor {
	return &OpenAIExtractor{client: client}
}

const entitySystemMessage = `
You will receive listener comments about music videos as a JSON array of
objects with "id" and "text" fields.

Extract the named entities each comment mentions: artist names, song or album
titles, other musicians, producers, venues, and events. Ignore generic words,
emotions, and pronouns.

Respond only with a valid JSON object. Do not include any additional text or
commentary.

The response object must have this shape:

{"results": [{"id": "<the id you were given>", "entities": ["<entity>", ...]}]}

Include every id you were given, with an empty entities array when a comment
mentions nothing notable.`

func (e *OpenAIExtractor) ExtractBatch(ctx context.Context, items []models.FeedbackItem) (map[string][]string, error) {
	if len(items) == 0 {
		return map[string][]string{}, nil
	}

	requests := make([]models.EntityRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, models.EntityRequest{
			ID:   item.SourceID,
			Text: item.Text,
		})
	}
	payload, err := json.Marshal(requests)
	if err != nil {
		return nil, err
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: entitySystemMessage},
		{Role: openai.ChatMessageRoleUser, Content: string(payload)},
	}

	var completionErr error
	var resp openai.ChatCompletionResponse

	for i := 0; i < openAIRetryAttempts; i++ {
		start := time.Now()
		resp, completionErr = e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    openAIModel,
			Messages: messages,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if completionErr == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("[EntityExtractor] Failed to get a response from OpenAI, retrying...",
			slog.String("error", completionErr.Error()),
			slog.Int("attempt", i+1),
			slog.Duration("elapsed", time.Since(start)))
	}
	if completionErr != nil {
		slog.Warn("[EntityExtractor] Giving up on OpenAI request",
			slog.Int("attempts", openAIRetryAttempts),
			slog.String("error", completionErr.Error()))
		return nil, completionErr
	}

	if len(resp.Choices) == 0 {
		return map[string][]string{}, nil
	}

	cleaned := cleanOpenAIResponse(resp.Choices[0].Message.Content)

	var parsed models.EntityExtractionResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		slog.Error("[EntityExtractor] Failed to unmarshal entity response",
			slog.String("error", err.Error()),
			slog.String("cleaned_response", cleaned))
		return nil, err
	}

	entities := make(map[string][]string, len(parsed.Results))
	for _, result := range parsed.Results {
		entities[result.ID] = dedupeEntities(result.Entities)
	}
	return entities, nil
}

// dedupeEntities enforces set semantics without disturbing first-seen order.
func dedupeEntities(entities []string) []string {
	seen := make(map[string]struct{}, len(entities))
	out := make([]string, 0, len(entities))
	for _, entity := range entities {
		entity = strings.TrimSpace(entity)
		if entity == "" {
			continue
		}
		key := strings.ToLower(entity)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, entity)
	}
	return out
}

func cleanOpenAIResponse(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "\n")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "\n")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(cleaned)

	if !(strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}")) {
		snippet := cleaned
		if len(snippet) > 100 {
			snippet = snippet[:100] + "..."
		}
		slog.Error("[EntityExtractor] OpenAI response does not appear to be a JSON object after cleaning",
			slog.String("cleaned_response_snippet", snippet))
		return ""
	}

	return cleaned
}
