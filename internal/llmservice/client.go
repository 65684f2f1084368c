// Package llmservice holds the chat-model calls: structured answer
// generation over retrieved passages, intent classification, and small
// conversational replies.
package llmservice

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"knowledge-rag/internal/config"
	"knowledge-rag/internal/models"
)

var thinkTagRe = regexp.MustCompile(models.ThinkTag)

// GenerateContent calls the configured chat model.
func GenerateContent(ctx context.Context, llmConfig *config.LLMConfig, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Generating content")

	var (
		model llms.Model
		err   error
	)
	switch llmConfig.Provider {
	case "ollama":
		model, err = ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	default:
		model, err = openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	}
	if err != nil {
		return nil, err
	}

	return model.GenerateContent(ctx, messages)
}

// Answer generates a structured answer to a question from the retrieved
// passages and the recent conversation. Passages are grouped per source
// document so the model can cite filenames.
func Answer(ctx context.Context, llmConfig *config.LLMConfig, question string, passages []models.RankedPassage, history []models.ChatMessage) (*models.Answer, error) {
	prompt := fmt.Sprintf(models.AnswerPromptTemplate, formatContext(passages), question)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.AnswerSystemPrompt),
	}
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	raw, err := completionText(ctx, llmConfig, messages)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	var answer models.Answer
	if err := json.Unmarshal([]byte(extractJSON(raw)), &answer); err != nil {
		// A model that ignored the JSON instruction still gave an answer;
		// keep it at low confidence rather than failing the question.
		log.Warn().Err(err).Msg("Answer was not valid JSON, using raw text")
		return &models.Answer{Answer: raw, Confidence: "low"}, nil
	}
	return &answer, nil
}

// ClassifyIntent labels a user message as a question, a statement of fact,
// or plain conversation. Unparseable model output falls back to
// conversational, the least destructive route.
func ClassifyIntent(ctx context.Context, llmConfig *config.LLMConfig, message string) (models.Intent, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.ClassifySystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(models.ClassifyPromptTemplate, message)),
	}

	raw, err := completionText(ctx, llmConfig, messages)
	if err != nil {
		return "", fmt.Errorf("classifying intent: %w", err)
	}

	var parsed struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		log.Warn().Err(err).Str("raw", raw).Msg("Intent response was not valid JSON")
		return models.IntentConversational, nil
	}

	switch models.Intent(parsed.Intent) {
	case models.IntentInformationRequest, models.IntentInformationProvision, models.IntentConversational:
		return models.Intent(parsed.Intent), nil
	default:
		return models.IntentConversational, nil
	}
}

// Converse produces a short reply for messages with no retrieval intent.
func Converse(ctx context.Context, llmConfig *config.LLMConfig, message string, history []models.ChatMessage) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "You are a concise, friendly assistant for a document knowledge base. Reply briefly."),
	}
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, message))

	return completionText(ctx, llmConfig, messages)
}

func completionText(ctx context.Context, llmConfig *config.LLMConfig, messages []llms.MessageContent) (string, error) {
	resp, err := GenerateContent(ctx, llmConfig, messages)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	content := thinkTagRe.ReplaceAllString(resp.Choices[0].Content, "")
	return strings.TrimSpace(content), nil
}

// extractJSON trims anything around the outermost JSON object, including
// markdown code fences some models wrap responses in.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

func historyMessages(history []models.ChatMessage) []llms.MessageContent {
	var messages []llms.MessageContent
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, msg.Content))
	}
	return messages
}

// formatContext groups passages by document, numbered in first-seen order,
// with page and section provenance inline.
func formatContext(passages []models.RankedPassage) string {
	if len(passages) == 0 {
		return models.EmptyContextNotice
	}

	var order []string
	byDoc := map[string][]models.RankedPassage{}
	for _, p := range passages {
		if _, seen := byDoc[p.DocumentID]; !seen {
			order = append(order, p.DocumentID)
		}
		byDoc[p.DocumentID] = append(byDoc[p.DocumentID], p)
	}

	var b strings.Builder
	for i, docID := range order {
		group := byDoc[docID]
		fmt.Fprintf(&b, "[Document %d: %s]\n", i+1, group[0].Filename)
		for _, p := range group {
			if p.PageStart > 0 {
				if p.PageEnd > p.PageStart {
					fmt.Fprintf(&b, "(pages %d-%d) ", p.PageStart, p.PageEnd)
				} else {
					fmt.Fprintf(&b, "(page %d) ", p.PageStart)
				}
			}
			if len(p.HeaderPath) > 0 {
				fmt.Fprintf(&b, "(section: %s) ", strings.Join(p.HeaderPath, " > "))
			}
			b.WriteString(p.Text + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
