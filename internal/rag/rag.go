// Package rag is the top of the pipeline: it routes user messages by
// intent, runs retrieval and answer generation for questions, stores
// provided facts, and keeps the conversation history.
package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"knowledge-rag/internal/config"
	"knowledge-rag/internal/db"
	"knowledge-rag/internal/ingest"
	"knowledge-rag/internal/llmservice"
	"knowledge-rag/internal/models"
	"knowledge-rag/internal/retriever"
)

type RAG struct {
	engine       *retriever.Engine
	pipeline     *ingest.Pipeline
	store        *bun.DB
	chatLLM      *config.LLMConfig
	historyLimit int
}

func NewRAG(engine *retriever.Engine, pipeline *ingest.Pipeline, store *bun.DB, chatLLM *config.LLMConfig, historyLimit int) *RAG {
	return &RAG{
		engine:       engine,
		pipeline:     pipeline,
		store:        store,
		chatLLM:      chatLLM,
		historyLimit: historyLimit,
	}
}

// Response is what one handled message produces. Answer is set for
// questions, Content for everything else.
type Response struct {
	Intent  models.Intent
	Answer  *models.Answer
	Content string
}

// HandleMessage classifies a message and routes it: questions go through
// retrieval and answer generation, stated facts are stored as manual notes,
// and everything else gets a conversational reply.
func (r *RAG) HandleMessage(ctx context.Context, message string) (*Response, error) {
	history, err := db.RecentChatMessages(ctx, r.store, r.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}

	intent, err := llmservice.ClassifyIntent(ctx, r.chatLLM, message)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("intent", string(intent)).Msg("Message classified")

	var resp *Response
	switch intent {
	case models.IntentInformationRequest:
		answer, err := r.answerQuestion(ctx, message, history)
		if err != nil {
			return nil, err
		}
		resp = &Response{Intent: intent, Answer: answer, Content: answer.Answer}

	case models.IntentInformationProvision:
		result, err := r.pipeline.AddNote(ctx, message)
		if err != nil {
			return nil, fmt.Errorf("storing provided information: %w", err)
		}
		log.Info().Str("document", result.DocumentID).Int("chunks", result.Chunks).Msg("Stored provided information")
		resp = &Response{Intent: intent, Content: "Noted. I've added that to the knowledge base."}

	default:
		content, err := llmservice.Converse(ctx, r.chatLLM, message, history)
		if err != nil {
			return nil, err
		}
		resp = &Response{Intent: intent, Content: content}
	}

	if err := db.StoreChatMessage(ctx, r.store, "user", message); err != nil {
		log.Error().Err(err).Msg("Failed to store user message")
	}
	if err := db.StoreChatMessage(ctx, r.store, "assistant", resp.Content); err != nil {
		log.Error().Err(err).Msg("Failed to store assistant message")
	}
	return resp, nil
}

// Query runs retrieval and answer generation directly, bypassing intent
// classification. History is still consulted for follow-up questions.
func (r *RAG) Query(ctx context.Context, question string) (*models.Answer, error) {
	history, err := db.RecentChatMessages(ctx, r.store, r.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}
	return r.answerQuestion(ctx, question, history)
}

func (r *RAG) answerQuestion(ctx context.Context, question string, history []models.ChatMessage) (*models.Answer, error) {
	passages, err := r.engine.Retrieve(ctx, question, 0)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("passages", len(passages)).Msg("Retrieval complete")

	answer, err := llmservice.Answer(ctx, r.chatLLM, question, passages, history)
	if err != nil {
		return nil, err
	}

	if err := db.StoreEnrichments(ctx, r.store, question, *answer); err != nil {
		log.Error().Err(err).Msg("Failed to record enrichment suggestions")
	}
	return answer, nil
}
