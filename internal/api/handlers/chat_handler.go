package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minatolabs/kbchat/internal/api/middlewares"
	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb"
	"github.com/minatolabs/kbchat/internal/models"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

const systemPrompt = `You are a helpful company assistant. Answer using only
the knowledge provided below. If the answer is not in the knowledge, say you
do not have that information. Answer in the language of the question.`

const noKnowledgeReply = "No knowledge base has been configured yet. Please ask an administrator to upload documents first."

const analysisPrompt = `Classify the user message below.
Category must be one of: hr, it, operations, sales, product, general.
Sentiment must be one of: positive, negative, neutral.
Respond with only JSON in the form {"category": "...", "sentiment": "..."}.`

const (
	defaultCategory  = "general"
	defaultSentiment = "neutral"
)

type ChatHandler struct {
	dbclient  core.DbClient
	assembler *kb.Assembler
	llm       core.LLMProvider
	log       *logger.Logger
}

func NewChatHandler(db core.DbClient, asm *kb.Assembler, llm core.LLMProvider, log *logger.Logger) *ChatHandler {
	return &ChatHandler{dbclient: db, assembler: asm, llm: llm, log: log.With("component", "chat")}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Answer         string `json:"answer"`
	SourceDocument string `json:"source_document,omitempty"`
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middlewares.UserFrom(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	if err := h.checkQuestionAllowed(ctx, user); err != nil {
		writeError(w, err)
		return
	}

	knowledge := h.assembler.BuildContext(user.TenantID, user.Role == models.RoleSuperAdmin)
	if knowledge == kb.NoActiveKnowledge {
		h.logChat(ctx, user, req.Message, noKnowledgeReply, defaultCategory, defaultSentiment)
		writeJSON(w, http.StatusOK, chatResponse{Answer: noKnowledgeReply})
		return
	}

	userPrompt := fmt.Sprintf("Knowledge:\n%s\n\nQuestion: %s", knowledge, req.Message)
	answer, err := h.llm.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		writeError(w, err)
		return
	}

	category, sentiment := analyzeMessage(ctx, h.llm, req.Message)
	h.logChat(ctx, user, req.Message, answer, category, sentiment)
	if err := h.dbclient.IncrementUsage(ctx, user.ID, models.CounterQuestions); err != nil {
		h.log.Warn("question count failed", "user", user.ID, "err", err)
	}

	writeJSON(w, http.StatusOK, chatResponse{Answer: answer})
}

func (h *ChatHandler) checkQuestionAllowed(ctx context.Context, user *models.User) error {
	limits, err := h.dbclient.GetUsageLimits(ctx, user.ID)
	if err != nil {
		return nil // unmetered user
	}
	if limits.IsUnlimited {
		return nil
	}
	if limits.QuestionsUsed >= limits.QuestionsLimit {
		return fmt.Errorf("question limit %d reached: %w", limits.QuestionsLimit, core.ErrPermission)
	}
	return nil
}

// analyzeMessage classifies the question with a second generation call so the
// admin history can be grouped by topic and mood. Any failure falls back to
// the defaults; a chat answer never fails because its classification did.
func analyzeMessage(ctx context.Context, llm core.LLMProvider, message string) (category, sentiment string) {
	out, err := llm.Generate(ctx, analysisPrompt, message)
	if err != nil {
		return defaultCategory, defaultSentiment
	}
	return parseAnalysis(out)
}

// jsonFenceRe pulls the payload out of a markdown code fence, which models
// frequently wrap JSON answers in despite instructions.
var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func parseAnalysis(out string) (category, sentiment string) {
	payload := strings.TrimSpace(out)
	if m := jsonFenceRe.FindStringSubmatch(out); m != nil {
		payload = m[1]
	}
	var parsed struct {
		Category  string `json:"category"`
		Sentiment string `json:"sentiment"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil || parsed.Category == "" {
		return defaultCategory, defaultSentiment
	}
	if parsed.Sentiment == "" {
		parsed.Sentiment = defaultSentiment
	}
	return strings.ToLower(parsed.Category), strings.ToLower(parsed.Sentiment)
}

// logChat records the exchange for the admin history view.
func (h *ChatHandler) logChat(ctx context.Context, user *models.User, message, answer, category, sentiment string) {
	entry := &models.ChatLog{
		ID:          uuid.NewString(),
		UserMessage: message,
		BotResponse: answer,
		Category:    category,
		Sentiment:   sentiment,
		EmployeeID:  user.ID,
		TenantID:    user.TenantID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.dbclient.InsertChatLog(ctx, entry); err != nil {
		h.log.Warn("chat log insert failed", "user", user.ID, "err", err)
	}
}
