package session

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"financial_extractor/pkg/core/llm"
	"financial_extractor/pkg/core/prompt"
	"financial_extractor/pkg/core/query"
	"financial_extractor/pkg/core/utils"
	"financial_extractor/pkg/core/validate"
	"financial_extractor/pkg/models"
)

// Ask records question in the chat log, asks the active provider and appends
// the answer. Failures are appended as assistant error messages and also
// returned. When the chat is cleared while the call is pending, the answer is
// dropped and ErrStaleAnswer returned.
func (c *Controller) Ask(ctx context.Context, question string, mode query.Mode) (models.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.ChatMessage{}, validate.New("question", "", validate.ReasonEmpty, "question must not be empty")
	}

	c.chatMu.Lock()
	c.chat = append(c.chat, models.NewChatMessage(models.SenderUser, question))
	history := slices.Clone(c.chat)
	gen := c.generation
	c.chatMu.Unlock()

	answer, err := c.answer(ctx, question, mode, history)
	if err != nil {
		answer = models.NewChatMessage(models.SenderAssistant, err.Error())
		answer.IsError = true
	}

	c.chatMu.Lock()
	defer c.chatMu.Unlock()
	if c.generation != gen {
		zap.L().Info("discarding answer for cleared chat", zap.String("mode", string(mode)))
		return answer, ErrStaleAnswer
	}
	c.chat = append(c.chat, answer)
	return answer, err
}

func (c *Controller) answer(ctx context.Context, question string, mode query.Mode, history []models.ChatMessage) (models.ChatMessage, error) {
	provider, err := c.provider()
	if err != nil {
		return models.ChatMessage{}, err
	}

	qctx, err := query.Build(query.Input{
		Mode:     mode,
		Sources:  c.registry.Snapshot(),
		Question: question,
		History:  history,
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	pt, err := c.prompts.GetPrompt(qctx.PromptID())
	if err != nil {
		return models.ChatMessage{}, err
	}
	user, err := prompt.RenderUserPrompt(pt, qctx.Variables())
	if err != nil {
		return models.ChatMessage{}, err
	}

	req := llm.Request{System: pt.SystemPrompt, Prompt: user, JSON: pt.JSON}
	resp, err := call(ctx, provider, req, provider.GenerateText)
	if err != nil {
		return models.ChatMessage{}, err
	}

	if mode == query.ModeTemplate {
		structured, err := c.normalizer.Template(resp.Text, resp.StopReason)
		if err != nil {
			return models.ChatMessage{}, err
		}
		msg := models.NewChatMessage(models.SenderAssistant, structured.Fill())
		msg.Structured = structured
		msg.HTML = renderHTML(msg.Text)
		return msg, nil
	}

	text := utils.CleanMarkdown(resp.Text)
	msg := models.NewChatMessage(models.SenderAssistant, text)
	msg.HTML = renderHTML(text)
	return msg, nil
}

func renderHTML(markdown string) string {
	html, err := utils.RenderMarkdown(markdown)
	if err != nil {
		zap.L().Debug("markdown render failed", zap.Error(err))
		return ""
	}
	return html
}

// ChatLog returns a copy of the chat log in append order.
func (c *Controller) ChatLog() []models.ChatMessage {
	c.chatMu.Lock()
	defer c.chatMu.Unlock()
	return slices.Clone(c.chat)
}

// ClearChat empties the chat log. Answers still in flight are discarded.
func (c *Controller) ClearChat() {
	c.chatMu.Lock()
	defer c.chatMu.Unlock()
	c.chat = nil
	c.generation++
}
