package training

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/knowbot/ai"
	"github.com/poiesic/knowbot/core"
)

const (
	promptSampleSize = 6
	maxQuickPrompts  = 4
	maxPromptRunes   = 120
)

const quickPromptsPrompt = `You write starter questions for a website chat assistant.

Read the excerpts below and suggest up to 4 short questions a visitor could ask that the excerpts answer.

Output ONLY a JSON array of strings. Do not include any preamble or explanation. Start your response with [ and end with ].

Rules:
- Each question is at most 10 words and ends with a question mark.
- Ask about the business: products, services, prices, hours, contact, policies.
- Do not invent facts that are not in the excerpts.

Example:
["What are your opening hours?", "Do you offer free shipping?"]`

// bestEffort runs fn and logs its error. Panics are recovered and logged too.
func bestEffort(logger *slog.Logger, what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("best effort step panicked", "step", what, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		logger.Warn("best effort step failed", "step", what, "err", err)
	}
}

// suggestQuickPrompts asks the LLM for starter questions based on a sample
// of the chunks just created, and stores them on the bot.
func (o *Orchestrator) suggestQuickPrompts(ctx context.Context, bot *core.Bot, created []core.ID) error {
	chunks, err := o.chunks.GetChunks(ctx, bot.Id, sample(created, promptSampleSize)...)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	excerpts := make([]string, len(chunks))
	for i, c := range chunks {
		excerpts[i] = c.Content
	}
	reply, err := o.completer.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: quickPromptsPrompt,
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: strings.Join(excerpts, "\n\n---\n\n")}},
		MaxTokens:    200,
		Temperature:  0.5,
	})
	if err != nil {
		return err
	}

	var suggested []string
	if err := ai.ParseJSONReply(reply, &suggested); err != nil {
		return fmt.Errorf("unusable quick prompt reply: %w", err)
	}

	prompts := make([]string, 0, maxQuickPrompts)
	for _, p := range suggested {
		p = strings.TrimSpace(p)
		if p == "" || len([]rune(p)) > maxPromptRunes {
			continue
		}
		prompts = append(prompts, p)
		if len(prompts) == maxQuickPrompts {
			break
		}
	}
	if len(prompts) == 0 {
		return nil
	}

	// Reload so settings changed during the run are not overwritten.
	current, err := o.bots.GetBot(ctx, bot.Id)
	if err != nil {
		return err
	}
	if len(current.QuickPrompts) > 0 {
		return nil
	}
	current.QuickPrompts = prompts
	if _, err := o.bots.UpdateBot(ctx, current); err != nil {
		return err
	}
	o.logger.Info("suggested quick prompts", "bot", bot.Id, "prompts", len(prompts))
	return nil
}

// sample picks up to n ids spread evenly across ids.
func sample(ids []core.ID, n int) []core.ID {
	if len(ids) <= n {
		return ids
	}
	picked := make([]core.ID, n)
	for i := range n {
		picked[i] = ids[i*len(ids)/n]
	}
	return picked
}
