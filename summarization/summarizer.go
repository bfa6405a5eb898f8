package summarization

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	maxReportsForSummary = 50
	maxPromptLength      = 15000 // rough character limit for the prompt
	defaultTimeout       = 20 * time.Second
)

// AlertContext is what the model sees for one alert.
type AlertContext struct {
	AlertID      string
	Title        string
	Symptoms     []string
	Descriptions []string
}

type Summarizer struct {
	client  *openai.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewSummarizer(client *openai.Client, logger *zap.Logger) *Summarizer {
	return &Summarizer{client: client, timeout: defaultTimeout, logger: logger}
}

// Narrate requests one summary per alert concurrently and returns the ones
// that succeeded, keyed by alert id. Failures are logged and left out.
func (s *Summarizer) Narrate(ctx context.Context, alerts []AlertContext) map[string]string {
	out := make(map[string]string, len(alerts))
	if len(alerts) == 0 {
		return out
	}
	s.logger.Info("Starting alert narratives", zap.Int("alerts", len(alerts)))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := range alerts {
		wg.Add(1)
		go func(a AlertContext) {
			defer wg.Done()

			text := combineDescriptions(a.Descriptions)
			if text == "" {
				s.logger.Debug("No report text for alert, skipping narrative", zap.String("alert_id", a.AlertID))
				return
			}

			callCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			summary, err := s.callOpenAISummary(callCtx, a, text)
			if err != nil {
				s.logger.Warn("Failed to get alert narrative", zap.String("alert_id", a.AlertID), zap.Error(err))
				return
			}

			mu.Lock()
			out[a.AlertID] = summary
			mu.Unlock()
		}(alerts[i])
	}
	wg.Wait()

	s.logger.Info("Alert narratives finished", zap.Int("generated", len(out)))
	return out
}

func combineDescriptions(descriptions []string) string {
	var kept []string
	for _, d := range descriptions {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		kept = append(kept, d)
		if len(kept) >= maxReportsForSummary {
			break
		}
	}
	combined := strings.Join(kept, "\n---\n")
	if len(combined) > maxPromptLength {
		cut := maxPromptLength
		for cut > 0 && !utf8.RuneStart(combined[cut]) {
			cut--
		}
		combined = combined[:cut]
	}
	return combined
}

func (s *Summarizer) callOpenAISummary(ctx context.Context, a AlertContext, reportText string) (string, error) {
	symptoms := "unspecified symptoms"
	if len(a.Symptoms) > 0 {
		symptoms = strings.Join(a.Symptoms, ", ")
	}
	prompt := fmt.Sprintf("The following are symptom reports from a suspected disease cluster (%s) with dominant symptoms: %s. Summarize what the reports describe, including onset, affected groups and anything unusual. Ignore reports that look unrelated. Provide a concise summary (2-3 sentences maximum):\n\n---\n%s\n---\n\nSummary:", a.Title, symptoms, reportText)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4oMini,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an assistant that summarizes public health symptom reports for outbreak responders concisely.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   150,
			N:           1,
			Temperature: 0.5,
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai chat completion error: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai returned empty response or choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
