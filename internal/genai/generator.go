// Package genai produces the follow-up message bodies, backed by the OpenAI
// API with deterministic fallback templates. No error ever crosses this
// boundary: every operation degrades to its fallback instead of failing.
package genai

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/config"
)

const systemPrompt = "Tu es un agent de suivi client via WhatsApp."

// Generator produces message bodies for the follow-up workflow.
type Generator interface {
	// Plan returns a short numbered action plan for the follow-up.
	Plan(ctx context.Context, name, contactContext string) []string

	// FirstMessage returns the initial outreach body.
	FirstMessage(ctx context.Context, name, contactContext string) string

	// SecondMessage returns the single escalation body, distinct from the
	// first message it references.
	SecondMessage(ctx context.Context, name, firstMessage, contactContext string) string
}

// completer is the minimal LLM surface the generator needs. It exists so
// tests can exercise the fallback branch without real API calls.
type completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type openaiCompleter struct {
	client openai.Client
	model  string
}

func (c *openaiCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Client implements Generator.
type Client struct {
	completer completer
	timeout   time.Duration
	logger    *zap.Logger
}

// NewClient creates a generator backed by the OpenAI API.
func NewClient(cfg *config.GenAIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai API key must be provided")
	}

	return &Client{
		completer: &openaiCompleter{
			client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
			model:  cfg.Model,
		},
		timeout: time.Duration(cfg.Timeout) * time.Second,
		logger:  logger,
	}, nil
}

var planStepRe = regexp.MustCompile(`^\d+\.\s*`)

// Plan generates a 2-5 step action plan, or the fallback plan on any failure.
func (c *Client) Plan(ctx context.Context, name, contactContext string) []string {
	prompt := fmt.Sprintf(
		"Génère un plan d'action court pour relancer %s. Le processus est rapide : un message maintenant, et un rappel dans 20 minutes si pas de réponse.%s Retourne UNIQUEMENT une liste d'étapes numérotées, courtes et claires.",
		name, contextClause(contactContext))

	text, err := c.complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("plan generation failed, using fallback",
			zap.String("name", name),
			zap.Error(err))
		return FallbackPlan(name)
	}

	var steps []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !planStepRe.MatchString(line) {
			continue
		}
		if step := strings.TrimSpace(planStepRe.ReplaceAllString(line, "")); step != "" {
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		return FallbackPlan(name)
	}
	return steps
}

// FirstMessage generates the initial outreach body, or the fallback template
// on any failure.
func (c *Client) FirstMessage(ctx context.Context, name, contactContext string) string {
	prompt := fmt.Sprintf(
		"Génère un message court (max 160 caractères), professionnel et contextuel pour relancer %s.%s Sois amical et direct. Retourne UNIQUEMENT le message, pas d'explications.",
		name, contextClause(contactContext))

	text, err := c.complete(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		c.logger.Warn("first message generation failed, using fallback",
			zap.String("name", name),
			zap.Error(err))
		return FallbackFirstMessage(name)
	}
	return strings.TrimSpace(text)
}

// SecondMessage generates the escalation body, or the fallback template on
// any failure.
func (c *Client) SecondMessage(ctx context.Context, name, firstMessage, contactContext string) string {
	prompt := fmt.Sprintf(
		"Génère un 2e et dernier message pour %s, envoyé 20 minutes après le premier (qui est resté sans réponse). Le 1er message était: %q. Ce message doit être une dernière relance légère ou une clôture.%s Retourne UNIQUEMENT le message, pas d'explications.",
		name, firstMessage, contextClause(contactContext))

	text, err := c.complete(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		c.logger.Warn("second message generation failed, using fallback",
			zap.String("name", name),
			zap.Error(err))
		return FallbackSecondMessage(name)
	}
	return strings.TrimSpace(text)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.completer.Complete(ctx, systemPrompt, prompt)
}

func contextClause(contactContext string) string {
	if contactContext == "" {
		return ""
	}
	return " Contexte: " + contactContext + "."
}

// FallbackPlan is the deterministic plan used when generation fails.
func FallbackPlan(name string) []string {
	return []string{
		fmt.Sprintf("Initier le contact avec %s", name),
		"Présenter l'offre/service",
		"Recueillir feedback",
	}
}

// FallbackFirstMessage is the deterministic first message body used when
// generation fails.
func FallbackFirstMessage(name string) string {
	return fmt.Sprintf("Bonjour %s, nous aimerions vous recontacter. Avez-vous des questions ?", name)
}

// FallbackSecondMessage is the deterministic escalation body used when
// generation fails.
func FallbackSecondMessage(name string) string {
	return fmt.Sprintf("%s, urgent : nous avons besoin de votre retour. Veuillez répondre dès que possible.", name)
}
