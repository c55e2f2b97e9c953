// Package bedrock resolves operator queries with a Bedrock-hosted model.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

const (
	DefaultModelID   = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 500
)

type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type Resolver struct {
	Client   InvokeModelAPI
	ModelID  string
	Registry *fleet.Registry
}

func New(ctx context.Context, region, modelID string) (*Resolver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &Resolver{Client: bedrockruntime.NewFromConfig(awsCfg), ModelID: modelID}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	Messages         []message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (r *Resolver) Resolve(ctx context.Context, query string, history []fleet.AuditRecord) (ports.Intent, error) {
	body, err := json.Marshal(request{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages:         []message{{Role: "user", Content: r.prompt(query, history)}},
	})
	if err != nil {
		return ports.Intent{}, err
	}
	out, err := r.Client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(r.modelID()),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return ports.Intent{}, fmt.Errorf("invoke model: %w", err)
	}
	var resp response
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return ports.Intent{}, fmt.Errorf("decode model reply: %w", err)
	}
	if len(resp.Content) == 0 {
		return ports.Intent{}, errors.New("model reply has no content")
	}
	return parseIntent(resp.Content[0].Text)
}

func (r *Resolver) modelID() string {
	if r.ModelID == "" {
		return DefaultModelID
	}
	return r.ModelID
}

func (r *Resolver) prompt(query string, history []fleet.AuditRecord) string {
	reg := r.Registry
	if reg == nil {
		reg = fleet.DefaultRegistry()
	}
	var b strings.Builder
	b.WriteString("Parse this EC2 request and extract action and parameters.\n\nAvailable actions:\n")
	for _, a := range reg.Actions() {
		names := make([]string, 0, len(a.Params))
		for _, p := range a.Params {
			n := p.Name
			if p.Required {
				n += "*"
			}
			names = append(names, n)
		}
		fmt.Fprintf(&b, "- %s(%s): %s\n", a.Name, strings.Join(names, ", "), a.Summary)
	}
	if len(history) > 0 {
		b.WriteString("\nThe operator's recent requests, newest first:\n")
		for _, rec := range history {
			fmt.Fprintf(&b, "- %s %s -> %s\n", rec.Action, rec.Parameters, rec.Status)
		}
	}
	fmt.Fprintf(&b, "\nUser Query: %s\n\n", query)
	b.WriteString(`Return ONLY JSON: {"action": "...", "parameters": {...}}. Use "help" as the action when no listed action fits.`)
	return b.String()
}

// parseIntent accepts the model text with or without a markdown code fence.
func parseIntent(text string) (ports.Intent, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var intent ports.Intent
	if err := json.Unmarshal([]byte(text), &intent); err != nil {
		return ports.Intent{}, fmt.Errorf("decode intent %q: %w", text, err)
	}
	if intent.Action == "" || strings.EqualFold(intent.Action, "help") {
		return ports.Intent{}, ports.ErrNoIntent
	}
	if intent.Parameters == nil {
		intent.Parameters = map[string]any{}
	}
	return intent, nil
}
