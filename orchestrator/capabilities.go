package orchestrator

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidInput indicates an operation received an input of the wrong
// type for its registered capability.
var ErrInvalidInput = errors.New("orchestrator: input type is invalid for operation")

// GraphProcessor parses semantic-graph content. Consumed as an opaque,
// pure capability; the grammar itself lives outside this module.
type GraphProcessor interface {
	Parse(ctx context.Context, content string) (GraphSummary, error)
}

// GraphSummary is the result of parsing one graph document.
type GraphSummary struct {
	TripleCount int      `json:"triple_count"`
	Subjects    []string `json:"subjects"`
	Predicates  []string `json:"predicates"`
	Objects     []string `json:"objects"`
}

// TemplateRenderer renders a template against a context. Pure given its
// inputs plus the template file's contents.
type TemplateRenderer interface {
	Render(ctx context.Context, templatePath string, data map[string]any) (string, error)
}

// RenderInput is the input shape for renderer-backed operations.
type RenderInput struct {
	TemplatePath string         `json:"template_path"`
	Context      map[string]any `json:"context"`
}

// RegisterGraphProcessor exposes p as an operation taking a string of
// graph content.
func (o *Orchestrator) RegisterGraphProcessor(name string, p GraphProcessor) error {
	if p == nil {
		return ErrInvalidHandler
	}
	return o.RegisterHandler(name, func(ctx context.Context, input any) (any, error) {
		content, ok := input.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects string content, got %T", ErrInvalidInput, name, input)
		}
		return p.Parse(ctx, content)
	})
}

// RegisterTemplateRenderer exposes r as an operation taking a RenderInput.
func (o *Orchestrator) RegisterTemplateRenderer(name string, r TemplateRenderer) error {
	if r == nil {
		return ErrInvalidHandler
	}
	return o.RegisterHandler(name, func(ctx context.Context, input any) (any, error) {
		in, ok := input.(RenderInput)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects RenderInput, got %T", ErrInvalidInput, name, input)
		}
		return r.Render(ctx, in.TemplatePath, in.Context)
	})
}
