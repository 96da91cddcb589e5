// Package llm answers assistant chat messages for the reference backend.
// The bundled provider is an offline keyword matcher over a small legal
// knowledge base; Provider keeps room for a hosted model.
package llm

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Provider answers one chat message.
type Provider interface {
	Reply(ctx context.Context, message string) (string, error)
}

// Topic is a knowledge base entry: the reply given when a message mentions
// one of its keywords.
type Topic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Response string   `yaml:"response"`
}

// KnowledgeBase is everything the keyword provider can say.
type KnowledgeBase struct {
	Greeting string   `yaml:"greeting"`
	Topics   []Topic  `yaml:"topics"`
	Defaults []string `yaml:"defaults"`
}

//go:embed knowledge.yaml
var defaultKnowledge []byte

// DefaultKnowledgeBase returns the built-in knowledge base.
func DefaultKnowledgeBase() (KnowledgeBase, error) {
	var kb KnowledgeBase
	if err := yaml.Unmarshal(defaultKnowledge, &kb); err != nil {
		return KnowledgeBase{}, fmt.Errorf("parse knowledge base: %w", err)
	}
	if len(kb.Defaults) == 0 {
		return KnowledgeBase{}, fmt.Errorf("knowledge base has no default replies")
	}
	return kb, nil
}
