// Package grader decides whether retrieved documents are relevant to a
// question.
package grader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const gradePrompt = "You are a grader assessing relevance of a retrieved document to a user question. \n " +
	"Here is the retrieved document: \n\n %s \n\n" +
	"Here is the user question: %s \n" +
	"If the document contains keyword(s) or semantic meaning related to the user question, grade it as relevant. \n" +
	"Give a binary score 'yes' or 'no' score to indicate whether the document is relevant to the question. " +
	"Answer with only the single word 'yes' or 'no'."

// CompletionModel is the single LLM operation the grader needs.
type CompletionModel interface {
	Completion(ctx context.Context, prompt string) (string, error)
}

// Grader scores retrieved context against the original question.
type Grader struct {
	model CompletionModel
	log   *slog.Logger
}

// New creates a Grader.
func New(model CompletionModel, log *slog.Logger) *Grader {
	if log == nil {
		log = slog.Default()
	}
	return &Grader{model: model, log: log}
}

// Grade returns true only when the model answers exactly "yes". Anything
// else, including malformed output, counts as not relevant.
func (g *Grader) Grade(ctx context.Context, question, context string) (bool, error) {
	out, err := g.model.Completion(ctx, fmt.Sprintf(gradePrompt, context, question))
	if err != nil {
		return false, fmt.Errorf("grade documents: %w", err)
	}

	score := strings.ToLower(strings.TrimSpace(out))
	relevant := score == "yes"
	if !relevant && score != "no" {
		g.log.Warn("grader returned unexpected score, treating as not relevant", "score", out)
	}
	return relevant, nil
}
