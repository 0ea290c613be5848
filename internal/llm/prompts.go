package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	decideSystemPrompt = "You are an assistant for question-answering tasks backed by a document index.\n" +
		"Decide whether the user's question needs documents retrieved from the index to answer it well.\n" +
		"If it does, reply with exactly the single word RETRIEVE.\n" +
		"If it is small talk or you can answer it fully without any documents, reply with the answer directly."

	rewritePrompt = "Look at the input and try to reason about the underlying semantic intent / meaning.\n" +
		"Here is the initial question:" +
		"\n ------- \n" +
		"%s" +
		"\n ------- \n" +
		"Formulate an improved question:"

	generatePrompt = "You are an assistant for question-answering tasks. " +
		"Use the following pieces of retrieved context to answer the question. " +
		"If the answer is not found directly in the retrieved context, say that the context provided is not relevant to answer the question. " +
		"Use three sentences maximum and keep the answer concise.\n" +
		"Question: %s \n" +
		"Context: %s"
)

const retrieveSentinel = "RETRIEVE"

// Decision is the outcome of the first workflow step: either the model
// wants documents retrieved, or it answered the question directly.
type Decision struct {
	NeedsRetrieval bool
	Answer         string
}

// Decide asks the model whether the question needs retrieval. The model
// either signals retrieval or answers directly. The instructions go in
// the system message so the question arrives unmixed with them.
func (m *Model) Decide(ctx context.Context, question string) (Decision, error) {
	out, err := m.CompletionWithSystem(ctx, decideSystemPrompt, question)
	if err != nil {
		return Decision{}, err
	}
	return parseDecision(out), nil
}

// Rewrite reformulates a question to better match indexed content.
func (m *Model) Rewrite(ctx context.Context, question string) (string, error) {
	out, err := m.Completion(ctx, fmt.Sprintf(rewritePrompt, question))
	if err != nil {
		return "", err
	}
	rewritten := strings.TrimSpace(out)
	if rewritten == "" {
		return question, nil
	}
	return rewritten, nil
}

// Generate answers the question from retrieved context.
func (m *Model) Generate(ctx context.Context, question, context string) (string, error) {
	out, err := m.Completion(ctx, fmt.Sprintf(generatePrompt, question, context))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func parseDecision(response string) Decision {
	trimmed := strings.TrimSpace(response)
	first, _, _ := strings.Cut(trimmed, "\n")
	first = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(first), "."))
	if strings.EqualFold(first, retrieveSentinel) {
		return Decision{NeedsRetrieval: true}
	}
	return Decision{Answer: trimmed}
}
