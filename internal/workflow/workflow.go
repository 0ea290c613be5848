// Package workflow runs the agentic answering loop as an explicit state
// machine: decide, retrieve, grade, then either generate an answer or
// rewrite the question and try again.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tgruber/sourceqa/internal/index"
	"github.com/tgruber/sourceqa/internal/llm"
)

// Node identifies a step of the answering workflow.
type Node int

const (
	NodeDecide Node = iota
	NodeRetrieve
	NodeGrade
	NodeGenerate
	NodeRewrite
	NodeDone
)

func (n Node) String() string {
	switch n {
	case NodeDecide:
		return "decide"
	case NodeRetrieve:
		return "retrieve"
	case NodeGrade:
		return "grade"
	case NodeGenerate:
		return "generate"
	case NodeRewrite:
		return "rewrite"
	case NodeDone:
		return "done"
	}
	return fmt.Sprintf("node(%d)", int(n))
}

// State carries the workflow data between nodes. Question holds the
// latest rewrite and drives retrieval; grading and generation always use
// OriginalQuestion.
type State struct {
	OriginalQuestion string
	Question         string
	Context          []index.Match
	Answer           string
	Rewrites         int
}

// Outcome is what a node run reports to the transition function.
type Outcome struct {
	// Direct means the decide step answered without retrieval.
	Direct bool
	// Relevant is the grade verdict.
	Relevant bool
}

// next is the pure transition function. Once the rewrite budget is spent
// a failed grade still moves to generate, so every run terminates.
func next(node Node, out Outcome, rewrites, maxRewrites int) Node {
	switch node {
	case NodeDecide:
		if out.Direct {
			return NodeDone
		}
		return NodeRetrieve
	case NodeRetrieve:
		return NodeGrade
	case NodeGrade:
		if out.Relevant || rewrites >= maxRewrites {
			return NodeGenerate
		}
		return NodeRewrite
	case NodeRewrite:
		return NodeDecide
	case NodeGenerate:
		return NodeDone
	}
	return NodeDone
}

// LanguageModel is the set of LLM operations the workflow needs.
type LanguageModel interface {
	Decide(ctx context.Context, question string) (llm.Decision, error)
	Rewrite(ctx context.Context, question string) (string, error)
	Generate(ctx context.Context, question, context string) (string, error)
}

// Retriever finds the chunks most similar to a query.
type Retriever interface {
	Query(ctx context.Context, text string, k int, threshold float64) ([]index.Match, error)
}

// DocumentGrader scores retrieved context against a question.
type DocumentGrader interface {
	Grade(ctx context.Context, question, context string) (bool, error)
}

// Result is the terminal state of a workflow run.
type Result struct {
	Answer    string
	Context   []index.Match
	Rewrites  int
	Retrieved bool
}

// Engine executes the workflow.
type Engine struct {
	model       LanguageModel
	retriever   Retriever
	grader      DocumentGrader
	maxRewrites int
	topK        int
	threshold   float64
	log         *slog.Logger
}

// Options configures an Engine.
type Options struct {
	MaxRewrites int
	TopK        int
	Threshold   float64
	Logger      *slog.Logger
}

// NewEngine creates a workflow engine.
func NewEngine(model LanguageModel, retriever Retriever, grader DocumentGrader, opts Options) *Engine {
	if opts.MaxRewrites < 0 {
		opts.MaxRewrites = 0
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		model:       model,
		retriever:   retriever,
		grader:      grader,
		maxRewrites: opts.MaxRewrites,
		topK:        opts.TopK,
		threshold:   opts.Threshold,
		log:         opts.Logger,
	}
}

// Run answers the question, walking the state machine until NodeDone.
// Any node error aborts the run.
func (e *Engine) Run(ctx context.Context, question string) (Result, error) {
	st := State{
		OriginalQuestion: question,
		Question:         question,
	}
	retrieved := false

	node := NodeDecide
	for node != NodeDone {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		out, err := e.step(ctx, node, &st)
		if err != nil {
			return Result{}, fmt.Errorf("workflow %s: %w", node, err)
		}
		if node == NodeRetrieve {
			retrieved = true
		}

		to := next(node, out, st.Rewrites, e.maxRewrites)
		e.log.Debug("workflow transition",
			"from", node.String(),
			"to", to.String(),
			"rewrites", st.Rewrites,
			"context_chunks", len(st.Context))
		node = to
	}

	return Result{
		Answer:    st.Answer,
		Context:   st.Context,
		Rewrites:  st.Rewrites,
		Retrieved: retrieved,
	}, nil
}

func (e *Engine) step(ctx context.Context, node Node, st *State) (Outcome, error) {
	switch node {
	case NodeDecide:
		decision, err := e.model.Decide(ctx, st.Question)
		if err != nil {
			return Outcome{}, err
		}
		if !decision.NeedsRetrieval {
			st.Answer = decision.Answer
			return Outcome{Direct: true}, nil
		}
		return Outcome{}, nil

	case NodeRetrieve:
		matches, err := e.retriever.Query(ctx, st.Question, e.topK, e.threshold)
		if err != nil {
			return Outcome{}, err
		}
		st.Context = matches
		return Outcome{}, nil

	case NodeGrade:
		relevant, err := e.grader.Grade(ctx, st.OriginalQuestion, joinContext(st.Context))
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Relevant: relevant}, nil

	case NodeRewrite:
		rewritten, err := e.model.Rewrite(ctx, st.OriginalQuestion)
		if err != nil {
			return Outcome{}, err
		}
		st.Question = rewritten
		st.Rewrites++
		return Outcome{}, nil

	case NodeGenerate:
		answer, err := e.model.Generate(ctx, st.OriginalQuestion, joinContext(st.Context))
		if err != nil {
			return Outcome{}, err
		}
		st.Answer = answer
		return Outcome{}, nil
	}

	return Outcome{}, fmt.Errorf("unexpected node %s", node)
}

func joinContext(matches []index.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n\n")
}
