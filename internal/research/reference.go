// Package research implements the workflow orchestrators: reference lookup
// and paper summary. Each invocation owns its own dispatcher and
// accumulator, fans out lookup handlers over a broadcast topic, blocks on
// the completion gate, and synthesizes the accumulated fragments with the
// language-model collaborator.
package research

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxos/paperscout/internal/aggregate"
	"github.com/praxos/paperscout/internal/arxiv"
	"github.com/praxos/paperscout/internal/broadcast"
	"github.com/praxos/paperscout/internal/config"
	"github.com/praxos/paperscout/internal/llm"
	"github.com/praxos/paperscout/internal/metrics"
	"github.com/praxos/paperscout/internal/prompts"
	"github.com/praxos/paperscout/internal/tracing"
)

// OutputFormat selects how a workflow result is returned.
type OutputFormat string

const (
	// FormatText returns the model's formatted text verbatim.
	FormatText OutputFormat = "text"
	// FormatStructured additionally parses the text into References.
	FormatStructured OutputFormat = "structured"
)

// gateObserver routes dispatcher outcomes into the accumulator: success
// increments the completion count exactly once, failure is recorded without
// touching it.
type gateObserver struct {
	acc *aggregate.Accumulator
}

func (g gateObserver) HandlerDone(string) { g.acc.Done() }

func (g gateObserver) HandlerFailed(_ string, err error) { g.acc.Fail(err) }

// ReferenceResult is the outcome of one reference-lookup invocation.
type ReferenceResult struct {
	// Text is the synthesized "[i] title(url);" block.
	Text string `json:"text"`
	// References is populated when FormatStructured was requested.
	References []Reference `json:"references,omitempty"`
	// Keywords are the derived sub-queries, in model order.
	Keywords []string `json:"keywords"`
	// Completed is the gate's completion count when it opened.
	Completed int `json:"completed"`
}

// ReferenceWorkflow derives search keywords from a query, fans one lookup
// handler per keyword out over a fresh topic, and synthesizes the top
// references from whatever the handlers accumulated.
type ReferenceWorkflow struct {
	llm     llm.Client
	search  arxiv.Searcher
	prompts prompts.Set
	cfg     config.WorkflowConfig
	logger  *zap.Logger
}

// NewReferenceWorkflow wires the collaborators. Zero-valued cfg fields get
// the same defaults config.Load applies.
func NewReferenceWorkflow(client llm.Client, search arxiv.Searcher, set prompts.Set, cfg config.WorkflowConfig, logger *zap.Logger) *ReferenceWorkflow {
	if cfg.GateTimeout <= 0 {
		cfg.GateTimeout = 120 * time.Second
	}
	if cfg.KeywordCount <= 0 {
		cfg.KeywordCount = 3
	}
	if cfg.ResultsPerKeyword <= 0 {
		cfg.ResultsPerKeyword = 6
	}
	if cfg.MaxReferences <= 0 {
		cfg.MaxReferences = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceWorkflow{
		llm:     client,
		search:  search,
		prompts: set,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run executes DERIVE_KEYWORDS, DISPATCH, WAIT_FOR_COMPLETION and
// SYNTHESIZE for one query. The gate requires one completion per derived
// keyword and is bounded by the configured timeout; gate errors surface as
// aggregate.ErrGateTimeout or aggregate.ErrGateFailed.
func (w *ReferenceWorkflow) Run(ctx context.Context, query string, format OutputFormat) (*ReferenceResult, error) {
	start := time.Now()
	metrics.RecordWorkflowStart("reference")
	status := "error"
	defer func() {
		metrics.RecordWorkflowCompletion("reference", status, time.Since(start).Seconds())
	}()

	ctx, span := tracing.StartSpan(ctx, "reference_workflow")
	defer span.End()

	logger := w.logger.With(zap.String("invocation_id", uuid.NewString()))

	keywords, err := w.deriveKeywords(ctx, query)
	if err != nil {
		return nil, err
	}
	logger.Info("keywords derived",
		zap.String("query", query),
		zap.Strings("keywords", keywords),
	)

	// One deadline covers dispatch and the gate wait.
	runCtx, cancel := context.WithTimeout(ctx, w.cfg.GateTimeout)
	defer cancel()

	// The dispatcher is scoped to this invocation, so the topic name does
	// not need to be unique across runs.
	const topic = "reference.lookup"
	acc := aggregate.New()
	dispatcher := broadcast.NewDispatcher(logger, broadcast.WithObserver(gateObserver{acc}))
	dispatcher.Register(topic, w.lookupHandler(acc))

	launched := 0
	for _, kw := range keywords {
		launched += dispatcher.Publish(runCtx, topic, kw)
	}
	acc.Expect(launched)

	waitStart := time.Now()
	buffer, completed, err := acc.Wait(runCtx, w.cfg.KeywordCount)
	if err != nil {
		metrics.RecordGateWait("reference", gateOutcome(err), time.Since(waitStart).Seconds())
		return nil, fmt.Errorf("reference lookup: %w", err)
	}
	metrics.RecordGateWait("reference", "ok", time.Since(waitStart).Seconds())

	text, err := w.synthesize(ctx, buffer)
	if err != nil {
		return nil, err
	}

	result := &ReferenceResult{
		Text:      text,
		Keywords:  keywords,
		Completed: completed,
	}
	if format == FormatStructured {
		refs, err := ParseReferences(text)
		if err != nil {
			return nil, err
		}
		result.References = refs
	}
	status = "ok"
	return result, nil
}

func (w *ReferenceWorkflow) deriveKeywords(ctx context.Context, query string) ([]string, error) {
	prompt := prompts.Render(w.prompts.Keywords, map[string]string{
		"query": query,
		"count": strconv.Itoa(w.cfg.KeywordCount),
	})
	resp, err := w.llm.Complete(ctx, llm.Request{Prompt: prompt, Purpose: "keywords"})
	if err != nil {
		return nil, fmt.Errorf("derive keywords: %w", err)
	}
	return ParseKeywords(resp.Text, w.cfg.KeywordCount)
}

// lookupHandler returns the per-keyword handler. It appends one formatted
// fragment per successful lookup; the dispatcher's observer turns its
// return value into exactly one Done or Fail.
func (w *ReferenceWorkflow) lookupHandler(acc *aggregate.Accumulator) broadcast.Handler {
	return func(ctx context.Context, keyword string) error {
		papers, err := w.search.Search(ctx, strings.TrimSpace(keyword), arxiv.SearchOptions{
			MaxResults: w.cfg.ResultsPerKeyword,
			Fields:     []string{arxiv.FieldEntryID, arxiv.FieldTitle, arxiv.FieldURL},
		})
		if err != nil {
			return fmt.Errorf("lookup %q: %w", keyword, err)
		}
		acc.Append(arxiv.FormatPapers(papers, "\n"))
		return nil
	}
}

func (w *ReferenceWorkflow) synthesize(ctx context.Context, fragments string) (string, error) {
	prompt := prompts.Render(w.prompts.Synthesis, map[string]string{
		"fragments":      fragments,
		"max_references": strconv.Itoa(w.cfg.MaxReferences),
	})
	resp, err := w.llm.Complete(ctx, llm.Request{Prompt: prompt, Purpose: "synthesis"})
	if err != nil {
		return "", fmt.Errorf("synthesize references: %w", err)
	}
	return resp.Text, nil
}

func gateOutcome(err error) string {
	switch {
	case errors.Is(err, aggregate.ErrGateFailed):
		return "failed"
	case errors.Is(err, aggregate.ErrGateTimeout):
		return "timeout"
	default:
		return "error"
	}
}
