package research

import (
	"context"
	"fmt"
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

// summarySections is the number of handlers the summary fan-out registers
// on its topic, and therefore the gate's required completion count.
const summarySections = 3

// Section markers delimiting each fragment in the summary buffer. Callers
// may rely on all three appearing, not on their relative order.
const (
	opinionMarker    = "\n--- key insights ---\n"
	referencesMarker = "\n--- references ---\n"
	directionsMarker = "\n--- future directions ---\n"
)

// SummaryResult is the outcome of one summary invocation.
type SummaryResult struct {
	// Text is the paper metadata followed by the three section fragments
	// in arrival order.
	Text string `json:"text"`
	// Completed is the gate's completion count when it opened.
	Completed int `json:"completed"`
}

// SummaryWorkflow fetches one paper's metadata, then runs three handlers on
// a single shared topic: a key-insights opinion, a references block (a
// sub-invocation of the reference workflow), and future directions.
type SummaryWorkflow struct {
	llm     llm.Client
	search  arxiv.Searcher
	refs    *ReferenceWorkflow
	prompts prompts.Set
	cfg     config.WorkflowConfig
	logger  *zap.Logger
}

// NewSummaryWorkflow wires the collaborators and the reference sub-workflow.
func NewSummaryWorkflow(client llm.Client, search arxiv.Searcher, refs *ReferenceWorkflow, set prompts.Set, cfg config.WorkflowConfig, logger *zap.Logger) *SummaryWorkflow {
	if cfg.GateTimeout <= 0 {
		cfg.GateTimeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryWorkflow{
		llm:     client,
		search:  search,
		refs:    refs,
		prompts: set,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run executes the summary fan-out for one query (a paper title or arXiv
// id). All three handlers receive the same published input (the fetched
// paper metadata) and the gate requires all three to complete.
func (w *SummaryWorkflow) Run(ctx context.Context, query string) (*SummaryResult, error) {
	start := time.Now()
	metrics.RecordWorkflowStart("summary")
	status := "error"
	defer func() {
		metrics.RecordWorkflowCompletion("summary", status, time.Since(start).Seconds())
	}()

	ctx, span := tracing.StartSpan(ctx, "summary_workflow")
	defer span.End()

	logger := w.logger.With(zap.String("invocation_id", uuid.NewString()))

	papers, err := w.search.Search(ctx, query, arxiv.SearchOptions{
		MaxResults: 1,
		Fields:     []string{arxiv.FieldTitle, arxiv.FieldSummary},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch paper metadata: %w", err)
	}
	if len(papers) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoLookupResults, query)
	}
	metadata := arxiv.FormatPapers(papers, "\n")

	runCtx, cancel := context.WithTimeout(ctx, w.cfg.GateTimeout)
	defer cancel()

	// The buffer starts with the paper metadata; the three fragments
	// arrive behind it in completion order.
	acc := aggregate.New()
	acc.Append(metadata)

	const topic = "summary"
	dispatcher := broadcast.NewDispatcher(logger, broadcast.WithObserver(gateObserver{acc}))
	dispatcher.Register(topic, w.opinionHandler(acc))
	dispatcher.Register(topic, w.referencesHandler(acc))
	dispatcher.Register(topic, w.directionsHandler(acc))

	launched := dispatcher.Publish(runCtx, topic, metadata)
	acc.Expect(launched)

	waitStart := time.Now()
	text, completed, err := acc.Wait(runCtx, summarySections)
	if err != nil {
		metrics.RecordGateWait("summary", gateOutcome(err), time.Since(waitStart).Seconds())
		return nil, fmt.Errorf("summary: %w", err)
	}
	metrics.RecordGateWait("summary", "ok", time.Since(waitStart).Seconds())

	status = "ok"
	return &SummaryResult{Text: text, Completed: completed}, nil
}

func (w *SummaryWorkflow) opinionHandler(acc *aggregate.Accumulator) broadcast.Handler {
	return func(ctx context.Context, summary string) error {
		prompt := prompts.Render(w.prompts.Opinion, map[string]string{"summary": summary})
		resp, err := w.llm.Complete(ctx, llm.Request{Prompt: prompt, Purpose: "opinion"})
		if err != nil {
			return fmt.Errorf("opinion: %w", err)
		}
		acc.Append(opinionMarker + resp.Text + "\n")
		return nil
	}
}

// referencesHandler re-enters the coordination core: the reference
// sub-workflow registers and publishes on its own dispatcher, so nothing
// leaks into this invocation's topic.
func (w *SummaryWorkflow) referencesHandler(acc *aggregate.Accumulator) broadcast.Handler {
	return func(ctx context.Context, summary string) error {
		result, err := w.refs.Run(ctx, summary, FormatText)
		if err != nil {
			return fmt.Errorf("references: %w", err)
		}
		acc.Append(referencesMarker + result.Text + "\n")
		return nil
	}
}

func (w *SummaryWorkflow) directionsHandler(acc *aggregate.Accumulator) broadcast.Handler {
	return func(ctx context.Context, summary string) error {
		prompt := prompts.Render(w.prompts.FutureDirections, map[string]string{"summary": summary})
		resp, err := w.llm.Complete(ctx, llm.Request{Prompt: prompt, Purpose: "directions"})
		if err != nil {
			return fmt.Errorf("future directions: %w", err)
		}
		acc.Append(directionsMarker + resp.Text + "\n")
		return nil
	}
}
