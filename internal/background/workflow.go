package background

import (
	"context"
	"strings"

	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/internal/logging"
	"github.com/balizero/agentcore/internal/memory"
)

// CollectiveMemoryWorkflow runs the multi-step consolidation pipeline from
// spec §4.7, modeled as a fixed sequence of named states over
// memory.Subsystem's existing public surface rather than a general graph
// executor — the step set is closed and does not branch.
type CollectiveMemoryWorkflow struct {
	mem *memory.Subsystem
	log logging.Logger
}

// NewCollectiveMemoryWorkflow builds a workflow bound to mem.
func NewCollectiveMemoryWorkflow(mem *memory.Subsystem, log logging.Logger) *CollectiveMemoryWorkflow {
	if log == nil {
		log = logging.Nop{}
	}
	return &CollectiveMemoryWorkflow{mem: mem, log: log}
}

// workflowState carries data threaded between the pipeline's named steps.
type workflowState struct {
	query             string
	userID            string
	userMessage       string
	assistantResponse string

	existingMemories []*domain.CollectiveFact
	profileUpdates   *memory.ProcessResult
	stored           []*memory.ContributionResult
}

// Run executes the pipeline: query -> participants -> existing_memories ->
// relationships_to_update -> profile_updates -> consolidation_actions ->
// memory_to_store.
func (w *CollectiveMemoryWorkflow) Run(ctx context.Context, p CollectiveMemoryWorkflowPayload) error {
	st := &workflowState{
		query:             p.Query,
		userID:            p.UserID,
		userMessage:       p.UserMessage,
		assistantResponse: p.AssistantResponse,
	}

	w.stepQuery(st)
	w.stepParticipants(st)
	if err := w.stepExistingMemories(ctx, st); err != nil {
		return err
	}
	w.stepRelationshipsToUpdate(st)
	if err := w.stepProfileUpdates(ctx, st); err != nil {
		return err
	}
	candidates := w.stepConsolidationActions(st)
	return w.stepMemoryToStore(ctx, st, candidates)
}

// stepQuery normalizes the seed query by trimming surrounding whitespace;
// no other rewriting is done.
func (w *CollectiveMemoryWorkflow) stepQuery(st *workflowState) {
	st.query = strings.TrimSpace(st.query)
}

// stepParticipants identifies which users are party to this turn. Group
// conversations are a future extension; today the participant set is
// always just the one user who sent the message.
func (w *CollectiveMemoryWorkflow) stepParticipants(st *workflowState) {
	// single-participant turns only, for now.
}

// stepExistingMemories loads collective facts already relevant to the
// query, so consolidation can dedup against them instead of re-deriving
// facts the community already confirmed.
func (w *CollectiveMemoryWorkflow) stepExistingMemories(ctx context.Context, st *workflowState) error {
	if st.query == "" {
		return nil
	}
	facts, err := w.mem.GetRelevantCollectiveContext(ctx, st.query, "", 10, 0)
	if err != nil {
		w.log.Warn("background: collective memory lookup failed", logging.F("error", err.Error()))
		return nil
	}
	st.existingMemories = facts
	return nil
}

// stepRelationshipsToUpdate is the relationships state of the workflow. It
// does nothing: no existing fact is confirmed or refuted by a turn, and
// existing facts are left untouched.
func (w *CollectiveMemoryWorkflow) stepRelationshipsToUpdate(st *workflowState) {
	// stepConsolidationActions only checks new content against
	// st.existingMemories for duplicates.
}

// stepProfileUpdates lets memory.Subsystem extract and persist any
// per-user profile facts implied by this turn.
func (w *CollectiveMemoryWorkflow) stepProfileUpdates(ctx context.Context, st *workflowState) error {
	result, err := w.mem.ProcessConversation(ctx, st.userID, st.userMessage, st.assistantResponse)
	if err != nil {
		w.log.Warn("background: profile update failed", logging.F("error", err.Error()))
		return nil
	}
	st.profileUpdates = result
	return nil
}

// consolidationCandidate is a fact distilled from this turn, awaiting a
// decision on whether to contribute it to the collective pool.
type consolidationCandidate struct {
	content  string
	category domain.CollectiveCategory
}

// stepConsolidationActions decides which facts from this turn are
// candidates for collective contribution. ProcessConversation already
// persisted the turn's per-user profile facts; a turn only promotes to a
// collective candidate when it actually extracted something AND the
// resulting summary isn't already present near-verbatim in
// st.existingMemories — AddCollectiveContribution's own content-hash dedup
// is the authoritative second line of defense.
func (w *CollectiveMemoryWorkflow) stepConsolidationActions(st *workflowState) []consolidationCandidate {
	if st.profileUpdates == nil || st.profileUpdates.FactsExtracted == 0 {
		return nil
	}
	content := strings.TrimSpace(st.assistantResponse)
	if content == "" || w.alreadyKnown(st, content) {
		return nil
	}
	return []consolidationCandidate{{content: content, category: domain.CategoryGeneral}}
}

func (w *CollectiveMemoryWorkflow) alreadyKnown(st *workflowState, content string) bool {
	for _, existing := range st.existingMemories {
		if strings.EqualFold(strings.TrimSpace(existing.Content), strings.TrimSpace(content)) {
			return true
		}
	}
	return false
}

// stepMemoryToStore submits each surviving candidate for collective
// contribution; partial failures are logged and do not abort the batch.
func (w *CollectiveMemoryWorkflow) stepMemoryToStore(ctx context.Context, st *workflowState, candidates []consolidationCandidate) error {
	for _, c := range candidates {
		result, err := w.mem.AddCollectiveContribution(ctx, st.userID, c.content, c.category, nil)
		if err != nil {
			w.log.Warn("background: collective contribution failed", logging.F("error", err.Error()))
			continue
		}
		st.stored = append(st.stored, result)
	}
	return nil
}
