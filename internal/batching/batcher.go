package batching

import (
	"errors"
	"fmt"

	"github.com/orugallu/diagtranslate/internal/record"
)

// Batch is one request group. Membership is fixed at creation and
// preserves input record order.
type Batch struct {
	ID        string
	MemberIDs []string
}

// Limits bounds the token cost of a single batch.
type Limits struct {
	// TokenBudget is the total per-request token ceiling, prompt and
	// estimated output included.
	TokenBudget int
	// PromptOverhead is the fixed token cost of the system prompt.
	PromptOverhead int
	// OutputRatio estimates output tokens as a multiple of input tokens.
	OutputRatio float64
}

// Partition greedily packs records into batches while the running estimate
// stays within the budget. A record whose own cost exceeds the budget is
// still placed alone in its own batch; no record is ever dropped and no
// batch is empty.
func Partition(records []record.Record, limits Limits, estimate TokenEstimator) ([]Batch, error) {
	if limits.TokenBudget <= 0 {
		return nil, errors.New("token budget must be > 0")
	}
	if limits.OutputRatio <= 0 {
		return nil, errors.New("output ratio must be > 0")
	}
	if estimate == nil {
		return nil, errors.New("token estimator is required")
	}
	if len(records) == 0 {
		return nil, nil
	}

	var batches []Batch
	current := make([]string, 0, 64)
	running := limits.PromptOverhead

	flush := func() {
		if len(current) == 0 {
			return
		}
		batches = append(batches, Batch{
			ID:        fmt.Sprintf("batch-%04d", len(batches)+1),
			MemberIDs: current,
		})
		current = make([]string, 0, 64)
		running = limits.PromptOverhead
	}

	for _, rec := range records {
		cost := recordCost(rec, limits.OutputRatio, estimate)
		if running+cost > limits.TokenBudget && len(current) > 0 {
			flush()
		}
		current = append(current, rec.ID)
		running += cost
	}
	flush()

	return batches, nil
}

// recordCost is the estimated token cost of one record: its prompt line
// plus the expected output at the configured ratio.
func recordCost(rec record.Record, ratio float64, estimate TokenEstimator) int {
	line := fmt.Sprintf("%s. %s\n", rec.ID, rec.Text)
	lineTokens := estimate(line)
	return lineTokens + int(float64(lineTokens)*ratio)
}
