// Package classifier maps raw error text from failed task attempts to a
// failure class and a recommended recovery action. Classification is a
// first-match scan over a data-driven pattern table; outcomes of retries
// feed back into per-pattern success statistics.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/conductorhq/conductor/internal/storage"
	"github.com/conductorhq/conductor/internal/types"
)

// Retry budgets by failure class. Transient failures get more headroom
// because waiting usually fixes them.
const (
	transientMaxRetries = 5
	defaultMaxRetries   = 3
)

// Analysis is the result of classifying one error
type Analysis struct {
	Kind              Kind
	Retryable         bool
	Action            Action
	ContextEnrichment string
	MaxRetries        int
	PatternID         string
}

// Classifier matches error text against a pattern table and tracks how
// often retries after each pattern succeed.
type Classifier struct {
	mu       sync.Mutex
	patterns []*Pattern
	store    storage.Storage
}

// New creates a classifier seeded with the built-in pattern table.
// store may be nil; statistics are then kept in memory only.
func New(store storage.Storage) *Classifier {
	return &Classifier{
		patterns: seedPatterns(),
		store:    store,
	}
}

// Classify maps error text to an analysis. retryCount and maxRetries are
// the task's current counters and only influence the retryable decision
// for unknown errors; matched patterns carry their own budget.
func (c *Classifier) Classify(errText string, retryCount, maxRetries int) *Analysis {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.patterns {
		if !p.Regex.MatchString(errText) {
			continue
		}
		p.Occurrences++

		analysis := &Analysis{
			Kind:              p.Kind,
			Action:            p.Action,
			ContextEnrichment: p.Enrichment,
			MaxRetries:        defaultMaxRetries,
			PatternID:         p.ID,
			Retryable:         p.Action != ActionEscalate && p.Action != ActionFail,
		}
		if p.Kind == KindTransient {
			analysis.MaxRetries = transientMaxRetries
		}
		return analysis
	}

	if heuristicTransient.MatchString(errText) {
		return &Analysis{
			Kind:       KindTransient,
			Retryable:  true,
			Action:     ActionRetry,
			MaxRetries: transientMaxRetries,
		}
	}

	// Unknown errors get one cautious retry path: re-prompt with the raw
	// error text attached so the agent can react to it.
	return &Analysis{
		Kind:              KindUnknown,
		Retryable:         retryCount < maxRetries,
		Action:            ActionRetryWithContext,
		ContextEnrichment: "Previous attempt failed with: " + truncate(errText, 200),
		MaxRetries:        defaultMaxRetries,
	}
}

// RecordOutcome feeds back whether a retry after the given error text
// succeeded. The first matching pattern's success rate is updated as a
// running mean; the observation is persisted when a store is configured.
func (c *Classifier) RecordOutcome(ctx context.Context, taskID, errText string, success bool) error {
	c.mu.Lock()
	var matched *Pattern
	for _, p := range c.patterns {
		if p.Regex.MatchString(errText) {
			matched = p
			break
		}
	}
	var patternID string
	var occurrences int
	var successRate float64
	if matched != nil {
		x := 0.0
		if success {
			x = 1.0
		}
		matched.SuccessRate = (matched.SuccessRate*float64(matched.Occurrences) + x) / float64(matched.Occurrences+1)
		matched.Occurrences++
		patternID = matched.ID
		occurrences = matched.Occurrences
		successRate = matched.SuccessRate
	}
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}

	obs := &types.ErrorObservation{
		TaskID:    taskID,
		PatternID: patternID,
		ErrorText: truncate(errText, 500),
		Success:   success,
	}
	if err := c.store.RecordErrorObservation(ctx, obs); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	if matched != nil {
		if err := c.store.SaveErrorPattern(ctx, patternID, occurrences, successRate); err != nil {
			return fmt.Errorf("failed to persist pattern stats: %w", err)
		}
	}
	return nil
}

// EnrichInput produces the input bag for a retry attempt. The original
// input is never mutated; callers store the returned copy on the task.
func (c *Classifier) EnrichInput(input *types.TaskIO, analysis *Analysis, errText string) *types.TaskIO {
	enriched := input.Clone()
	if enriched == nil {
		enriched = &types.TaskIO{}
	}

	if analysis.ContextEnrichment != "" {
		if enriched.Context != "" {
			enriched.Context += "\n\n" + analysis.ContextEnrichment
		} else {
			enriched.Context = analysis.ContextEnrichment
		}
	}
	if errText != "" {
		enriched.PreviousErrors = append(enriched.PreviousErrors, truncate(errText, 500))
	}
	if analysis.Action == ActionRetryWithContext {
		enriched.RetryHint = "Address the error noted in the context before repeating the original approach."
	}
	return enriched
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
