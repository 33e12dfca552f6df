package classifier

import "regexp"

// Kind labels the failure class an error belongs to
type Kind string

const (
	// KindTransient failures resolve on their own; retry without changes
	KindTransient Kind = "transient"
	// KindFixable failures need a corrected prompt; retry with context
	KindFixable Kind = "fixable"
	// KindStructural failures will not improve with retries; escalate
	KindStructural Kind = "structural"
	// KindUnknown covers everything the table does not recognise
	KindUnknown Kind = "unknown"
)

// Action is the recommended response to a classified error
type Action string

const (
	ActionRetry            Action = "retry"
	ActionRetryWithContext Action = "retry-with-context"
	ActionEscalate         Action = "escalate"
	ActionFail             Action = "fail"
)

// Pattern is one row of the classification table. The table is data: adding
// a pattern must never require touching control flow.
type Pattern struct {
	ID          string
	Regex       *regexp.Regexp
	Kind        Kind
	Action      Action
	Enrichment  string
	Occurrences int
	SuccessRate float64
}

// seedPatterns returns the built-in classification table. Patterns are
// scanned in declared order; the first match wins.
func seedPatterns() []*Pattern {
	return []*Pattern{
		{
			ID:     "timeout",
			Regex:  regexp.MustCompile(`(?i)timeout|timed out|ETIMEDOUT|deadline exceeded`),
			Kind:   KindTransient,
			Action: ActionRetry,
		},
		{
			ID:     "rate-limit",
			Regex:  regexp.MustCompile(`(?i)rate limit|too many requests|429|quota exceeded`),
			Kind:   KindTransient,
			Action: ActionRetry,
		},
		{
			ID:         "file-not-found",
			Regex:      regexp.MustCompile(`(?i)ENOENT|no such file|file not found`),
			Kind:       KindFixable,
			Action:     ActionRetryWithContext,
			Enrichment: "The file mentioned was not found. Verify the path before reading, or create the file first.",
		},
		{
			ID:         "syntax-error",
			Regex:      regexp.MustCompile(`(?i)syntax error|unexpected token|unexpected end of (?:file|input)`),
			Kind:       KindFixable,
			Action:     ActionRetryWithContext,
			Enrichment: "The previous attempt produced a syntax error. Check that the generated code parses before returning it.",
		},
		{
			ID:         "type-error",
			Regex:      regexp.MustCompile(`(?i)type error|is not assignable|cannot use .+ as .+ value|mismatched types`),
			Kind:       KindFixable,
			Action:     ActionRetryWithContext,
			Enrichment: "The previous attempt produced a type error. Confirm the declared types line up before returning code.",
		},
		{
			ID:     "permission-denied",
			Regex:  regexp.MustCompile(`(?i)EACCES|EPERM|permission denied|access denied`),
			Kind:   KindStructural,
			Action: ActionEscalate,
		},
		{
			ID:     "network-error",
			Regex:  regexp.MustCompile(`(?i)ECONNREFUSED|ECONNRESET|EHOSTUNREACH|network error|socket hang up`),
			Kind:   KindTransient,
			Action: ActionRetry,
		},
		{
			ID:     "memory-error",
			Regex:  regexp.MustCompile(`(?i)out of memory|ENOMEM|heap limit|allocation failed`),
			Kind:   KindStructural,
			Action: ActionEscalate,
		},
		{
			ID:         "missing-dependency",
			Regex:      regexp.MustCompile(`(?i)cannot find (?:module|package)|module not found|MODULE_NOT_FOUND|missing dependency`),
			Kind:       KindFixable,
			Action:     ActionRetryWithContext,
			Enrichment: "A required dependency was missing. Declare or install it before using the import.",
		},
	}
}

// heuristicTransient matches errors that self-describe as retryable
var heuristicTransient = regexp.MustCompile(`(?i)temporary|retry|again`)
