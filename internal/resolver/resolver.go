// Package resolver scores task output for the auto-approval decision.
// Scoring is heuristic and deliberately conservative: the resolver can
// only ever recommend approval, never perform it.
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conductorhq/conductor/internal/types"
)

// Score a gate must reach, by risk level, before auto-approval is allowed.
// Critical risk is never auto-approved regardless of score.
var autoApproveThresholds = map[types.RiskLevel]int{
	types.RiskLow:    70,
	types.RiskMedium: 80,
	types.RiskHigh:   90,
}

var (
	errorIndicators    = regexp.MustCompile(`(?i)\berror\b|\bfailed\b|\bexception\b|\bcannot\b|\bunable\b`)
	fencedCodeBlock    = regexp.MustCompile("(?s)```.*```")
	unfinishedMarkers  = regexp.MustCompile(`\b(TODO|FIXME|HACK|XXX)\b`)
	secretIndicators   = regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*['"][^'"]{8,}['"]`)
	testStructure      = regexp.MustCompile(`(?i)\b(test|describe|it\(|func Test|assert)\b`)
	testAssertions     = regexp.MustCompile(`(?i)\b(assert|expect|require|should|Errorf|Fatalf)\b`)
	vulnerabilityTalk  = regexp.MustCompile(`(?i)\b(vulnerab|injection|xss|csrf|cve|insecure|exposure|privilege)\b`)
	recommendationTalk = regexp.MustCompile(`(?i)\b(recommend|should|must|fix|mitigat|upgrade|patch)\b`)
	docHeaders         = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	docExamples        = regexp.MustCompile("(?i)example|```|`[^`]+`")
	dangerousCommands  = regexp.MustCompile(`(?i)delete\s+production|drop\s+(table|database)|rm\s+-rf\s+/`)
	secretMutation     = regexp.MustCompile(`(?i)(rotate|revoke|update|change).{0,20}(credential|secret|api[_-]?key|password)`)
)

// Resolver assesses task output quality
type Resolver struct{}

// New creates a resolver
func New() *Resolver {
	return &Resolver{}
}

// Assess scores the given output for the task and decides whether it is
// eligible for auto-approval. A nil or empty output is an immediate
// critical failure.
func (r *Resolver) Assess(task *types.Task, output *types.TaskIO) *types.QualityAssessment {
	if output == nil || strings.TrimSpace(output.Result) == "" {
		return &types.QualityAssessment{
			Score:          0,
			Risk:           types.RiskCritical,
			CanAutoApprove: false,
			Reasons:        []string{"No output produced"},
			Checks: []types.QualityCheck{
				{Name: "completeness", Passed: false, Score: 0, Details: "output is empty"},
			},
		}
	}

	result := output.Result
	checks := []types.QualityCheck{completenessCheck(result)}
	checks = append(checks, typeChecks(task.TaskType, result)...)

	assessment := &types.QualityAssessment{
		Score:  meanScore(checks),
		Risk:   riskFor(task, result),
		Checks: checks,
	}

	threshold, eligible := autoApproveThresholds[assessment.Risk]
	assessment.CanAutoApprove = eligible && assessment.Score >= threshold

	if !assessment.CanAutoApprove {
		assessment.Reasons = refusalReasons(assessment, threshold, eligible)
	}
	return assessment
}

func completenessCheck(result string) types.QualityCheck {
	check := types.QualityCheck{Name: "completeness"}
	switch {
	case len(result) < 50:
		check.Score = 20
		check.Details = "output is very short"
	case errorIndicators.MatchString(result):
		check.Score = 40
		check.Details = "output mentions errors or failure"
	default:
		check.Score = 100
		check.Passed = true
	}
	return check
}

// typeChecks returns the checks specific to the task's type. Types with
// no dedicated checks get a single neutral one so the mean is defined.
func typeChecks(taskType types.TaskType, result string) []types.QualityCheck {
	switch taskType {
	case types.TypeCodeGeneration, types.TypeRefactoring, types.TypeBugFix:
		return []types.QualityCheck{
			binaryCheck("has-code-block", fencedCodeBlock.MatchString(result), 100, 30, "no fenced code block in output"),
			binaryCheck("no-unfinished-markers", !unfinishedMarkers.MatchString(result), 100, 60, "output contains TODO/FIXME markers"),
			binaryCheck("no-hardcoded-secrets", !secretIndicators.MatchString(result), 100, 0, "output appears to embed a secret"),
		}
	case types.TypeTesting:
		return []types.QualityCheck{
			binaryCheck("has-test-structure", testStructure.MatchString(result), 100, 40, "no test structure in output"),
			binaryCheck("has-assertions", testAssertions.MatchString(result), 100, 30, "no assertions in output"),
		}
	case types.TypeSecurityAudit:
		return []types.QualityCheck{
			binaryCheck("covers-vulnerabilities", vulnerabilityTalk.MatchString(result), 100, 50, "no vulnerability findings mentioned"),
			binaryCheck("has-recommendations", recommendationTalk.MatchString(result), 100, 60, "no remediation recommendations"),
		}
	case types.TypeDocumentation:
		return []types.QualityCheck{
			binaryCheck("has-structure", docHeaders.MatchString(result), 100, 50, "no section headers in output"),
			binaryCheck("has-examples", docExamples.MatchString(result), 100, 70, "no examples in output"),
		}
	default:
		return []types.QualityCheck{
			{Name: "generic", Passed: true, Score: 80},
		}
	}
}

func binaryCheck(name string, passed bool, passScore, failScore int, failDetails string) types.QualityCheck {
	check := types.QualityCheck{Name: name, Passed: passed}
	if passed {
		check.Score = passScore
	} else {
		check.Score = failScore
		check.Details = failDetails
	}
	return check
}

// riskFor grades how dangerous auto-approving this output would be.
// Content-based escalations beat the type baseline.
func riskFor(task *types.Task, result string) types.RiskLevel {
	if dangerousCommands.MatchString(result) {
		return types.RiskCritical
	}
	if task.TaskType == types.TypeDeployment || task.TaskType == types.TypeSecurityAudit {
		return types.RiskHigh
	}
	if secretMutation.MatchString(result) {
		return types.RiskHigh
	}
	if task.TaskType == types.TypeCodeGeneration || task.TaskType == types.TypeRefactoring {
		return types.RiskMedium
	}
	return types.RiskLow
}

func meanScore(checks []types.QualityCheck) int {
	if len(checks) == 0 {
		return 50
	}
	total := 0
	for _, c := range checks {
		total += c.Score
	}
	return total / len(checks)
}

func refusalReasons(a *types.QualityAssessment, threshold int, eligible bool) []string {
	var reasons []string
	if !eligible {
		reasons = append(reasons, fmt.Sprintf("risk level %s is never auto-approved", a.Risk))
	} else if a.Score < threshold {
		reasons = append(reasons, fmt.Sprintf("score %d below threshold %d for %s risk", a.Score, threshold, a.Risk))
	}
	for _, c := range a.Checks {
		if !c.Passed && c.Details != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", c.Name, c.Details))
		}
	}
	return reasons
}
