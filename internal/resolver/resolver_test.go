package resolver

import (
	"strings"
	"testing"

	"github.com/conductorhq/conductor/internal/types"
)

func makeTask(taskType types.TaskType) *types.Task {
	return &types.Task{
		ID:            "task-1",
		ProjectID:     "proj",
		Title:         "test task",
		TaskType:      taskType,
		AgentPersona:  types.PersonaDeveloper,
		AutonomyLevel: types.AutonomyApprovalGates,
		Status:        types.StatusWaitingApproval,
	}
}

func TestAssessNilOutput(t *testing.T) {
	r := New()

	a := r.Assess(makeTask(types.TypeCodeGeneration), nil)
	if a.Score != 0 {
		t.Errorf("score = %d, want 0", a.Score)
	}
	if a.Risk != types.RiskCritical {
		t.Errorf("risk = %s, want critical", a.Risk)
	}
	if a.CanAutoApprove {
		t.Error("empty output must not be auto-approvable")
	}
	if len(a.Reasons) == 0 || a.Reasons[0] != "No output produced" {
		t.Errorf("reasons = %v", a.Reasons)
	}
}

func TestAssessEmptyResultTreatedAsNil(t *testing.T) {
	r := New()

	a := r.Assess(makeTask(types.TypeTesting), &types.TaskIO{Result: "   \n"})
	if a.Risk != types.RiskCritical || a.Score != 0 {
		t.Errorf("got score %d risk %s for whitespace output", a.Score, a.Risk)
	}
}

func TestAssessCleanCodeGeneration(t *testing.T) {
	r := New()

	output := &types.TaskIO{Result: "Here is the implementation you asked for, complete and tested:\n\n```go\nfunc Add(a, b int) int { return a + b }\n```\nAll cases are covered."}
	a := r.Assess(makeTask(types.TypeCodeGeneration), output)

	if a.Risk != types.RiskMedium {
		t.Errorf("risk = %s, want medium", a.Risk)
	}
	if a.Score < 80 {
		t.Errorf("score = %d, want >= 80 for clean output", a.Score)
	}
	if !a.CanAutoApprove {
		t.Errorf("clean medium-risk output should auto-approve, reasons: %v", a.Reasons)
	}
}

func TestAssessUnfinishedCodeBlocksApproval(t *testing.T) {
	r := New()

	output := &types.TaskIO{Result: "Partial work so far. TODO implement the parser and wire the configuration loader in the next pass."}
	a := r.Assess(makeTask(types.TypeCodeGeneration), output)

	if a.CanAutoApprove {
		t.Error("output with TODO markers must not auto-approve")
	}
	found := false
	for _, reason := range a.Reasons {
		if strings.Contains(reason, "TODO/FIXME") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons missing marker explanation: %v", a.Reasons)
	}
}

func TestAssessHardcodedSecretTanksScore(t *testing.T) {
	r := New()

	output := &types.TaskIO{Result: "Done, here is the complete client wired to the backend service:\n\n```js\nconst apiKey = \"sk-abcdef1234567890\";\n```\n"}
	a := r.Assess(makeTask(types.TypeCodeGeneration), output)

	if a.CanAutoApprove {
		t.Error("output embedding a secret must not auto-approve")
	}
	for _, c := range a.Checks {
		if c.Name == "no-hardcoded-secrets" && c.Score != 0 {
			t.Errorf("secret check score = %d, want 0", c.Score)
		}
	}
}

func TestAssessDeploymentIsHighRisk(t *testing.T) {
	r := New()

	output := &types.TaskIO{Result: strings.Repeat("Deployment steps completed successfully without incident. ", 3)}
	a := r.Assess(makeTask(types.TypeDeployment), output)

	if a.Risk != types.RiskHigh {
		t.Errorf("risk = %s, want high", a.Risk)
	}
}

func TestAssessDangerousCommandIsCritical(t *testing.T) {
	r := New()

	output := &types.TaskIO{Result: "Cleanup finished. Ran DROP TABLE users and recreated the schema from scratch as requested."}
	a := r.Assess(makeTask(types.TypeDecomposition), output)

	if a.Risk != types.RiskCritical {
		t.Fatalf("risk = %s, want critical", a.Risk)
	}
	if a.CanAutoApprove {
		t.Error("critical risk must never auto-approve")
	}
	found := false
	for _, reason := range a.Reasons {
		if strings.Contains(reason, "never auto-approved") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons missing risk explanation: %v", a.Reasons)
	}
}

func TestAssessTestingOutput(t *testing.T) {
	r := New()

	good := &types.TaskIO{Result: "Wrote the suite. func TestParse covers the grammar and asserts every branch with require.Equal on the parsed tree."}
	a := r.Assess(makeTask(types.TypeTesting), good)
	if a.Risk != types.RiskLow {
		t.Errorf("risk = %s, want low", a.Risk)
	}
	if !a.CanAutoApprove {
		t.Errorf("good low-risk test output should auto-approve, reasons: %v", a.Reasons)
	}

	prose := &types.TaskIO{Result: "I thought about the testing problem at length and believe the module is probably fine as written today."}
	b := r.Assess(makeTask(types.TypeTesting), prose)
	if b.CanAutoApprove {
		t.Error("prose with no test structure should not auto-approve")
	}
}

func TestAssessSecurityAuditNeedsFindings(t *testing.T) {
	r := New()

	good := &types.TaskIO{Result: "Audit complete. Found a SQL injection vulnerability in the login handler. Recommend parameterised queries and an upgrade of the driver."}
	a := r.Assess(makeTask(types.TypeSecurityAudit), good)
	if a.Risk != types.RiskHigh {
		t.Errorf("risk = %s, want high", a.Risk)
	}
	if a.Score < 90 {
		t.Errorf("score = %d for a thorough audit", a.Score)
	}

	thin := &types.TaskIO{Result: "Looked around the codebase for a while and nothing in particular stood out to me during the review."}
	b := r.Assess(makeTask(types.TypeSecurityAudit), thin)
	if b.CanAutoApprove {
		t.Error("audit without findings or recommendations should not auto-approve")
	}
}

func TestAssessDocumentation(t *testing.T) {
	r := New()

	output := &types.TaskIO{Result: "# Usage\n\nInstall the binary and run it. Example:\n\n```sh\nconductor run\n```\n\n## Configuration\n\nSee the config file reference."}
	a := r.Assess(makeTask(types.TypeDocumentation), output)
	if a.Risk != types.RiskLow {
		t.Errorf("risk = %s, want low", a.Risk)
	}
	if !a.CanAutoApprove {
		t.Errorf("structured docs should auto-approve, reasons: %v", a.Reasons)
	}
}

func TestAssessErrorMentionLowersCompleteness(t *testing.T) {
	r := New()

	output := &types.TaskIO{Result: "The build failed twice and I was unable to resolve the linker problem despite several attempts at a workaround today."}
	a := r.Assess(makeTask(types.TypeTechDecision), output)

	for _, c := range a.Checks {
		if c.Name == "completeness" && c.Score != 40 {
			t.Errorf("completeness score = %d, want 40", c.Score)
		}
	}
}
