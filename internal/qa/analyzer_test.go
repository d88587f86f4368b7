package qa_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"webinar2ebook/internal/evidence"
	"webinar2ebook/internal/prompts"
	"webinar2ebook/internal/qa"
	"webinar2ebook/internal/services"
	"webinar2ebook/internal/testsupport"
)

const cleanScores = `{"rubric_scores":{"structure":90,"clarity":85,"faithfulness":88,"repetition":95,"completeness":92},"issues":[]}`

func TestAnalyzeProducesReport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeLLM(cleanScores)
	analyzer := qa.NewAnalyzer(fake, cfg, nil)

	draft := "## Pricing\n\nThe speaker walked through the March price change.\n\n## Retention\n\nCustomers stayed loyal through the transition period."
	report, err := analyzer.Analyze(context.Background(), qa.Input{
		Draft: draft,
		Mode:  prompts.ModeEssay,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if report.DraftHash != qa.DraftHash(draft) {
		t.Fatal("report not keyed by draft hash")
	}
	if report.RubricScores.Structure != 90 || report.RubricScores.Clarity != 85 {
		t.Fatalf("unexpected scores: %#v", report.RubricScores)
	}
	if report.OverallScore < 1 || report.OverallScore > 100 {
		t.Fatalf("overall score out of range: %d", report.OverallScore)
	}
	if report.TotalIssueCount != 0 || report.Truncated {
		t.Fatalf("unexpected issues: %#v", report)
	}
	if recorded := fake.Prompts(); len(recorded) != 1 || !recorded[0].JSONResponse {
		t.Fatalf("analysis call must request a JSON response, got %#v", recorded)
	}
}

func TestAnalyzeReusesReportForUnchangedDraft(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeLLM(cleanScores)
	analyzer := qa.NewAnalyzer(fake, cfg, nil)

	draft := "## Only Chapter\n\nBody."
	first, err := analyzer.Analyze(context.Background(), qa.Input{Draft: draft, Mode: prompts.ModeEssay})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	calls := fake.Calls()

	second, err := analyzer.Analyze(context.Background(), qa.Input{Draft: draft, Mode: prompts.ModeEssay, Previous: first})
	if err != nil {
		t.Fatalf("second Analyze failed: %v", err)
	}
	if second != first {
		t.Fatal("expected previous report to be reused")
	}
	if fake.Calls() != calls {
		t.Fatal("unchanged draft must not trigger another model call")
	}
}

func TestAnalyzeRechecksConstraintsAuthoritatively(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeLLM(cleanScores)
	analyzer := qa.NewAnalyzer(fake, cfg, nil)

	draft := "## Action Steps\n\n1. You should do this every day."
	report, err := analyzer.Analyze(context.Background(), qa.Input{
		Draft: draft,
		Mode:  prompts.ModeInterview,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	var foundCritical bool
	for _, issue := range report.Issues {
		if issue.IssueType == "forbidden_heading" && issue.Severity == qa.SeverityCritical {
			foundCritical = true
		}
	}
	if !foundCritical {
		t.Fatalf("expected forbidden_heading critical issue, got %#v", report.Issues)
	}

	// The same draft in essay mode carries no constraint issues.
	essayReport, err := analyzer.Analyze(context.Background(), qa.Input{Draft: draft, Mode: prompts.ModeEssay})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	for _, issue := range essayReport.Issues {
		if issue.IssueType == "forbidden_heading" {
			t.Fatal("essay mode must not carry interview constraints")
		}
	}
}

func TestAnalyzeCapsIssues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.QA.MaxIssues = 2

	var issues []string
	for i := 0; i < 5; i++ {
		issues = append(issues, `{"severity":"info","issue_type":"style","chapter_index":0,"heading":"A","location":"A","message":"m","suggestion":"s"}`)
	}
	response := `{"rubric_scores":{"structure":80,"clarity":80,"faithfulness":80,"repetition":80,"completeness":80},"issues":[` + strings.Join(issues, ",") + `]}`

	analyzer := qa.NewAnalyzer(testsupport.NewFakeLLM(response), cfg, nil)
	report, err := analyzer.Analyze(context.Background(), qa.Input{Draft: "## A\n\nBody.", Mode: prompts.ModeEssay})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(report.Issues) != 2 || !report.Truncated || report.TotalIssueCount != 5 {
		t.Fatalf("unexpected capping: len=%d truncated=%v total=%d", len(report.Issues), report.Truncated, report.TotalIssueCount)
	}
}

func TestAnalyzeTracesEvidenceByChapterTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	analyzer := qa.NewAnalyzer(testsupport.NewFakeLLM(cleanScores), cfg, nil)

	// The first planned chapter was skipped, so Beta is the second heading in
	// the draft but the third chapter in the evidence map. Each chapter's
	// prose traces to its own entries and to nothing else.
	draft := "## Alpha\n\nThe alpine pricing workshop covered subscription tiers and annual billing discounts.\n\n" +
		"## Beta\n\nBeta testers reported onboarding friction and abandoned carts at the payment step."
	evidenceMap := &evidence.Map{Chapters: []evidence.ChapterEvidence{
		{ChapterIndex: 0, Title: "Welcome", Skipped: true, SkipReason: "no transcript coverage"},
		{ChapterIndex: 1, Title: "Alpha", Entries: []evidence.Entry{{
			Claim:   "The alpine pricing workshop covered subscription tiers and annual billing discounts.",
			Support: []evidence.Quote{{Text: "we walked through subscription tiers and annual billing discounts"}},
		}}},
		{ChapterIndex: 2, Title: "Beta", Entries: []evidence.Entry{{
			Claim:   "Beta testers reported onboarding friction and abandoned carts at the payment step.",
			Support: []evidence.Quote{{Text: "testers hit onboarding friction and abandoned carts at payment"}},
		}}},
	}}

	report, err := analyzer.Analyze(context.Background(), qa.Input{
		Draft:       draft,
		Mode:        prompts.ModeEssay,
		EvidenceMap: evidenceMap,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	for _, issue := range report.Issues {
		if issue.IssueType == "ungrounded_content" {
			t.Fatalf("chapter %q wrongly flagged as ungrounded", issue.Heading)
		}
	}
}

func TestAnalyzeLowersRepetitionForDuplicatedChapters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	analyzer := qa.NewAnalyzer(testsupport.NewFakeLLM(cleanScores), cfg, nil)

	body := "The speaker explained the pricing change and its effect on retention in detail."
	draft := "## One\n\n" + body + "\n\n## Two\n\n" + body
	report, err := analyzer.Analyze(context.Background(), qa.Input{Draft: draft, Mode: prompts.ModeEssay})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if report.RubricScores.Repetition >= 95 {
		t.Fatalf("expected repetition score to drop below model score, got %d", report.RubricScores.Repetition)
	}
}

func TestAnalyzeEmptyDraft(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	analyzer := qa.NewAnalyzer(testsupport.NewFakeLLM(cleanScores), cfg, nil)
	if _, err := analyzer.Analyze(context.Background(), qa.Input{Draft: "  "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReportEncodeDecode(t *testing.T) {
	report := &qa.Report{
		DraftHash:       "hash",
		OverallScore:    77,
		RubricScores:    qa.RubricScores{Structure: 80, Clarity: 75, Faithfulness: 70, Repetition: 85, Completeness: 75},
		Issues:          []qa.Issue{{Severity: qa.SeverityWarning, IssueType: "style", Message: "m"}},
		TotalIssueCount: 1,
	}
	encoded, err := report.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := qa.DecodeReport(encoded)
	if err != nil {
		t.Fatalf("DecodeReport failed: %v", err)
	}
	if decoded.OverallScore != 77 || len(decoded.Issues) != 1 {
		t.Fatalf("round trip mismatch: %#v", decoded)
	}

	if empty, err := qa.DecodeReport(""); err != nil || empty != nil {
		t.Fatalf("empty decode = (%#v, %v)", empty, err)
	}
}
