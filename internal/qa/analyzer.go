package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/constraints"
	"webinar2ebook/internal/evidence"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/mdparse"
	"webinar2ebook/internal/prompts"
	"webinar2ebook/internal/services"
	"webinar2ebook/internal/services/llm"
	"webinar2ebook/internal/textutil"
)

// Analyzer scores a finished draft. The model provides rubric scores and
// issues; the constraint checker and fingerprint similarity run
// authoritatively on top of them.
type Analyzer struct {
	client       llm.Client
	logger       *slog.Logger
	retry        services.RetryPolicy
	maxIssues    int
	maxTokens    int64
	temperature  float64
	traceability float64
}

// NewAnalyzer builds an analyzer from configuration.
func NewAnalyzer(client llm.Client, cfg *config.Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{
		client:       client,
		logger:       logger.With(logging.String("component", "qa")),
		retry:        services.RetryPolicy{Attempts: cfg.LLM.MaxRetries, Backoff: services.DefaultRetryPolicy().Backoff, MaxDelay: services.DefaultRetryPolicy().MaxDelay},
		maxIssues:    cfg.QA.MaxIssues,
		maxTokens:    cfg.LLM.MaxTokens,
		temperature:  cfg.LLM.Temperature,
		traceability: cfg.Rewrite.TraceabilityThreshold,
	}
}

// Input collects everything one analysis pass needs.
type Input struct {
	Draft         string
	Mode          prompts.ContentMode
	ChapterTitles []string
	EvidenceMap   *evidence.Map
	// Previous, when set and keyed by the same draft hash, is returned as-is.
	Previous *Report
}

type llmReport struct {
	RubricScores RubricScores `json:"rubric_scores"`
	Issues       []Issue      `json:"issues"`
}

// Analyze produces the report for a draft version. An unchanged draft reuses
// its previous report.
func (a *Analyzer) Analyze(ctx context.Context, input Input) (*Report, error) {
	if strings.TrimSpace(input.Draft) == "" {
		return nil, services.Wrap(services.ErrValidation, "qa", "analyze", "draft is empty", nil)
	}
	hash := DraftHash(input.Draft)
	if input.Previous != nil && input.Previous.DraftHash == hash {
		return input.Previous, nil
	}

	modelReport, err := a.callModel(ctx, input)
	if err != nil {
		return nil, err
	}

	issues := modelReport.Issues
	for i := range issues {
		issues[i].Severity = normalizeSeverity(issues[i].Severity)
	}

	// Constraint checking is authoritative here even when generation already
	// warned: every violation becomes an issue.
	issues = append(issues, a.constraintIssues(input)...)
	issues = append(issues, a.traceabilityIssues(input)...)

	scores := RubricScores{
		Structure:    clampScore(modelReport.RubricScores.Structure),
		Clarity:      clampScore(modelReport.RubricScores.Clarity),
		Faithfulness: clampScore(modelReport.RubricScores.Faithfulness),
		Repetition:   clampScore(modelReport.RubricScores.Repetition),
		Completeness: clampScore(modelReport.RubricScores.Completeness),
	}
	if repetition := a.repetitionScore(input.Draft); repetition < scores.Repetition {
		scores.Repetition = repetition
	}
	for _, issue := range issues {
		if issue.IssueType == "ungrounded_content" && scores.Faithfulness > 5 {
			scores.Faithfulness -= 5
		}
	}
	scores.Faithfulness = clampScore(scores.Faithfulness)

	report := &Report{
		DraftHash:       hash,
		RubricScores:    scores,
		TotalIssueCount: len(issues),
		AnalyzedAt:      time.Now().UTC(),
	}
	report.OverallScore = clampScore((scores.Structure + scores.Clarity + scores.Faithfulness + scores.Repetition + scores.Completeness) / 5)
	if a.maxIssues > 0 && len(issues) > a.maxIssues {
		report.Issues = issues[:a.maxIssues]
		report.Truncated = true
	} else {
		report.Issues = issues
	}
	return report, nil
}

func (a *Analyzer) callModel(ctx context.Context, input Input) (*llmReport, error) {
	var raw string
	err := services.Retry(ctx, a.retry, func(ctx context.Context) error {
		var callErr error
		raw, callErr = a.client.Complete(ctx, llm.Request{
			System:       prompts.QAAnalysisSystem,
			User:         prompts.BuildQAAnalysis(input.Draft, input.ChapterTitles, evidenceSummary(input.EvidenceMap)),
			MaxTokens:    a.maxTokens,
			Temperature:  a.temperature,
			JSONResponse: true,
		})
		return callErr
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "qa", "analyze", "analysis model call failed", err)
	}

	var report llmReport
	if err := llm.DecodeJSON(raw, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (a *Analyzer) constraintIssues(input Input) []Issue {
	checker := constraints.ForMode(input.Mode)
	sections := mdparse.Sections(input.Draft)
	lines := mdparse.SplitLines(input.Draft)

	var issues []Issue
	if len(sections) == 0 {
		for _, v := range checker.Check(input.Draft) {
			issues = append(issues, constraintIssue(v, -1, ""))
		}
		return issues
	}
	for i, section := range sections {
		text := mdparse.SectionText(lines, section)
		for _, v := range checker.Check(text) {
			issues = append(issues, constraintIssue(v, i, section.Heading))
		}
	}
	return issues
}

func constraintIssue(v constraints.Violation, chapterIndex int, heading string) Issue {
	return Issue{
		Severity:     string(v.Severity),
		IssueType:    v.Class,
		ChapterIndex: chapterIndex,
		Heading:      heading,
		Location:     heading,
		Message:      v.Message,
		Suggestion:   fmt.Sprintf("Remove or rephrase the text matching %q", v.Match),
	}
}

// traceabilityIssues flags sections whose prose shares almost no vocabulary
// with the chapter's evidence entries.
func (a *Analyzer) traceabilityIssues(input Input) []Issue {
	if input.EvidenceMap == nil {
		return nil
	}
	sections := mdparse.Sections(input.Draft)
	lines := mdparse.SplitLines(input.Draft)

	var issues []Issue
	chapterIdx := -1
	for _, section := range sections {
		if section.Level != 2 {
			continue
		}
		chapterIdx++
		// Lookup is by title: skipped chapters never reach the draft, so the
		// heading ordinal and the evidence chapter index drift apart.
		chapter := input.EvidenceMap.ForTitle(section.Heading)
		if chapter == nil || chapter.Skipped || len(chapter.Entries) == 0 {
			continue
		}
		sectionPrint := textutil.NewFingerprint(mdparse.SectionText(lines, section))
		best := 0.0
		for _, entry := range chapter.Entries {
			var evidenceText strings.Builder
			evidenceText.WriteString(entry.Claim)
			for _, q := range entry.Support {
				evidenceText.WriteString(" ")
				evidenceText.WriteString(q.Text)
			}
			if sim := textutil.CosineSimilarity(sectionPrint, textutil.NewFingerprint(evidenceText.String())); sim > best {
				best = sim
			}
		}
		if best < a.traceability {
			issues = append(issues, Issue{
				Severity:     SeverityWarning,
				IssueType:    "ungrounded_content",
				ChapterIndex: chapterIdx,
				Heading:      section.Heading,
				Location:     section.Heading,
				Message:      "chapter prose does not trace to its evidence entries",
				Suggestion:   "Rewrite the chapter against its evidence map entries",
			})
		}
	}
	return issues
}

// repetitionScore measures cross-chapter similarity with term-frequency
// fingerprints. 100 means no repetition.
func (a *Analyzer) repetitionScore(draft string) int {
	sections := mdparse.Sections(draft)
	lines := mdparse.SplitLines(draft)

	var prints []*textutil.Fingerprint
	for _, section := range sections {
		if section.Level != 2 {
			continue
		}
		prints = append(prints, textutil.NewFingerprint(mdparse.SectionText(lines, section)))
	}
	if len(prints) < 2 {
		return 100
	}

	worst := 0.0
	for i := 0; i < len(prints); i++ {
		for j := i + 1; j < len(prints); j++ {
			if sim := textutil.CosineSimilarity(prints[i], prints[j]); sim > worst {
				worst = sim
			}
		}
	}
	return clampScore(100 - int(worst*100))
}

func evidenceSummary(m *evidence.Map) string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	for _, chapter := range m.Chapters {
		if chapter.Skipped {
			fmt.Fprintf(&sb, "Chapter %d (%s): skipped (%s)\n", chapter.ChapterIndex, chapter.Title, chapter.SkipReason)
			continue
		}
		fmt.Fprintf(&sb, "Chapter %d (%s): %d grounded claims\n", chapter.ChapterIndex, chapter.Title, len(chapter.Entries))
	}
	return sb.String()
}

func normalizeSeverity(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityWarning:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
