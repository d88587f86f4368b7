package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/evidence"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/mdparse"
	"webinar2ebook/internal/prompts"
	"webinar2ebook/internal/qa"
	"webinar2ebook/internal/services"
	"webinar2ebook/internal/services/llm"
	"webinar2ebook/internal/textutil"
)

// Diff records the before/after of one rewritten section.
type Diff struct {
	SectionID      int    `json:"section_id"`
	Heading        string `json:"heading"`
	OriginalText   string `json:"original_text"`
	RewrittenText  string `json:"rewritten_text"`
	ChangesSummary string `json:"changes_summary"`
}

// SectionError reports a per-section failure. The section's original text is
// always retained.
type SectionError struct {
	SectionID int    `json:"section_id"`
	Heading   string `json:"heading"`
	Message   string `json:"message"`
}

// Result is the outcome of one targeted rewrite pass.
type Result struct {
	// MultiPassWarning is set instead of diffs when the draft version was
	// already rewritten once.
	MultiPassWarning string         `json:"multi_pass_warning,omitempty"`
	NewDraft         string         `json:"new_draft,omitempty"`
	NewDraftHash     string         `json:"new_draft_hash,omitempty"`
	Diffs            []Diff         `json:"diffs"`
	SectionErrors    []SectionError `json:"section_errors,omitempty"`
}

// Rewriter regenerates flagged sections, bounded to the evidence already
// collected for their chapters.
type Rewriter struct {
	client       llm.Client
	logger       *slog.Logger
	retry        services.RetryPolicy
	maxTokens    int64
	temperature  float64
	traceability float64
}

// NewRewriter builds a rewriter from configuration.
func NewRewriter(client llm.Client, cfg *config.Config, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Rewriter{
		client:       client,
		logger:       logger.With(logging.String("component", "rewrite")),
		retry:        services.RetryPolicy{Attempts: cfg.LLM.MaxRetries, Backoff: services.DefaultRetryPolicy().Backoff, MaxDelay: services.DefaultRetryPolicy().MaxDelay},
		maxTokens:    cfg.LLM.MaxTokens,
		temperature:  cfg.LLM.Temperature,
		traceability: cfg.Rewrite.TraceabilityThreshold,
	}
}

// Execute regenerates every planned section. Text outside planned sections is
// copied through byte-for-byte; a section whose regeneration fails or whose
// output is untraceable to evidence keeps its original text.
func (r *Rewriter) Execute(ctx context.Context, draft string, plan *Plan, evidenceMap *evidence.Map, lastRewriteHash string) (*Result, error) {
	if plan == nil || qa.DraftHash(draft) != plan.DraftHash {
		return nil, services.Wrap(services.ErrValidation, "rewrite", "execute", "plan does not match the current draft version", nil)
	}
	if lastRewriteHash != "" && lastRewriteHash == plan.DraftHash {
		return &Result{
			MultiPassWarning: "this draft version has already been rewritten once; edit the draft or re-run generation before rewriting again",
		}, nil
	}

	lines := mdparse.SplitLines(draft)
	replacements := make(map[int][]string, len(plan.Sections))
	result := &Result{}

	for _, planned := range plan.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		original := mdparse.SectionText(lines, planned.Section)
		rewritten, err := r.rewriteSection(ctx, original, planned, evidenceMap)
		if err != nil {
			result.SectionErrors = append(result.SectionErrors, SectionError{
				SectionID: planned.Section.ID,
				Heading:   planned.Section.Heading,
				Message:   err.Error(),
			})
			continue
		}
		replacements[planned.Section.StartLine] = mdparse.SplitLines(rewritten)
		result.Diffs = append(result.Diffs, Diff{
			SectionID:      planned.Section.ID,
			Heading:        planned.Section.Heading,
			OriginalText:   original,
			RewrittenText:  rewritten,
			ChangesSummary: summarizeChange(original, rewritten, len(planned.Issues)),
		})
	}

	sectionEnds := make(map[int]int, len(plan.Sections))
	for _, planned := range plan.Sections {
		sectionEnds[planned.Section.StartLine] = planned.Section.EndLine
	}

	var out []string
	for i := 0; i < len(lines); {
		if replacement, ok := replacements[i]; ok {
			out = append(out, replacement...)
			i = sectionEnds[i]
			continue
		}
		out = append(out, lines[i])
		i++
	}

	result.NewDraft = mdparse.JoinLines(out)
	result.NewDraftHash = qa.DraftHash(result.NewDraft)
	return result, nil
}

func (r *Rewriter) rewriteSection(ctx context.Context, original string, planned PlanSection, evidenceMap *evidence.Map) (string, error) {
	issues := make([]string, 0, len(planned.Issues))
	for _, issue := range planned.Issues {
		line := issue.Message
		if issue.Suggestion != "" {
			line += " (suggestion: " + issue.Suggestion + ")"
		}
		issues = append(issues, line)
	}

	var chapter *evidence.ChapterEvidence
	if evidenceMap != nil && planned.ChapterTitle != "" {
		chapter = evidenceMap.ForTitle(planned.ChapterTitle)
	}
	var items []prompts.EvidenceItem
	if chapter != nil {
		items = chapter.PromptItems()
	}

	var raw string
	err := services.Retry(ctx, r.retry, func(ctx context.Context) error {
		var callErr error
		raw, callErr = r.client.Complete(ctx, llm.Request{
			System:      prompts.SectionRewriteSystem,
			User:        prompts.BuildSectionRewrite(original, issues, items),
			MaxTokens:   r.maxTokens,
			Temperature: r.temperature,
		})
		return callErr
	})
	if err != nil {
		r.logger.Warn("section regeneration failed, retaining original",
			logging.String("heading", planned.Section.Heading),
			logging.Error(err))
		return "", fmt.Errorf("regeneration failed: %w", err)
	}

	rewritten := strings.TrimRight(llm.StripFences(raw), "\n")
	if strings.TrimSpace(rewritten) == "" {
		return "", fmt.Errorf("regeneration returned empty section")
	}
	rewritten = restoreHeading(original, rewritten)

	if chapter != nil && len(chapter.Entries) > 0 && !r.traceable(rewritten, chapter) {
		return "", fmt.Errorf("rewritten section not traceable to chapter evidence")
	}
	return rewritten, nil
}

// restoreHeading keeps the original heading line verbatim even when the model
// altered it.
func restoreHeading(original, rewritten string) string {
	origLines := mdparse.SplitLines(original)
	newLines := mdparse.SplitLines(rewritten)
	if len(origLines) == 0 || len(newLines) == 0 {
		return rewritten
	}
	if strings.HasPrefix(newLines[0], "#") {
		newLines[0] = origLines[0]
		return mdparse.JoinLines(newLines)
	}
	return origLines[0] + "\n" + rewritten
}

// traceable checks that the rewritten prose shares vocabulary with at least
// one evidence entry above the configured threshold.
func (r *Rewriter) traceable(rewritten string, chapter *evidence.ChapterEvidence) bool {
	body := textutil.NewFingerprint(rewritten)
	for _, entry := range chapter.Entries {
		var evidenceText strings.Builder
		evidenceText.WriteString(entry.Claim)
		for _, q := range entry.Support {
			evidenceText.WriteString(" ")
			evidenceText.WriteString(q.Text)
		}
		if textutil.CosineSimilarity(body, textutil.NewFingerprint(evidenceText.String())) >= r.traceability {
			return true
		}
	}
	return false
}

func summarizeChange(original, rewritten string, issueCount int) string {
	origLines := len(mdparse.SplitLines(original))
	newLines := len(mdparse.SplitLines(rewritten))
	return fmt.Sprintf("addressed %d issue(s); %d lines rewritten to %d", issueCount, origLines, newLines)
}
