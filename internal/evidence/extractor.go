package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/prompts"
	"webinar2ebook/internal/services"
	"webinar2ebook/internal/services/llm"
)

// Chapter describes one outline chapter and its assigned transcript range.
type Chapter struct {
	Index    int
	Title    string
	Goals    []string
	SegStart int
	SegEnd   int
}

// Extractor builds evidence maps with two model passes per chapter: claim
// extraction over overlapping windows, then one supporting quote per claim.
type Extractor struct {
	client        llm.Client
	logger        *slog.Logger
	retry         services.RetryPolicy
	windowSize    int
	windowOverlap int
	searchRadius  int
	minConfidence float64
	maxTokens     int64
	temperature   float64
}

// NewExtractor builds an extractor from configuration.
func NewExtractor(client llm.Client, cfg *config.Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		client:        client,
		logger:        logger.With(logging.String("component", "evidence")),
		retry:         services.RetryPolicy{Attempts: cfg.LLM.MaxRetries, Backoff: services.DefaultRetryPolicy().Backoff, MaxDelay: services.DefaultRetryPolicy().MaxDelay},
		windowSize:    cfg.Generation.WindowSize,
		windowOverlap: cfg.Generation.WindowOverlap,
		searchRadius:  cfg.Generation.SentenceSearchRadius,
		minConfidence: cfg.Generation.MinSupportConfidence,
		maxTokens:     cfg.LLM.MaxTokens,
		temperature:   cfg.LLM.Temperature,
	}
}

type claimPayload struct {
	Claims []struct {
		Claim     string `json:"claim"`
		ClaimType string `json:"claim_type"`
	} `json:"claims"`
}

type quotePayload struct {
	Quote      string  `json:"quote"`
	Confidence float64 `json:"confidence"`
}

// extractedClaim tracks which window a claim came from so the quote search
// runs against the same text.
type extractedClaim struct {
	claim     string
	claimType string
	window    Window
}

// Generate builds the evidence map for the given chapters. Chapters that
// yield no supported claims are marked for skip-or-merge with a warning;
// model failures degrade to zero evidence rather than failing the call.
func (e *Extractor) Generate(ctx context.Context, transcript string, chapters []Chapter) (*Map, []string, error) {
	result := &Map{Chapters: make([]ChapterEvidence, 0, len(chapters))}
	var warnings []string

	for _, chapter := range chapters {
		if err := ctx.Err(); err != nil {
			return nil, warnings, err
		}

		evidence, warn, err := e.extractChapter(ctx, transcript, chapter)
		if err != nil {
			return nil, warnings, err
		}
		warnings = append(warnings, warn...)
		result.Chapters = append(result.Chapters, evidence)
	}

	if dropped := result.Validate(transcript); len(dropped) > 0 {
		warnings = append(warnings, dropped...)
	}
	return result, warnings, nil
}

func (e *Extractor) extractChapter(ctx context.Context, transcript string, chapter Chapter) (ChapterEvidence, []string, error) {
	evidence := ChapterEvidence{
		ChapterIndex: chapter.Index,
		Title:        chapter.Title,
		Entries:      []Entry{},
	}
	var warnings []string

	segStart, segEnd := clampRange(chapter.SegStart, chapter.SegEnd, len(transcript))
	segment := transcript[segStart:segEnd]
	if strings.TrimSpace(segment) == "" {
		evidence.Skipped = true
		evidence.SkipReason = "empty transcript segment"
		warnings = append(warnings, fmt.Sprintf("chapter %d (%s): empty transcript segment, marked for skip-or-merge", chapter.Index, chapter.Title))
		return evidence, warnings, nil
	}

	claims, err := e.extractClaims(ctx, chapter, segment)
	if err != nil {
		if ctx.Err() != nil {
			return evidence, warnings, ctx.Err()
		}
		// Retries exhausted: treat as zero evidence, never a fatal failure.
		e.logger.Warn("claim extraction failed, degrading to zero evidence",
			logging.Int("chapter", chapter.Index),
			logging.Error(err))
		claims = nil
	}
	if len(claims) == 0 {
		evidence.Skipped = true
		evidence.SkipReason = "no claims extracted"
		warnings = append(warnings, fmt.Sprintf("chapter %d (%s): no claims extracted, marked for skip-or-merge", chapter.Index, chapter.Title))
		return evidence, warnings, nil
	}

	for _, claim := range claims {
		if err := ctx.Err(); err != nil {
			return evidence, warnings, err
		}
		quote, ok := e.findSupport(ctx, claim)
		if !ok {
			continue
		}
		// Offsets are computed locally against the canonical transcript so
		// the round-trip invariant holds by construction.
		absolute := segStart + claim.window.Offset
		idx := strings.Index(claim.window.Text, quote.Quote)
		if idx < 0 || quote.Quote == "" {
			continue
		}
		evidence.Entries = append(evidence.Entries, Entry{
			Claim:     claim.claim,
			ClaimType: claim.claimType,
			Support: []Quote{{
				Text:       quote.Quote,
				Start:      absolute + idx,
				End:        absolute + idx + len(quote.Quote),
				Confidence: quote.Confidence,
			}},
		})
	}

	if len(evidence.Entries) == 0 {
		evidence.Skipped = true
		evidence.SkipReason = "no claims with supporting quotes above confidence threshold"
		warnings = append(warnings, fmt.Sprintf("chapter %d (%s): no supported claims, marked for skip-or-merge", chapter.Index, chapter.Title))
	}
	return evidence, warnings, nil
}

func (e *Extractor) extractClaims(ctx context.Context, chapter Chapter, segment string) ([]extractedClaim, error) {
	windows := SplitWindows(segment, e.windowSize, e.windowOverlap, e.searchRadius)

	var claims []extractedClaim
	seen := make(map[string]struct{})
	var lastErr error

	for _, window := range windows {
		var raw string
		err := services.Retry(ctx, e.retry, func(ctx context.Context) error {
			var callErr error
			raw, callErr = e.client.Complete(ctx, llm.Request{
				System:       prompts.ClaimExtractionSystem,
				User:         prompts.BuildClaimExtraction(chapter.Title, chapter.Goals, window.Text),
				MaxTokens:    e.maxTokens,
				Temperature:  e.temperature,
				JSONResponse: true,
			})
			return callErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		var payload claimPayload
		if err := llm.DecodeJSON(raw, &payload); err != nil {
			lastErr = err
			continue
		}
		for _, c := range payload.Claims {
			claim := strings.TrimSpace(c.Claim)
			if claim == "" {
				continue
			}
			key := strings.ToLower(claim)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			claims = append(claims, extractedClaim{
				claim:     claim,
				claimType: normalizeClaimType(c.ClaimType),
				window:    window,
			})
		}
	}

	if len(claims) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return claims, nil
}

func (e *Extractor) findSupport(ctx context.Context, claim extractedClaim) (quotePayload, bool) {
	var raw string
	err := services.Retry(ctx, e.retry, func(ctx context.Context) error {
		var callErr error
		raw, callErr = e.client.Complete(ctx, llm.Request{
			System:       prompts.QuoteSupportSystem,
			User:         prompts.BuildQuoteSupport(claim.claim, claim.window.Text),
			MaxTokens:    e.maxTokens,
			Temperature:  e.temperature,
			JSONResponse: true,
		})
		return callErr
	})
	if err != nil {
		e.logger.Warn("quote support failed, dropping claim",
			logging.String("claim", claim.claim),
			logging.Error(err))
		return quotePayload{}, false
	}

	var payload quotePayload
	if err := llm.DecodeJSON(raw, &payload); err != nil {
		return quotePayload{}, false
	}
	if payload.Quote == "" || payload.Confidence < e.minConfidence {
		return quotePayload{}, false
	}
	return payload, true
}

func normalizeClaimType(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "factual", "opinion", "recommendation", "anecdote":
		return strings.ToLower(strings.TrimSpace(value))
	default:
		return "factual"
	}
}

func clampRange(start, end, max int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > max {
		end = max
	}
	if start > end {
		start = end
	}
	return start, end
}
