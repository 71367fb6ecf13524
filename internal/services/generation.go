package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/velmora/philograph-backend/internal/clients/openai"
	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/apperrors"
	"github.com/velmora/philograph-backend/internal/pkg/httpx"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

// BranchCandidate is one proposed branch from the model: a target concept
// name plus a description of the relationship to the source.
type BranchCandidate struct {
	Type        domain.BranchType
	TargetName  string
	Description string
}

// LessonContent is the generated lesson for a concept.
type LessonContent struct {
	Description        string
	RecommendedReading []domain.ReadingEntry
}

// GenerationService wraps the language model behind a strict validation
// gate. Model output that deviates from the expected shape in any way is a
// GenerationError, never a partially-trusted structure the engine tries to
// salvage field by field.
type GenerationService interface {
	// GenerateBranches requests exactly four candidates in one batched call,
	// one per branch type, so the model keeps them mutually distinct.
	GenerateBranches(ctx context.Context, sourceName, sourceDescription string) ([]BranchCandidate, error)

	GenerateLesson(ctx context.Context, conceptName string) (*LessonContent, error)
}

type generationService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewGenerationService(log *logger.Logger, ai openai.Client) GenerationService {
	return &generationService{
		log: log.With("service", "GenerationService"),
		ai:  ai,
	}
}

const branchSystemPrompt = `You are a philosophy tutor growing a shared concept graph.
Given a source concept, propose exactly four related concepts to explore next, one per branch type:
- "constructive": a concept that builds on or extends the source.
- "critique": a concept or school that challenges the source.
- "author": a philosopher closely associated with the source.
- "wildcard": a surprising but defensible connection.
Each candidate needs a concise target concept name and one or two sentences describing the relationship.
Keep the four candidates mutually distinct.`

var branchSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"branches"},
	"properties": map[string]any{
		"branches": map[string]any{
			"type":     "array",
			"minItems": 4,
			"maxItems": 4,
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"type", "target_name", "description"},
				"properties": map[string]any{
					"type":        map[string]any{"type": "string", "enum": []string{"constructive", "critique", "author", "wildcard"}},
					"target_name": map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
				},
			},
		},
	},
}

func (s *generationService) GenerateBranches(ctx context.Context, sourceName, sourceDescription string) ([]BranchCandidate, error) {
	user := fmt.Sprintf("Source concept: %s\n\n%s", strings.TrimSpace(sourceName), strings.TrimSpace(sourceDescription))

	obj, err := s.ai.GenerateJSON(ctx, branchSystemPrompt, user, "branch_candidates", branchSchema)
	if err != nil {
		reason := "branch generation call failed"
		if httpx.IsRejectedInput(err) {
			reason = "branch generation request rejected"
		}
		return nil, &apperrors.GenerationError{Reason: reason, Err: err}
	}

	candidates, err := parseBranchCandidates(obj)
	if err != nil {
		s.log.Warn("Rejecting malformed branch batch", "source", sourceName, "error", err)
		return nil, &apperrors.GenerationError{Reason: "malformed branch batch", Err: err}
	}
	return candidates, nil
}

// parseBranchCandidates enforces the whole contract: exactly four entries,
// the four types exactly once each, non-empty names and descriptions.
func parseBranchCandidates(obj map[string]any) ([]BranchCandidate, error) {
	rawBranches, ok := obj["branches"].([]any)
	if !ok {
		return nil, fmt.Errorf("missing branches array")
	}
	if len(rawBranches) != 4 {
		return nil, fmt.Errorf("expected 4 candidates, got %d", len(rawBranches))
	}

	seen := map[domain.BranchType]bool{}
	out := make([]BranchCandidate, 0, 4)
	for i, raw := range rawBranches {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("candidate %d is not an object", i)
		}
		typeStr, _ := entry["type"].(string)
		branchType := domain.BranchType(strings.ToLower(strings.TrimSpace(typeStr)))
		if !domain.ValidBranchType(branchType) {
			return nil, fmt.Errorf("candidate %d has invalid branch type %q", i, typeStr)
		}
		if seen[branchType] {
			return nil, fmt.Errorf("branch type %q repeated", branchType)
		}
		seen[branchType] = true

		name, _ := entry["target_name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("candidate %d has empty target_name", i)
		}
		if domain.Slugify(name) == "" {
			// A name with no sluggable characters has no storage identity;
			// admitting it would break mid-batch at concept creation.
			return nil, fmt.Errorf("candidate %d target_name %q yields no slug", i, name)
		}
		desc, _ := entry["description"].(string)
		desc = strings.TrimSpace(desc)
		if desc == "" {
			return nil, fmt.Errorf("candidate %d has empty description", i)
		}

		out = append(out, BranchCandidate{Type: branchType, TargetName: name, Description: desc})
	}
	return out, nil
}

const lessonSystemPrompt = `You are a philosophy tutor writing a short lesson on a single concept.
Write an accessible but substantive description (3-5 paragraphs) and recommend 2-4 readings.`

var lessonSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"description", "recommended_reading"},
	"properties": map[string]any{
		"description": map[string]any{"type": "string"},
		"recommended_reading": map[string]any{
			"type":     "array",
			"minItems": 1,
			"maxItems": 6,
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"title", "author", "year", "relevance"},
				"properties": map[string]any{
					"title":     map[string]any{"type": "string"},
					"author":    map[string]any{"type": "string"},
					"year":      map[string]any{"type": "integer"},
					"relevance": map[string]any{"type": "string"},
				},
			},
		},
	},
}

func (s *generationService) GenerateLesson(ctx context.Context, conceptName string) (*LessonContent, error) {
	obj, err := s.ai.GenerateJSON(ctx, lessonSystemPrompt, "Concept: "+strings.TrimSpace(conceptName), "concept_lesson", lessonSchema)
	if err != nil {
		return nil, &apperrors.GenerationError{Reason: "lesson generation call failed", Err: err}
	}

	description, _ := obj["description"].(string)
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, &apperrors.GenerationError{Reason: "lesson missing description"}
	}

	var reading []domain.ReadingEntry
	if rawList, ok := obj["recommended_reading"].([]any); ok {
		for _, raw := range rawList {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			title, _ := entry["title"].(string)
			author, _ := entry["author"].(string)
			relevance, _ := entry["relevance"].(string)
			year := 0
			if y, ok := entry["year"].(float64); ok {
				year = int(y)
			}
			if strings.TrimSpace(title) == "" {
				continue
			}
			reading = append(reading, domain.ReadingEntry{
				Title:     strings.TrimSpace(title),
				Author:    strings.TrimSpace(author),
				Year:      year,
				Relevance: strings.TrimSpace(relevance),
			})
		}
	}

	return &LessonContent{Description: description, RecommendedReading: reading}, nil
}
