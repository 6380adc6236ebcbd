// Package content owns the question catalog: decoding packs from either the
// legacy index-based schema or the canonical answer-list schema, validating
// them, and deriving per-session question pools and round boards.
package content

import (
	"encoding/json"
	"fmt"

	"pushluck-trivia-service/internal/domain"
)

const (
	// MinCorrectAnswers is how many correct options a round board holds;
	// revealing all of them completes the round.
	MinCorrectAnswers = 5
	// MinWrongAnswers is how many wrong options a round board holds.
	MinWrongAnswers = 5
)

// LegacyQuestion is the old content schema: an ordered option list plus the
// indices of the correct options.
type LegacyQuestion struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	CorrectIndices []int    `json:"correctIndices"`
}

// NormalizeLegacyQuestion converts a legacy question to canonical form.
// Correct answers are the options at the marked indices, wrong answers the
// remainder; relative order within each group is preserved, so the two lists
// together carry every original option exactly once.
func NormalizeLegacyQuestion(q LegacyQuestion) domain.Question {
	correctSet := make(map[int]struct{}, len(q.CorrectIndices))
	for _, idx := range q.CorrectIndices {
		correctSet[idx] = struct{}{}
	}

	out := domain.Question{ID: q.ID, Text: q.Text}
	for i, option := range q.Options {
		if _, ok := correctSet[i]; ok {
			out.CorrectAnswers = append(out.CorrectAnswers, option)
		} else {
			out.WrongAnswers = append(out.WrongAnswers, option)
		}
	}
	return out
}

// rawQuestion accepts both schemas; which one applies is decided structurally
// once, here, never re-checked downstream.
type rawQuestion struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	CorrectAnswers []string `json:"correctAnswers"`
	WrongAnswers   []string `json:"wrongAnswers"`
	Options        []string `json:"options"`
	CorrectIndices []int    `json:"correctIndices"`
}

func (q rawQuestion) normalize() domain.Question {
	if q.Options != nil && q.CorrectIndices != nil {
		return NormalizeLegacyQuestion(LegacyQuestion{
			ID:             q.ID,
			Text:           q.Text,
			Options:        q.Options,
			CorrectIndices: q.CorrectIndices,
		})
	}
	return domain.Question{
		ID:             q.ID,
		Text:           q.Text,
		CorrectAnswers: q.CorrectAnswers,
		WrongAnswers:   q.WrongAnswers,
	}
}

type rawPack struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	PriceDisplay string        `json:"priceDisplay"`
	Questions    []rawQuestion `json:"questions"`
}

// DecodePack parses a pack in either schema and returns it in canonical form.
func DecodePack(data []byte) (domain.Pack, error) {
	var raw rawPack
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Pack{}, fmt.Errorf("decode pack: %w", err)
	}
	pack := domain.Pack{
		ID:           raw.ID,
		Name:         raw.Name,
		Description:  raw.Description,
		PriceDisplay: raw.PriceDisplay,
		Questions:    make([]domain.Question, 0, len(raw.Questions)),
	}
	if pack.PriceDisplay == "" {
		pack.PriceDisplay = "Free"
	}
	for _, q := range raw.Questions {
		pack.Questions = append(pack.Questions, q.normalize())
	}
	return pack, nil
}

// ValidatePack fails fast on questions that can never fill a round board, so
// an unwinnable round is rejected at load time instead of presented mid-game.
func ValidatePack(pack domain.Pack) error {
	for _, q := range pack.Questions {
		correct := uniqueStrings(q.CorrectAnswers)
		wrong := uniqueWrong(q.WrongAnswers, correct)
		if len(correct) < MinCorrectAnswers || len(wrong) < MinWrongAnswers {
			return fmt.Errorf("pack %q question %q has %d correct / %d wrong unique answers, need %d/%d: %w",
				pack.ID, q.ID, len(correct), len(wrong), MinCorrectAnswers, MinWrongAnswers, domain.ErrMalformedQuestion)
		}
	}
	return nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// uniqueWrong dedupes wrong answers and drops any that also appear as a
// correct answer, keeping the correct/wrong sets disjoint.
func uniqueWrong(wrong, correct []string) []string {
	correctSet := make(map[string]struct{}, len(correct))
	for _, c := range correct {
		correctSet[c] = struct{}{}
	}
	seen := make(map[string]struct{}, len(wrong))
	out := make([]string, 0, len(wrong))
	for _, w := range wrong {
		if _, ok := correctSet[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
