package content

import (
	"math/rand"

	"pushluck-trivia-service/internal/domain"
)

// QuestionsForPacks flattens the questions of the selected packs, in pack
// order then question order within each pack. Questions are not deduplicated
// across packs: the queue consumes IDs by position, so a question shared by
// two selected packs simply occurs twice in the pool.
func QuestionsForPacks(packIDs []string, packs []domain.Pack) []domain.Question {
	selected := make(map[string]struct{}, len(packIDs))
	for _, id := range packIDs {
		selected[id] = struct{}{}
	}

	var questions []domain.Question
	for _, pack := range packs {
		if _, ok := selected[pack.ID]; !ok {
			continue
		}
		questions = append(questions, pack.Questions...)
	}
	return questions
}

// Shuffle returns a uniform-random permutation of items as a new slice.
// The input is never mutated. Fisher-Yates: walk from the last index down to
// 1, swapping each element with a uniformly chosen earlier-or-equal one.
func Shuffle[T any](rnd *rand.Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// BuildRoundBoard samples five unique correct and five unique wrong answers
// from a question and shuffles them into a single option board, recording
// which board positions hold correct answers.
func BuildRoundBoard(rnd *rand.Rand, q domain.Question) (domain.RoundBoard, error) {
	correct := uniqueStrings(q.CorrectAnswers)
	wrong := uniqueWrong(q.WrongAnswers, correct)
	if len(correct) < MinCorrectAnswers || len(wrong) < MinWrongAnswers {
		return domain.RoundBoard{}, domain.ErrMalformedQuestion
	}

	correctSample := Shuffle(rnd, correct)[:MinCorrectAnswers]
	wrongSample := Shuffle(rnd, wrong)[:MinWrongAnswers]

	combined := make([]string, 0, MinCorrectAnswers+MinWrongAnswers)
	combined = append(combined, correctSample...)
	combined = append(combined, wrongSample...)
	combined = Shuffle(rnd, combined)

	correctSet := make(map[string]struct{}, MinCorrectAnswers)
	for _, c := range correctSample {
		correctSet[c] = struct{}{}
	}
	board := domain.RoundBoard{Options: combined}
	for i, option := range combined {
		if _, ok := correctSet[option]; ok {
			board.CorrectIndices = append(board.CorrectIndices, i)
		}
	}
	return board, nil
}
