package domain

import "errors"

var (
	// ErrGameNotFound is returned when no live session exists for a game ID.
	ErrGameNotFound = errors.New("game session not found")
	// ErrGameEnded is returned when a mutation is attempted on an ended session.
	ErrGameEnded = errors.New("game session has ended")
	// ErrRoundOver is returned for picks after a round reached a terminal state.
	ErrRoundOver = errors.New("round is already over")
	// ErrNothingToBank is returned when banking with zero revealed answers.
	ErrNothingToBank = errors.New("cannot bank with no revealed answers")
	// ErrNoPacksSelected is returned when a setup selects no packs.
	ErrNoPacksSelected = errors.New("no packs selected")
	// ErrEmptyQuestionPool is returned when the selected packs yield no questions.
	ErrEmptyQuestionPool = errors.New("selected packs contain no questions")
	// ErrInvalidSetup is returned for non-positive player counts or target scores.
	ErrInvalidSetup = errors.New("invalid game setup")
	// ErrNoLastSetup is returned when restarting a game that was never configured.
	ErrNoLastSetup = errors.New("no previous setup to restart from")
	// ErrPackNotFound indicates a selected pack ID is not in the catalog.
	ErrPackNotFound = errors.New("pack not found")
	// ErrQuestionNotFound indicates a queued question ID is missing from the pool.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrMalformedQuestion indicates a question cannot fill a round board
	// (fewer than the required unique correct or wrong answers).
	ErrMalformedQuestion = errors.New("malformed question content")
	// ErrOptionOutOfRange indicates a pick outside the round board.
	ErrOptionOutOfRange = errors.New("option index out of range")
)
