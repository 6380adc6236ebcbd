package domain

// Pack is a named collection of trivia questions, the unit of content
// selection. Packs are immutable once loaded.
type Pack struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	PriceDisplay string     `json:"priceDisplay"`
	Questions    []Question `json:"questions"`
}

// Question is the canonical question shape. Legacy index-based questions are
// converted into this form once, at decode time.
type Question struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	CorrectAnswers []string `json:"correctAnswers"`
	WrongAnswers   []string `json:"wrongAnswers"`
}

// Player is one seat in a game. IDs are turn-order positions assigned 0..N-1
// at session creation and never reused.
type Player struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// GameSetup is the configuration a session is started from. It is retained
// independently of the session so "play again" can reuse it.
type GameSetup struct {
	PlayerCount     int      `json:"playerCount"`
	TargetScore     int      `json:"targetScore"`
	SelectedPackIDs []string `json:"selectedPackIds"`
}

// RoundBoard is the option board presented for a single question: five
// correct answers and five wrong ones shuffled together.
type RoundBoard struct {
	Options        []string `json:"options"`
	CorrectIndices []int    `json:"correctIndices"`
}

// RoundSnapshot is the serializable per-question round state.
// RevealedIndices preserves reveal order.
type RoundSnapshot struct {
	Board           RoundBoard `json:"board"`
	RevealedIndices []int      `json:"revealedIndices"`
	WrongIndex      *int       `json:"wrongIndex"`
	Banked          bool       `json:"banked"`
	Awarded         bool       `json:"awarded"`
	Score           int        `json:"score"`
	Over            bool       `json:"over"`
}

// GameSnapshot is the full serializable session state. A session restored
// from its snapshot is structurally identical to the one that produced it.
type GameSnapshot struct {
	GameID               string        `json:"gameId"`
	Players              []Player      `json:"players"`
	TargetScore          int           `json:"targetScore"`
	CurrentPlayerIndex   int           `json:"currentPlayerIndex"`
	SelectedPackIDs      []string      `json:"selectedPackIds"`
	QuestionQueue        []string      `json:"questionQueue"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	CurrentQuestionID    string        `json:"currentQuestionId"`
	QuestionText         string        `json:"questionText"`
	Round                RoundSnapshot `json:"round"`
	IsActive             bool          `json:"isActive"`
	Winner               *Player       `json:"winner,omitempty"`
}
