package app_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"pushluck-trivia-service/internal/app"
	"pushluck-trivia-service/internal/domain"
	"pushluck-trivia-service/internal/infra/memory"
)

func TestStartGameValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	cases := []struct {
		name  string
		setup domain.GameSetup
		want  error
	}{
		{"zero players", domain.GameSetup{PlayerCount: 0, TargetScore: 10, SelectedPackIDs: []string{"pack_general_1"}}, domain.ErrInvalidSetup},
		{"zero target", domain.GameSetup{PlayerCount: 2, TargetScore: 0, SelectedPackIDs: []string{"pack_general_1"}}, domain.ErrInvalidSetup},
		{"no packs", domain.GameSetup{PlayerCount: 2, TargetScore: 10}, domain.ErrNoPacksSelected},
		{"unknown pack", domain.GameSetup{PlayerCount: 2, TargetScore: 10, SelectedPackIDs: []string{"nope"}}, domain.ErrPackNotFound},
		{"empty pool", domain.GameSetup{PlayerCount: 2, TargetScore: 10, SelectedPackIDs: []string{"pack_empty"}}, domain.ErrEmptyQuestionPool},
		{"malformed pack", domain.GameSetup{PlayerCount: 2, TargetScore: 10, SelectedPackIDs: []string{"pack_thin"}}, domain.ErrMalformedQuestion},
	}
	for _, tc := range cases {
		if _, err := service.StartGame(ctx, "g1", tc.setup); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		// Validation failures must not leave a session behind.
		if _, err := service.Snapshot(ctx, "g1"); !errors.Is(err, domain.ErrGameNotFound) {
			t.Fatalf("%s: session created despite invalid setup", tc.name)
		}
	}
}

func TestStartGameShufflesQueueAndAssignsPlayers(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	snap, err := service.StartGame(ctx, "g1", domain.GameSetup{
		PlayerCount: 3, TargetScore: 10, SelectedPackIDs: []string{"pack_general_1"},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(snap.Players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(snap.Players))
	}
	for i, p := range snap.Players {
		if p.ID != i || p.Score != 0 || p.Name != fmt.Sprintf("Player %d", i+1) {
			t.Fatalf("player %d misconfigured: %+v", i, p)
		}
	}
	if snap.CurrentPlayerIndex != 0 || snap.CurrentQuestionIndex != 0 {
		t.Fatalf("expected fresh indices, got player=%d question=%d", snap.CurrentPlayerIndex, snap.CurrentQuestionIndex)
	}
	if !snap.IsActive {
		t.Fatalf("expected active session")
	}
	if len(snap.QuestionQueue) != 4 {
		t.Fatalf("expected 4 queued questions, got %d", len(snap.QuestionQueue))
	}
	if len(snap.Round.Board.Options) != 10 || len(snap.Round.Board.CorrectIndices) != 5 {
		t.Fatalf("expected a 10-option board with 5 correct, got %d/%d",
			len(snap.Round.Board.Options), len(snap.Round.Board.CorrectIndices))
	}
}

func TestScoringTable(t *testing.T) {
	// revealed 1 -> 1, 2 -> 2, 3 -> 4, 4 -> 8 banked; 5 -> 16 auto-completed.
	ctx := context.Background()

	for revealed, want := range map[int]int{1: 1, 2: 2, 3: 4, 4: 8, 5: 16} {
		service, _ := newTestService(t)
		if _, err := service.StartGame(ctx, "g1", soloSetup(1000)); err != nil {
			t.Fatalf("start: %v", err)
		}

		snap := revealCorrect(t, service, "g1", revealed)
		if revealed < 5 {
			var err error
			snap, err = service.Bank(ctx, "g1")
			if err != nil {
				t.Fatalf("bank after %d reveals: %v", revealed, err)
			}
			if !snap.Round.Banked {
				t.Fatalf("expected banked round")
			}
		} else {
			if !snap.Round.Over || snap.Round.Banked {
				t.Fatalf("expected auto-completed round, got %+v", snap.Round)
			}
		}
		if got := snap.Players[0].Score; got != want {
			t.Fatalf("revealed=%d: expected score %d, got %d", revealed, want, got)
		}
	}
}

func TestPickIsIdempotentOnRevealedOption(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	if _, err := service.StartGame(ctx, "g1", soloSetup(1000)); err != nil {
		t.Fatalf("start: %v", err)
	}

	first := revealCorrect(t, service, "g1", 1)
	idx := first.Round.RevealedIndices[0]

	again, err := service.PickOption(ctx, "g1", idx)
	if err != nil {
		t.Fatalf("repeat pick: %v", err)
	}
	if !reflect.DeepEqual(first.Round, again.Round) {
		t.Fatalf("repeat pick changed round state:\nbefore %+v\nafter  %+v", first.Round, again.Round)
	}
	if again.Players[0].Score != 0 {
		t.Fatalf("repeat pick changed score: %d", again.Players[0].Score)
	}
}

func TestBustZeroesRoundAndLocksIt(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	if _, err := service.StartGame(ctx, "g1", soloSetup(1000)); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := revealCorrect(t, service, "g1", 3)
	wrong := firstWrongIndex(t, snap)
	snap, err := service.PickOption(ctx, "g1", wrong)
	if err != nil {
		t.Fatalf("wrong pick: %v", err)
	}
	if snap.Round.WrongIndex == nil || *snap.Round.WrongIndex != wrong {
		t.Fatalf("expected wrong index %d recorded, got %+v", wrong, snap.Round.WrongIndex)
	}
	if snap.Round.Score != 0 || snap.Players[0].Score != 0 {
		t.Fatalf("bust must zero the round, got round=%d total=%d", snap.Round.Score, snap.Players[0].Score)
	}

	// Round is terminal: no more picks, no banking.
	if _, err := service.PickOption(ctx, "g1", firstCorrectIndex(t, snap)); !errors.Is(err, domain.ErrRoundOver) {
		t.Fatalf("expected round-over on pick after bust, got %v", err)
	}
	if _, err := service.Bank(ctx, "g1"); !errors.Is(err, domain.ErrRoundOver) {
		t.Fatalf("expected round-over on bank after bust, got %v", err)
	}
}

func TestBankRequiresRevealedAnswers(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	if _, err := service.StartGame(ctx, "g1", soloSetup(1000)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Bank(ctx, "g1"); !errors.Is(err, domain.ErrNothingToBank) {
		t.Fatalf("expected bank rejection with zero revealed, got %v", err)
	}
	snap, err := service.Snapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Round.Banked || snap.Round.Awarded {
		t.Fatalf("rejected bank mutated round state: %+v", snap.Round)
	}
}

func TestTurnRotationAndQuestionAdvance(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	if _, err := service.StartGame(ctx, "g1", domain.GameSetup{
		PlayerCount: 3, TargetScore: 1000, SelectedPackIDs: []string{"pack_general_1"},
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	var snap domain.GameSnapshot
	var err error
	for i := 1; i <= 3; i++ {
		snap, err = service.NextTurn(ctx, "g1")
		if err != nil {
			t.Fatalf("next turn %d: %v", i, err)
		}
		if snap.CurrentPlayerIndex != i%3 {
			t.Fatalf("after %d turns expected player %d, got %d", i, i%3, snap.CurrentPlayerIndex)
		}
	}
	if snap.CurrentQuestionIndex != 3 {
		t.Fatalf("expected question index 3 (never reset), got %d", snap.CurrentQuestionIndex)
	}
}

func TestQuestionQueueWrapsAround(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	if _, err := service.StartGame(ctx, "g1", domain.GameSetup{
		PlayerCount: 1, TargetScore: 1000, SelectedPackIDs: []string{"pack_single"},
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	first, _ := service.Snapshot(ctx, "g1")
	snap, err := service.NextTurn(ctx, "g1")
	if err != nil {
		t.Fatalf("next turn: %v", err)
	}
	if snap.CurrentQuestionIndex != 1 {
		t.Fatalf("expected index 1, got %d", snap.CurrentQuestionIndex)
	}
	// One question in the pool: the queue replays it cyclically.
	if snap.CurrentQuestionID != first.CurrentQuestionID {
		t.Fatalf("expected wrapped queue to replay %s, got %s", first.CurrentQuestionID, snap.CurrentQuestionID)
	}
}

func TestWinConditionEndsSessionImmediately(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	if _, err := service.StartGame(ctx, "g1", soloSetup(10)); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Two banked rounds of 3 reveals each bring the score to 8.
	for i := 0; i < 2; i++ {
		revealCorrect(t, service, "g1", 3)
		if _, err := service.Bank(ctx, "g1"); err != nil {
			t.Fatalf("bank: %v", err)
		}
		if _, err := service.NextTurn(ctx, "g1"); err != nil {
			t.Fatalf("next turn: %v", err)
		}
	}

	revealCorrect(t, service, "g1", 3)
	snap, err := service.Bank(ctx, "g1")
	if err != nil {
		t.Fatalf("final bank: %v", err)
	}
	if snap.Players[0].Score != 12 {
		t.Fatalf("expected final score 12, got %d", snap.Players[0].Score)
	}
	if snap.IsActive {
		t.Fatalf("session must end the moment the target is reached")
	}
	if snap.Winner == nil || snap.Winner.ID != 0 {
		t.Fatalf("expected player 0 as winner, got %+v", snap.Winner)
	}

	// An ended session accepts no further score mutations.
	if _, err := service.PickOption(ctx, "g1", 0); !errors.Is(err, domain.ErrGameEnded) {
		t.Fatalf("expected game-ended on pick, got %v", err)
	}
	if _, err := service.Bank(ctx, "g1"); !errors.Is(err, domain.ErrGameEnded) {
		t.Fatalf("expected game-ended on bank, got %v", err)
	}
	if _, err := service.NextTurn(ctx, "g1"); !errors.Is(err, domain.ErrGameEnded) {
		t.Fatalf("expected game-ended on next turn, got %v", err)
	}
	final, _ := service.Snapshot(ctx, "g1")
	if final.Players[0].Score != 12 {
		t.Fatalf("final scores changed after session end: %d", final.Players[0].Score)
	}
}

func TestTwoPlayerScenario(t *testing.T) {
	// Player 0 reveals 3 and banks (+4); player 1 busts and cannot bank;
	// next turn returns to player 0 with the question index advanced by 2.
	ctx := context.Background()
	service, _ := newTestService(t)
	if _, err := service.StartGame(ctx, "g1", domain.GameSetup{
		PlayerCount: 2, TargetScore: 10, SelectedPackIDs: []string{"pack_general_1"},
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	revealCorrect(t, service, "g1", 3)
	snap, err := service.Bank(ctx, "g1")
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	if snap.Players[0].Score != 4 {
		t.Fatalf("expected player 0 at 4, got %d", snap.Players[0].Score)
	}

	snap, err = service.NextTurn(ctx, "g1")
	if err != nil {
		t.Fatalf("next turn: %v", err)
	}
	if snap.CurrentPlayerIndex != 1 {
		t.Fatalf("expected player 1, got %d", snap.CurrentPlayerIndex)
	}

	snap, err = service.PickOption(ctx, "g1", firstWrongIndex(t, snap))
	if err != nil {
		t.Fatalf("wrong pick: %v", err)
	}
	if snap.Round.WrongIndex == nil {
		t.Fatalf("expected bust")
	}
	if _, err := service.Bank(ctx, "g1"); !errors.Is(err, domain.ErrRoundOver) {
		t.Fatalf("expected bank rejection after bust, got %v", err)
	}

	snap, err = service.NextTurn(ctx, "g1")
	if err != nil {
		t.Fatalf("next turn: %v", err)
	}
	if snap.CurrentPlayerIndex != 0 || snap.CurrentQuestionIndex != 2 {
		t.Fatalf("expected player 0 and question index 2, got %d/%d",
			snap.CurrentPlayerIndex, snap.CurrentQuestionIndex)
	}
	if snap.Players[0].Score != 4 || snap.Players[1].Score != 0 {
		t.Fatalf("unexpected scores: %+v", snap.Players)
	}
}

func TestResumeRestoresSessionVerbatim(t *testing.T) {
	ctx := context.Background()
	service, states := newTestService(t)
	if _, err := service.StartGame(ctx, "g1", domain.GameSetup{
		PlayerCount: 2, TargetScore: 10, SelectedPackIDs: []string{"pack_general_1"},
	}); err != nil {
		t.Fatalf("start: %v", err)
	}
	revealCorrect(t, service, "g1", 2)
	before, err := service.Snapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// A fresh service (fresh registry, same state store) stands in for a
	// restarted process.
	restarted := app.NewGameService(memory.NewSessionRegistry(), states, testPackRepo())
	after, err := restarted.Resume(ctx, "g1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("resumed snapshot differs:\nbefore %+v\nafter  %+v", before, after)
	}

	// The resumed session keeps playing: the pending round still banks.
	snap, err := restarted.Bank(ctx, "g1")
	if err != nil {
		t.Fatalf("bank after resume: %v", err)
	}
	if snap.Players[0].Score != 2 {
		t.Fatalf("expected banked score 2 after resume, got %d", snap.Players[0].Score)
	}
}

func TestRestartReusesLastSetup(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	setup := domain.GameSetup{PlayerCount: 3, TargetScore: 15, SelectedPackIDs: []string{"pack_general_1"}}
	if _, err := service.StartGame(ctx, "g1", setup); err != nil {
		t.Fatalf("start: %v", err)
	}
	revealCorrect(t, service, "g1", 3)
	if _, err := service.Bank(ctx, "g1"); err != nil {
		t.Fatalf("bank: %v", err)
	}
	if _, err := service.EndGame(ctx, "g1"); err != nil {
		t.Fatalf("end: %v", err)
	}

	snap, err := service.Restart(ctx, "g1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if len(snap.Players) != 3 || snap.TargetScore != 15 {
		t.Fatalf("restart lost setup: %+v", snap)
	}
	for _, p := range snap.Players {
		if p.Score != 0 {
			t.Fatalf("restart must reset scores, got %+v", p)
		}
	}

	if _, err := service.Restart(ctx, "never-started"); !errors.Is(err, domain.ErrNoLastSetup) {
		t.Fatalf("expected no-last-setup error, got %v", err)
	}
}

func TestEndGameRemovesPersistedState(t *testing.T) {
	ctx := context.Background()
	service, states := newTestService(t)
	if _, err := service.StartGame(ctx, "g1", soloSetup(10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap, err := service.EndGame(ctx, "g1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if snap.IsActive {
		t.Fatalf("expected inactive session after end")
	}

	restarted := app.NewGameService(memory.NewSessionRegistry(), states, testPackRepo())
	if _, err := restarted.Resume(ctx, "g1"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected resume to fail after end, got %v", err)
	}
}

func TestPersistenceFailureDoesNotCorruptSession(t *testing.T) {
	ctx := context.Background()
	states := &flakyStateStore{StateStore: memory.NewStateStore()}
	service := app.NewGameServiceWithSeed(memory.NewSessionRegistry(), states, testPackRepo(), 7)
	if _, err := service.StartGame(ctx, "g1", soloSetup(1000)); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap, _ := service.Snapshot(ctx, "g1")
	idx := firstCorrectIndex(t, snap)

	states.fail = true
	if _, err := service.PickOption(ctx, "g1", idx); err == nil {
		t.Fatalf("expected surfaced persistence error")
	}
	states.fail = false

	// The in-memory reveal survived the failed write; retrying persists it.
	snap, err := service.Snapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Round.RevealedIndices) != 1 || snap.Round.RevealedIndices[0] != idx {
		t.Fatalf("in-memory state lost on failed persist: %+v", snap.Round)
	}
}

type flakyStateStore struct {
	*memory.StateStore
	fail bool
}

func (f *flakyStateStore) Set(ctx context.Context, key string, data []byte) error {
	if f.fail {
		return errors.New("store unavailable")
	}
	return f.StateStore.Set(ctx, key, data)
}

func newTestService(t *testing.T) (*app.GameService, *memory.StateStore) {
	t.Helper()
	states := memory.NewStateStore()
	service := app.NewGameServiceWithSeed(memory.NewSessionRegistry(), states, testPackRepo(), 7)
	return service, states
}

func testPackRepo() app.PackRepository {
	return memory.NewPackRepository(memory.NewStaticPackLoader(testPacks()), 5*time.Minute)
}

func testPacks() []domain.Pack {
	return []domain.Pack{
		{ID: "pack_general_1", Name: "General", Questions: []domain.Question{
			testQuestion("q1"), testQuestion("q2"), testQuestion("q3"), testQuestion("q4"),
		}},
		{ID: "pack_single", Name: "Single", Questions: []domain.Question{testQuestion("solo")}},
		{ID: "pack_empty", Name: "Empty"},
		{ID: "pack_thin", Name: "Thin", Questions: []domain.Question{{
			ID:             "thin",
			Text:           "not enough answers",
			CorrectAnswers: []string{"a", "b", "c", "d"},
			WrongAnswers:   []string{"e", "f", "g", "h", "i"},
		}}},
	}
}

func testQuestion(id string) domain.Question {
	q := domain.Question{ID: id, Text: "question " + id}
	for i := 1; i <= 5; i++ {
		q.CorrectAnswers = append(q.CorrectAnswers, fmt.Sprintf("%s-c%d", id, i))
		q.WrongAnswers = append(q.WrongAnswers, fmt.Sprintf("%s-w%d", id, i))
	}
	return q
}

func soloSetup(target int) domain.GameSetup {
	return domain.GameSetup{PlayerCount: 1, TargetScore: target, SelectedPackIDs: []string{"pack_general_1"}}
}

// revealCorrect picks n not-yet-revealed correct options for the current
// round and returns the latest snapshot.
func revealCorrect(t *testing.T, service *app.GameService, gameID string, n int) domain.GameSnapshot {
	t.Helper()
	ctx := context.Background()
	snap, err := service.Snapshot(ctx, gameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for i := 0; i < n; i++ {
		idx := firstCorrectIndex(t, snap)
		snap, err = service.PickOption(ctx, gameID, idx)
		if err != nil {
			t.Fatalf("pick correct %d: %v", idx, err)
		}
	}
	return snap
}

// firstCorrectIndex returns a correct board index that has not been revealed.
func firstCorrectIndex(t *testing.T, snap domain.GameSnapshot) int {
	t.Helper()
	revealed := make(map[int]bool, len(snap.Round.RevealedIndices))
	for _, idx := range snap.Round.RevealedIndices {
		revealed[idx] = true
	}
	for _, idx := range snap.Round.Board.CorrectIndices {
		if !revealed[idx] {
			return idx
		}
	}
	t.Fatalf("no unrevealed correct option left")
	return -1
}

// firstWrongIndex returns a board index holding a wrong answer.
func firstWrongIndex(t *testing.T, snap domain.GameSnapshot) int {
	t.Helper()
	correct := make(map[int]bool, len(snap.Round.Board.CorrectIndices))
	for _, idx := range snap.Round.Board.CorrectIndices {
		correct[idx] = true
	}
	for i := range snap.Round.Board.Options {
		if !correct[i] {
			return i
		}
	}
	t.Fatalf("no wrong option on board")
	return -1
}
