package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"pushluck-trivia-service/internal/content"
	"pushluck-trivia-service/internal/domain"
)

// SessionRegistry tracks live sessions by game ID (in-memory, per process).
type SessionRegistry interface {
	Put(gameID string, session *Session)
	Get(gameID string) (*Session, bool)
	Delete(gameID string)
}

// StateStore is the persistence collaborator: named string blobs with
// get/set/remove semantics. Get returns (nil, nil) for a missing key.
type StateStore interface {
	Set(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// PackRepository loads the pack catalog (bundled, cached, or remote).
type PackRepository interface {
	GetPacks(ctx context.Context) ([]domain.Pack, error)
}

// GameService contains the game use cases: start, pick, bank, advance turn,
// end, restart, and resume. Sessions live in the registry; every mutation is
// followed by a snapshot write to the state store so a process restart can
// resume mid-game.
type GameService struct {
	registry SessionRegistry
	states   StateStore
	packs    PackRepository
	newRand  func() *rand.Rand
}

func NewGameService(registry SessionRegistry, states StateStore, packs PackRepository) *GameService {
	return &GameService{
		registry: registry,
		states:   states,
		packs:    packs,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// NewGameServiceWithSeed is test-only for deterministic shuffles.
func NewGameServiceWithSeed(registry SessionRegistry, states StateStore, packs PackRepository, seed int64) *GameService {
	svc := NewGameService(registry, states, packs)
	svc.newRand = func() *rand.Rand { return rand.New(rand.NewSource(seed)) }
	return svc
}

func stateKey(gameID string) string { return "game:state:" + gameID }
func setupKey(gameID string) string { return "game:setup:" + gameID }

// StartGame validates the setup, resolves the question pool once, shuffles
// the queue, and creates a fresh session. No session is created and nothing
// is persisted when validation fails.
func (s *GameService) StartGame(ctx context.Context, gameID string, setup domain.GameSetup) (domain.GameSnapshot, error) {
	if setup.PlayerCount < 1 || setup.TargetScore < 1 {
		return domain.GameSnapshot{}, domain.ErrInvalidSetup
	}
	if len(setup.SelectedPackIDs) == 0 {
		return domain.GameSnapshot{}, domain.ErrNoPacksSelected
	}

	packs, err := s.packs.GetPacks(ctx)
	if err != nil {
		return domain.GameSnapshot{}, fmt.Errorf("load packs: %w", err)
	}
	byID := make(map[string]domain.Pack, len(packs))
	for _, p := range packs {
		byID[p.ID] = p
	}
	for _, id := range setup.SelectedPackIDs {
		pack, ok := byID[id]
		if !ok {
			return domain.GameSnapshot{}, fmt.Errorf("pack %q: %w", id, domain.ErrPackNotFound)
		}
		// Remote packs skip load-time validation, so check here before any
		// session exists.
		if err := content.ValidatePack(pack); err != nil {
			return domain.GameSnapshot{}, err
		}
	}

	pool := content.QuestionsForPacks(setup.SelectedPackIDs, packs)
	if len(pool) == 0 {
		return domain.GameSnapshot{}, domain.ErrEmptyQuestionPool
	}

	poolByID := make(map[string]domain.Question, len(pool))
	ids := make([]string, 0, len(pool))
	for _, q := range pool {
		poolByID[q.ID] = q
		ids = append(ids, q.ID)
	}

	rnd := s.newRand()
	queue := content.Shuffle(rnd, ids)

	session, err := newSession(gameID, setup, poolByID, queue, rnd)
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	s.registry.Put(gameID, session)

	snap := session.Snapshot()
	if err := s.persistSetup(ctx, gameID, setup); err != nil {
		return snap, err
	}
	return snap, s.persistState(ctx, gameID, snap)
}

// Restart starts a fresh session (new players, new shuffle) from the
// persisted last setup of this game.
func (s *GameService) Restart(ctx context.Context, gameID string) (domain.GameSnapshot, error) {
	data, err := s.states.Get(ctx, setupKey(gameID))
	if err != nil {
		return domain.GameSnapshot{}, fmt.Errorf("load setup: %w", err)
	}
	if data == nil {
		return domain.GameSnapshot{}, domain.ErrNoLastSetup
	}
	var setup domain.GameSetup
	if err := json.Unmarshal(data, &setup); err != nil {
		return domain.GameSnapshot{}, fmt.Errorf("decode setup: %w", err)
	}
	return s.StartGame(ctx, gameID, setup)
}

// Resume rebuilds a live session verbatim from its persisted snapshot, e.g.
// after a process restart.
func (s *GameService) Resume(ctx context.Context, gameID string) (domain.GameSnapshot, error) {
	if session, ok := s.registry.Get(gameID); ok {
		return session.Snapshot(), nil
	}

	data, err := s.states.Get(ctx, stateKey(gameID))
	if err != nil {
		return domain.GameSnapshot{}, fmt.Errorf("load state: %w", err)
	}
	if data == nil {
		return domain.GameSnapshot{}, domain.ErrGameNotFound
	}
	var snap domain.GameSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.GameSnapshot{}, fmt.Errorf("decode state: %w", err)
	}

	packs, err := s.packs.GetPacks(ctx)
	if err != nil {
		return domain.GameSnapshot{}, fmt.Errorf("load packs: %w", err)
	}
	pool := content.QuestionsForPacks(snap.SelectedPackIDs, packs)
	poolByID := make(map[string]domain.Question, len(pool))
	for _, q := range pool {
		poolByID[q.ID] = q
	}

	setup := domain.GameSetup{
		PlayerCount:     len(snap.Players),
		TargetScore:     snap.TargetScore,
		SelectedPackIDs: snap.SelectedPackIDs,
	}
	session := restoreSession(snap, setup, poolByID, s.newRand())
	s.registry.Put(gameID, session)
	return session.Snapshot(), nil
}

// PickOption reveals or busts one option on the current round board.
func (s *GameService) PickOption(ctx context.Context, gameID string, optionIndex int) (domain.GameSnapshot, error) {
	session, ok := s.registry.Get(gameID)
	if !ok {
		return domain.GameSnapshot{}, domain.ErrGameNotFound
	}
	snap, err := session.pickOption(optionIndex)
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	return snap, s.persistState(ctx, gameID, snap)
}

// Bank locks in the current round score for the active player.
func (s *GameService) Bank(ctx context.Context, gameID string) (domain.GameSnapshot, error) {
	session, ok := s.registry.Get(gameID)
	if !ok {
		return domain.GameSnapshot{}, domain.ErrGameNotFound
	}
	snap, err := session.bank()
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	return snap, s.persistState(ctx, gameID, snap)
}

// NextTurn rotates to the next player and advances to the next question.
func (s *GameService) NextTurn(ctx context.Context, gameID string) (domain.GameSnapshot, error) {
	session, ok := s.registry.Get(gameID)
	if !ok {
		return domain.GameSnapshot{}, domain.ErrGameNotFound
	}
	snap, err := session.nextTurn()
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	return snap, s.persistState(ctx, gameID, snap)
}

// EndGame terminates the session explicitly. The persisted snapshot is
// removed; the last setup is kept so the game can be restarted.
func (s *GameService) EndGame(ctx context.Context, gameID string) (domain.GameSnapshot, error) {
	session, ok := s.registry.Get(gameID)
	if !ok {
		return domain.GameSnapshot{}, domain.ErrGameNotFound
	}
	snap := session.end()
	s.registry.Delete(gameID)
	if err := s.states.Remove(ctx, stateKey(gameID)); err != nil {
		return snap, fmt.Errorf("remove state: %w", err)
	}
	return snap, nil
}

// Snapshot returns the current state of a live game.
func (s *GameService) Snapshot(_ context.Context, gameID string) (domain.GameSnapshot, error) {
	session, ok := s.registry.Get(gameID)
	if !ok {
		return domain.GameSnapshot{}, domain.ErrGameNotFound
	}
	return session.Snapshot(), nil
}

// Subscribe returns a channel receiving a snapshot after every mutation.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(_ context.Context, gameID string) (<-chan domain.GameSnapshot, func(), error) {
	session, ok := s.registry.Get(gameID)
	if !ok {
		return nil, nil, domain.ErrGameNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// persistState writes the snapshot after the in-memory mutation has been
// applied. A failed write is surfaced to the caller but never rolls back
// session state; the caller may retry.
func (s *GameService) persistState(ctx context.Context, gameID string, snap domain.GameSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.states.Set(ctx, stateKey(gameID), data); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (s *GameService) persistSetup(ctx context.Context, gameID string, setup domain.GameSetup) error {
	data, err := json.Marshal(setup)
	if err != nil {
		return fmt.Errorf("encode setup: %w", err)
	}
	if err := s.states.Set(ctx, setupKey(gameID), data); err != nil {
		return fmt.Errorf("persist setup: %w", err)
	}
	return nil
}
