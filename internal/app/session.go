package app

import (
	"fmt"
	"math/rand"
	"sync"

	"pushluck-trivia-service/internal/content"
	"pushluck-trivia-service/internal/domain"
)

// Session is the authoritative in-memory state of one game: players, turn
// order, the shuffled question queue, and the per-question round. All
// mutations go through its methods; the service layer never touches fields.
type Session struct {
	mu sync.RWMutex

	gameID               string
	setup                domain.GameSetup
	players              []domain.Player
	targetScore          int
	currentPlayerIndex   int
	selectedPackIDs      []string
	questionQueue        []string
	currentQuestionIndex int
	active               bool
	winner               *domain.Player

	// pool is the immutable question snapshot resolved once at start,
	// indexed by ID for queue lookups.
	pool map[string]domain.Question
	rnd  *rand.Rand

	round roundState

	subscribers map[chan domain.GameSnapshot]struct{}
}

// roundState is the ephemeral per-question scoring state. It is reset
// whenever the active question changes.
type roundState struct {
	board      domain.RoundBoard
	correctSet map[int]struct{}
	revealed   []int // reveal order preserved
	wrongIndex int   // -1 until a bust
	banked     bool
	awarded    bool
}

func newRoundState(board domain.RoundBoard) roundState {
	correctSet := make(map[int]struct{}, len(board.CorrectIndices))
	for _, idx := range board.CorrectIndices {
		correctSet[idx] = struct{}{}
	}
	return roundState{board: board, correctSet: correctSet, wrongIndex: -1}
}

func (r *roundState) over() bool {
	return r.wrongIndex >= 0 || r.banked || len(r.revealed) == content.MinCorrectAnswers
}

// score is the round's current worth: 0 after a bust or before any reveal,
// otherwise 2^(revealed-1).
func (r *roundState) score() int {
	if r.wrongIndex >= 0 || len(r.revealed) == 0 {
		return 0
	}
	return 1 << (len(r.revealed) - 1)
}

func newSession(gameID string, setup domain.GameSetup, pool map[string]domain.Question, queue []string, rnd *rand.Rand) (*Session, error) {
	players := make([]domain.Player, setup.PlayerCount)
	for i := range players {
		players[i] = domain.Player{ID: i, Name: fmt.Sprintf("Player %d", i+1)}
	}
	s := &Session{
		gameID:          gameID,
		setup:           setup,
		players:         players,
		targetScore:     setup.TargetScore,
		selectedPackIDs: setup.SelectedPackIDs,
		questionQueue:   queue,
		active:          true,
		pool:            pool,
		rnd:             rnd,
		subscribers:     make(map[chan domain.GameSnapshot]struct{}),
	}
	if err := s.buildRoundLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// restoreSession rebuilds a live session verbatim from a persisted snapshot.
func restoreSession(snap domain.GameSnapshot, setup domain.GameSetup, pool map[string]domain.Question, rnd *rand.Rand) *Session {
	s := &Session{
		gameID:               snap.GameID,
		setup:                setup,
		players:              append([]domain.Player(nil), snap.Players...),
		targetScore:          snap.TargetScore,
		currentPlayerIndex:   snap.CurrentPlayerIndex,
		selectedPackIDs:      append([]string(nil), snap.SelectedPackIDs...),
		questionQueue:        append([]string(nil), snap.QuestionQueue...),
		currentQuestionIndex: snap.CurrentQuestionIndex,
		active:               snap.IsActive,
		pool:                 pool,
		rnd:                  rnd,
		subscribers:          make(map[chan domain.GameSnapshot]struct{}),
	}
	if snap.Winner != nil {
		winner := *snap.Winner
		s.winner = &winner
	}
	round := newRoundState(domain.RoundBoard{
		Options:        append([]string(nil), snap.Round.Board.Options...),
		CorrectIndices: append([]int(nil), snap.Round.Board.CorrectIndices...),
	})
	round.revealed = append([]int(nil), snap.Round.RevealedIndices...)
	if snap.Round.WrongIndex != nil {
		round.wrongIndex = *snap.Round.WrongIndex
	}
	round.banked = snap.Round.Banked
	round.awarded = snap.Round.Awarded
	s.round = round
	return s
}

// currentQuestionLocked selects the active question. The queue index grows
// without bound and wraps via modulo, so the queue is replayed cyclically
// until the game ends once it is exhausted.
func (s *Session) currentQuestionLocked() (domain.Question, error) {
	id := s.questionQueue[s.currentQuestionIndex%len(s.questionQueue)]
	q, ok := s.pool[id]
	if !ok {
		return domain.Question{}, fmt.Errorf("question %q: %w", id, domain.ErrQuestionNotFound)
	}
	return q, nil
}

func (s *Session) buildRoundLocked() error {
	q, err := s.currentQuestionLocked()
	if err != nil {
		return err
	}
	board, err := content.BuildRoundBoard(s.rnd, q)
	if err != nil {
		return fmt.Errorf("question %q: %w", q.ID, err)
	}
	s.round = newRoundState(board)
	return nil
}

// pickOption applies one pick to the round state machine. Picking an
// already-revealed correct option is a no-op; a wrong pick busts the round
// and locks in a zero award; the fifth correct reveal completes the round
// and awards 16 points.
func (s *Session) pickOption(optionIndex int) (domain.GameSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return domain.GameSnapshot{}, domain.ErrGameEnded
	}
	if s.round.over() {
		return domain.GameSnapshot{}, domain.ErrRoundOver
	}
	if optionIndex < 0 || optionIndex >= len(s.round.board.Options) {
		return domain.GameSnapshot{}, domain.ErrOptionOutOfRange
	}

	if _, correct := s.round.correctSet[optionIndex]; !correct {
		s.round.wrongIndex = optionIndex
		// Bust awards zero immediately so a stray bank cannot score later.
		s.round.awarded = true
		return s.broadcastLocked(), nil
	}

	for _, idx := range s.round.revealed {
		if idx == optionIndex {
			return s.snapshotLocked(), nil
		}
	}
	s.round.revealed = append(s.round.revealed, optionIndex)

	if len(s.round.revealed) == content.MinCorrectAnswers && !s.round.awarded {
		s.applyAwardLocked(s.round.score())
	}
	return s.broadcastLocked(), nil
}

// bank locks in the current round score. Legal only while the round is live
// and at least one correct answer has been revealed.
func (s *Session) bank() (domain.GameSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return domain.GameSnapshot{}, domain.ErrGameEnded
	}
	if s.round.over() {
		return domain.GameSnapshot{}, domain.ErrRoundOver
	}
	if len(s.round.revealed) == 0 {
		return domain.GameSnapshot{}, domain.ErrNothingToBank
	}

	s.round.banked = true
	if !s.round.awarded {
		s.applyAwardLocked(s.round.score())
	}
	return s.broadcastLocked(), nil
}

// nextTurn rotates to the next player and advances the question index. The
// index is never reset; wrap-around happens at lookup time. Round state is
// rebuilt for the new question.
func (s *Session) nextTurn() (domain.GameSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return domain.GameSnapshot{}, domain.ErrGameEnded
	}

	s.currentPlayerIndex = (s.currentPlayerIndex + 1) % len(s.players)
	s.currentQuestionIndex++
	if err := s.buildRoundLocked(); err != nil {
		return domain.GameSnapshot{}, err
	}
	return s.broadcastLocked(), nil
}

// end terminates the session explicitly (player quit). Idempotent.
func (s *Session) end() domain.GameSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.active = false
	}
	return s.broadcastLocked()
}

// applyAwardLocked adds points to the current player, marks the round
// awarded, and evaluates the win condition synchronously. Reaching the
// target ends the session on the spot.
func (s *Session) applyAwardLocked(points int) {
	s.round.awarded = true
	player := &s.players[s.currentPlayerIndex]
	player.Score += points
	if player.Score >= s.targetScore {
		winner := *player
		s.winner = &winner
		s.active = false
	}
}

// Snapshot returns the full serializable session state.
func (s *Session) Snapshot() domain.GameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) subscribe() (<-chan domain.GameSnapshot, func()) {
	ch := make(chan domain.GameSnapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.GameSnapshot {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale update so a slow client never blocks the game.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Session) snapshotLocked() domain.GameSnapshot {
	var questionID, questionText string
	if q, err := s.currentQuestionLocked(); err == nil {
		questionID = q.ID
		questionText = q.Text
	}

	var wrongIndex *int
	if s.round.wrongIndex >= 0 {
		idx := s.round.wrongIndex
		wrongIndex = &idx
	}
	var winner *domain.Player
	if s.winner != nil {
		w := *s.winner
		winner = &w
	}

	return domain.GameSnapshot{
		GameID:               s.gameID,
		Players:              append([]domain.Player(nil), s.players...),
		TargetScore:          s.targetScore,
		CurrentPlayerIndex:   s.currentPlayerIndex,
		SelectedPackIDs:      append([]string(nil), s.selectedPackIDs...),
		QuestionQueue:        append([]string(nil), s.questionQueue...),
		CurrentQuestionIndex: s.currentQuestionIndex,
		CurrentQuestionID:    questionID,
		QuestionText:         questionText,
		Round: domain.RoundSnapshot{
			Board: domain.RoundBoard{
				Options:        append([]string(nil), s.round.board.Options...),
				CorrectIndices: append([]int(nil), s.round.board.CorrectIndices...),
			},
			RevealedIndices: append([]int(nil), s.round.revealed...),
			WrongIndex:      wrongIndex,
			Banked:          s.round.banked,
			Awarded:         s.round.awarded,
			Score:           s.round.score(),
			Over:            s.round.over(),
		},
		IsActive: s.active,
		Winner:   winner,
	}
}
