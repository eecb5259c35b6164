package store

import (
	"context"
	"sync"
	"time"

	"escparty/internal/game"
)

// MemoryStore holds all room documents in memory. It is the default backend
// for a single-process deployment and the backend every test runs against.
type MemoryStore struct {
	mu      sync.RWMutex
	rooms   map[string]*game.Room
	subs    map[string]map[int]*subscriber
	nextSub int
}

// subscriber delivers latest-wins snapshots to one listener. The channel is
// buffered at 1 and older undelivered snapshots are replaced, matching the
// backend guarantee that only the latest document view is delivered.
type subscriber struct {
	ch   chan *game.Room
	done chan struct{}
	once sync.Once
}

func (s *subscriber) push(room *game.Room) {
	for {
		select {
		case s.ch <- room:
			return
		default:
		}
		// Buffer full: drop the stale snapshot and retry
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*game.Room),
		subs:  make(map[string]map[int]*subscriber),
	}
}

// CreateRoom initializes a room document with the host as the only player.
func (s *MemoryStore) CreateRoom(ctx context.Context, code, hostID, hostName string, hostIsObserver bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[code]; exists {
		return game.ErrRoomExists
	}

	s.rooms[code] = &game.Room{
		ID:               code,
		HostID:           hostID,
		HostIsObserver:   hostIsObserver,
		Players:          []game.Player{game.NewPlayer(hostID, hostName)},
		PlayersAtMidQuiz: []string{},
		CreatedAt:        time.Now(),
	}

	s.notifyLocked(code)
	return nil
}

// GetRoom retrieves a copy of the room document.
func (s *MemoryStore) GetRoom(ctx context.Context, code string) (*game.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, exists := s.rooms[code]
	if !exists {
		return nil, game.ErrRoomNotFound
	}

	return room.Clone(), nil
}

// JoinRoom appends a player unless the id or name is already present.
func (s *MemoryStore) JoinRoom(ctx context.Context, code, playerID, playerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[code]
	if !exists {
		return game.ErrRoomNotFound
	}
	if err := room.ValidateJoin(); err != nil {
		return err
	}
	if room.Player(playerID) != nil || room.HasPlayerNamed(playerName) {
		return nil // already in, treat as success
	}

	room.Players = append(room.Players, game.NewPlayer(playerID, playerName))
	s.notifyLocked(code)
	return nil
}

// SetDifficulty records the host's choice while the room is still in the lobby.
func (s *MemoryStore) SetDifficulty(ctx context.Context, code string, d game.Difficulty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[code]
	if !exists {
		return game.ErrRoomNotFound
	}
	if room.Started {
		return game.ErrGameStarted
	}

	room.Difficulty = d
	s.notifyLocked(code)
	return nil
}

// StartGame flips the monotonic started flag.
func (s *MemoryStore) StartGame(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[code]
	if !exists {
		return game.ErrRoomNotFound
	}
	if room.Started {
		return nil
	}
	if !room.Difficulty.Valid() {
		return game.ErrNoDifficulty
	}

	room.Started = true
	s.notifyLocked(code)
	return nil
}

// UpdatePlayerScore writes a single player's score in place. Other players'
// entries are untouched, so concurrent score writes never lose updates.
func (s *MemoryStore) UpdatePlayerScore(ctx context.Context, code, playerID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[code]
	if !exists {
		return game.ErrRoomNotFound
	}
	player := room.Player(playerID)
	if player == nil {
		return game.ErrPlayerNotFound
	}

	player.Score = score
	s.notifyLocked(code)
	return nil
}

// MarkAtMidQuiz adds the player to the checkpoint set. The observer host
// never answers questions, so its id is ignored rather than recorded.
func (s *MemoryStore) MarkAtMidQuiz(ctx context.Context, code, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[code]
	if !exists {
		return game.ErrRoomNotFound
	}
	if room.Player(playerID) == nil {
		return game.ErrPlayerNotFound
	}
	if room.HostIsObserver && playerID == room.HostID {
		return nil
	}
	if room.AtMidQuiz(playerID) {
		return nil
	}

	room.PlayersAtMidQuiz = append(room.PlayersAtMidQuiz, playerID)
	s.notifyLocked(code)
	return nil
}

// ResetMidQuiz clears the checkpoint set.
func (s *MemoryStore) ResetMidQuiz(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[code]
	if !exists {
		return game.ErrRoomNotFound
	}

	room.PlayersAtMidQuiz = []string{}
	s.notifyLocked(code)
	return nil
}

// SetContinueReady publishes the host's continue signal. The true edge bumps
// the continue sequence so participants advance exactly once per cycle even
// if they miss the intermediate false.
func (s *MemoryStore) SetContinueReady(ctx context.Context, code string, ready bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[code]
	if !exists {
		return game.ErrRoomNotFound
	}

	if ready && !room.ContinueReady {
		room.ContinueSeq++
	}
	room.ContinueReady = ready
	s.notifyLocked(code)
	return nil
}

// ListenToRoom subscribes to changes. The callback runs on its own
// goroutine, receives the current document immediately, and receives nil
// exactly once if the room is deleted.
func (s *MemoryStore) ListenToRoom(ctx context.Context, code string, onChange OnChange) (Unsubscribe, error) {
	s.mu.Lock()
	room, exists := s.rooms[code]
	if !exists {
		s.mu.Unlock()
		return nil, game.ErrRoomNotFound
	}

	sub := &subscriber{
		ch:   make(chan *game.Room, 1),
		done: make(chan struct{}),
	}
	id := s.nextSub
	s.nextSub++
	if s.subs[code] == nil {
		s.subs[code] = make(map[int]*subscriber)
	}
	s.subs[code][id] = sub
	sub.push(room.Clone())
	s.mu.Unlock()

	// Every exit path drops the map entry, otherwise a cancelled context
	// would leave the subscriber registered until the room is deleted.
	remove := func() {
		sub.stop()
		s.mu.Lock()
		delete(s.subs[code], id)
		s.mu.Unlock()
	}

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case <-ctx.Done():
				remove()
				return
			case snapshot := <-sub.ch:
				onChange(snapshot)
				if snapshot == nil {
					remove()
					return
				}
			}
		}
	}()

	return remove, nil
}

// DeleteRoom removes the document; listeners observe nil.
func (s *MemoryStore) DeleteRoom(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[code]; !exists {
		return game.ErrRoomNotFound
	}

	delete(s.rooms, code)
	for _, sub := range s.subs[code] {
		sub.push(nil)
	}
	delete(s.subs, code)
	return nil
}

// notifyLocked fans the latest snapshot out to every subscriber. Callers
// hold the write lock.
func (s *MemoryStore) notifyLocked(code string) {
	room := s.rooms[code]
	for _, sub := range s.subs[code] {
		sub.push(room.Clone())
	}
}
