package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escparty/internal/game"
)

func newTestStore(t *testing.T) (*MemoryStore, context.Context) {
	t.Helper()
	return NewMemoryStore(), context.Background()
}

func TestCreateAndGetRoom(t *testing.T) {
	s, ctx := newTestStore(t)

	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))

	room, err := s.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", room.ID)
	assert.Equal(t, "host-1", room.HostID)
	assert.False(t, room.HostIsObserver)
	assert.False(t, room.Started)
	require.Len(t, room.Players, 1)
	assert.Equal(t, "Hosty", room.Players[0].Name)
	assert.False(t, room.CreatedAt.IsZero())
}

func TestCreateRoomCollision(t *testing.T) {
	s, ctx := newTestStore(t)

	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))
	err := s.CreateRoom(ctx, "ABCD", "host-2", "Other", false)
	assert.ErrorIs(t, err, game.ErrRoomExists)
}

func TestGetRoomNotFound(t *testing.T) {
	s, ctx := newTestStore(t)

	_, err := s.GetRoom(ctx, "NOPE")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestGetRoomReturnsCopy(t *testing.T) {
	s, ctx := newTestStore(t)
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))

	room, err := s.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	room.Players[0].Score = 9999

	again, err := s.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Players[0].Score)
}

func TestJoinRoom(t *testing.T) {
	s, ctx := newTestStore(t)
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))

	t.Run("adds a player", func(t *testing.T) {
		require.NoError(t, s.JoinRoom(ctx, "ABCD", "p2", "Loreen"))
		room, _ := s.GetRoom(ctx, "ABCD")
		assert.Len(t, room.Players, 2)
	})

	t.Run("idempotent on player id", func(t *testing.T) {
		require.NoError(t, s.JoinRoom(ctx, "ABCD", "p2", "Loreen Again"))
		room, _ := s.GetRoom(ctx, "ABCD")
		assert.Len(t, room.Players, 2)
	})

	t.Run("idempotent on player name", func(t *testing.T) {
		require.NoError(t, s.JoinRoom(ctx, "ABCD", "p3", "Loreen"))
		room, _ := s.GetRoom(ctx, "ABCD")
		assert.Len(t, room.Players, 2)
	})

	t.Run("rejected after start", func(t *testing.T) {
		require.NoError(t, s.SetDifficulty(ctx, "ABCD", game.DifficultyEasy))
		require.NoError(t, s.StartGame(ctx, "ABCD"))
		err := s.JoinRoom(ctx, "ABCD", "p4", "Latecomer")
		assert.ErrorIs(t, err, game.ErrGameStarted)
	})

	t.Run("missing room", func(t *testing.T) {
		err := s.JoinRoom(ctx, "NOPE", "p5", "Ghost")
		assert.ErrorIs(t, err, game.ErrRoomNotFound)
	})
}

func TestSetDifficulty(t *testing.T) {
	s, ctx := newTestStore(t)
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))

	require.NoError(t, s.SetDifficulty(ctx, "ABCD", game.DifficultyHard))
	room, _ := s.GetRoom(ctx, "ABCD")
	assert.Equal(t, game.DifficultyHard, room.Difficulty)

	// Last selection before start wins
	require.NoError(t, s.SetDifficulty(ctx, "ABCD", game.DifficultyEasy))
	room, _ = s.GetRoom(ctx, "ABCD")
	assert.Equal(t, game.DifficultyEasy, room.Difficulty)

	require.NoError(t, s.StartGame(ctx, "ABCD"))
	err := s.SetDifficulty(ctx, "ABCD", game.DifficultyMedium)
	assert.ErrorIs(t, err, game.ErrGameStarted)
}

func TestStartGame(t *testing.T) {
	s, ctx := newTestStore(t)
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))

	t.Run("requires difficulty", func(t *testing.T) {
		assert.ErrorIs(t, s.StartGame(ctx, "ABCD"), game.ErrNoDifficulty)
	})

	t.Run("starts once difficulty is set", func(t *testing.T) {
		require.NoError(t, s.SetDifficulty(ctx, "ABCD", game.DifficultyMedium))
		require.NoError(t, s.StartGame(ctx, "ABCD"))
		room, _ := s.GetRoom(ctx, "ABCD")
		assert.True(t, room.Started)
	})

	t.Run("starting twice is a no-op", func(t *testing.T) {
		require.NoError(t, s.StartGame(ctx, "ABCD"))
	})
}

func TestUpdatePlayerScore(t *testing.T) {
	s, ctx := newTestStore(t)
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))
	require.NoError(t, s.JoinRoom(ctx, "ABCD", "p2", "Loreen"))

	require.NoError(t, s.UpdatePlayerScore(ctx, "ABCD", "p2", 700))
	room, _ := s.GetRoom(ctx, "ABCD")
	assert.Equal(t, 700, room.Player("p2").Score)
	assert.Equal(t, 0, room.Player("host-1").Score)

	err := s.UpdatePlayerScore(ctx, "ABCD", "ghost", 1)
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestConcurrentScoreWritesCommute(t *testing.T) {
	s, ctx := newTestStore(t)
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", true))
	require.NoError(t, s.JoinRoom(ctx, "ABCD", "p2", "Loreen"))
	require.NoError(t, s.JoinRoom(ctx, "ABCD", "p3", "Måneskin"))

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.UpdatePlayerScore(ctx, "ABCD", "p2", n*10)
		}(i)
		go func(n int) {
			defer wg.Done()
			s.UpdatePlayerScore(ctx, "ABCD", "p3", n*20)
		}(i)
	}
	wg.Wait()

	// Neither player's final write may be lost to the other's
	room, _ := s.GetRoom(ctx, "ABCD")
	assert.NotZero(t, room.Player("p2").Score)
	assert.NotZero(t, room.Player("p3").Score)
}

func TestMidQuizSet(t *testing.T) {
	s, ctx := newTestStore(t)
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", true))
	require.NoError(t, s.JoinRoom(ctx, "ABCD", "p2", "Loreen"))

	t.Run("marks players once", func(t *testing.T) {
		require.NoError(t, s.MarkAtMidQuiz(ctx, "ABCD", "p2"))
		require.NoError(t, s.MarkAtMidQuiz(ctx, "ABCD", "p2"))
		room, _ := s.GetRoom(ctx, "ABCD")
		assert.Equal(t, []string{"p2"}, room.PlayersAtMidQuiz)
	})

	t.Run("observer host is never recorded", func(t *testing.T) {
		require.NoError(t, s.MarkAtMidQuiz(ctx, "ABCD", "host-1"))
		room, _ := s.GetRoom(ctx, "ABCD")
		assert.Equal(t, []string{"p2"}, room.PlayersAtMidQuiz)
	})

	t.Run("unknown player", func(t *testing.T) {
		err := s.MarkAtMidQuiz(ctx, "ABCD", "ghost")
		assert.ErrorIs(t, err, game.ErrPlayerNotFound)
	})

	t.Run("reset clears the set", func(t *testing.T) {
		require.NoError(t, s.ResetMidQuiz(ctx, "ABCD"))
		room, _ := s.GetRoom(ctx, "ABCD")
		assert.Empty(t, room.PlayersAtMidQuiz)
	})
}

func TestContinueSeqBumpsOnTrueEdgeOnly(t *testing.T) {
	s, ctx := newTestStore(t)
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))

	room, _ := s.GetRoom(ctx, "ABCD")
	assert.EqualValues(t, 0, room.ContinueSeq)

	require.NoError(t, s.SetContinueReady(ctx, "ABCD", true))
	room, _ = s.GetRoom(ctx, "ABCD")
	assert.True(t, room.ContinueReady)
	assert.EqualValues(t, 1, room.ContinueSeq)

	// true while already true is not an edge
	require.NoError(t, s.SetContinueReady(ctx, "ABCD", true))
	room, _ = s.GetRoom(ctx, "ABCD")
	assert.EqualValues(t, 1, room.ContinueSeq)

	require.NoError(t, s.SetContinueReady(ctx, "ABCD", false))
	require.NoError(t, s.SetContinueReady(ctx, "ABCD", true))
	room, _ = s.GetRoom(ctx, "ABCD")
	assert.EqualValues(t, 2, room.ContinueSeq)
}

func awaitRoom(t *testing.T, ch chan *game.Room) *game.Room {
	t.Helper()
	select {
	case room := <-ch:
		return room
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room snapshot")
		return nil
	}
}

func TestListenToRoom(t *testing.T) {
	s, ctx := newTestStore(t)
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))

	updates := make(chan *game.Room, 16)
	unsub, err := s.ListenToRoom(ctx, "ABCD", func(room *game.Room) {
		updates <- room
	})
	require.NoError(t, err)
	defer unsub()

	t.Run("initial snapshot arrives immediately", func(t *testing.T) {
		room := awaitRoom(t, updates)
		require.NotNil(t, room)
		assert.Equal(t, "ABCD", room.ID)
	})

	t.Run("changes are delivered", func(t *testing.T) {
		require.NoError(t, s.JoinRoom(ctx, "ABCD", "p2", "Loreen"))
		room := awaitRoom(t, updates)
		require.NotNil(t, room)
		assert.NotNil(t, room.Player("p2"))
	})

	t.Run("deletion delivers nil", func(t *testing.T) {
		require.NoError(t, s.DeleteRoom(ctx, "ABCD"))
		assert.Nil(t, awaitRoom(t, updates))
	})
}

func TestListenToRoomMissing(t *testing.T) {
	s, ctx := newTestStore(t)
	_, err := s.ListenToRoom(ctx, "NOPE", func(*game.Room) {})
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s, ctx := newTestStore(t)
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))

	updates := make(chan *game.Room, 16)
	unsub, err := s.ListenToRoom(ctx, "ABCD", func(room *game.Room) {
		updates <- room
	})
	require.NoError(t, err)

	awaitRoom(t, updates) // initial snapshot
	unsub()
	unsub() // safe to call twice

	require.NoError(t, s.JoinRoom(ctx, "ABCD", "p2", "Loreen"))
	select {
	case room := <-updates:
		t.Fatalf("unexpected delivery after unsubscribe: %+v", room)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestListenToRoomContextCancelReleasesSubscriber(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRoom(ctx, "ABCD", "host-1", "Hosty", false))

	listenCtx, cancel := context.WithCancel(ctx)
	_, err := s.ListenToRoom(listenCtx, "ABCD", func(*game.Room) {})
	require.NoError(t, err)
	assert.Equal(t, 1, s.subscriberCount("ABCD"))

	// A caller abandoning its context must not depend on also calling
	// unsubscribe; the listener cleans up after itself.
	cancel()
	assert.Eventually(t, func() bool {
		return s.subscriberCount("ABCD") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *MemoryStore) subscriberCount(code string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[code])
}

func TestDeleteRoomMissing(t *testing.T) {
	s, ctx := newTestStore(t)
	assert.ErrorIs(t, s.DeleteRoom(ctx, "NOPE"), game.ErrRoomNotFound)
}

func TestGenerateRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateRoomCode(4)
		require.Len(t, code, 4)
		for _, c := range code {
			assert.True(t, c >= 'A' && c <= 'Z', "unexpected character %q in %s", c, code)
		}
		seen[code] = true
	}
	// 100 draws from 26^4 codes colliding down to a handful would mean a
	// broken generator
	assert.Greater(t, len(seen), 90)
}

// collidingStore forces CreateRoom collisions to exercise the retry loop.
type collidingStore struct {
	*MemoryStore
	failures int
	attempts []string
}

func (c *collidingStore) CreateRoom(ctx context.Context, code, hostID, hostName string, hostIsObserver bool) error {
	c.attempts = append(c.attempts, code)
	if len(c.attempts) <= c.failures {
		return game.ErrRoomExists
	}
	return c.MemoryStore.CreateRoom(ctx, code, hostID, hostName, hostIsObserver)
}

func TestCreateRoomWithFreshCode(t *testing.T) {
	ctx := context.Background()

	t.Run("retries on collision", func(t *testing.T) {
		s := &collidingStore{MemoryStore: NewMemoryStore(), failures: 3}
		code, err := CreateRoomWithFreshCode(ctx, s, 4, "host-1", "Hosty", false)
		require.NoError(t, err)
		assert.Len(t, code, 4)
		assert.Len(t, s.attempts, 4)

		room, err := s.GetRoom(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "host-1", room.HostID)
	})

	t.Run("gives up eventually", func(t *testing.T) {
		s := &collidingStore{MemoryStore: NewMemoryStore(), failures: 1000}
		_, err := CreateRoomWithFreshCode(ctx, s, 4, "host-1", "Hosty", false)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "room code"))
	})
}
