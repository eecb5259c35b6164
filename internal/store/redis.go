package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"escparty/internal/game"
)

// RedisStore keeps each room as one Redis hash plus a checkpoint set, with a
// pub/sub channel per room carrying change pings. Scalar room fields are
// individual hash fields and every player is its own hash field, so all
// writes are per-field: two players updating their scores, or a join racing
// a difficulty change, can never clobber each other.
type RedisStore struct {
	rdb *redis.Client
}

// ConnectRedis dials Redis and verifies the connection with a short ping.
func ConnectRedis(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func roomKey(code string) string    { return "escparty:room:" + code }
func midQuizKey(code string) string { return "escparty:room:" + code + ":midquiz" }
func changesKey(code string) string { return "escparty:room:" + code + ":changes" }

const playerFieldPrefix = "player:"

// classify maps backend failures onto the shared taxonomy so callers can use
// errors.Is without knowing the backend.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if err == redis.Nil {
		return game.ErrRoomNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "NOAUTH") || strings.Contains(msg, "NOPERM") {
		return fmt.Errorf("%w: %v", game.ErrPermissionDenied, err)
	}
	return err
}

// CreateRoom initializes the room hash, guarded by HSETNX on the id field so
// an occupied code is never overwritten.
func (s *RedisStore) CreateRoom(ctx context.Context, code, hostID, hostName string, hostIsObserver bool) error {
	created, err := s.rdb.HSetNX(ctx, roomKey(code), "id", code).Result()
	if err != nil {
		return classify(err)
	}
	if !created {
		return game.ErrRoomExists
	}

	host := game.NewPlayer(hostID, hostName)
	hostJSON, err := json.Marshal(host)
	if err != nil {
		return fmt.Errorf("failed to marshal host player: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, roomKey(code),
		"hostId", hostID,
		"hostIsObserver", boolField(hostIsObserver),
		"started", "0",
		"continueReady", "0",
		"continueSeq", "0",
		"createdAt", time.Now().Format(time.RFC3339Nano),
		playerFieldPrefix+hostID, hostJSON,
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return classify(err)
	}

	s.publish(ctx, code, "changed")
	return nil
}

// GetRoom reassembles the document from its hash fields.
func (s *RedisStore) GetRoom(ctx context.Context, code string) (*game.Room, error) {
	fields, err := s.rdb.HGetAll(ctx, roomKey(code)).Result()
	if err != nil {
		return nil, classify(err)
	}
	if len(fields) == 0 {
		return nil, game.ErrRoomNotFound
	}

	atMidQuiz, err := s.rdb.SMembers(ctx, midQuizKey(code)).Result()
	if err != nil {
		return nil, classify(err)
	}
	sort.Strings(atMidQuiz)

	return roomFromFields(fields, atMidQuiz)
}

func roomFromFields(fields map[string]string, atMidQuiz []string) (*game.Room, error) {
	room := &game.Room{
		ID:               fields["id"],
		HostID:           fields["hostId"],
		HostIsObserver:   fields["hostIsObserver"] == "1",
		Started:          fields["started"] == "1",
		Difficulty:       game.Difficulty(fields["difficulty"]),
		ContinueReady:    fields["continueReady"] == "1",
		PlayersAtMidQuiz: atMidQuiz,
	}
	if atMidQuiz == nil {
		room.PlayersAtMidQuiz = []string{}
	}
	if seq := fields["continueSeq"]; seq != "" {
		n, err := strconv.ParseInt(seq, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad continueSeq field %q: %w", seq, err)
		}
		room.ContinueSeq = n
	}
	if created := fields["createdAt"]; created != "" {
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("bad createdAt field %q: %w", created, err)
		}
		room.CreatedAt = t
	}

	for field, value := range fields {
		if !strings.HasPrefix(field, playerFieldPrefix) {
			continue
		}
		var p game.Player
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			return nil, fmt.Errorf("bad player field %s: %w", field, err)
		}
		room.Players = append(room.Players, p)
	}
	// Hash fields have no order; restore join order
	sort.SliceStable(room.Players, func(i, j int) bool {
		if room.Players[i].JoinedAt.Equal(room.Players[j].JoinedAt) {
			return room.Players[i].ID < room.Players[j].ID
		}
		return room.Players[i].JoinedAt.Before(room.Players[j].JoinedAt)
	})

	return room, nil
}

// JoinRoom adds the player as a fresh hash field. The existence and name
// checks read the latest document first; the write itself is HSETNX on the
// player's own field, so a concurrent join of a different player is never
// discarded.
func (s *RedisStore) JoinRoom(ctx context.Context, code, playerID, playerName string) error {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if err := room.ValidateJoin(); err != nil {
		return err
	}
	if room.Player(playerID) != nil || room.HasPlayerNamed(playerName) {
		return nil
	}

	playerJSON, err := json.Marshal(game.NewPlayer(playerID, playerName))
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}
	if _, err := s.rdb.HSetNX(ctx, roomKey(code), playerFieldPrefix+playerID, playerJSON).Result(); err != nil {
		return classify(err)
	}

	s.publish(ctx, code, "changed")
	return nil
}

// SetDifficulty writes the difficulty field; last write before start wins.
func (s *RedisStore) SetDifficulty(ctx context.Context, code string, d game.Difficulty) error {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if room.Started {
		return game.ErrGameStarted
	}

	if err := s.rdb.HSet(ctx, roomKey(code), "difficulty", string(d)).Err(); err != nil {
		return classify(err)
	}
	s.publish(ctx, code, "changed")
	return nil
}

// StartGame flips the started field once a difficulty exists.
func (s *RedisStore) StartGame(ctx context.Context, code string) error {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if room.Started {
		return nil
	}
	if !room.Difficulty.Valid() {
		return game.ErrNoDifficulty
	}

	if err := s.rdb.HSet(ctx, roomKey(code), "started", "1").Err(); err != nil {
		return classify(err)
	}
	s.publish(ctx, code, "changed")
	return nil
}

// UpdatePlayerScore rewrites only this player's hash field. Each client owns
// its own player entry, so the read-modify-write here cannot race another
// writer of the same field.
func (s *RedisStore) UpdatePlayerScore(ctx context.Context, code, playerID string, score int) error {
	value, err := s.rdb.HGet(ctx, roomKey(code), playerFieldPrefix+playerID).Result()
	if err == redis.Nil {
		exists, existsErr := s.rdb.Exists(ctx, roomKey(code)).Result()
		if existsErr != nil {
			return classify(existsErr)
		}
		if exists == 0 {
			return game.ErrRoomNotFound
		}
		return game.ErrPlayerNotFound
	}
	if err != nil {
		return classify(err)
	}

	var p game.Player
	if err := json.Unmarshal([]byte(value), &p); err != nil {
		return fmt.Errorf("bad player field for %s: %w", playerID, err)
	}
	p.Score = score
	playerJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}
	if err := s.rdb.HSet(ctx, roomKey(code), playerFieldPrefix+playerID, playerJSON).Err(); err != nil {
		return classify(err)
	}

	s.publish(ctx, code, "changed")
	return nil
}

// MarkAtMidQuiz records checkpoint arrival via SADD, which is naturally
// idempotent and commutative across participants.
func (s *RedisStore) MarkAtMidQuiz(ctx context.Context, code, playerID string) error {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if room.Player(playerID) == nil {
		return game.ErrPlayerNotFound
	}
	if room.HostIsObserver && playerID == room.HostID {
		return nil
	}

	if err := s.rdb.SAdd(ctx, midQuizKey(code), playerID).Err(); err != nil {
		return classify(err)
	}
	s.publish(ctx, code, "changed")
	return nil
}

// ResetMidQuiz drops the whole checkpoint set.
func (s *RedisStore) ResetMidQuiz(ctx context.Context, code string) error {
	if err := s.rdb.Del(ctx, midQuizKey(code)).Err(); err != nil {
		return classify(err)
	}
	s.publish(ctx, code, "changed")
	return nil
}

// SetContinueReady writes the signal field; the true edge bumps continueSeq
// in the same pipeline.
func (s *RedisStore) SetContinueReady(ctx context.Context, code string, ready bool) error {
	current, err := s.rdb.HGet(ctx, roomKey(code), "continueReady").Result()
	if err == redis.Nil {
		return game.ErrRoomNotFound
	}
	if err != nil {
		return classify(err)
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, roomKey(code), "continueReady", boolField(ready))
	if ready && current != "1" {
		pipe.HIncrBy(ctx, roomKey(code), "continueSeq", 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return classify(err)
	}

	s.publish(ctx, code, "changed")
	return nil
}

// ListenToRoom subscribes to the room's pub/sub channel. Each ping triggers
// a fresh document read, so listeners always see the latest state and may
// skip intermediate writes. A deleted or unreadable room degrades to a
// single nil callback.
func (s *RedisStore) ListenToRoom(ctx context.Context, code string, onChange OnChange) (Unsubscribe, error) {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	pubsub := s.rdb.Subscribe(ctx, changesKey(code))
	// Force the subscription onto the wire before we report success
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, classify(err)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { pubsub.Close() })
	}

	go func() {
		onChange(room)
		for {
			select {
			case <-ctx.Done():
				unsubscribe()
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				if msg.Payload == "deleted" {
					onChange(nil)
					unsubscribe()
					return
				}
				latest, err := s.GetRoom(ctx, code)
				if err != nil {
					onChange(nil)
					unsubscribe()
					return
				}
				onChange(latest)
			}
		}
	}()

	return unsubscribe, nil
}

// DeleteRoom removes both keys and tells listeners the room is gone.
func (s *RedisStore) DeleteRoom(ctx context.Context, code string) error {
	removed, err := s.rdb.Del(ctx, roomKey(code), midQuizKey(code)).Result()
	if err != nil {
		return classify(err)
	}
	if removed == 0 {
		return game.ErrRoomNotFound
	}

	s.publish(ctx, code, "deleted")
	return nil
}

// publish pings listeners. Notification failures are logged by callers that
// care; the mutation itself already succeeded.
func (s *RedisStore) publish(ctx context.Context, code, payload string) {
	s.rdb.Publish(ctx, changesKey(code), payload)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
