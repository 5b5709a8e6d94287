package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/insightflow/insightflow/internal/chat/session"
)

const keyPrefix = "insightflow:chat:"

// Store keeps chat history in a redis list per session so sessions
// survive restarts and can be shared across replicas.
type Store struct {
	client   *goredis.Client
	maxTurns int
	ttl      time.Duration
}

// New builds a redis-backed session store bounded to maxTurns.
func New(client *goredis.Client, maxTurns int, ttl time.Duration) *Store {
	if maxTurns <= 0 {
		maxTurns = 12
	}
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Store{client: client, maxTurns: maxTurns, ttl: ttl}
}

func key(sessionID string) string { return keyPrefix + sessionID }

func (s *Store) AppendTurn(ctx context.Context, sessionID string, turn session.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key(sessionID), payload)
	pipe.LTrim(ctx, key(sessionID), int64(-s.maxTurns), -1)
	pipe.Expire(ctx, key(sessionID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) Turns(ctx context.Context, sessionID string) ([]session.Turn, error) {
	raw, err := s.client.LRange(ctx, key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	turns := make([]session.Turn, 0, len(raw))
	for _, item := range raw {
		var t session.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, key(sessionID)).Err()
}
