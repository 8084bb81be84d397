package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"mentorlounge/shared/message"
)

var ErrSessionNotFound = errors.New("plan build session not found")

// PlanBuild is the stored state of one session. Status keeps the backend's
// own vocabulary; clients map it.
type PlanBuild struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id,omitempty"`
	Topic       string    `json:"topic"`
	Goal        string    `json:"goal,omitempty"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	ResultID    string    `json:"result_id,omitempty"`
	ResultTitle string    `json:"result_title,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PlanStore interface {
	Create(ctx context.Context, build PlanBuild) error
	Get(ctx context.Context, sessionID string) (*PlanBuild, error)
	Recent(ctx context.Context, limit int) ([]*PlanBuild, error)
	UpdateStatus(ctx context.Context, msg message.PlanStatusMessage) error
	Complete(ctx context.Context, msg message.PlanCompletionMessage) error
	AppendEvent(ctx context.Context, msg message.PlanProgressMessage) error
	Events(ctx context.Context, sessionID string) ([]message.PlanProgressMessage, error)
}

const recentIndexKey = "plans:by_date"

func planKey(sessionID string) string   { return "plan:" + sessionID }
func eventsKey(sessionID string) string { return "events:" + sessionID }

// RedisStore keeps each session under plan:{id} and its progress events
// under events:{id}, both expiring after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, build PlanBuild) error {
	if err := s.save(ctx, &build); err != nil {
		return err
	}
	return s.client.ZAdd(ctx, recentIndexKey, &redis.Z{
		Score:  float64(build.CreatedAt.Unix()),
		Member: build.SessionID,
	}).Err()
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*PlanBuild, error) {
	data, err := s.client.Get(ctx, planKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get plan build %s: %w", sessionID, err)
	}

	var build PlanBuild
	if err := json.Unmarshal([]byte(data), &build); err != nil {
		return nil, fmt.Errorf("parse plan build %s: %w", sessionID, err)
	}
	return &build, nil
}

func (s *RedisStore) Recent(ctx context.Context, limit int) ([]*PlanBuild, error) {
	ids, err := s.client.ZRevRange(ctx, recentIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list plan builds: %w", err)
	}

	builds := make([]*PlanBuild, 0, len(ids))
	for _, id := range ids {
		build, err := s.Get(ctx, id)
		if err != nil {
			// expired entries linger in the index
			continue
		}
		builds = append(builds, build)
	}
	return builds, nil
}

// UpdateStatus creates a minimal record when the session is unknown, since
// status events can arrive before the request is stored.
func (s *RedisStore) UpdateStatus(ctx context.Context, msg message.PlanStatusMessage) error {
	build, err := s.getOrNew(ctx, msg.SessionID, msg.UpdatedAt)
	if err != nil {
		return err
	}
	build.Status = msg.Status
	build.Message = msg.Message
	build.UpdatedAt = msg.UpdatedAt
	return s.save(ctx, build)
}

func (s *RedisStore) Complete(ctx context.Context, msg message.PlanCompletionMessage) error {
	build, err := s.getOrNew(ctx, msg.SessionID, msg.CompletedAt)
	if err != nil {
		return err
	}
	build.Status = msg.Status
	build.Message = msg.Message
	build.ResultID = msg.ResultID
	build.ResultTitle = msg.ResultTitle
	build.UpdatedAt = msg.CompletedAt
	return s.save(ctx, build)
}

func (s *RedisStore) AppendEvent(ctx context.Context, msg message.PlanProgressMessage) error {
	msg.Type = ""
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := eventsKey(msg.SessionID)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("append event for %s: %w", msg.SessionID, err)
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

func (s *RedisStore) Events(ctx context.Context, sessionID string) ([]message.PlanProgressMessage, error) {
	raw, err := s.client.LRange(ctx, eventsKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get events for %s: %w", sessionID, err)
	}

	events := make([]message.PlanProgressMessage, 0, len(raw))
	for _, item := range raw {
		var ev message.PlanProgressMessage
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *RedisStore) getOrNew(ctx context.Context, sessionID string, at time.Time) (*PlanBuild, error) {
	build, err := s.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return &PlanBuild{SessionID: sessionID, CreatedAt: at}, nil
	}
	return build, err
}

func (s *RedisStore) save(ctx context.Context, build *PlanBuild) error {
	data, err := json.Marshal(build)
	if err != nil {
		return fmt.Errorf("marshal plan build %s: %w", build.SessionID, err)
	}
	if err := s.client.Set(ctx, planKey(build.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save plan build %s: %w", build.SessionID, err)
	}
	return nil
}
