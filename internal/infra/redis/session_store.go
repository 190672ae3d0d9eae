package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"counseling-intake/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Live sessions stay in a local map so their mutexes keep guarding answers;
// every Put mirrors a snapshot to the hash intake:session:{id} with a sliding TTL.
// A session missing locally (e.g. after a restart) is restored from that hash.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	// best-effort mirror
	_ = s.mirror(context.Background(), session.Snapshot())
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return session, true
	}

	snap, ok := s.load(context.Background(), id)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, true
	}
	session = app.RestoreSession(snap)
	s.sessions[id] = session
	return session, true
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), s.key(id)).Err()
}

func (s *SessionStore) mirror(ctx context.Context, snap app.SessionSnapshot) error {
	answers, err := json.Marshal(snap.Answers)
	if err != nil {
		return err
	}
	key := s.key(snap.ID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"respondentId", snap.RespondentID,
		"instruments", strings.Join(snap.Instruments, ","),
		"current", snap.Current,
		"answers", string(answers),
		"updatedAt", snap.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *SessionStore) load(ctx context.Context, id string) (app.SessionSnapshot, bool) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil || len(fields) == 0 {
		return app.SessionSnapshot{}, false
	}
	current, err := strconv.Atoi(fields["current"])
	if err != nil {
		return app.SessionSnapshot{}, false
	}
	var answers []string
	if err := json.Unmarshal([]byte(fields["answers"]), &answers); err != nil {
		return app.SessionSnapshot{}, false
	}
	var instruments []string
	if fields["instruments"] != "" {
		instruments = strings.Split(fields["instruments"], ",")
	}
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updatedAt"])
	return app.SessionSnapshot{
		ID:           id,
		RespondentID: fields["respondentId"],
		Instruments:  instruments,
		Current:      current,
		Answers:      answers,
		UpdatedAt:    updatedAt,
	}, true
}

func (s *SessionStore) key(id string) string {
	return "intake:session:" + id
}
