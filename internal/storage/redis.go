package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ensure RedisStore implements the Store interface
var _ Store = (*RedisStore)(nil)

const redisKeyPrefix = "minutes:session:"

// Hash field names within a session key
const (
	fieldAuthToken          = "auth_token"
	fieldIsAuthenticated    = "is_authenticated"
	fieldRedirectAfterLogin = "redirect_after_login"
	fieldPendingRedirect    = "pending_redirect"
	fieldPendingJoinToken   = "pending_join_token"
	fieldShouldAutoJoin     = "should_auto_join"
	fieldCreatedAt          = "created_at"
	fieldLastActive         = "last_active"
)

// consumeFieldScript reads and deletes a hash field atomically so a pending
// redirect or join intent is acted on exactly once across replicas
var consumeFieldScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if v then
  redis.call('HDEL', KEYS[1], ARGV[1])
end
return v
`)

// consumeJoinIntentScript reads and deletes the join token and its auto-join
// flag together
var consumeJoinIntentScript = redis.NewScript(`
local token = redis.call('HGET', KEYS[1], 'pending_join_token')
local auto = redis.call('HGET', KEYS[1], 'should_auto_join')
redis.call('HDEL', KEYS[1], 'pending_join_token', 'should_auto_join')
return {token, auto}
`)

// RedisStore keeps session state in Redis hashes, one key per browser
// session, with expiry handled by the key TTL. Suitable for multi-instance
// deployments behind a load balancer.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(addr string, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func (r *RedisStore) key(sid string) string {
	return redisKeyPrefix + sid
}

// touch refreshes last-active and the key TTL
func (r *RedisStore) touch(ctx context.Context, key string) error {
	if err := r.rdb.HSet(ctx, key, fieldLastActive, time.Now().Unix()).Err(); err != nil {
		return err
	}
	if r.ttl > 0 {
		return r.rdb.Expire(ctx, key, r.ttl).Err()
	}
	return nil
}

func parseUnix(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	unix, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

func stateFromHash(sid string, fields map[string]string) *SessionState {
	return &SessionState{
		SID:                sid,
		AuthToken:          fields[fieldAuthToken],
		IsAuthenticated:    fields[fieldIsAuthenticated] == "1",
		RedirectAfterLogin: fields[fieldRedirectAfterLogin],
		PendingRedirect:    fields[fieldPendingRedirect],
		PendingJoinToken:   fields[fieldPendingJoinToken],
		ShouldAutoJoin:     fields[fieldShouldAutoJoin] == "1",
		CreatedAt:          parseUnix(fields[fieldCreatedAt]),
		LastActive:         parseUnix(fields[fieldLastActive]),
	}
}

// GetState returns the session state, or ErrSessionNotFound
func (r *RedisStore) GetState(ctx context.Context, sid string) (*SessionState, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(sid)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	return stateFromHash(sid, fields), nil
}

// EnsureState creates the session hash if missing and refreshes its TTL
func (r *RedisStore) EnsureState(ctx context.Context, sid string) (*SessionState, error) {
	key := r.key(sid)

	if err := r.rdb.HSetNX(ctx, key, fieldCreatedAt, time.Now().Unix()).Err(); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	if err := r.touch(ctx, key); err != nil {
		return nil, fmt.Errorf("touching session: %w", err)
	}
	return r.GetState(ctx, sid)
}

// SetToken stores the API token and marks the session authenticated
func (r *RedisStore) SetToken(ctx context.Context, sid, token string) error {
	if token == "" {
		return r.ClearToken(ctx, sid)
	}

	key := r.key(sid)
	if err := r.rdb.HSet(ctx, key, map[string]any{
		fieldAuthToken:       token,
		fieldIsAuthenticated: "1",
	}).Err(); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return r.touch(ctx, key)
}

// ClearToken removes the token and authenticated flag only
func (r *RedisStore) ClearToken(ctx context.Context, sid string) error {
	if err := r.rdb.HDel(ctx, r.key(sid), fieldAuthToken, fieldIsAuthenticated).Err(); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

// GetToken returns the session's API token
func (r *RedisStore) GetToken(ctx context.Context, sid string) (string, error) {
	token, err := r.rdb.HGet(ctx, r.key(sid), fieldAuthToken).Result()
	if err == redis.Nil {
		exists, existsErr := r.rdb.Exists(ctx, r.key(sid)).Result()
		if existsErr != nil {
			return "", fmt.Errorf("checking session: %w", existsErr)
		}
		if exists == 0 {
			return "", ErrSessionNotFound
		}
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (r *RedisStore) setField(ctx context.Context, sid, field, value string) error {
	key := r.key(sid)
	if err := r.rdb.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", field, err)
	}
	return r.touch(ctx, key)
}

func (r *RedisStore) consumeField(ctx context.Context, sid, field string) (string, error) {
	value, err := consumeFieldScript.Run(ctx, r.rdb, []string{r.key(sid)}, field).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("consuming %s: %w", field, err)
	}
	s, _ := value.(string)
	return s, nil
}

func (r *RedisStore) SetRedirectAfterLogin(ctx context.Context, sid, target string) error {
	return r.setField(ctx, sid, fieldRedirectAfterLogin, target)
}

func (r *RedisStore) ConsumeRedirectAfterLogin(ctx context.Context, sid string) (string, error) {
	return r.consumeField(ctx, sid, fieldRedirectAfterLogin)
}

func (r *RedisStore) SetPendingRedirect(ctx context.Context, sid, target string) error {
	return r.setField(ctx, sid, fieldPendingRedirect, target)
}

func (r *RedisStore) ConsumePendingRedirect(ctx context.Context, sid string) (string, error) {
	return r.consumeField(ctx, sid, fieldPendingRedirect)
}

func (r *RedisStore) SetJoinIntent(ctx context.Context, sid string, intent JoinIntent) error {
	key := r.key(sid)
	autoJoin := "0"
	if intent.AutoJoin {
		autoJoin = "1"
	}
	if err := r.rdb.HSet(ctx, key, map[string]any{
		fieldPendingJoinToken: intent.Token,
		fieldShouldAutoJoin:   autoJoin,
	}).Err(); err != nil {
		return fmt.Errorf("storing join intent: %w", err)
	}
	return r.touch(ctx, key)
}

func (r *RedisStore) ConsumeJoinIntent(ctx context.Context, sid string) (*JoinIntent, error) {
	result, err := consumeJoinIntentScript.Run(ctx, r.rdb, []string{r.key(sid)}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consuming join intent: %w", err)
	}

	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return nil, nil
	}
	token, _ := values[0].(string)
	if token == "" {
		return nil, nil
	}
	autoJoin, _ := values[1].(string)
	return &JoinIntent{Token: token, AutoJoin: autoJoin == "1"}, nil
}

func (r *RedisStore) ClearJoinIntent(ctx context.Context, sid string) error {
	if err := r.rdb.HDel(ctx, r.key(sid), fieldPendingJoinToken, fieldShouldAutoJoin).Err(); err != nil {
		return fmt.Errorf("clearing join intent: %w", err)
	}
	return nil
}

// DeleteState removes the session entirely
func (r *RedisStore) DeleteState(ctx context.Context, sid string) error {
	if err := r.rdb.Del(ctx, r.key(sid)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// ListStates scans for all live session keys
func (r *RedisStore) ListStates(ctx context.Context) ([]SessionState, error) {
	var states []SessionState

	iter := r.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		sid := key[len(redisKeyPrefix):]

		fields, err := r.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("reading session %s: %w", sid, err)
		}
		if len(fields) == 0 {
			continue // expired between scan and read
		}
		states = append(states, *stateFromHash(sid, fields))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning sessions: %w", err)
	}
	return states, nil
}

// CleanupExpiredStates is a no-op: Redis expires session keys via TTL
func (r *RedisStore) CleanupExpiredStates(_ context.Context) (int, error) {
	return 0, nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
