package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Store, a connection-pooled client over a
// Redis/Valkey-class KV. Grounded on third_party/cache's
// NewRedisConnection (teacher) for the client-construction idiom, switched
// from the go-zero redis wrapper to redis/go-redis/v9 directly since this
// package owns its own connection rather than sharing go-zero's rest
// server config.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// NewRedisFromURL dials a Redis/Valkey endpoint given KV_URL (spec §6).
func NewRedisFromURL(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: parse KV_URL: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("sessionstore: ping KV: %w", err)
	}
	return NewRedis(client), nil
}

func (r *Redis) Close() error { return r.client.Close() }

const (
	sessionKeyPrefix  = "session:"
	userIndexPrefix   = "user:sessions:"
	mfaAttemptsPrefix = "mfa:attempts:"
	ticketUsedPrefix  = "mfa:used:"
	tempDataPrefix    = "temp:"
)

func sessionKey(sid string) string    { return sessionKeyPrefix + sid }
func userIndexKey(uid string) string  { return userIndexPrefix + uid }
func mfaAttemptsKey(jti string) string { return mfaAttemptsPrefix + jti }
func ticketUsedKey(jti string) string  { return ticketUsedPrefix + jti }
func tempDataKey(key string) string    { return tempDataPrefix + key }

func (r *Redis) SaveSession(ctx context.Context, sid string, s Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal session: %w", err)
	}
	return r.client.Set(ctx, sessionKey(sid), data, ttl).Err()
}

func (r *Redis) GetSession(ctx context.Context, sid string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(sid)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sessionstore: get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("sessionstore: unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *Redis) DeleteSession(ctx context.Context, sid string) error {
	return r.client.Del(ctx, sessionKey(sid)).Err()
}

func (r *Redis) AddUserSession(ctx context.Context, userID, sid string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, userIndexKey(userID), sid)
	pipe.Expire(ctx, userIndexKey(userID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) GetUserSessions(ctx context.Context, userID string) ([]string, error) {
	return r.client.SMembers(ctx, userIndexKey(userID)).Result()
}

func (r *Redis) DeleteUserSessionsKey(ctx context.Context, userID string) error {
	return r.client.Del(ctx, userIndexKey(userID)).Err()
}

func (r *Redis) IncrementMFAAttempt(ctx context.Context, jti string, ttl time.Duration) (int64, error) {
	key := mfaAttemptsKey(jti)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("sessionstore: incr mfa attempts: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, fmt.Errorf("sessionstore: expire mfa attempts: %w", err)
		}
	}
	return n, nil
}

func (r *Redis) GetMFAAttempts(ctx context.Context, jti string) (int64, error) {
	n, err := r.client.Get(ctx, mfaAttemptsKey(jti)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sessionstore: get mfa attempts: %w", err)
	}
	return n, nil
}

func (r *Redis) ClearMFAAttempts(ctx context.Context, jti string) error {
	return r.client.Del(ctx, mfaAttemptsKey(jti)).Err()
}

func (r *Redis) MarkTicketUsed(ctx context.Context, jti string, ttl time.Duration) error {
	return r.client.Set(ctx, ticketUsedKey(jti), "1", ttl).Err()
}

func (r *Redis) IsTicketUsed(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, ticketUsedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("sessionstore: check ticket used: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) SaveTempData(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, tempDataKey(key), value, ttl).Err()
}

func (r *Redis) GetTempData(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, tempDataKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sessionstore: get temp data: %w", err)
	}
	return data, nil
}

func (r *Redis) DeleteTempData(ctx context.Context, key string) error {
	return r.client.Del(ctx, tempDataKey(key)).Err()
}

// uploadHashFields/parseUploadHash translate between UploadSession and the
// Redis hash layout (field names match
// original_source/pixles-api/upload/src/session/mod.rs's HSET call).
func uploadHashFields(s UploadSession) map[string]interface{} {
	totalSize := ""
	if s.TotalSize != nil {
		totalSize = strconv.FormatInt(*s.TotalSize, 10)
	}
	return map[string]interface{}{
		"id":             s.ID,
		"user_id":        s.UserID,
		"filename":       s.Filename,
		"content_type":   s.ContentType,
		"total_size":     totalSize,
		"received_bytes": s.ReceivedBytes,
		"is_complete":    boolToStr(s.IsComplete),
		"created_at":     s.CreatedAt.Unix(),
		"expires_at":     s.ExpiresAt.Unix(),
	}
}

func boolToStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseUploadHash(id string, fields map[string]string) (*UploadSession, error) {
	s := &UploadSession{ID: id}
	s.UserID = fields["user_id"]
	s.Filename = fields["filename"]
	s.ContentType = fields["content_type"]
	if ts := fields["total_size"]; ts != "" {
		v, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sessionstore: parse total_size: %w", err)
		}
		s.TotalSize = &v
	}
	rb, err := strconv.ParseInt(fields["received_bytes"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: parse received_bytes: %w", err)
	}
	s.ReceivedBytes = rb
	s.IsComplete = fields["is_complete"] == "1"
	if ca, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		s.CreatedAt = time.Unix(ca, 0).UTC()
	}
	if ea, err := strconv.ParseInt(fields["expires_at"], 10, 64); err == nil {
		s.ExpiresAt = time.Unix(ea, 0).UTC()
	}
	return s, nil
}

func (r *Redis) CreateUploadSession(ctx context.Context, s UploadSession, ttl time.Duration) error {
	key := uploadSessionKey(s.ID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, uploadHashFields(s))
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("sessionstore: create upload session: %w", err)
	}
	return nil
}

func (r *Redis) GetUploadSession(ctx context.Context, id string) (*UploadSession, error) {
	fields, err := r.client.HGetAll(ctx, uploadSessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("sessionstore: get upload session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseUploadHash(id, fields)
}

// IncrementUploadReceivedBytes uses HINCRBY, which Redis guarantees is
// atomic even under concurrent callers (spec §4.8/§5 "atomic increment").
func (r *Redis) IncrementUploadReceivedBytes(ctx context.Context, id string, delta int64) (int64, error) {
	key := uploadSessionKey(id)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("sessionstore: check upload session: %w", err)
	}
	if exists == 0 {
		return 0, ErrNotFound
	}
	n, err := r.client.HIncrBy(ctx, key, "received_bytes", delta).Result()
	if err != nil {
		return 0, fmt.Errorf("sessionstore: increment received_bytes: %w", err)
	}
	return n, nil
}

// setUploadCompleteScript atomically flips is_complete 0->1 and reports
// whether this call was the one that flipped it — the "only one finalizer"
// rule from spec §4.9, enforced without file locks (Design Note).
var setUploadCompleteScript = redis.NewScript(`
local key = KEYS[1]
local cur = redis.call('HGET', key, 'is_complete')
if cur == false then
  return -1
end
if cur == '1' then
  return 0
end
redis.call('HSET', key, 'is_complete', '1')
return 1
`)

func (r *Redis) SetUploadComplete(ctx context.Context, id string) (bool, error) {
	res, err := setUploadCompleteScript.Run(ctx, r.client, []string{uploadSessionKey(id)}).Int64()
	if err != nil {
		return false, fmt.Errorf("sessionstore: set upload complete: %w", err)
	}
	if res == -1 {
		return false, ErrNotFound
	}
	return res == 1, nil
}

// clearUploadCompleteScript un-flips is_complete when the session is still
// present, releasing it for a future SetUploadComplete call. It is a no-op
// against an absent or already-expired key rather than an error: the caller
// only reaches this after a failed finalize attempt, and there is nothing
// left to release if the session vanished out from under it.
var clearUploadCompleteScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 1 then
  redis.call('HSET', key, 'is_complete', '0')
end
return 1
`)

func (r *Redis) ClearUploadComplete(ctx context.Context, id string) error {
	if err := clearUploadCompleteScript.Run(ctx, r.client, []string{uploadSessionKey(id)}).Err(); err != nil {
		return fmt.Errorf("sessionstore: clear upload complete: %w", err)
	}
	return nil
}

func (r *Redis) DeleteUploadSession(ctx context.Context, id string) error {
	return r.client.Del(ctx, uploadSessionKey(id)).Err()
}

var _ Store = (*Redis)(nil)
