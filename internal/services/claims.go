package services

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"crm/internal/core"
)

// ClaimRegistry tracks time entries that an invoice generation is currently
// working on. A second generation touching any of them is rejected with a
// ConflictError instead of waiting for the store to notice.
type ClaimRegistry interface {
	// Claim reserves ids and returns a release func, or a ConflictError
	// listing the ids already held by someone else.
	Claim(ctx context.Context, ids []int64) (release func(), err error)
}

// MemoryClaims is a process-local ClaimRegistry.
type MemoryClaims struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func NewMemoryClaims() *MemoryClaims {
	return &MemoryClaims{held: make(map[int64]struct{})}
}

func (m *MemoryClaims) Claim(_ context.Context, ids []int64) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var busy []int64
	for _, id := range ids {
		if _, ok := m.held[id]; ok {
			busy = append(busy, id)
		}
	}
	if len(busy) > 0 {
		return nil, &core.ConflictError{EntryIDs: busy, Reason: "entries are being invoiced by another request"}
	}
	for _, id := range ids {
		m.held[id] = struct{}{}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for _, id := range ids {
				delete(m.held, id)
			}
		})
	}, nil
}

// RedisClaims shares claims between processes with SETNX keys. The TTL bounds
// how long a crashed holder can block the entries.
type RedisClaims struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisClaims(client *redis.Client, ttl time.Duration) *RedisClaims {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisClaims{client: client, ttl: ttl, prefix: "crm:billing:claim:"}
}

func (r *RedisClaims) key(id int64) string {
	return r.prefix + strconv.FormatInt(id, 10)
}

func (r *RedisClaims) Claim(ctx context.Context, ids []int64) (func(), error) {
	if len(ids) == 0 {
		return func() {}, nil
	}
	token := uuid.NewString()

	cmds, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.SetNX(ctx, r.key(id), token, r.ttl)
		}
		return nil
	})
	acquired := make([]int64, 0, len(ids))
	var busy []int64
	for i, cmd := range cmds {
		boolCmd, ok := cmd.(*redis.BoolCmd)
		if !ok {
			continue
		}
		set, cmdErr := boolCmd.Result()
		switch {
		case cmdErr != nil:
		case set:
			acquired = append(acquired, ids[i])
		default:
			busy = append(busy, ids[i])
		}
	}

	release := func() { r.release(context.WithoutCancel(ctx), acquired, token) }

	if err != nil {
		release()
		return nil, core.Storage("claim time entries", err)
	}
	if len(busy) > 0 {
		release()
		sort.Slice(busy, func(i, j int) bool { return busy[i] < busy[j] })
		return nil, &core.ConflictError{EntryIDs: busy, Reason: "entries are being invoiced by another request"}
	}
	return release, nil
}

// releaseScript deletes a claim only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (r *RedisClaims) release(ctx context.Context, ids []int64, token string) {
	for _, id := range ids {
		if err := releaseScript.Run(ctx, r.client, []string{r.key(id)}, token).Err(); err != nil {
			// The TTL reclaims the key eventually.
			slog.WarnContext(ctx, "Failed to release billing claim", "entry_id", id, "error", err)
		}
	}
}
