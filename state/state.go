// state/state.go
package state

import (
	"auto_zonky_go/config"
	"auto_zonky_go/logs"
	"auto_zonky_go/remote"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// --- 1. Interface ---

// LedgerStore persists the investments the bot knows about between runs.
// The orchestrator only talks to this interface, so the backend is a config choice.
type LedgerStore interface {
	// Load returns the last saved investments, empty when nothing was saved yet.
	Load(ctx context.Context) ([]remote.Investment, error)
	// Save replaces the stored investments.
	Save(ctx context.Context, investments []remote.Investment) error
	Close() error
}

// --- 2. Data structure ---

// Ledger is the persisted document.
type Ledger struct {
	Investments []remote.Investment `json:"investments"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func encode(investments []remote.Investment) ([]byte, error) {
	doc := Ledger{Investments: investments, UpdatedAt: time.Now().UTC()}
	if doc.Investments == nil {
		doc.Investments = []remote.Investment{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]remote.Investment, error) {
	if len(data) == 0 {
		return []remote.Investment{}, nil // empty document is a fresh ledger
	}
	var doc Ledger
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	if doc.Investments == nil {
		doc.Investments = []remote.Investment{}
	}
	return doc.Investments, nil
}

// Open builds the store selected by cfg. stateDir is used by the file backend.
func Open(cfg *config.StateConfig, stateDir, redisPassword string) (LedgerStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileLedger(filepath.Join(stateDir, "ledger.json"))
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: redisPassword,
		})
		return NewRedisLedger(rdb, cfg.RedisKey), nil
	default:
		return nil, fmt.Errorf("unknown state backend: %s", cfg.Backend)
	}
}

// --- 3. File implementation ---

// FileLedger keeps the ledger in a JSON file, replaced atomically on every save.
type FileLedger struct {
	mu       sync.RWMutex
	filePath string
}

// NewFileLedger creates the ledger file (and its directory) when it doesn't exist yet.
func NewFileLedger(filePath string) (*FileLedger, error) {
	fl := &FileLedger{filePath: filePath}

	if _, err := os.Stat(filePath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat ledger file: %w", err)
		}
		logs.Infof("[State] Ledger file not found at %s. Starting with an empty ledger.", filePath)
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		if err := fl.write(nil); err != nil {
			return nil, fmt.Errorf("failed to create initial ledger file: %w", err)
		}
	}
	return fl, nil
}

// write performs the atomic save; the caller holds the lock.
func (fl *FileLedger) write(investments []remote.Investment) error {
	data, err := encode(investments)
	if err != nil {
		return err
	}
	tmpFilePath := fl.filePath + ".tmp"
	if err := os.WriteFile(tmpFilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write to temporary ledger file: %w", err)
	}
	return os.Rename(tmpFilePath, fl.filePath)
}

func (fl *FileLedger) Load(ctx context.Context) ([]remote.Investment, error) {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	data, err := os.ReadFile(fl.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []remote.Investment{}, nil
		}
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}
	return decode(data)
}

func (fl *FileLedger) Save(ctx context.Context, investments []remote.Investment) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.write(investments)
}

func (fl *FileLedger) Close() error { return nil }

// Path returns the ledger file location.
func (fl *FileLedger) Path() string { return fl.filePath }

// --- 4. Redis implementation ---

// RedisLedger stores the ledger document as a single JSON value under key.
type RedisLedger struct {
	rdb *redis.Client
	key string
}

// NewRedisLedger uses rdb for storage; the ledger owns the client from then on.
func NewRedisLedger(rdb *redis.Client, key string) *RedisLedger {
	return &RedisLedger{rdb: rdb, key: key}
}

func (rl *RedisLedger) Load(ctx context.Context) ([]remote.Investment, error) {
	data, err := rl.rdb.Get(ctx, rl.key).Bytes()
	if errors.Is(err, redis.Nil) {
		logs.Infof("[State] No ledger under redis key %s. Starting with an empty ledger.", rl.key)
		return []remote.Investment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger from redis: %w", err)
	}
	return decode(data)
}

func (rl *RedisLedger) Save(ctx context.Context, investments []remote.Investment) error {
	data, err := encode(investments)
	if err != nil {
		return err
	}
	if err := rl.rdb.Set(ctx, rl.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write ledger to redis: %w", err)
	}
	return nil
}

func (rl *RedisLedger) Close() error {
	return rl.rdb.Close()
}
