package kv

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string
	Dir           string
	RedisAddr     string
	RedisTTL      time.Duration
	MongoURI      string
	MongoDatabase string
}

// Open constructs the configured backend. An empty backend means file.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		return NewFile(opts.Dir)
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return OpenSQLite(ctx, filepath.Join(opts.Dir, "survey.db"))
	case BackendRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("kv: redis backend requires REDIS_ADDR")
		}
		return DialRedis(ctx, opts.RedisAddr, opts.RedisTTL)
	case BackendMongo:
		if opts.MongoURI == "" {
			return nil, fmt.Errorf("kv: mongo backend requires MONGO_URI")
		}
		db := opts.MongoDatabase
		if db == "" {
			db = "dqsurvey"
		}
		return DialMongo(ctx, opts.MongoURI, db)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", opts.Backend)
	}
}
