package umlsync

import (
	"encoding/hex"
	"fmt"

	"github.com/aretw0/umlsync/pkg/adapters/file"
	"github.com/aretw0/umlsync/pkg/adapters/memory"
	"github.com/aretw0/umlsync/pkg/adapters/redis"
	"github.com/aretw0/umlsync/pkg/config"
	"github.com/aretw0/umlsync/pkg/persistence/middleware"
	"github.com/aretw0/umlsync/pkg/ports"
)

// OpenStore builds the snapshot store described by cfg, wrapped in the
// redaction and encryption middleware it asks for. The returned func releases
// the backend connection, if any.
func OpenStore(cfg config.Backup) (ports.SnapshotStore, func() error, error) {
	store, _, closeFn, err := openStore(cfg)
	return store, closeFn, err
}

// openStore also returns a distributed locker for backends that share state
// between processes.
func openStore(cfg config.Backup) (ports.SnapshotStore, ports.DistributedLocker, func() error, error) {
	closeFn := func() error { return nil }
	var store ports.SnapshotStore
	var locker ports.DistributedLocker
	switch cfg.Store {
	case "", config.StoreMemory:
		store = memory.NewStore()
	case config.StoreFile:
		dir := cfg.Dir
		if dir == "" {
			dir = file.DefaultDir
		}
		store = file.New(dir)
	case config.StoreRedis:
		var opts []redis.Option
		if cfg.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Prefix))
		}
		if cfg.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.TTL))
		}
		rs := redis.New(cfg.RedisAddr, "", 0, opts...)
		store, locker, closeFn = rs, rs.Locker(), rs.Close
	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mws = append(mws, middleware.NewRedactionMiddleware(cfg.Redact))
	}
	if cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil || len(key) != 32 {
			_ = closeFn()
			return nil, nil, nil, fmt.Errorf("encryption_key must be 32 bytes, hex encoded")
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return middleware.Chain(store, mws...), locker, closeFn, nil
}
