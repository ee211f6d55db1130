package kv

import (
	"context"
	"fmt"

	"virgil/internal/config"
	fsstore "virgil/internal/infra/kv/fs"
	memorystore "virgil/internal/infra/kv/memory"
	pgstore "virgil/internal/infra/kv/postgres"
	s3store "virgil/internal/infra/kv/s3"
	sqlitestore "virgil/internal/infra/kv/sqlite"
)

// Open selects a Store implementation from cfg.Driver:
//
//	memory    process memory, optional byte quota
//	fs        one file per key under cfg.FSRoot (default)
//	sqlite    single table in cfg.SQLitePath
//	postgres  single table reached through cfg.PostgresDSN
//	s3        one object per key in cfg.S3.Bucket
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	var (
		st  Store
		err error
	)
	switch driver {
	case DriverMemory:
		return NewMemory(cfg.MemoryQuotaBytes), nil
	case DriverFilesystem:
		st, err = fsstore.New(cfg.FSRoot)
	case DriverSQLite:
		st, err = sqlitestore.NewStore(cfg.SQLitePath)
	case DriverPostgres:
		st, err = pgstore.NewStore(ctx, cfg.PostgresDSN)
	case DriverS3:
		st, err = s3store.New(ctx, s3store.Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			SessionToken:    cfg.S3.SessionToken,
			PathStyle:       cfg.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown kv driver %s", driver)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// NewMemory returns an in-memory Store. A positive quota bounds stored bytes.
func NewMemory(quota int64) Store {
	return memorystore.New(memorystore.WithQuota(quota))
}
