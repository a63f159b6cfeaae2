// Package migration 管理判例语料库的 PostgreSQL schema 迁移。
// 迁移文件随二进制嵌入，通过 golang-migrate 执行，覆盖 pgvector
// 扩展、satdata 主表、reasons_chunks 分块表与向量索引。
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config 是迁移器配置。
type Config struct {
	// DatabaseURL 为 PostgreSQL 连接串
	DatabaseURL string
	// TableName 为迁移版本表名，默认 schema_migrations
	TableName string
	// LockTimeout 为获取迁移锁的超时
	LockTimeout time.Duration
}

// Info 描述当前迁移状态。
type Info struct {
	CurrentVersion uint
	Dirty          bool
	Pending        int
	Total          int
}

// Migrator 基于 golang-migrate 执行嵌入式迁移。
type Migrator struct {
	db      *sql.DB
	migrate *migrate.Migrate
}

// NewMigrator 创建迁移器并校验数据库连通性。
func NewMigrator(cfg *Config) (*Migrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required")
	}
	if cfg.TableName == "" {
		cfg.TableName = "schema_migrations"
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = 15 * time.Second
	}

	// migrate 的 postgres driver 引入 lib/pq，"postgres" 驱动随之注册。
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable:  cfg.TableName,
		StatementTimeout: cfg.LockTimeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{db: db, migrate: m}, nil
}

// Up 应用所有待执行迁移。
func (m *Migrator) Up() error {
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Down 回滚最近一次迁移。
func (m *Migrator) Down() error {
	if err := m.migrate.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// DownAll 回滚全部迁移。
func (m *Migrator) DownAll() error {
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down all failed: %w", err)
	}
	return nil
}

// Version 返回当前版本与 dirty 标记，未迁移过时版本为 0。
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Status 统计当前与待执行的迁移数量。
func (m *Migrator) Status() (*Info, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return nil, err
	}

	versions, err := embeddedVersions()
	if err != nil {
		return nil, err
	}

	pending := 0
	for _, v := range versions {
		if v > version {
			pending++
		}
	}

	return &Info{
		CurrentVersion: version,
		Dirty:          dirty,
		Pending:        pending,
		Total:          len(versions),
	}, nil
}

// Close 释放迁移器持有的资源。
func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}
