// Package storage 负责打开和管理应用的 SQLite 数据库连接。
package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// DriverName 是注册了自定义 SQL 函数的 sqlite3 驱动名
const DriverName = "sqlite3_bugbounty"

const dbFileName = "bugbounty.db"

// 默认连接参数: WAL 模式允许读写并发, busy_timeout 让写入在锁冲突时等待而不是立即失败
const defaultParams = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("contains_fold", ContainsFold, true)
		},
	})
}

// ContainsFold 判断 needle 是否是 haystack 的子串 (Unicode 大小写不敏感)。
// 在 SQL 中以 contains_fold(haystack, needle) 的形式使用。
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(cases.Fold().String(haystack), cases.Fold().String(needle))
}

// DB 包装了 *sql.DB 连接池
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// DefaultDSN 在数据目录 (dataDir) 下生成数据库连接串, 必要时创建目录。
func DefaultDSN(dataDir string) (string, error) {
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return "", errors.Wrapf(err, "resolve data dir %q", dataDir)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return "", errors.Wrapf(err, "create data dir %q", absDataDir)
	}
	return "file:" + filepath.Join(absDataDir, dbFileName) + "?" + defaultParams, nil
}

// Open 打开数据库并确认连接可用。应用启动时调用一次。
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is empty")
	}
	logger.Info("opening database", zap.String("dsn", redactDSN(dsn)))

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return &DB{DB: db, logger: logger}, nil
}

// Connected 报告数据库当前是否可达, 用于 /health
func (d *DB) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.PingContext(ctx) == nil
}

// Close 关闭数据库连接 (应用退出时调用)
func (d *DB) Close() error {
	if d.DB == nil {
		return nil
	}
	d.logger.Info("closing database")
	return d.DB.Close()
}

// 日志里只保留路径部分
func redactDSN(dsn string) string {
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		return dsn[:i]
	}
	return dsn
}
