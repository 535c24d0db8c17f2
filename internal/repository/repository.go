package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

// txKey 事务上下文键
type txKey struct{}

// Repository 仓储基类，提供事务和通用查询能力
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建仓储基类
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB 获取数据库连接，优先使用上下文中的事务
func (r *Repository) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Transaction 在事务中执行函数，事务对象通过上下文传递
// 各仓储方法在同一 ctx 下自动复用同一事务
func (r *Repository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// 已在事务中则直接复用
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// TransactionWithRetry 带重试的事务执行，处理序列化冲突和死锁
func (r *Repository) TransactionWithRetry(ctx context.Context, maxRetries int, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i <= maxRetries; i++ {
		err = r.Transaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		logger.Warn("事务冲突，准备重试",
			zap.Int("attempt", i+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 50 * time.Millisecond):
		}
	}
	return err
}

// isRetryableError 判断是否为可重试的数据库错误
func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03": // lock_not_available
			return true
		}
	}
	return false
}

// IsDuplicateKeyError 判断是否为唯一键冲突
func IsDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// IsNotFound 判断是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Pagination 分页参数
type Pagination struct {
	Page     int
	PageSize int
}

// Offset 计算偏移量
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit 计算每页数量
func (p Pagination) Limit() int {
	if p.PageSize < 1 || p.PageSize > 500 {
		return 50
	}
	return p.PageSize
}
