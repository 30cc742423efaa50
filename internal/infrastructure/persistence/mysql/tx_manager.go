package mysql

import (
	"context"

	"gorm.io/gorm"
)

// txKey context中事务DB的键（私有类型避免与其他包冲突）
type txKey struct{}

// TxManager 事务管理器
// 1. 封装GORM的Transaction方法
// 2. 通过context传递事务DB(避免全局变量)
// 3. ctx中已有事务时直接加入，分配器、队列处理与重算可以嵌在用例的事务里
type TxManager struct {
	db *gorm.DB
}

// NewTxManager 创建事务管理器
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Transaction 执行事务
// fn返回error时自动ROLLBACK,返回nil时自动COMMIT；
// 加入外层事务时由外层决定提交或回滚
//
// 使用示例:
//
//	err := txManager.Transaction(ctx, func(ctx context.Context) error {
//	    // 1. 锁定图书行
//	    if _, err := bookRepo.LockByID(ctx, bookID); err != nil {
//	        return err
//	    }
//	    // 2. 分配副本（加入同一事务）
//	    res, err := allocator.AllocateCopy(ctx, req)
//	    ...
//	})
func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Repository的getDB方法会从context提取事务DB
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// baseRepo 仓储公共部分
type baseRepo struct {
	db *gorm.DB
}

// getDB 从context获取事务DB,如果没有则使用默认DB
// 所有查询都必须经过getDB，否则在事务中会占用第二个连接
func (r baseRepo) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}
