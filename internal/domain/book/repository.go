package book

import (
	"context"
)

// Repository 图书仓储接口(依赖倒置原则)
// 设计说明:
// 1. 由domain层定义接口,infrastructure层实现
// 2. 便于Mock测试,不依赖具体数据库实现
type Repository interface {
	// Create 创建图书
	Create(ctx context.Context, book *Book) error

	// FindByID 根据ID查找图书
	FindByID(ctx context.Context, id uint) (*Book, error)

	// FindByISBN 根据ISBN查找图书
	FindByISBN(ctx context.Context, isbn string) (*Book, error)

	// Update 更新图书信息
	Update(ctx context.Context, book *Book) error

	// Delete 删除图书(软删除)
	Delete(ctx context.Context, id uint) error

	// List 分页查询图书列表
	List(ctx context.Context, params ListParams) ([]*Book, int64, error)

	// LockByID 悲观锁查询图书
	// 使用SELECT FOR UPDATE锁定行,借阅创建与队列处理以图书行为串行化点
	LockByID(ctx context.Context, id uint) (*Book, error)

	// UpdateAvailability 只写入冗余计数与标签
	UpdateAvailability(ctx context.Context, id uint, total, available int, status Status) error

	// CountReferences 引用该图书的副本数与在借借阅数
	CountReferences(ctx context.Context, id uint) (copies int64, activeLoans int64, err error)

	// ListIDs 全部未删除图书的ID(全量重算用)
	ListIDs(ctx context.Context) ([]uint, error)
}

// ListParams 列表查询参数
type ListParams struct {
	Page          int    // 页码(从1开始)
	PageSize      int    // 每页数量
	Keyword       string // 搜索关键词(搜索标题、作者、出版社、ISBN)
	OnlyAvailable bool   // 只返回有在架副本的图书
	SortBy        string // 排序字段(title_asc, created_at_desc, available_desc)
}
