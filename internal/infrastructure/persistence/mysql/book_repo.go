package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// bookRepository 图书仓储实现(MySQL)
// 设计说明:
// 1. 实现domain/book/repository.go定义的接口
// 2. 负责domain实体与GORM模型之间的转换
// 3. 处理数据库特定的错误(如ISBN重复),转换为业务错误
type bookRepository struct {
	baseRepo
}

// NewBookRepository 创建图书仓储
func NewBookRepository(db *gorm.DB) book.Repository {
	return &bookRepository{baseRepo{db: db}}
}

// Create 创建图书
func (r *bookRepository) Create(ctx context.Context, b *book.Book) error {
	model := toBookModel(b)

	if err := r.getDB(ctx).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return book.ErrISBNDuplicate
		}
		return apperrors.Wrap(err, "创建图书失败")
	}

	b.ID = model.ID
	b.CreatedAt = model.CreatedAt
	b.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID 根据ID查找图书
func (r *bookRepository) FindByID(ctx context.Context, id uint) (*book.Book, error) {
	var model BookModel
	if err := r.getDB(ctx).First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, book.ErrBookNotFound
		}
		return nil, apperrors.Wrap(err, "查询图书失败")
	}
	return toBookEntity(&model), nil
}

// FindByISBN 根据ISBN查找图书
func (r *bookRepository) FindByISBN(ctx context.Context, isbn string) (*book.Book, error) {
	var model BookModel
	if err := r.getDB(ctx).Where("isbn = ?", isbn).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, book.ErrBookNotFound
		}
		return nil, apperrors.Wrap(err, "查询图书失败")
	}
	return toBookEntity(&model), nil
}

// Update 更新图书信息
// 只更新书目字段，冗余计数由UpdateAvailability负责
func (r *bookRepository) Update(ctx context.Context, b *book.Book) error {
	result := r.getDB(ctx).Model(&BookModel{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
		"titolo":        b.Title,
		"autore":        b.Author,
		"editore":       b.Publisher,
		"descrizione":   b.Description,
		"copertina_url": b.CoverURL,
	})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新图书失败")
	}
	if result.RowsAffected == 0 {
		return book.ErrBookNotFound
	}
	return nil
}

// Delete 删除图书(软删除)
func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	result := r.getDB(ctx).Delete(&BookModel{}, id)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除图书失败")
	}
	if result.RowsAffected == 0 {
		return book.ErrBookNotFound
	}
	return nil
}

// List 分页查询图书列表
func (r *bookRepository) List(ctx context.Context, params book.ListParams) ([]*book.Book, int64, error) {
	var models []BookModel
	var total int64

	query := r.getDB(ctx).Model(&BookModel{})

	// 关键词搜索(标题、作者、出版社、ISBN)
	if params.Keyword != "" {
		keyword := "%" + params.Keyword + "%"
		query = query.Where("titolo LIKE ? OR autore LIKE ? OR editore LIKE ? OR isbn LIKE ?", keyword, keyword, keyword, keyword)
	}
	if params.OnlyAvailable {
		query = query.Where("copie_disponibili > 0")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询图书总数失败")
	}

	switch params.SortBy {
	case "title_asc":
		query = query.Order("titolo ASC")
	case "available_desc":
		query = query.Order("copie_disponibili DESC").Order("id ASC")
	default:
		query = query.Order("created_at DESC").Order("id DESC")
	}

	offset, limit := pageOffset(params.Page, params.PageSize)
	if err := query.Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询图书列表失败")
	}

	books := make([]*book.Book, len(models))
	for i := range models {
		books[i] = toBookEntity(&models[i])
	}
	return books, total, nil
}

// LockByID 悲观锁查询图书
// 必须在事务中调用(getDB取到事务DB),否则锁在语句结束时即释放
func (r *bookRepository) LockByID(ctx context.Context, id uint) (*book.Book, error) {
	var model BookModel
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, id).Error
	if err != nil {
		if isNotFound(err) {
			return nil, book.ErrBookNotFound
		}
		return nil, apperrors.Wrap(err, "锁定图书失败")
	}
	return toBookEntity(&model), nil
}

// UpdateAvailability 写入重算后的计数与标签
func (r *bookRepository) UpdateAvailability(ctx context.Context, id uint, total, available int, status book.Status) error {
	result := r.getDB(ctx).Model(&BookModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"copie_totali":      total,
		"copie_disponibili": available,
		"stato":             string(status),
	})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新图书可借计数失败")
	}
	if result.RowsAffected == 0 {
		return book.ErrBookNotFound
	}
	return nil
}

// CountReferences 引用图书的副本数与在借借阅数
func (r *bookRepository) CountReferences(ctx context.Context, id uint) (int64, int64, error) {
	var copies, loans int64
	db := r.getDB(ctx)
	if err := db.Model(&CopyModel{}).Where("libro_id = ?", id).Count(&copies).Error; err != nil {
		return 0, 0, apperrors.Wrap(err, "统计副本失败")
	}
	if err := db.Model(&LoanModel{}).Where("libro_id = ? AND attivo = ?", id, true).Count(&loans).Error; err != nil {
		return 0, 0, apperrors.Wrap(err, "统计借阅失败")
	}
	return copies, loans, nil
}

// ListIDs 全部未删除图书的ID
func (r *bookRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.getDB(ctx).Model(&BookModel{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询图书ID失败")
	}
	return ids, nil
}

// =========================================
// 辅助函数:模型转换
// =========================================

func toBookModel(b *book.Book) *BookModel {
	return &BookModel{
		ID:              b.ID,
		ISBN:            b.ISBN,
		Title:           b.Title,
		Author:          b.Author,
		Publisher:       b.Publisher,
		Description:     b.Description,
		CoverURL:        b.CoverURL,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		Status:          string(b.Status),
		CreatedBy:       b.CreatedBy,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// toBookEntity GORM模型 → 领域实体
func toBookEntity(model *BookModel) *book.Book {
	return &book.Book{
		ID:              model.ID,
		ISBN:            model.ISBN,
		Title:           model.Title,
		Author:          model.Author,
		Publisher:       model.Publisher,
		Description:     model.Description,
		CoverURL:        model.CoverURL,
		TotalCopies:     model.TotalCopies,
		AvailableCopies: model.AvailableCopies,
		Status:          book.Status(model.Status),
		CreatedBy:       model.CreatedBy,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}
