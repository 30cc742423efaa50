package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// copyRepository 副本仓储实现
type copyRepository struct {
	baseRepo
}

// NewCopyRepository 创建副本仓储
func NewCopyRepository(db *gorm.DB) bookcopy.Repository {
	return &copyRepository{baseRepo{db: db}}
}

// Create 创建副本
func (r *copyRepository) Create(ctx context.Context, c *bookcopy.Copy) error {
	model := toCopyModel(c)
	if err := r.getDB(ctx).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return bookcopy.ErrInventoryDuplicate
		}
		return apperrors.Wrap(err, "创建副本失败")
	}
	c.ID = model.ID
	c.CreatedAt = model.CreatedAt
	c.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID 根据ID查找副本
func (r *copyRepository) FindByID(ctx context.Context, id uint) (*bookcopy.Copy, error) {
	var model CopyModel
	if err := r.getDB(ctx).First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, bookcopy.ErrCopyNotFound
		}
		return nil, apperrors.Wrap(err, "查询副本失败")
	}
	return toCopyEntity(&model), nil
}

// LockByID SELECT ... FOR UPDATE锁定副本行
func (r *copyRepository) LockByID(ctx context.Context, id uint) (*bookcopy.Copy, error) {
	var model CopyModel
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, id).Error
	if err != nil {
		if isNotFound(err) {
			return nil, bookcopy.ErrCopyNotFound
		}
		return nil, apperrors.Wrap(err, "锁定副本失败")
	}
	return toCopyEntity(&model), nil
}

// UpdateStatus 更新副本状态（不校验流转合法性）
func (r *copyRepository) UpdateStatus(ctx context.Context, id uint, status bookcopy.Status) error {
	result := r.getDB(ctx).Model(&CopyModel{}).Where("id = ?", id).Update("stato", string(status))
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新副本状态失败")
	}
	if result.RowsAffected == 0 {
		return bookcopy.ErrCopyNotFound
	}
	return nil
}

// Delete 删除副本（物理删除，调用方已检查状态与借阅历史）
func (r *copyRepository) Delete(ctx context.Context, id uint) error {
	result := r.getDB(ctx).Delete(&CopyModel{}, id)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除副本失败")
	}
	if result.RowsAffected == 0 {
		return bookcopy.ErrCopyNotFound
	}
	return nil
}

// ListByBookID 图书的全部副本
func (r *copyRepository) ListByBookID(ctx context.Context, bookID uint) ([]*bookcopy.Copy, error) {
	var models []CopyModel
	if err := r.getDB(ctx).Where("libro_id = ?", bookID).Order("id ASC").Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询副本列表失败")
	}
	return toCopyEntities(models), nil
}

// ListAvailableByBookID 在架副本
func (r *copyRepository) ListAvailableByBookID(ctx context.Context, bookID uint) ([]*bookcopy.Copy, error) {
	var models []CopyModel
	err := r.getDB(ctx).
		Where("libro_id = ? AND stato = ?", bookID, string(bookcopy.StatusAvailable)).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询在架副本失败")
	}
	return toCopyEntities(models), nil
}

// ListStatusesByBookID 图书全部副本的状态
func (r *copyRepository) ListStatusesByBookID(ctx context.Context, bookID uint) ([]bookcopy.Status, error) {
	var raw []string
	if err := r.getDB(ctx).Model(&CopyModel{}).Where("libro_id = ?", bookID).Order("id ASC").Pluck("stato", &raw).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询副本状态失败")
	}
	statuses := make([]bookcopy.Status, len(raw))
	for i, s := range raw {
		statuses[i] = bookcopy.Status(s)
	}
	return statuses, nil
}

// CountLendable 可流通副本数
func (r *copyRepository) CountLendable(ctx context.Context, bookID uint) (int64, error) {
	var n int64
	err := r.getDB(ctx).Model(&CopyModel{}).
		Where("libro_id = ? AND stato NOT IN ?", bookID, nonLendableStatuses()).
		Count(&n).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "统计可流通副本失败")
	}
	return n, nil
}

// FindAllocationCandidates 乐观候选查询（不加锁）
//
//	SELECT * FROM copie c
//	WHERE c.libro_id = ? AND c.stato IN ('disponibile','prenotato')
//	  AND NOT EXISTS (SELECT 1 FROM prestiti p WHERE p.copia_id = c.id AND p.attivo = 1
//	                  AND p.stato IN (...) AND p.data_prestito <= :end AND p.data_scadenza >= :start)
//	ORDER BY c.id LIMIT ?
func (r *copyRepository) FindAllocationCandidates(ctx context.Context, bookID uint, start, end time.Time, exclude []uint, limit int) ([]*bookcopy.Copy, error) {
	query := r.getDB(ctx).
		Where("libro_id = ? AND stato IN ?", bookID, allocatableStatuses()).
		Where(`NOT EXISTS (
			SELECT 1 FROM prestiti p
			WHERE p.copia_id = copie.id AND p.attivo = ? AND p.stato IN ?
			  AND p.data_prestito <= ? AND p.data_scadenza >= ?)`,
			true, slotStatuses(), end, start)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []CopyModel
	if err := query.Order("id ASC").Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询候选副本失败")
	}
	return toCopyEntities(models), nil
}

// =========================================
// 辅助函数
// =========================================

func allocatableStatuses() []string {
	return []string{string(bookcopy.StatusAvailable), string(bookcopy.StatusReserved)}
}

func nonLendableStatuses() []string {
	return []string{
		string(bookcopy.StatusLost),
		string(bookcopy.StatusDamaged),
		string(bookcopy.StatusMaintenance),
	}
}

// slotStatuses 占用副本时段的借阅状态
func slotStatuses() []string {
	out := make([]string, len(loan.SlotStatuses))
	for i, s := range loan.SlotStatuses {
		out[i] = string(s)
	}
	return out
}

func toCopyModel(c *bookcopy.Copy) *CopyModel {
	return &CopyModel{
		ID:              c.ID,
		BookID:          c.BookID,
		InventoryNumber: c.InventoryNumber,
		Status:          string(c.Status),
		Notes:           c.Notes,
		ShelfPosition:   c.ShelfPosition,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func toCopyEntity(m *CopyModel) *bookcopy.Copy {
	return &bookcopy.Copy{
		ID:              m.ID,
		BookID:          m.BookID,
		InventoryNumber: m.InventoryNumber,
		Status:          bookcopy.Status(m.Status),
		Notes:           m.Notes,
		ShelfPosition:   m.ShelfPosition,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toCopyEntities(models []CopyModel) []*bookcopy.Copy {
	out := make([]*bookcopy.Copy, len(models))
	for i := range models {
		out[i] = toCopyEntity(&models[i])
	}
	return out
}
