package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/biblioteca/internal/domain/loan"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// loanRepository 借阅仓储实现
// 重叠条件：data_prestito <= :end AND data_scadenza >= :start（闭区间）
type loanRepository struct {
	baseRepo
}

// NewLoanRepository 创建借阅仓储
func NewLoanRepository(db *gorm.DB) loan.Repository {
	return &loanRepository{baseRepo{db: db}}
}

// Create 创建借阅
func (r *loanRepository) Create(ctx context.Context, l *loan.Loan) error {
	model := toLoanModel(l)
	if err := r.getDB(ctx).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建借阅失败")
	}
	l.ID = model.ID
	l.CreatedAt = model.CreatedAt
	l.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID 根据ID查找借阅
func (r *loanRepository) FindByID(ctx context.Context, id uint) (*loan.Loan, error) {
	var model LoanModel
	if err := r.getDB(ctx).First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, loan.ErrLoanNotFound
		}
		return nil, apperrors.Wrap(err, "查询借阅失败")
	}
	return toLoanEntity(&model), nil
}

// LockByID 悲观锁查询借阅
func (r *loanRepository) LockByID(ctx context.Context, id uint) (*loan.Loan, error) {
	var model LoanModel
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, id).Error
	if err != nil {
		if isNotFound(err) {
			return nil, loan.ErrLoanNotFound
		}
		return nil, apperrors.Wrap(err, "锁定借阅失败")
	}
	return toLoanEntity(&model), nil
}

// Update 保存借阅全部字段
func (r *loanRepository) Update(ctx context.Context, l *loan.Loan) error {
	model := toLoanModel(l)
	if err := r.getDB(ctx).Save(model).Error; err != nil {
		return apperrors.Wrap(err, "更新借阅失败")
	}
	l.UpdatedAt = model.UpdatedAt
	return nil
}

// CountOverlapping 图书在区间内的占用型借阅数
func (r *loanRepository) CountOverlapping(ctx context.Context, bookID uint, start, end time.Time, excludeLoanID uint) (int64, error) {
	query := r.slotOverlap(ctx, start, end).Where("libro_id = ?", bookID)
	if excludeLoanID != 0 {
		query = query.Where("id <> ?", excludeLoanID)
	}

	var n int64
	if err := query.Count(&n).Error; err != nil {
		return 0, apperrors.Wrap(err, "统计重叠借阅失败")
	}
	return n, nil
}

// HasOverlapOnCopy 同一副本在区间内是否已有占用型借阅
func (r *loanRepository) HasOverlapOnCopy(ctx context.Context, copyID uint, start, end time.Time, excludeLoanID uint) (bool, error) {
	query := r.slotOverlap(ctx, start, end).Where("copia_id = ?", copyID)
	if excludeLoanID != 0 {
		query = query.Where("id <> ?", excludeLoanID)
	}

	var n int64
	if err := query.Count(&n).Error; err != nil {
		return false, apperrors.Wrap(err, "检查副本借阅重叠失败")
	}
	return n > 0, nil
}

// CountActiveByCopy 副本上attivo=1的借阅数
func (r *loanRepository) CountActiveByCopy(ctx context.Context, copyID uint) (int64, error) {
	var n int64
	err := r.getDB(ctx).Model(&LoanModel{}).Where("copia_id = ? AND attivo = ?", copyID, true).Count(&n).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "统计副本借阅失败")
	}
	return n, nil
}

// CountByCopy 副本的借阅历史条数
func (r *loanRepository) CountByCopy(ctx context.Context, copyID uint) (int64, error) {
	var n int64
	if err := r.getDB(ctx).Model(&LoanModel{}).Where("copia_id = ?", copyID).Count(&n).Error; err != nil {
		return 0, apperrors.Wrap(err, "统计副本借阅历史失败")
	}
	return n, nil
}

// CountActiveByBook 图书上attivo=1的借阅数
func (r *loanRepository) CountActiveByBook(ctx context.Context, bookID uint) (int64, error) {
	var n int64
	err := r.getDB(ctx).Model(&LoanModel{}).Where("libro_id = ? AND attivo = ?", bookID, true).Count(&n).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "统计图书借阅失败")
	}
	return n, nil
}

// ListActive 全部attivo=1的借阅
func (r *loanRepository) ListActive(ctx context.Context) ([]*loan.Loan, error) {
	var models []LoanModel
	if err := r.getDB(ctx).Where("attivo = ?", true).Order("id ASC").Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询在借借阅失败")
	}
	return toLoanEntities(models), nil
}

// ListActiveByCopy 副本上attivo=1的借阅
func (r *loanRepository) ListActiveByCopy(ctx context.Context, copyID uint) ([]*loan.Loan, error) {
	var models []LoanModel
	err := r.getDB(ctx).Where("copia_id = ? AND attivo = ?", copyID, true).Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询副本借阅失败")
	}
	return toLoanEntities(models), nil
}

// ListUnclaimed 起借日早于startedBefore仍为prenotato的借阅
func (r *loanRepository) ListUnclaimed(ctx context.Context, startedBefore time.Time) ([]*loan.Loan, error) {
	var models []LoanModel
	err := r.getDB(ctx).
		Where("attivo = ? AND stato = ? AND data_prestito < ?", true, string(loan.StatusReserved), startedBefore).
		Order("data_prestito ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询未取书预约失败")
	}
	return toLoanEntities(models), nil
}

// ListByUser 读者的借阅
func (r *loanRepository) ListByUser(ctx context.Context, userID uint) ([]*loan.Loan, error) {
	var models []LoanModel
	err := r.getDB(ctx).Where("utente_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询读者借阅失败")
	}
	return toLoanEntities(models), nil
}

// slotOverlap 占用型借阅的重叠条件
func (r *loanRepository) slotOverlap(ctx context.Context, start, end time.Time) *gorm.DB {
	return r.getDB(ctx).Model(&LoanModel{}).
		Where("attivo = ? AND stato IN ?", true, slotStatuses()).
		Where("data_prestito <= ? AND data_scadenza >= ?", end, start)
}

// =========================================
// 辅助函数:模型转换
// =========================================

func toLoanModel(l *loan.Loan) *LoanModel {
	return &LoanModel{
		ID:          l.ID,
		BookID:      l.BookID,
		CopyID:      l.CopyID,
		UserID:      l.UserID,
		StartDate:   l.StartDate,
		DueDate:     l.DueDate,
		ReturnedAt:  l.ReturnedAt,
		Status:      string(l.Status),
		Active:      l.Active,
		Renewals:    l.Renewals,
		ProcessedBy: l.ProcessedBy,
		Notes:       l.Notes,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func toLoanEntity(m *LoanModel) *loan.Loan {
	return &loan.Loan{
		ID:          m.ID,
		BookID:      m.BookID,
		CopyID:      m.CopyID,
		UserID:      m.UserID,
		StartDate:   m.StartDate.UTC(),
		DueDate:     m.DueDate.UTC(),
		ReturnedAt:  utcPtr(m.ReturnedAt),
		Status:      loan.Status(m.Status),
		Active:      m.Active,
		Renewals:    m.Renewals,
		ProcessedBy: m.ProcessedBy,
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toLoanEntities(models []LoanModel) []*loan.Loan {
	out := make([]*loan.Loan, len(models))
	for i := range models {
		out[i] = toLoanEntity(&models[i])
	}
	return out
}

// utcPtr 可空日期转UTC
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
