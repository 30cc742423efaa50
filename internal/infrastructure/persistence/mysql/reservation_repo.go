package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/biblioteca/internal/domain/reservation"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// reservationRepository 预约仓储实现
type reservationRepository struct {
	baseRepo
}

// NewReservationRepository 创建预约仓储
func NewReservationRepository(db *gorm.DB) reservation.Repository {
	return &reservationRepository{baseRepo{db: db}}
}

// Create 创建预约
func (r *reservationRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	model := toReservationModel(res)
	if err := r.getDB(ctx).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建预约失败")
	}
	res.ID = model.ID
	res.CreatedAt = model.CreatedAt
	res.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID 根据ID查找预约
func (r *reservationRepository) FindByID(ctx context.Context, id uint) (*reservation.Reservation, error) {
	var model ReservationModel
	if err := r.getDB(ctx).First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, apperrors.Wrap(err, "查询预约失败")
	}
	return toReservationEntity(&model), nil
}

// Update 保存预约全部字段
func (r *reservationRepository) Update(ctx context.Context, res *reservation.Reservation) error {
	model := toReservationModel(res)
	if err := r.getDB(ctx).Save(model).Error; err != nil {
		return apperrors.Wrap(err, "更新预约失败")
	}
	res.UpdatedAt = model.UpdatedAt
	return nil
}

// FindQueueHead 队首预约，空队列返回nil
func (r *reservationRepository) FindQueueHead(ctx context.Context, bookID uint) (*reservation.Reservation, error) {
	var models []ReservationModel
	err := r.active(ctx, bookID).
		Order("queue_position ASC").Order("id ASC").
		Limit(1).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询队首预约失败")
	}
	if len(models) == 0 {
		return nil, nil
	}
	return toReservationEntity(&models[0]), nil
}

// ListActiveByBook 排队预约，按(queue_position, id)升序
func (r *reservationRepository) ListActiveByBook(ctx context.Context, bookID uint) ([]*reservation.Reservation, error) {
	var models []ReservationModel
	err := r.active(ctx, bookID).Order("queue_position ASC").Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询预约队列失败")
	}
	return toReservationEntities(models), nil
}

// MaxQueuePosition 当前最大排位，空队列返回0
func (r *reservationRepository) MaxQueuePosition(ctx context.Context, bookID uint) (int, error) {
	var maxPos int
	err := r.active(ctx, bookID).Select("COALESCE(MAX(queue_position), 0)").Scan(&maxPos).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "查询最大排位失败")
	}
	return maxPos, nil
}

// UpdateQueuePosition 只更新排位
func (r *reservationRepository) UpdateQueuePosition(ctx context.Context, id uint, position int) error {
	err := r.getDB(ctx).Model(&ReservationModel{}).Where("id = ?", id).Update("queue_position", position).Error
	if err != nil {
		return apperrors.Wrap(err, "更新排位失败")
	}
	return nil
}

// CountOverlapping 与区间重叠的排队预约数
// 预约未指定区间时使用 [data_prenotazione, data_scadenza_prenotazione]
func (r *reservationRepository) CountOverlapping(ctx context.Context, bookID uint, start, end time.Time, aheadOf int) (int64, error) {
	query := r.active(ctx, bookID).
		Where("COALESCE(data_inizio_richiesta, data_prenotazione) <= ?", end).
		Where("COALESCE(data_fine_richiesta, data_scadenza_prenotazione) >= ?", start)
	if aheadOf > 0 {
		query = query.Where("queue_position < ?", aheadOf)
	}

	var n int64
	if err := query.Count(&n).Error; err != nil {
		return 0, apperrors.Wrap(err, "统计重叠预约失败")
	}
	return n, nil
}

// ListExpired 截止日早于today的排队预约
func (r *reservationRepository) ListExpired(ctx context.Context, today time.Time) ([]*reservation.Reservation, error) {
	var models []ReservationModel
	err := r.getDB(ctx).
		Where("stato = ? AND data_scadenza_prenotazione < ?", string(reservation.StatusActive), today).
		Order("libro_id ASC").Order("queue_position ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询过期预约失败")
	}
	return toReservationEntities(models), nil
}

// ExistsActive 读者是否已在该书队列中
func (r *reservationRepository) ExistsActive(ctx context.Context, bookID, userID uint) (bool, error) {
	var n int64
	if err := r.active(ctx, bookID).Where("utente_id = ?", userID).Count(&n).Error; err != nil {
		return false, apperrors.Wrap(err, "查询读者预约失败")
	}
	return n > 0, nil
}

// ListByUser 读者的预约
func (r *reservationRepository) ListByUser(ctx context.Context, userID uint) ([]*reservation.Reservation, error) {
	var models []ReservationModel
	err := r.getDB(ctx).Where("utente_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询读者预约失败")
	}
	return toReservationEntities(models), nil
}

// ListBooksWithQueue 有排队预约的图书ID
func (r *reservationRepository) ListBooksWithQueue(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&ReservationModel{}).
		Where("stato = ?", string(reservation.StatusActive)).
		Distinct("libro_id").
		Order("libro_id ASC").
		Pluck("libro_id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询排队图书失败")
	}
	return ids, nil
}

// MarkNotified 标记已发送到书通知
func (r *reservationRepository) MarkNotified(ctx context.Context, id uint) error {
	err := r.getDB(ctx).Model(&ReservationModel{}).Where("id = ?", id).Update("notifica_inviata", true).Error
	if err != nil {
		return apperrors.Wrap(err, "更新通知状态失败")
	}
	return nil
}

// active 图书的attiva预约
func (r *reservationRepository) active(ctx context.Context, bookID uint) *gorm.DB {
	return r.getDB(ctx).Model(&ReservationModel{}).
		Where("libro_id = ? AND stato = ?", bookID, string(reservation.StatusActive))
}

// =========================================
// 辅助函数:模型转换
// =========================================

func toReservationModel(res *reservation.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:               res.ID,
		BookID:           res.BookID,
		UserID:           res.UserID,
		RequestedStart:   res.RequestedStart,
		RequestedEnd:     res.RequestedEnd,
		ReservedAt:       res.ReservedAt,
		ExpiresAt:        res.ExpiresAt,
		QueuePosition:    res.QueuePosition,
		Status:           string(res.Status),
		NotificationSent: res.NotificationSent,
		LoanID:           res.LoanID,
		CreatedAt:        res.CreatedAt,
		UpdatedAt:        res.UpdatedAt,
	}
}

func toReservationEntity(m *ReservationModel) *reservation.Reservation {
	return &reservation.Reservation{
		ID:               m.ID,
		BookID:           m.BookID,
		UserID:           m.UserID,
		RequestedStart:   utcPtr(m.RequestedStart),
		RequestedEnd:     utcPtr(m.RequestedEnd),
		ReservedAt:       m.ReservedAt.UTC(),
		ExpiresAt:        m.ExpiresAt.UTC(),
		QueuePosition:    m.QueuePosition,
		Status:           reservation.Status(m.Status),
		NotificationSent: m.NotificationSent,
		LoanID:           m.LoanID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toReservationEntities(models []ReservationModel) []*reservation.Reservation {
	out := make([]*reservation.Reservation, len(models))
	for i := range models {
		out[i] = toReservationEntity(&models[i])
	}
	return out
}
