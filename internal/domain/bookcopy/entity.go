package bookcopy

import (
	"time"
)

// Status 副本流通状态（封闭枚举）
// 数据库中以意大利语字符串存储，与历史数据保持一致
type Status string

const (
	StatusAvailable   Status = "disponibile"      // 在架可借
	StatusLoaned      Status = "prestato"         // 已借出
	StatusReserved    Status = "prenotato"        // 预约保留待取
	StatusLost        Status = "perso"            // 遗失
	StatusDamaged     Status = "danneggiato"      // 损坏
	StatusMaintenance Status = "manutenzione"     // 维护中
	StatusInTransfer  Status = "in_trasferimento" // 调拨中
)

// AllStatuses 全部状态，用于校验与统计
var AllStatuses = []Status{
	StatusAvailable,
	StatusLoaned,
	StatusReserved,
	StatusLost,
	StatusDamaged,
	StatusMaintenance,
	StatusInTransfer,
}

// ParseStatus 解析状态字符串
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// IsLendable 是否计入可流通副本
// 遗失、损坏、维护中的副本不参与可借容量计算
func (s Status) IsLendable() bool {
	switch s {
	case StatusLost, StatusDamaged, StatusMaintenance:
		return false
	default:
		return true
	}
}

// IsAllocatable 是否可作为分配候选
// 预约保留的副本同样可分配，仍需经过日期重叠检查
func (s Status) IsAllocatable() bool {
	return s == StatusAvailable || s == StatusReserved
}

// IsManuallySettable 管理员能否手动设置该状态
// 已借出/预约保留只能由借阅流程产生
func (s Status) IsManuallySettable() bool {
	return s != StatusLoaned && s != StatusReserved
}

// IsRemovable 是否允许删除副本（只允许非流通的终态）
func (s Status) IsRemovable() bool {
	return s == StatusLost || s == StatusDamaged || s == StatusMaintenance
}

func (s Status) String() string {
	return string(s)
}

// Copy 副本实体：一本书的一册实物
type Copy struct {
	ID              uint
	BookID          uint
	InventoryNumber string  // 财产登记号
	Status          Status  // 流通状态
	Notes           string  // 备注
	ShelfPosition   *string // 架位（可选）
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewCopy 创建在架副本
func NewCopy(bookID uint, inventoryNumber string, shelfPosition *string) *Copy {
	now := time.Now()
	return &Copy{
		BookID:          bookID,
		InventoryNumber: inventoryNumber,
		Status:          StatusAvailable,
		ShelfPosition:   shelfPosition,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
