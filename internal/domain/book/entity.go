package book

import (
	"time"
)

// Status 图书总体可借标签（libri.stato）
// 由计数重算派生，不直接修改
type Status string

const (
	StatusAvailable   Status = "disponibile"     // 有在架副本
	StatusOnLoan      Status = "prestato"        // 有可流通副本，但全部借出/保留
	StatusUnavailable Status = "non_disponibile" // 没有可流通副本
)

func (s Status) String() string {
	return string(s)
}

// DeriveStatus 根据副本计数推导标签
func DeriveStatus(available, lendable int) Status {
	switch {
	case available > 0:
		return StatusAvailable
	case lendable > 0:
		return StatusOnLoan
	default:
		return StatusUnavailable
	}
}

// Book 图书实体(聚合根)
// DDD设计说明:
// 1. TotalCopies/AvailableCopies是副本表的冗余缓存,只能由重算写入
// 2. ISBN作为业务唯一标识(数据库层保证唯一性)
// 3. 存在副本或借阅引用时不允许删除(软删除)
type Book struct {
	ID              uint
	ISBN            string // ISBN号(国际标准书号)
	Title           string // 书名
	Author          string // 作者
	Publisher       string // 出版社
	Description     string // 图书描述
	CoverURL        string // 封面图片URL
	TotalCopies     int    // copie_totali
	AvailableCopies int    // copie_disponibili
	Status          Status // stato
	CreatedBy       uint   // 登记图书的馆员ID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewBook 创建新图书(工厂方法)
// 新书尚无副本,标签为non_disponibile,登记副本后由重算更新
func NewBook(isbn, title, author, publisher, coverURL, description string, createdBy uint) *Book {
	now := time.Now()
	return &Book{
		ISBN:        isbn,
		Title:       title,
		Author:      author,
		Publisher:   publisher,
		CoverURL:    coverURL,
		Description: description,
		Status:      StatusUnavailable,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ApplyCounters 写入重算结果,返回缓存是否发生漂移
func (b *Book) ApplyCounters(total, available, lendable int) bool {
	status := DeriveStatus(available, lendable)
	drift := b.TotalCopies != total || b.AvailableCopies != available || b.Status != status
	b.TotalCopies = total
	b.AvailableCopies = available
	b.Status = status
	b.UpdatedAt = time.Now()
	return drift
}

// UpdateInfo 更新图书基本信息
func (b *Book) UpdateInfo(title, author, publisher, description string) {
	if title != "" {
		b.Title = title
	}
	if author != "" {
		b.Author = author
	}
	if publisher != "" {
		b.Publisher = publisher
	}
	if description != "" {
		b.Description = description
	}
	b.UpdatedAt = time.Now()
}
