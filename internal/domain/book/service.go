package book

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Service 图书领域服务接口
// 设计说明:
// 1. 领域服务封装跨实体的业务逻辑和业务规则校验
// 2. 不依赖具体的Repository实现(依赖倒置)
type Service interface {
	// RegisterBook 登记图书
	// 业务规则:
	// - ISBN格式必须合法(10位或13位数字)
	// - 书名不能为空
	// - ISBN不能重复
	RegisterBook(ctx context.Context, isbn, title, author, publisher, coverURL, description string, createdBy uint) (*Book, error)

	// GetBookByID 根据ID获取图书详情
	GetBookByID(ctx context.Context, id uint) (*Book, error)

	// UpdateBookInfo 更新图书信息
	UpdateBookInfo(ctx context.Context, id uint, title, author, publisher, description string) (*Book, error)

	// DeleteBook 删除图书
	// 业务规则:仍有副本或在借借阅时拒绝
	DeleteBook(ctx context.Context, id uint) error

	// ListBooks 分页查询图书列表
	ListBooks(ctx context.Context, params ListParams) ([]*Book, int64, error)
}

// service 领域服务实现
type service struct {
	repo Repository
}

// NewService 创建图书领域服务
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// RegisterBook 登记图书
func (s *service) RegisterBook(ctx context.Context, isbn, title, author, publisher, coverURL, description string, createdBy uint) (*Book, error) {
	// 1. ISBN格式校验
	if !isValidISBN(isbn) {
		return nil, ErrInvalidISBN
	}
	isbn = normalizeISBN(isbn)

	// 2. 书名校验
	if strings.TrimSpace(title) == "" {
		return nil, ErrInvalidTitle
	}

	// 3. 检查ISBN是否已存在
	existing, err := s.repo.FindByISBN(ctx, isbn)
	if err == nil && existing != nil {
		return nil, ErrISBNDuplicate
	}
	if err != nil && !errors.Is(err, ErrBookNotFound) {
		return nil, err
	}

	// 4. 创建并持久化
	b := NewBook(isbn, title, author, publisher, coverURL, description, createdBy)
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBookByID 根据ID获取图书
func (s *service) GetBookByID(ctx context.Context, id uint) (*Book, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateBookInfo 更新图书信息
func (s *service) UpdateBookInfo(ctx context.Context, id uint, title, author, publisher, description string) (*Book, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b.UpdateInfo(title, author, publisher, description)
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBook 删除图书
func (s *service) DeleteBook(ctx context.Context, id uint) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}

	copies, activeLoans, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return err
	}
	if copies > 0 || activeLoans > 0 {
		return ErrBookInUse
	}

	return s.repo.Delete(ctx, id)
}

// ListBooks 分页查询图书列表
func (s *service) ListBooks(ctx context.Context, params ListParams) ([]*Book, int64, error) {
	return s.repo.List(ctx, params)
}

// =========================================
// 辅助函数:业务规则校验
// =========================================

var nonDigit = regexp.MustCompile(`[^0-9Xx]`)

// normalizeISBN 去除分隔符(978-88-04-66828-9 → 9788804668289)
func normalizeISBN(isbn string) string {
	return strings.ToUpper(nonDigit.ReplaceAllString(isbn, ""))
}

// isValidISBN 校验ISBN格式
// ISBN-10最后一位允许X;只检查位数,不校验校验位
func isValidISBN(isbn string) bool {
	clean := normalizeISBN(isbn)
	switch len(clean) {
	case 13:
		return !strings.Contains(clean, "X")
	case 10:
		return !strings.Contains(clean[:9], "X")
	default:
		return false
	}
}
