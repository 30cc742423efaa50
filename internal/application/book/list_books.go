package book

import (
	"context"

	"github.com/xiebiao/biblioteca/internal/domain/book"
)

// ListBooksUseCase 图书目录查询用例
// 列表项不含description，减少数据传输量
type ListBooksUseCase struct {
	bookService book.Service
}

// NewListBooksUseCase 创建列表查询用例
func NewListBooksUseCase(bookService book.Service) *ListBooksUseCase {
	return &ListBooksUseCase{
		bookService: bookService,
	}
}

// ListBooksRequest 列表查询请求DTO
type ListBooksRequest struct {
	Page          int    // 页码(从1开始)
	PageSize      int    // 每页数量
	Keyword       string // 搜索关键词(标题、作者、出版社、ISBN)
	OnlyAvailable bool   // 只看有在架副本的图书
	SortBy        string // 排序方式(title_asc, created_at_desc, available_desc)
}

// BookListItem 列表项DTO(不含description)
type BookListItem struct {
	ID              uint   `json:"id"`
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Publisher       string `json:"publisher"`
	CoverURL        string `json:"cover_url"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	Status          string `json:"status"`
}

// ListBooksResponse 列表查询响应DTO
type ListBooksResponse struct {
	List       []BookListItem `json:"list"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// Execute 执行列表查询用例
func (uc *ListBooksUseCase) Execute(ctx context.Context, req ListBooksRequest) (*ListBooksResponse, error) {
	// 1. 参数默认值与范围限制
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	// 2. 查询
	books, total, err := uc.bookService.ListBooks(ctx, book.ListParams{
		Page:          req.Page,
		PageSize:      req.PageSize,
		Keyword:       req.Keyword,
		OnlyAvailable: req.OnlyAvailable,
		SortBy:        req.SortBy,
	})
	if err != nil {
		return nil, err
	}

	// 3. 转换为DTO
	list := make([]BookListItem, len(books))
	for i, b := range books {
		list[i] = BookListItem{
			ID:              b.ID,
			ISBN:            b.ISBN,
			Title:           b.Title,
			Author:          b.Author,
			Publisher:       b.Publisher,
			CoverURL:        b.CoverURL,
			TotalCopies:     b.TotalCopies,
			AvailableCopies: b.AvailableCopies,
			Status:          b.Status.String(),
		}
	}

	// 4. 计算总页数
	totalPages := int(total) / req.PageSize
	if int(total)%req.PageSize != 0 {
		totalPages++
	}

	return &ListBooksResponse{
		List:       list,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}, nil
}
