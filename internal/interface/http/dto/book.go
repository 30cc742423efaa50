package dto

// RegisterBookRequest 登记图书请求（馆员）
type RegisterBookRequest struct {
	ISBN          string  `json:"isbn" binding:"required" example:"9788845292613"`
	Title         string  `json:"title" binding:"required,max=200" example:"Il nome della rosa"`
	Author        string  `json:"author" binding:"required,max=100" example:"Umberto Eco"`
	Publisher     string  `json:"publisher" binding:"max=100" example:"Bompiani"`
	CoverURL      string  `json:"cover_url" binding:"omitempty,url,max=500" example:"https://example.com/cover.jpg"`
	Description   string  `json:"description" binding:"max=5000"`
	Copies        int     `json:"copies" binding:"min=0,max=200" example:"3"` // 初始副本数
	ShelfPosition *string `json:"shelf_position" binding:"omitempty,max=50" example:"A-12"`
}

// ListBooksRequest 图书列表查询参数
type ListBooksRequest struct {
	Page          int    `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
	Keyword       string `form:"keyword" binding:"omitempty,max=100" example:"Eco"`
	OnlyAvailable bool   `form:"only_available"`
	SortBy        string `form:"sort_by" binding:"omitempty,oneof=title_asc created_at_desc available_desc" example:"created_at_desc"`
}

// DateRangeQuery 可选日期区间（YYYY-MM-DD）
type DateRangeQuery struct {
	Start string `form:"start" example:"2025-06-01"`
	End   string `form:"end" example:"2025-06-15"`
}
