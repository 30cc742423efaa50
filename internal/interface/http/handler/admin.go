package handler

import (
	"github.com/gin-gonic/gin"

	appbook "github.com/xiebiao/biblioteca/internal/application/book"
	"github.com/xiebiao/biblioteca/internal/application/maintenance"
	"github.com/xiebiao/biblioteca/internal/interface/http/middleware"
	"github.com/xiebiao/biblioteca/pkg/response"
)

// AdminHandler 馆员维护接口
type AdminHandler struct {
	maintenanceUseCase *maintenance.RunMaintenanceUseCase
	recalculateUseCase *appbook.RecalculateUseCase
}

// NewAdminHandler 创建维护处理器
func NewAdminHandler(maintenanceUseCase *maintenance.RunMaintenanceUseCase, recalculateUseCase *appbook.RecalculateUseCase) *AdminHandler {
	return &AdminHandler{
		maintenanceUseCase: maintenanceUseCase,
		recalculateUseCase: recalculateUseCase,
	}
}

// RunMaintenance 执行维护
// @Summary      执行维护
// @Description  清理过期预约、校验在借借阅、重算计数、处理所有预约队列
// @Tags         维护
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=maintenance.Report}
// @Router       /api/v1/admin/maintenance [post]
func (h *AdminHandler) RunMaintenance(c *gin.Context) {
	report, err := h.maintenanceUseCase.Execute(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// RecalculateAll 全量重算
// @Summary      全量重算图书计数
// @Tags         维护
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=appbook.RecalculateResponse}
// @Router       /api/v1/admin/recalculate [post]
func (h *AdminHandler) RecalculateAll(c *gin.Context) {
	result, err := h.recalculateUseCase.ExecuteAll(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
