// Package router 组装HTTP处理器并注册路由
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	appbook "github.com/xiebiao/biblioteca/internal/application/book"
	"github.com/xiebiao/biblioteca/internal/application/copies"
	apploan "github.com/xiebiao/biblioteca/internal/application/loan"
	"github.com/xiebiao/biblioteca/internal/application/maintenance"
	appres "github.com/xiebiao/biblioteca/internal/application/reservation"
	appuser "github.com/xiebiao/biblioteca/internal/application/user"
	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/internal/interface/http/handler"
	"github.com/xiebiao/biblioteca/internal/interface/http/middleware"
	"github.com/xiebiao/biblioteca/pkg/jwt"
	"github.com/xiebiao/biblioteca/pkg/response"
)

// SessionBackend 登录会话与Token黑名单
type SessionBackend interface {
	appuser.SessionStore
	middleware.TokenBlacklist
}

// Deps 处理器依赖
type Deps struct {
	Tx          circulation.Transactor
	Repos       circulation.Repositories
	Engine      *circulation.Engine
	UserService user.Service
	BookService book.Service
	JWT         *jwt.Manager
	Sessions    SessionBackend
	SessionTTL  time.Duration
	Logger      *zap.Logger
}

// Handlers 全部HTTP处理器
type Handlers struct {
	User        *handler.UserHandler
	Book        *handler.BookHandler
	Copy        *handler.CopyHandler
	Loan        *handler.LoanHandler
	Reservation *handler.ReservationHandler
	Admin       *handler.AdminHandler
	Auth        *middleware.AuthMiddleware
}

// NewHandlers 依赖链：Repository ← Service ← UseCase ← Handler
func NewHandlers(d Deps) Handlers {
	log := d.Logger
	recalc := appbook.NewRecalculateUseCase(d.Engine, log)

	return Handlers{
		User: handler.NewUserHandler(
			appuser.NewRegisterUseCase(d.UserService),
			appuser.NewLoginUseCase(d.UserService, d.JWT, d.Sessions, d.SessionTTL, log),
			appuser.NewLogoutUseCase(d.Sessions),
		),
		Book: handler.NewBookHandler(
			appbook.NewRegisterBookUseCase(d.Tx, d.BookService, d.Repos.Copies, d.Engine, log),
			appbook.NewListBooksUseCase(d.BookService),
			appbook.NewGetBookUseCase(d.BookService),
			appbook.NewGetAvailabilityUseCase(d.BookService, d.Engine),
			appbook.NewDeleteBookUseCase(d.BookService),
			recalc,
		),
		Copy: handler.NewCopyHandler(copies.NewService(d.Tx, d.Repos, d.Engine, log)),
		Loan: handler.NewLoanHandler(handler.LoanUseCases{
			Request: apploan.NewRequestLoanUseCase(d.Tx, d.Repos.Books, d.Engine, log),
			Create:  apploan.NewCreateLoanUseCase(d.Tx, d.Repos.Books, d.Repos.Users, d.Engine, log),
			Approve: apploan.NewApproveLoanUseCase(d.Tx, d.Repos, d.Engine, log),
			Pickup:  apploan.NewPickupLoanUseCase(d.Tx, d.Repos, d.Engine, log),
			Return:  apploan.NewReturnLoanUseCase(d.Tx, d.Repos, d.Engine, log),
			Cancel:  apploan.NewCancelLoanUseCase(d.Tx, d.Repos, d.Engine, log),
			Renew:   apploan.NewRenewLoanUseCase(d.Tx, d.Repos, d.Engine, log),
			Get:     apploan.NewGetLoanUseCase(d.Repos.Loans),
			List:    apploan.NewListLoansUseCase(d.Repos.Loans),
		}),
		Reservation: handler.NewReservationHandler(handler.ReservationUseCases{
			Create:       appres.NewCreateReservationUseCase(d.Repos, d.Engine, log),
			Cancel:       appres.NewCancelReservationUseCase(d.Engine, log),
			ListMine:     appres.NewListMyReservationsUseCase(d.Repos.Reservations),
			ListQueue:    appres.NewListQueueUseCase(d.Repos.Books, d.Repos.Reservations),
			ProcessQueue: appres.NewProcessQueueUseCase(d.Repos.Books, d.Engine, log),
		}),
		Admin: handler.NewAdminHandler(
			maintenance.NewRunMaintenanceUseCase(d.Repos.Loans, d.Repos.Reservations, d.Engine, log),
			recalc,
		),
		Auth: middleware.NewAuthMiddleware(d.JWT, d.Sessions),
	}
}

// Options 引擎选项
type Options struct {
	Mode    string // debug | release | test
	Swagger bool   // 生产环境建议关闭
	Logger  *zap.Logger
}

// New 创建Gin引擎并注册全部路由
func New(opts Options, h Handlers) *gin.Engine {
	switch opts.Mode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(opts.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(opts.Logger), middleware.Metrics())

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong", "status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := h.Auth.RequireAuth()
	staff := middleware.RequireStaff()

	v1 := r.Group("/api/v1")
	{
		users := v1.Group("/users")
		{
			users.POST("/register", h.User.Register)
			users.POST("/login", h.User.Login)
			users.POST("/logout", auth, h.User.Logout)
			users.GET("/me", auth, h.User.Profile)
		}

		books := v1.Group("/books")
		{
			// 目录查询公开
			books.GET("", h.Book.ListBooks)
			books.GET("/:id", h.Book.GetBook)
			books.GET("/:id/availability", h.Book.GetAvailability)
			books.GET("/:id/copies", h.Copy.ListCopies)

			books.POST("", auth, staff, h.Book.RegisterBook)
			books.DELETE("/:id", auth, staff, h.Book.DeleteBook)
			books.POST("/:id/copies", auth, staff, h.Copy.AddCopies)
			books.GET("/:id/queue", auth, staff, h.Reservation.ListQueue)
			books.POST("/:id/queue/process", auth, staff, h.Reservation.ProcessQueue)
			books.POST("/:id/recalculate", auth, staff, h.Book.Recalculate)
		}

		copyGroup := v1.Group("/copies", auth, staff)
		{
			copyGroup.PUT("/:id/status", h.Copy.UpdateStatus)
			copyGroup.DELETE("/:id", h.Copy.DeleteCopy)
		}

		loans := v1.Group("/loans", auth)
		{
			loans.POST("", h.Loan.RequestLoan)
			loans.GET("", h.Loan.ListLoans)
			loans.POST("/direct", staff, h.Loan.CreateLoan)
			loans.GET("/:id", h.Loan.GetLoan)
			loans.POST("/:id/approve", staff, h.Loan.ApproveLoan)
			loans.POST("/:id/pickup", staff, h.Loan.PickupLoan)
			loans.POST("/:id/return", staff, h.Loan.ReturnLoan)
			loans.POST("/:id/cancel", h.Loan.CancelLoan)
			loans.POST("/:id/renew", h.Loan.RenewLoan)
		}

		reservations := v1.Group("/reservations", auth)
		{
			reservations.POST("", h.Reservation.CreateReservation)
			reservations.GET("", h.Reservation.ListMine)
			reservations.DELETE("/:id", h.Reservation.CancelReservation)
		}

		admin := v1.Group("/admin", auth, staff)
		{
			admin.POST("/maintenance", h.Admin.RunMaintenance)
			admin.POST("/recalculate", h.Admin.RecalculateAll)
		}
	}

	return r
}
