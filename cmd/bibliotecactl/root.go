package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appbook "github.com/xiebiao/biblioteca/internal/application/book"
	"github.com/xiebiao/biblioteca/internal/application/maintenance"
	appres "github.com/xiebiao/biblioteca/internal/application/reservation"
	appuser "github.com/xiebiao/biblioteca/internal/application/user"
	"github.com/xiebiao/biblioteca/internal/bootstrap"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/internal/infrastructure/config"
	"github.com/xiebiao/biblioteca/internal/infrastructure/persistence/mysql"
)

// systemActor 命令行以馆员身份执行
var systemActor = user.Actor{Role: user.RoleStaff}

// env 一次命令执行所需的组件
type env struct {
	core   *bootstrap.Core
	logger *zap.Logger
	out    io.Writer
}

// runFunc 子命令主体，env由root统一创建与释放
type runFunc func(ctx context.Context, e *env, args []string) (interface{}, error)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "bibliotecactl",
		Short:        "图书馆流通运维工具",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认./config/config.yaml）")

	// wrap 加载配置、连接数据库后执行子命令，结果以JSON输出
	wrap := func(fn runFunc) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			log := bootstrap.NewLogger(cfg.Log)
			defer func() { _ = log.Sync() }()

			notifier, closeNotifier, err := bootstrap.NewNotifier(cfg.RabbitMQ, log)
			if err != nil {
				return err
			}
			defer closeNotifier()

			db, err := mysql.NewDB(cfg, log)
			if err != nil {
				return err
			}
			defer bootstrap.CloseDB(db, log)

			e := &env{
				core:   bootstrap.NewCore(db, notifier, cfg.Circulation, log),
				logger: log,
				out:    cmd.OutOrStdout(),
			}
			result, err := fn(cmd.Context(), e, args)
			if err != nil {
				return err
			}
			return printJSON(e.out, result)
		}
	}

	root.AddCommand(
		newSweepCmd(wrap),
		newRecalcCmd(wrap),
		newProcessQueueCmd(wrap),
		newPromoteCmd(wrap),
	)
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type wrapper func(runFunc) func(*cobra.Command, []string) error

func newSweepCmd(wrap wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "执行一轮维护：清理过期预约与逾期未取的借阅，校验借阅，重算计数，处理队列",
		Args:  cobra.NoArgs,
		RunE: wrap(func(ctx context.Context, e *env, _ []string) (interface{}, error) {
			uc := maintenance.NewRunMaintenanceUseCase(e.core.Repos.Loans, e.core.Repos.Reservations, e.core.Engine, e.logger)
			return uc.Execute(ctx, systemActor)
		}),
	}
}

func newRecalcCmd(wrap wrapper) *cobra.Command {
	var bookID uint
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "按副本与借阅重算图书计数",
		Args:  cobra.NoArgs,
		RunE: wrap(func(ctx context.Context, e *env, _ []string) (interface{}, error) {
			uc := appbook.NewRecalculateUseCase(e.core.Engine, e.logger)
			if bookID == 0 {
				return uc.ExecuteAll(ctx, systemActor)
			}
			return uc.Execute(ctx, systemActor, bookID)
		}),
	}
	cmd.Flags().UintVar(&bookID, "book", 0, "只重算指定图书，默认全部")
	return cmd
}

func newProcessQueueCmd(wrap wrapper) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "process-queue <book-id>",
		Short: "处理指定图书的预约队列",
		Args:  cobra.ExactArgs(1),
		RunE: wrap(func(ctx context.Context, e *env, args []string) (interface{}, error) {
			bookID, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			uc := appres.NewProcessQueueUseCase(e.core.Repos.Books, e.core.Engine, e.logger)
			return uc.Execute(ctx, systemActor, bookID, limit)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "最多转借阅的预约数，0表示不限")
	return cmd
}

func newPromoteCmd(wrap wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "将用户设为馆员",
		Args:  cobra.ExactArgs(1),
		RunE: wrap(func(ctx context.Context, e *env, args []string) (interface{}, error) {
			return appuser.NewPromoteUseCase(e.core.UserService, e.logger).Execute(ctx, args[0])
		}),
	}
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("无效的图书ID: %q", s)
	}
	return uint(id), nil
}
