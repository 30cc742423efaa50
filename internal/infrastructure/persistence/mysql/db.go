package mysql

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/xiebiao/biblioteca/internal/infrastructure/config"
)

// NewDB 创建数据库连接
// 设计说明：
// 1. 使用GORM v2作为ORM框架
// 2. 配置连接池参数（MaxOpenConns、MaxIdleConns、ConnMaxLifetime）
// 3. 开发环境开启SQL日志，生产环境关闭
// 4. 自动迁移表结构（AutoMigrate）
func NewDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := cfg.Database.DSN()

	logLevel := gormlogger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = gormlogger.Info // 开发环境打印SQL
	}

	db, err := gorm.Open(mysql.Open(dsn), Options(logLevel))
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}

	// 最大打开连接数（建议：CPU核数 * 2 + 磁盘数量）
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	// 最大空闲连接数（建议：MaxOpenConns的1/4到1/2）
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	// 连接最大存活时间（防止数据库主动断开连接）
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}
	log.Info("数据库连接成功",
		zap.String("host", cfg.Database.Host),
		zap.String("dbname", cfg.Database.DBName),
	)

	// 注意：生产环境应使用版本化的迁移脚本
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return db, nil
}

// Options MySQL与测试用SQLite共用的GORM配置
// 日期统一按UTC存储，唯一索引冲突翻译为gorm.ErrDuplicatedKey
func Options(level gormlogger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// AutoMigrate 自动迁移表结构
// AutoMigrate只会创建表、添加字段，不会删除或修改现有字段
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&BookModel{},
		&CopyModel{},
		&LoanModel{},
		&ReservationModel{},
	)
}

// UserModel GORM用户模型
// 设计说明：
// 1. 这是infrastructure层的数据模型，包含GORM tag
// 2. domain/user/entity.go是领域实体，不依赖GORM
// 3. Repository负责两者之间的转换
type UserModel struct {
	ID        uint           `gorm:"primaryKey"`
	Email     string         `gorm:"uniqueIndex;size:100;not null;comment:邮箱"`
	Password  string         `gorm:"size:255;not null;comment:密码（bcrypt加密）"`
	Nickname  string         `gorm:"size:50;not null;comment:昵称"`
	Role      string         `gorm:"size:20;not null;default:member;comment:角色(member/staff)"`
	CreatedAt time.Time      `gorm:"comment:创建时间"`
	UpdatedAt time.Time      `gorm:"comment:更新时间"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:删除时间（软删除）"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "utenti"
}

// BookModel GORM图书模型
// copie_totali/copie_disponibili/stato是副本表的冗余缓存，只由重算写入
type BookModel struct {
	ID              uint           `gorm:"primaryKey"`
	ISBN            string         `gorm:"column:isbn;uniqueIndex;size:20;not null;comment:ISBN号"`
	Title           string         `gorm:"column:titolo;index:idx_search;size:200;not null;comment:书名"`
	Author          string         `gorm:"column:autore;index:idx_search;size:100;comment:作者"`
	Publisher       string         `gorm:"column:editore;size:100;comment:出版社"`
	Description     string         `gorm:"column:descrizione;type:text;comment:图书描述"`
	CoverURL        string         `gorm:"column:copertina_url;size:500;comment:封面图片URL"`
	TotalCopies     int            `gorm:"column:copie_totali;not null;default:0;comment:副本总数"`
	AvailableCopies int            `gorm:"column:copie_disponibili;not null;default:0;comment:在架副本数"`
	Status          string         `gorm:"column:stato;size:20;not null;default:non_disponibile;comment:可借标签"`
	CreatedBy       uint           `gorm:"column:created_by;index;comment:登记馆员ID"`
	CreatedAt       time.Time      `gorm:"index;comment:创建时间"`
	UpdatedAt       time.Time      `gorm:"comment:更新时间"`
	DeletedAt       gorm.DeletedAt `gorm:"index;comment:删除时间(软删除)"`
}

// TableName 指定表名
func (BookModel) TableName() string {
	return "libri"
}

// CopyModel GORM副本模型
// (libro_id, stato)复合索引服务于可借计数与候选查询
type CopyModel struct {
	ID              uint      `gorm:"primaryKey"`
	BookID          uint      `gorm:"column:libro_id;not null;index:idx_copie_libro_stato,priority:1;comment:图书ID"`
	InventoryNumber string    `gorm:"column:numero_inventario;uniqueIndex;size:50;not null;comment:财产登记号"`
	Status          string    `gorm:"column:stato;size:20;not null;index:idx_copie_libro_stato,priority:2;comment:副本状态"`
	Notes           string    `gorm:"column:note;type:text;comment:备注"`
	ShelfPosition   *string   `gorm:"column:posizione_scaffale;size:50;comment:书架位置"`
	CreatedAt       time.Time `gorm:"comment:创建时间"`
	UpdatedAt       time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (CopyModel) TableName() string {
	return "copie"
}

// LoanModel GORM借阅模型
// 日期列为DATE，重叠判断使用闭区间
type LoanModel struct {
	ID          uint       `gorm:"primaryKey"`
	BookID      uint       `gorm:"column:libro_id;not null;index:idx_prestiti_libro,priority:1;comment:图书ID"`
	CopyID      *uint      `gorm:"column:copia_id;index;comment:副本ID"`
	UserID      uint       `gorm:"column:utente_id;not null;index;comment:读者ID"`
	StartDate   time.Time  `gorm:"column:data_prestito;type:date;not null;comment:起借日"`
	DueDate     time.Time  `gorm:"column:data_scadenza;type:date;not null;comment:到期日"`
	ReturnedAt  *time.Time `gorm:"column:data_restituzione;type:date;comment:归还日"`
	Status      string     `gorm:"column:stato;size:20;not null;index;comment:借阅状态"`
	Active      bool       `gorm:"column:attivo;not null;index:idx_prestiti_libro,priority:2;comment:是否占用副本"`
	Renewals    int        `gorm:"column:rinnovi;not null;default:0;comment:续借次数"`
	ProcessedBy *uint      `gorm:"column:processed_by;comment:经办馆员ID"`
	Notes       string     `gorm:"column:note;type:text;comment:备注"`
	CreatedAt   time.Time  `gorm:"index;comment:创建时间"`
	UpdatedAt   time.Time  `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (LoanModel) TableName() string {
	return "prestiti"
}

// ReservationModel GORM预约模型
type ReservationModel struct {
	ID               uint       `gorm:"primaryKey"`
	BookID           uint       `gorm:"column:libro_id;not null;index:idx_prenotazioni_coda,priority:1;comment:图书ID"`
	UserID           uint       `gorm:"column:utente_id;not null;index;comment:读者ID"`
	RequestedStart   *time.Time `gorm:"column:data_inizio_richiesta;type:date;comment:请求起始日"`
	RequestedEnd     *time.Time `gorm:"column:data_fine_richiesta;type:date;comment:请求结束日"`
	ReservedAt       time.Time  `gorm:"column:data_prenotazione;type:date;not null;comment:预约日"`
	ExpiresAt        time.Time  `gorm:"column:data_scadenza_prenotazione;type:date;not null;index;comment:预约截止日"`
	QueuePosition    int        `gorm:"column:queue_position;not null;index:idx_prenotazioni_coda,priority:3;comment:排队位置"`
	Status           string     `gorm:"column:stato;size:20;not null;index:idx_prenotazioni_coda,priority:2;comment:预约状态"`
	NotificationSent bool       `gorm:"column:notifica_inviata;not null;comment:是否已发送到书通知"`
	LoanID           *uint      `gorm:"column:prestito_id;comment:转借阅后的借阅ID"`
	CreatedAt        time.Time  `gorm:"index;comment:创建时间"`
	UpdatedAt        time.Time  `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (ReservationModel) TableName() string {
	return "prenotazioni"
}
