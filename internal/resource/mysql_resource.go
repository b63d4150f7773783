package resource

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"distribution-service/pkg/assert"
	"distribution-service/pkg/config"
	"distribution-service/pkg/logger"
	"distribution-service/pkg/manager"
)

var (
	mysqlResourceOnce      sync.Once
	singletonMysqlResource *MySqlResource
)

// MySqlResource 主库连接
type MySqlResource struct {
	mainDB *gorm.DB
}

// DefaultMysqlResource 获取MySQL资源单例
func DefaultMysqlResource() *MySqlResource {
	assert.NotCircular()
	mysqlResourceOnce.Do(func() {
		singletonMysqlResource = &MySqlResource{}
	})
	assert.NotNil(singletonMysqlResource)
	return singletonMysqlResource
}

// MustOpen 建立连接并配置连接池
func (r *MySqlResource) MustOpen() {
	if r.mainDB != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MySqlResource")
	}

	level := gormlogger.Warn
	if cfg.Log.Level == "debug" {
		level = gormlogger.Info
	}
	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to open mysql: %v", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(fmt.Sprintf("failed to get sql.DB: %v", err))
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	lifetime := cfg.Database.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	sqlDB.SetConnMaxLifetime(lifetime)

	r.mainDB = db
	logger.Info("MySQL resource initialized", map[string]interface{}{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Database,
	})
}

// MainDB 获取主库
func (r *MySqlResource) MainDB() *gorm.DB {
	return r.mainDB
}

// Close 关闭连接池
func (r *MySqlResource) Close() {
	if r.mainDB == nil {
		return
	}
	if sqlDB, err := r.mainDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// MySqlResourcePlugin MySQL资源插件
type MySqlResourcePlugin struct{}

func (p *MySqlResourcePlugin) Name() string { return NameMySQL }

func (p *MySqlResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultMysqlResource()
}
