package resource

import (
	"distribution-service/pkg/config"
	"distribution-service/pkg/manager"
)

const (
	NameMySQL = "mysql"
	NameRedis = "redis"
	NameMinio = "minioResource"
	NameKafka = "kafka"
)

func init() {
	// 注册资源插件
	manager.RegisterResourcePlugin(&MySqlResourcePlugin{})
	manager.RegisterResourcePlugin(&RedisResourcePlugin{})
	manager.RegisterResourcePlugin(&MinioResourcePlugin{})
	manager.RegisterResourcePlugin(&KafkaResourcePlugin{})
}

// Enabled 根据配置判断资源是否需要打开
func Enabled(cfg *config.Config) func(name string) bool {
	return func(name string) bool {
		if cfg == nil {
			return true
		}
		switch name {
		case NameMySQL:
			return cfg.Database.Driver == "mysql"
		case NameRedis:
			return cfg.Redis.Enabled || cfg.Upload.LockBackend == "redis"
		case NameMinio:
			return cfg.Storage.Backend == "minio"
		case NameKafka:
			return cfg.Kafka.Enabled
		default:
			return true
		}
	}
}
