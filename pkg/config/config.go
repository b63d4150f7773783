package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	JWT             JWTConfig             `mapstructure:"jwt"`
	Log             LogConfig             `mapstructure:"log"`
	Minio           MinioConfig           `mapstructure:"minio"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Upload          UploadConfig          `mapstructure:"upload"`
	Transcode       TranscodeConfig       `mapstructure:"transcode"`
	Publish         PublishConfig         `mapstructure:"publish"`
	Worker          WorkerConfig          `mapstructure:"worker"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
	Etcd            EtcdConfig            `mapstructure:"etcd"`
	GRPCServer      GRPCServerConfig      `mapstructure:"grpc_server"`
	Public          PublicConfig          `mapstructure:"public"`
	Profiling       ProfilingConfig       `mapstructure:"profiling"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Driver mysql 或 memory（本地开发/单机演示）
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	ParseTime       bool          `mapstructure:"parse_time"`
	Loc             string        `mapstructure:"loc"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	BootstrapServers    []string          `mapstructure:"bootstrap_servers"`
	ClientID            string            `mapstructure:"client_id"`
	GroupID             string            `mapstructure:"group_id"`
	Enabled             bool              `mapstructure:"enabled"`
	Topics              KafkaTopicsConfig `mapstructure:"topics"`
	ProcessMaxAttempts  int               `mapstructure:"process_max_attempts"`
	ProcessRetryBackoff time.Duration     `mapstructure:"process_retry_backoff"`
	EnsureTopics        bool              `mapstructure:"ensure_topics"`
}

// KafkaTopicsConfig DeadLetter 为空时，重试耗尽的消息只记录日志后提交
type KafkaTopicsConfig struct {
	SourceReady  string `mapstructure:"source_ready"`
	VariantReady string `mapstructure:"variant_ready"`
	DeadLetter   string `mapstructure:"dead_letter"`
}

// ServiceRegistryConfig registration configuration.
type ServiceRegistryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ServiceName     string        `mapstructure:"service_name"`
	ServiceID       string        `mapstructure:"service_id"`
	RegisterHost    string        `mapstructure:"register_host"`
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// EtcdConfig etcd client configuration.
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// GRPCServerConfig gRPC server configuration.
type GRPCServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// StorageConfig 持久化存储配置（源视频与各平台成片）
type StorageConfig struct {
	Backend         string `mapstructure:"backend"` // minio | local
	LocalRoot       string `mapstructure:"local_root"`
	SourcePrefix    string `mapstructure:"source_prefix"`
	RenditionPrefix string `mapstructure:"rendition_prefix"`
}

// PublicConfig 对外访问配置
type PublicConfig struct {
	StorageBase string `mapstructure:"storage_base"`
}

// UploadConfig 断点续传配置
type UploadConfig struct {
	TempDir           string        `mapstructure:"temp_dir"` // lock_backend=redis 时需为共享目录
	MaxSize           int64         `mapstructure:"max_size"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions"`
	SessionRetention  time.Duration `mapstructure:"session_retention"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	LockBackend       string        `mapstructure:"lock_backend"` // local | redis
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	LockWait          time.Duration `mapstructure:"lock_wait"`
}

// TranscodeConfig 转码配置
type TranscodeConfig struct {
	FFmpeg            FFmpegConfig              `mapstructure:"ffmpeg"`
	MaxConcurrent     int                       `mapstructure:"max_concurrent"`
	ErrorMessageLimit int                       `mapstructure:"error_message_limit"`
	StaleAfter        time.Duration             `mapstructure:"stale_after"`
	Profiles          map[string]ProfileOverride `mapstructure:"profiles"`
}

// ProfileOverride 覆盖内置的平台规格，零值字段保持默认
type ProfileOverride struct {
	Width        int    `mapstructure:"width"`
	Height       int    `mapstructure:"height"`
	VideoBitrate string `mapstructure:"video_bitrate"`
	AudioBitrate string `mapstructure:"audio_bitrate"`
	MaxFPS       int    `mapstructure:"max_fps"`
	MaxDuration  int    `mapstructure:"max_duration"`
}

// FFmpegConfig FFmpeg相关配置
type FFmpegConfig struct {
	BinaryPath  string        `mapstructure:"binary_path"`
	ProbePath   string        `mapstructure:"probe_path"`
	TempDir     string        `mapstructure:"temp_dir"`
	Timeout     time.Duration `mapstructure:"timeout"`
	VideoCodec  string        `mapstructure:"video_codec"`
	VideoPreset string        `mapstructure:"video_preset"`
	Threads     int           `mapstructure:"threads"`
}

// PublishConfig 平台发布配置。StaleAfter 为 publishing 记录判定为卡住的时长，默认一次完整发布的上限再加一分钟
type PublishConfig struct {
	MaxAttempts    int               `mapstructure:"max_attempts"`
	BaseDelay      time.Duration     `mapstructure:"base_delay"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	StaleAfter     time.Duration     `mapstructure:"stale_after"`
	Endpoints      map[string]string `mapstructure:"endpoints"`
}

// MaxPublishDuration 所有尝试都超时且走满退避时一次发布的耗时
func (p PublishConfig) MaxPublishDuration() time.Duration {
	total := time.Duration(p.MaxAttempts) * p.RequestTimeout
	delay := p.BaseDelay
	for i := 1; i < p.MaxAttempts; i++ {
		total += delay
		delay *= 2
	}
	return total
}

// WorkerConfig 流水线Worker配置
type WorkerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	WorkerID            string        `mapstructure:"worker_id"`
	Concurrency         int           `mapstructure:"concurrency"`
	QueueCapacity       int           `mapstructure:"queue_capacity"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// ProfilingConfig pyroscope 持续剖析配置
type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
	AppName       string `mapstructure:"app_name"`
}

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// SetGlobalConfig 设置全局配置，需在资源初始化之前调用
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	loadEnvFiles(configPath)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	// 设置环境变量前缀
	v.SetEnvPrefix("DISTRIBUTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.normalize()

	return &config, nil
}

// loadEnvFiles 依次加载配置目录与工作目录下的 .env.local、.env，已存在的环境变量不会被覆盖
func loadEnvFiles(configPath string) {
	dirs := []string{filepath.Dir(configPath), "."}
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range dirs {
		for _, name := range []string{".env.local", ".env"} {
			candidate := filepath.Clean(filepath.Join(dir, name))
			if _, ok := seen[candidate]; ok {
				continue
			}
			seen[candidate] = struct{}{}
			if _, err := os.Stat(candidate); err == nil {
				files = append(files, candidate)
			}
		}
	}
	if len(files) > 0 {
		_ = godotenv.Load(files...)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("service_registry.enabled", false)
	v.SetDefault("service_registry.service_name", "distribution-service")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.client_id", "distribution-service")
	v.SetDefault("kafka.group_id", "distribution-service-group")
	v.SetDefault("kafka.bootstrap_servers", []string{"localhost:29092"})
	v.SetDefault("kafka.topics.source_ready", "distribution.source.ready")
	v.SetDefault("kafka.topics.variant_ready", "distribution.variant.ready")
	v.SetDefault("kafka.process_max_attempts", 5)
	v.SetDefault("kafka.process_retry_backoff", "1s")
	v.SetDefault("storage.backend", "minio")
	v.SetDefault("upload.max_size", int64(10)<<30)
	v.SetDefault("upload.allowed_extensions", []string{"mp4", "mov", "avi", "mkv", "webm", "m4v"})
	v.SetDefault("upload.session_retention", 24*time.Hour)
	v.SetDefault("upload.sweep_interval", time.Hour)
	v.SetDefault("upload.lock_backend", "local")
	v.SetDefault("publish.max_attempts", 3)
	v.SetDefault("publish.base_delay", time.Second)
	v.SetDefault("transcode.error_message_limit", 500)
	v.SetDefault("worker.enabled", true)
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	// 兼容不同的密钥字段
	if c.Minio.AccessKeyID == "" {
		c.Minio.AccessKeyID = c.Minio.AccessKey
	}
	if c.Minio.SecretAccessKey == "" {
		c.Minio.SecretAccessKey = c.Minio.SecretKey
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8085
	}
	if strings.TrimSpace(c.Database.Driver) == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}

	// 存储默认值
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = "minio"
	}
	if c.Storage.LocalRoot == "" {
		c.Storage.LocalRoot = "/tmp/distribution/storage"
	}
	if c.Storage.SourcePrefix == "" {
		c.Storage.SourcePrefix = "sources"
	}
	if c.Storage.RenditionPrefix == "" {
		c.Storage.RenditionPrefix = "renditions"
	}

	// 上传默认值
	if c.Upload.TempDir == "" {
		c.Upload.TempDir = "/tmp/distribution/uploads"
	}
	if c.Upload.MaxSize <= 0 {
		c.Upload.MaxSize = 10 << 30
	}
	if c.Upload.SessionRetention <= 0 {
		c.Upload.SessionRetention = 24 * time.Hour
	}
	if c.Upload.SweepInterval <= 0 {
		c.Upload.SweepInterval = time.Hour
	}
	c.Upload.LockBackend = strings.ToLower(strings.TrimSpace(c.Upload.LockBackend))
	if c.Upload.LockBackend == "" {
		c.Upload.LockBackend = "local"
	}
	if c.Upload.LockTTL <= 0 {
		c.Upload.LockTTL = 5 * time.Minute
	}
	if c.Upload.LockWait <= 0 {
		c.Upload.LockWait = 30 * time.Second
	}

	// 转码默认值
	if c.Transcode.FFmpeg.TempDir == "" {
		c.Transcode.FFmpeg.TempDir = "/tmp/distribution/transcode"
	}
	if c.Transcode.FFmpeg.BinaryPath == "" {
		c.Transcode.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.Transcode.FFmpeg.ProbePath == "" {
		c.Transcode.FFmpeg.ProbePath = "ffprobe"
	}
	if c.Transcode.FFmpeg.VideoCodec == "" {
		c.Transcode.FFmpeg.VideoCodec = "libx264"
	}
	if c.Transcode.FFmpeg.VideoPreset == "" {
		c.Transcode.FFmpeg.VideoPreset = "medium"
	}
	if c.Transcode.FFmpeg.Threads < 0 {
		c.Transcode.FFmpeg.Threads = 0
	}
	if c.Transcode.FFmpeg.Timeout == 0 {
		c.Transcode.FFmpeg.Timeout = time.Hour
	}
	if c.Transcode.MaxConcurrent <= 0 {
		c.Transcode.MaxConcurrent = 4
	}
	if c.Transcode.ErrorMessageLimit <= 0 {
		c.Transcode.ErrorMessageLimit = 500
	}
	if c.Transcode.StaleAfter <= 0 {
		c.Transcode.StaleAfter = 2 * c.Transcode.FFmpeg.Timeout
	}

	// 发布默认值
	if c.Publish.MaxAttempts <= 0 {
		c.Publish.MaxAttempts = 3
	}
	if c.Publish.BaseDelay <= 0 {
		c.Publish.BaseDelay = time.Second
	}
	if c.Publish.RequestTimeout <= 0 {
		c.Publish.RequestTimeout = 2 * time.Minute
	}
	if c.Publish.StaleAfter <= 0 {
		c.Publish.StaleAfter = c.Publish.MaxPublishDuration() + time.Minute
	}

	// Worker相关默认值
	if c.Worker.WorkerID == "" {
		c.Worker.WorkerID = "distribution-worker"
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 2
	}
	if c.Worker.QueueCapacity <= 0 {
		c.Worker.QueueCapacity = c.Worker.Concurrency * 50
	}
	if c.Worker.ShutdownGracePeriod == 0 {
		c.Worker.ShutdownGracePeriod = 10 * time.Second
	}

	if c.GRPCServer.Host == "" {
		c.GRPCServer.Host = "0.0.0.0"
	}
	if c.GRPCServer.Port == 0 {
		c.GRPCServer.Port = 9095
	}
	if c.ServiceRegistry.ServiceName == "" {
		c.ServiceRegistry.ServiceName = "distribution-service"
	}
	if c.ServiceRegistry.TTL == 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}
	if c.ServiceRegistry.RefreshInterval == 0 {
		c.ServiceRegistry.RefreshInterval = 10 * time.Second
	}
	if len(c.Etcd.Endpoints) == 0 {
		c.Etcd.Endpoints = []string{"localhost:2379"}
	}
	if c.Etcd.DialTimeout <= 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "distribution-service"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "distribution-service-group"
	}
	if c.Kafka.Topics.SourceReady == "" {
		c.Kafka.Topics.SourceReady = "distribution.source.ready"
	}
	if c.Kafka.Topics.VariantReady == "" {
		c.Kafka.Topics.VariantReady = "distribution.variant.ready"
	}
	if c.Kafka.ProcessMaxAttempts <= 0 {
		c.Kafka.ProcessMaxAttempts = 5
	}
	if c.Kafka.ProcessRetryBackoff <= 0 {
		c.Kafka.ProcessRetryBackoff = time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Profiling.AppName == "" {
		c.Profiling.AppName = "distribution-service"
	}
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerAddr HTTP监听地址
func (c *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
