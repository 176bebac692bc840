package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config 是服务进程的全部配置
type Config struct {
	Port              int           `validate:"gt=0,lte=65535"`
	DataDir           string        `validate:"required"`
	DSN               string        // 为空时使用 DataDir 下的默认数据库
	CORSOrigin        string        `validate:"required"`
	Env               string        `validate:"oneof=development production test"`
	LogLevel          string
	RateLimitWindow   time.Duration `validate:"gt=0"`
	RateLimitMax      int           `validate:"gt=0"`
	RateLimitWriteMax int           `validate:"gt=0"`
	TrustProxy        bool
	ShutdownTimeout   time.Duration `validate:"gt=0"`
}

// Development 报告是否运行在开发模式 (错误响应会附带堆栈)
func (c *Config) Development() bool {
	return c.Env == "development"
}

// Addr 返回监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// 配置项: viper key -> 环境变量名
var envKeys = map[string][]string{
	"port":                 {"PORT"},
	"data_dir":             {"DATA_DIR"},
	"dsn":                  {"DATABASE_DSN"},
	"cors_origin":          {"CORS_ORIGIN"},
	"env":                  {"APP_ENV", "NODE_ENV"},
	"log_level":            {"LOG_LEVEL"},
	"rate_limit_window":    {"RATE_LIMIT_WINDOW"},
	"rate_limit_max":       {"RATE_LIMIT_MAX"},
	"rate_limit_write_max": {"RATE_LIMIT_WRITE_MAX"},
	"trust_proxy":          {"TRUST_PROXY"},
	"shutdown_timeout":     {"SHUTDOWN_TIMEOUT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)
	v.SetDefault("data_dir", "./.data")
	v.SetDefault("dsn", "")
	v.SetDefault("cors_origin", "http://localhost:5173")
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("rate_limit_window", 15*time.Minute)
	v.SetDefault("rate_limit_max", 100)
	v.SetDefault("rate_limit_write_max", 10)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// Load 按优先级合并配置: 命令行参数 > 环境变量 (.env 文件) > 默认值
func Load(args []string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	for key, names := range envKeys {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, errors.Wrapf(err, "bind env for %s", key)
		}
	}

	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	fs.Int("port", 3000, "HTTP 监听端口")
	fs.String("data-dir", "./.data", "应用程序的数据目录 (包含数据库)")
	fs.String("dsn", "", "数据库连接串 (覆盖 data-dir 下的默认数据库)")
	fs.String("cors-origin", "http://localhost:5173", "允许跨域访问的来源")
	fs.String("env", "development", "运行模式: development, production 或 test")
	fs.String("log-level", "info", "日志级别")
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parse flags")
	}
	for key, flag := range map[string]string{
		"port":        "port",
		"data_dir":    "data-dir",
		"dsn":         "dsn",
		"cors_origin": "cors-origin",
		"env":         "env",
		"log_level":   "log-level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errors.Wrapf(err, "bind flag --%s", flag)
		}
	}

	cfg := &Config{
		Port:              v.GetInt("port"),
		DataDir:           v.GetString("data_dir"),
		DSN:               v.GetString("dsn"),
		CORSOrigin:        v.GetString("cors_origin"),
		Env:               v.GetString("env"),
		LogLevel:          v.GetString("log_level"),
		RateLimitWindow:   v.GetDuration("rate_limit_window"),
		RateLimitMax:      v.GetInt("rate_limit_max"),
		RateLimitWriteMax: v.GetInt("rate_limit_write_max"),
		TrustProxy:        v.GetBool("trust_proxy"),
		ShutdownTimeout:   v.GetDuration("shutdown_timeout"),
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// loadEnvFiles 依次加载 .env, .env.<APP_ENV>, .env.local (均为可选)。
// .env 不覆盖已有的环境变量, 后两者覆盖。
func loadEnvFiles() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return errors.Wrap(err, "load .env")
		}
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("NODE_ENV")
	}
	if env != "" {
		envFile := ".env." + env
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Overload(envFile); err != nil {
				return errors.Wrapf(err, "load %s", envFile)
			}
		}
	}

	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return errors.Wrap(err, "load .env.local")
		}
	}
	return nil
}
