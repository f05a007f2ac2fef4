package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// envBindings 将配置键映射到对应的环境变量，保持与历史部署一致的命名。
var envBindings = map[string]string{
	"ListenPort":           "PRERENDER_LISTEN_PORT",
	"LogLevel":             "PRERENDER_LOG_LEVEL",
	"LogFilePath":          "PRERENDER_LOG_FILE_PATH",
	"LogMaxSize":           "PRERENDER_LOG_MAX_SIZE",
	"LogMaxBackups":        "PRERENDER_LOG_MAX_BACKUPS",
	"LogCompress":          "PRERENDER_LOG_COMPRESS",
	"DisableLogging":       "PRERENDER_DISABLE_LOGGING",
	"CachePath":            "PRERENDER_CACHE_PATH",
	"CacheTTL":             "PRERENDER_CACHE_TTL",
	"CacheableStatusCodes": "PRERENDER_CACHEABLE_STATUS_CODES",
	"SweepInterval":        "PRERENDER_SWEEP_INTERVAL",
	"Upstream":             "PRERENDER_UPSTREAM",
	"UpstreamTimeout":      "PRERENDER_UPSTREAM_TIMEOUT",
}

// Load 按“默认值 < 配置文件 < 环境变量”的优先级组装配置。path 为空时仅使用
// 环境变量与默认值；任何解析失败都视为致命错误，进程不得带着含糊配置启动。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("配置文件不存在: %s", path)
			}
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.CachePath = absCache

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 3000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("DisableLogging", false)
	v.SetDefault("CachePath", "/tmp/prerender-cache")
	v.SetDefault("CacheTTL", 86400)
	v.SetDefault("CacheableStatusCodes", "200,301,302,303,304,307,308,404")
	v.SetDefault("SweepInterval", 0)
	v.SetDefault("Upstream", "http://127.0.0.1:3001")
	v.SetDefault("UpstreamTimeout", "30s")
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
