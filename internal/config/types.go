package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// Config 汇总整个进程的运行参数，所有组件共享同一份实例。
type Config struct {
	ListenPort int    `mapstructure:"ListenPort"`
	LogLevel   string `mapstructure:"LogLevel"`

	LogFilePath    string `mapstructure:"LogFilePath"`
	LogMaxSize     int    `mapstructure:"LogMaxSize"`
	LogMaxBackups  int    `mapstructure:"LogMaxBackups"`
	LogCompress    bool   `mapstructure:"LogCompress"`
	DisableLogging bool   `mapstructure:"DisableLogging"`

	CachePath            string   `mapstructure:"CachePath"`
	CacheTTL             Duration `mapstructure:"CacheTTL"`
	CacheableStatusCodes string   `mapstructure:"CacheableStatusCodes"`
	SweepInterval        Duration `mapstructure:"SweepInterval"`

	Upstream        string   `mapstructure:"Upstream"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// StatusCodes 解析逗号分隔的可缓存状态码白名单。
func (c Config) StatusCodes() ([]int, error) {
	raw := strings.TrimSpace(c.CacheableStatusCodes)
	if raw == "" {
		return nil, newFieldError("CacheableStatusCodes", "不能为空")
	}

	parts := strings.Split(raw, ",")
	codes := make([]int, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		code, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, newFieldError("CacheableStatusCodes", fmt.Sprintf("无法解析状态码: %s", trimmed))
		}
		if code < 100 || code > 599 {
			return nil, newFieldError("CacheableStatusCodes", fmt.Sprintf("状态码超出范围: %d", code))
		}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil, newFieldError("CacheableStatusCodes", "不能为空")
	}
	return codes, nil
}
