package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate 检查配置是否自洽；任何失败都应阻止进程启动。
func (c Config) Validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", fmt.Sprintf("端口号无效: %d", c.ListenPort))
	}

	if strings.TrimSpace(c.CachePath) == "" {
		return newFieldError("CachePath", "不能为空")
	}

	if c.CacheTTL.DurationValue() <= 0 {
		return newFieldError("CacheTTL", "必须为正数")
	}

	if c.SweepInterval.DurationValue() < 0 {
		return newFieldError("SweepInterval", "不能为负数")
	}

	if _, err := c.StatusCodes(); err != nil {
		return err
	}

	upstream := strings.TrimSpace(c.Upstream)
	if upstream == "" {
		return newFieldError("Upstream", "不能为空")
	}
	parsed, err := url.Parse(upstream)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return newFieldError("Upstream", fmt.Sprintf("不是合法的 URL: %s", upstream))
	}

	if c.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须为正数")
	}

	return nil
}
