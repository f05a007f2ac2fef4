package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CacheFields 提供 url/hash/命中状态字段，供缓存相关日志复用。
func CacheFields(url, hash string, hit bool) logrus.Fields {
	return logrus.Fields{
		"url":       url,
		"hash":      hash,
		"cache_hit": hit,
	}
}
