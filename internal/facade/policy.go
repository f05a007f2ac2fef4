package facade

import "strings"

// nonCacheableHeaders 列出绝不允许落盘、也绝不从缓存回放的响应头：
// 传输细节、时效信息与安全敏感字段。比较时统一小写。
var nonCacheableHeaders = map[string]struct{}{
	"age":                       {},
	"alt-svc":                   {},
	"authorization":             {},
	"cache-control":             {},
	"cf-cache-status":           {},
	"cf-ray":                    {},
	"connection":                {},
	"content-encoding":          {},
	"content-length":            {},
	"date":                      {},
	"etag":                      {},
	"expires":                   {},
	"keep-alive":                {},
	"proxy-authenticate":        {},
	"server":                    {},
	"set-cookie":                {},
	"strict-transport-security": {},
	"transfer-encoding":         {},
	"upgrade":                   {},
	"via":                       {},
	"www-authenticate":          {},
	"x-amz-cf-id":               {},
	"x-cache":                   {},
	"x-powered-by":              {},
	"x-request-id":              {},
}

// FilterHeaders 返回仅含可缓存头部的拷贝，键统一转为小写。
func FilterHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string, len(headers))
	for name, value := range headers {
		lower := strings.ToLower(name)
		if _, denied := nonCacheableHeaders[lower]; denied {
			continue
		}
		filtered[lower] = value
	}
	return filtered
}

// requestsBypass 判断请求是否声明了“不要读缓存”。只影响读取，不影响后续存储。
func requestsBypass(cacheControl, pragma string) bool {
	if strings.Contains(strings.ToLower(cacheControl), "no-cache") {
		return true
	}
	return strings.Contains(strings.ToLower(pragma), "no-cache")
}
