// 包 geoorigin：公共提交来源的国别标注；仅用于日志与指标，绝不写入点位记录
package geoorigin

import (
	"net"
	"os"

	"pontos-api/internal/logger"

	"github.com/oschwald/geoip2-golang"
)

// Resolver：可选的 mmdb 国别解析器；未配置或打开失败时为空实现
type Resolver struct {
	reader *geoip2.Reader
}

// OpenFromEnv：按 GEOIP_MMDB_PATH 打开数据库
// 约束：缺失或损坏时静默降级为空解析器，提交主流程不受影响
func OpenFromEnv() *Resolver {
	path := os.Getenv("GEOIP_MMDB_PATH")
	if path == "" {
		return &Resolver{}
	}
	r, err := geoip2.Open(path)
	if err != nil {
		logger.L().Error("geoip_open_error", "path", path, "err", err)
		return &Resolver{}
	}
	logger.L().Info("geoip_ready", "path", path)
	return &Resolver{reader: r}
}

// Country：返回 IP 的 ISO 国别码；未知或禁用返回空串
func (r *Resolver) Country(ip string) string {
	if r == nil || r.reader == nil {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	rec, err := r.reader.Country(parsed)
	if err != nil || rec == nil {
		return ""
	}
	return rec.Country.IsoCode
}

// Close：释放 mmdb 句柄
func (r *Resolver) Close() {
	if r != nil && r.reader != nil {
		_ = r.reader.Close()
	}
}
