// 包 api：集中注册 HTTP API 路由以解耦主入口；处理器依赖以接口注入，便于替换与测试
package api

import (
	"context"
	"net/http"
	"time"

	"pontos-api/internal/cities"
	"pontos-api/internal/geocode"
	"pontos-api/internal/geoorigin"
	"pontos-api/internal/points"
	"pontos-api/internal/ratelimit"
	"pontos-api/internal/realtime"

	"github.com/redis/go-redis/v9"
)

// Gateway：点位存储网关契约（由 store.Store 满足）
type Gateway interface {
	List(ctx context.Context, city cities.City, max int) ([]points.Point, error)
	Create(ctx context.Context, city cities.City, p points.Point) (string, error)
	Update(ctx context.Context, city cities.City, id string, p points.Point) error
	Delete(ctx context.Context, city cities.City, id string) error
	CountByType(ctx context.Context, city cities.City) (total, collection, shelter int, err error)
}

// Geocoder：地理编码契约（由 geocode.Client 满足）
type Geocoder interface {
	Search(ctx context.Context, address string, city cities.City) (*geocode.Result, error)
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// Deps：处理器依赖集合
// 约束：Redis 可为 nil（反查缓存降级直查）；Engine 仅 /stream 需要
type Deps struct {
	Gateway Gateway
	Geo     Geocoder
	Redis   *redis.Client
	Limiter *ratelimit.Limiter
	Engine  *realtime.Engine
	Origin  *geoorigin.Resolver

	AdminSecret   []byte
	AdminUser     string
	AdminPass     string
	SecureCookies bool

	// ReverseDebounce：拖图反查静默期；零值回退 geocode.DebounceDelay，仅测试缩短
	ReverseDebounce time.Duration
}

// BuildRoutes：构建并返回 API 路由；独立 ServeMux 便于在主入口挂载到前缀之下
func BuildRoutes(d *Deps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /points", d.handleListPoints)
	mux.HandleFunc("POST /points", d.handleCreatePoint)
	mux.HandleFunc("GET /stats", d.handleStats)
	mux.HandleFunc("GET /geocode", d.handleGeocode)
	mux.HandleFunc("GET /reverse-geocode", d.handleReverseGeocode)
	mux.HandleFunc("GET /stream", d.handleStream)
	mux.HandleFunc("POST /admin/auth", d.handleAdminLogin)
	mux.HandleFunc("DELETE /admin/auth", d.handleAdminLogout)
	mux.HandleFunc("GET /admin/points", d.requireSession(d.handleAdminList))
	mux.HandleFunc("POST /admin/points", d.requireSession(d.handleAdminCreate))
	mux.HandleFunc("PUT /admin/points/{id}", d.requireSession(d.handleAdminUpdate))
	mux.HandleFunc("DELETE /admin/points/{id}", d.requireSession(d.handleAdminDelete))
	return mux
}
