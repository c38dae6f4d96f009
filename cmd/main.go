// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"pontos-api/internal/admin"
	"pontos-api/internal/api"
	"pontos-api/internal/cities"
	"pontos-api/internal/geocode"
	"pontos-api/internal/geoorigin"
	"pontos-api/internal/logger"
	"pontos-api/internal/metrics"
	"pontos-api/internal/middleware"
	"pontos-api/internal/migrate"
	"pontos-api/internal/ratelimit"
	"pontos-api/internal/realtime"
	"pontos-api/internal/store"
	"pontos-api/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	dsn := utils.BuildPostgresDSNFromEnv()
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	l.Info("db_open_ok")
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	st := store.AttachDB(db)
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	for _, c := range cities.Enabled() {
		l.Info("city_enabled", "slug", c.Slug, "partition", c.Partition)
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	// 变更分发器与同步引擎：推送失败时引擎自行降级到拉取，启动失败不拦截起服
	var subs realtime.Subscriber
	feed, err := store.NewFeed(dsn, st)
	if err != nil {
		l.Error("feed_open_error", "err", err)
		subs = realtime.SubscriberFunc(func(ctx context.Context, city cities.City) (realtime.Subscription, error) {
			return nil, err
		})
	} else {
		defer feed.Close()
		subs = realtime.SubscriberFunc(func(ctx context.Context, city cities.City) (realtime.Subscription, error) {
			return feed.Subscribe(ctx, city)
		})
	}
	engine := realtime.NewEngine(subs, st, realtime.Config{})

	geo := geocode.NewClientFromEnv()
	origin := geoorigin.OpenFromEnv()
	defer origin.Close()
	limiter := ratelimit.NewFromEnv(rc)

	secret, err := admin.SecretFromEnv()
	if err != nil {
		l.Error("admin_secret_error", "err", err)
		os.Exit(1)
	}
	adminUser, adminPass, err := admin.CredentialsFromEnv()
	if err != nil {
		l.Error("admin_credentials_error", "err", err)
		os.Exit(1)
	}

	tlsEnable := os.Getenv("TLS_ENABLE")
	deps := &api.Deps{
		Gateway:       st,
		Geo:           geo,
		Redis:         rc,
		Limiter:       limiter,
		Engine:        engine,
		Origin:        origin,
		AdminSecret:   secret,
		AdminUser:     adminUser,
		AdminPass:     adminPass,
		SecureCookies: tlsEnable == "" || tlsEnable == "true",
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(deps)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	ui := os.Getenv("UI_DIST")
	if ui == "" {
		ui = filepath.Join("ui", "dist")
	}
	l.Debug("config_ui_dir", "dir", ui)
	mux.Handle("/", http.FileServer(http.Dir(ui)))

	// NOTE: 向前端暴露 API 基础路径与城市注册表，避免硬编码
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + apiBase + "'"))
		_, _ = w.Write([]byte("\n"))
		_, _ = w.Write([]byte("window.__GEO_SOURCE__='OpenStreetMap Nominatim'"))
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler}
	if tlsEnable == "" || tlsEnable == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		_ = utils.EnsureSelfSignedCert(certPath, keyPath, "pontos-api.local")
		// 可选：启动HTTP重定向到HTTPS（不改变HTTPS运行端口）
		if os.Getenv("TLS_REDIRECT_ENABLE") == "true" {
			redirAddr := os.Getenv("TLS_REDIRECT_ADDR")
			if redirAddr == "" {
				redirAddr = ":80"
			}
			go func() {
				httpRedir := http.NewServeMux()
				httpRedir.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
					httpsPort := strings.TrimPrefix(addr, ":")
					baseHost := r.Host
					if i := strings.LastIndex(baseHost, ":"); i != -1 {
						baseHost = baseHost[:i]
					}
					targetHost := baseHost
					if httpsPort != "" {
						targetHost = baseHost + ":" + httpsPort
					}
					target := "https://" + targetHost + r.URL.RequestURI()
					http.Redirect(w, r, target, http.StatusMovedPermanently)
					l.Debug("http_redirect", "from", r.Host, "to", target)
				})
				l.Info("http_redirect_listening", "addr", redirAddr, "to", "https"+addr)
				_ = http.ListenAndServe(redirAddr, logger.AccessMiddleware(l)(httpRedir))
			}()
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		_ = s.ListenAndServeTLS(certPath, keyPath)
		return
	}
	l.Info("listening", "addr", addr)
	_ = s.ListenAndServe()
}
