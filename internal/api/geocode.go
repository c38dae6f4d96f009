package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"pontos-api/internal/cities"
	"pontos-api/internal/geocode"
	"pontos-api/internal/logger"
	"pontos-api/internal/metrics"
)

// handleGeocode：地址正向编码（限定城市包围盒）
func (d *Deps) handleGeocode(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "Parâmetro address é obrigatório")
		return
	}
	slug := r.URL.Query().Get("city")
	city, ok := cities.BySlug(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "Cidade não encontrada")
		return
	}
	res, err := d.Geo.Search(r.Context(), address, city)
	if errors.Is(err, geocode.ErrNoResult) {
		writeError(w, http.StatusNotFound, "Endereço não encontrado")
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Serviço de geolocalização indisponível. Tente novamente.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}

// reverseCacheTTL：redis 反查缓存有效期（REVERSE_GEO_CACHE_TTL_S，默认 3600）
func reverseCacheTTL() time.Duration {
	if v := os.Getenv("REVERSE_GEO_CACHE_TTL_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Hour
}

// 文档注释：坐标反查短地址
// 背景：拖图反查的落点高度聚集，redis 按五位小数（约 1 米）聚合缓存热点坐标，
// 降低对上游 1 req/s 限速配额的消耗。
// 约束：任何失败都交付 address=null（HTTP 200），反查从不向用户报错；redis 未启用时直查。
func (d *Deps) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "Parâmetros lat e lng são obrigatórios")
		return
	}

	key := fmt.Sprintf("revgeo:%.5f:%.5f", lat, lng)
	if d.Redis != nil {
		if cached, err := d.Redis.Get(r.Context(), key).Result(); err == nil {
			metrics.ReverseCacheHitsTotal.Inc()
			writeJSON(w, http.StatusOK, map[string]any{"address": cached})
			return
		}
		metrics.ReverseCacheMissesTotal.Inc()
	}

	addr, err := d.Geo.Reverse(r.Context(), lat, lng)
	if err != nil || addr == "" {
		writeJSON(w, http.StatusOK, map[string]any{"address": nil})
		return
	}
	if d.Redis != nil {
		if err := d.Redis.Set(r.Context(), key, addr, reverseCacheTTL()).Err(); err != nil {
			logger.L().Error("revgeo_cache_set_error", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr})
}
