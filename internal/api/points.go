package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"pontos-api/internal/cities"
	"pontos-api/internal/geocode"
	"pontos-api/internal/logger"
	"pontos-api/internal/metrics"
	"pontos-api/internal/points"
	"pontos-api/internal/ratelimit"
)

// handleListPoints：按城市读取点位列表（降级轮询与首屏都走这里）
func (d *Deps) handleListPoints(w http.ResponseWriter, r *http.Request) {
	metrics.PointsListTotal.Inc()
	slug := r.URL.Query().Get("city")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "Parâmetro city é obrigatório")
		return
	}
	city, ok := cities.BySlug(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "Cidade não encontrada")
		return
	}
	pts, err := d.Gateway.List(r.Context(), city, 0)
	if err != nil {
		logger.L().Error("points_list_error", "city", slug, "err", err)
		writeError(w, http.StatusInternalServerError, "Erro ao carregar pontos")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "points": pts, "count": len(pts)})
}

// 文档注释：公共点位提交
// 背景：完整准入流水线——限流 → 解码 → 清洗 → 校验 → 城市核验 → 坐标补全 → 落库；
// 每一级失败都就地终止并返回对应状态码，后一级只接收前一级的产物。
// 约束：坐标缺省时由地址正向编码补全；收容所以外的容量一律置空。
func (d *Deps) handleCreatePoint(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	res := d.Limiter.Check(r.Context(), ip)
	for k, v := range ratelimit.Headers(res) {
		w.Header().Set(k, v)
	}
	if !res.Allowed {
		metrics.PointsDeniedTotal.Inc()
		logger.L().Warn("points_rate_limited", "ip", ip, "retry_after", res.RetryAfter)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":      "Muitas requisições. Aguarde antes de enviar novamente.",
			"retryAfter": res.RetryAfter,
		})
		return
	}

	var c points.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	c = c.Sanitized()
	if errs := points.Validate(c, true); len(errs) > 0 {
		metrics.PointsInvalidTotal.Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Dados inválidos", "details": errs})
		return
	}
	city, ok := cities.BySlug(c.CitySlug)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Dados inválidos",
			"details": []points.FieldError{{Field: "citySlug", Message: "Cidade inválida"}},
		})
		return
	}

	p, apiErr := d.resolvePoint(r, c, city)
	if apiErr != nil {
		writeJSON(w, apiErr.status, apiErr.body)
		return
	}

	country := d.Origin.Country(ip)
	if country == "" {
		country = "unknown"
	}
	metrics.SubmitOriginTotal.WithLabelValues(country).Inc()

	id, err := d.Gateway.Create(r.Context(), city, p)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Erro ao salvar ponto. Tente novamente.")
		return
	}
	metrics.PointsCreateTotal.Inc()
	logger.L().Info("point_submitted", "city", city.Slug, "id", id, "ip", ip, "country", country)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"id":      id,
		"message": "Ponto cadastrado com sucesso!",
	})
}

// apiError：流水线级联中断时的应答
type apiError struct {
	status int
	body   any
}

// resolvePoint：把通过校验的候选变为可落库点位
// 背景：公共与后台创建/更新共用——坐标缺省走正向编码补全，collection 类型强制清空容量
func (d *Deps) resolvePoint(r *http.Request, c points.Candidate, city cities.City) (points.Point, *apiError) {
	var lat, lng float64
	if c.Lat != nil && c.Lng != nil {
		lat, lng = *c.Lat, *c.Lng
	} else {
		res, err := d.Geo.Search(r.Context(), c.Address, city)
		if errors.Is(err, geocode.ErrNoResult) {
			return points.Point{}, &apiError{http.StatusBadRequest, map[string]any{
				"error":   "Dados inválidos",
				"details": []points.FieldError{{Field: "address", Message: "Endereço não encontrado. Verifique e tente novamente."}},
			}}
		}
		if err != nil {
			return points.Point{}, &apiError{http.StatusServiceUnavailable, map[string]any{
				"error": "Serviço de geolocalização indisponível. Tente novamente.",
			}}
		}
		lat, lng = res.Lat, res.Lng
	}
	capacity := c.Capacity
	if c.Type != points.TypeShelter {
		capacity = nil
	}
	return points.Point{
		Type:          c.Type,
		Name:          c.Name,
		Address:       c.Address,
		Complement:    c.Complement,
		Hours:         c.Hours,
		DonationKinds: c.DonationKinds,
		ContactName:   c.ContactName,
		ContactPhone:  c.ContactPhone,
		Capacity:      capacity,
		Lat:           lat,
		Lng:           lng,
		CitySlug:      city.Slug,
	}, nil
}

// handleStats：按城市或全量（city=all）的类型计数
func (d *Deps) handleStats(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("city")
	if slug == "" {
		slug = "all"
	}
	var list []cities.City
	if slug == "all" {
		list = cities.Enabled()
	} else {
		city, ok := cities.BySlug(slug)
		if !ok {
			writeError(w, http.StatusNotFound, "Cidade não encontrada")
			return
		}
		list = []cities.City{city}
	}
	var total, collection, shelter int
	for _, city := range list {
		t, c, s, err := d.Gateway.CountByType(r.Context(), city)
		if err != nil {
			logger.L().Error("stats_error", "city", city.Slug, "err", err)
			writeError(w, http.StatusInternalServerError, "Erro ao carregar estatísticas")
			return
		}
		total += t
		collection += c
		shelter += s
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"total":      total,
		"collection": collection,
		"shelter":    shelter,
	})
}
