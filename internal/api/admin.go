package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"pontos-api/internal/admin"
	"pontos-api/internal/cities"
	"pontos-api/internal/logger"
	"pontos-api/internal/points"
	"pontos-api/internal/store"
)

// handleAdminLogin：凭据登录并下发会话 Cookie
func (d *Deps) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if !admin.CheckCredentials(body.Username, body.Password, d.AdminUser, d.AdminPass) {
		logger.L().Warn("admin_login_failed", "ip", clientIP(r))
		writeError(w, http.StatusUnauthorized, "Credenciais inválidas")
		return
	}
	token := admin.SignToken(body.Username, d.AdminSecret, time.Now())
	http.SetCookie(w, &http.Cookie{
		Name:     admin.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(admin.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   d.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	logger.L().Info("admin_login", "user", body.Username, "ip", clientIP(r))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleAdminLogout：吊销会话 Cookie（令牌本身无服务端登记，过期即失效）
func (d *Deps) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     admin.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   d.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// requireSession：后台接口的会话校验中间件
func (d *Deps) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(admin.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Não autorizado")
			return
		}
		if _, ok := admin.VerifyToken(c.Value, d.AdminSecret, time.Now()); !ok {
			writeError(w, http.StatusUnauthorized, "Não autorizado")
			return
		}
		next(w, r)
	}
}

// handleAdminList：后台列表；city=all 时顺序聚合全部启用城市
func (d *Deps) handleAdminList(w http.ResponseWriter, r *http.Request) {
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
	out := make([]points.Point, 0, 32)
	for _, city := range list {
		pts, err := d.Gateway.List(r.Context(), city, 0)
		if err != nil {
			logger.L().Error("admin_list_error", "city", city.Slug, "err", err)
			writeError(w, http.StatusInternalServerError, "Erro ao carregar pontos")
			return
		}
		out = append(out, pts...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "points": out, "count": len(out)})
}

// decodeAdminCandidate：后台写入共用的解码+清洗+校验（不要求 consent）
func (d *Deps) decodeAdminCandidate(w http.ResponseWriter, r *http.Request) (points.Candidate, cities.City, bool) {
	var c points.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return c, cities.City{}, false
	}
	c = c.Sanitized()
	if errs := points.Validate(c, false); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Dados inválidos", "details": errs})
		return c, cities.City{}, false
	}
	city, ok := cities.BySlug(c.CitySlug)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Dados inválidos",
			"details": []points.FieldError{{Field: "citySlug", Message: "Cidade inválida"}},
		})
		return c, cities.City{}, false
	}
	return c, city, true
}

// handleAdminCreate：后台创建；与公共提交同一套清洗/校验/坐标补全，免限流免同意项
func (d *Deps) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	c, city, ok := d.decodeAdminCandidate(w, r)
	if !ok {
		return
	}
	p, apiErr := d.resolvePoint(r, c, city)
	if apiErr != nil {
		writeJSON(w, apiErr.status, apiErr.body)
		return
	}
	id, err := d.Gateway.Create(r.Context(), city, p)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Erro ao salvar ponto. Tente novamente.")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

// handleAdminUpdate：整体覆盖更新，version 由存储层 +1
func (d *Deps) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, city, ok := d.decodeAdminCandidate(w, r)
	if !ok {
		return
	}
	p, apiErr := d.resolvePoint(r, c, city)
	if apiErr != nil {
		writeJSON(w, apiErr.status, apiErr.body)
		return
	}
	err := d.Gateway.Update(r.Context(), city, id, p)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Ponto não encontrado")
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Erro ao salvar ponto. Tente novamente.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleAdminDelete：硬删除指定城市分区内的点位
func (d *Deps) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	city, ok := cities.BySlug(r.URL.Query().Get("city"))
	if !ok {
		writeError(w, http.StatusNotFound, "Cidade não encontrada")
		return
	}
	err := d.Gateway.Delete(r.Context(), city, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Ponto não encontrado")
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Erro ao excluir ponto. Tente novamente.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
