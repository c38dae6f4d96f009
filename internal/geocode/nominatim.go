// 包 geocode：对接 Nominatim 的正向/反向地理编码；无本地持久缓存，热点缓存在 api 层
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"pontos-api/internal/cities"
	"pontos-api/internal/logger"
	"pontos-api/internal/metrics"
)

// ErrNoResult：上游正常应答但无匹配（404 语义）
var ErrNoResult = errors.New("no geocoding result")

// ErrUpstream：上游不可用或应答非法（503 语义）
var ErrUpstream = errors.New("geocoding service unavailable")

// Result：正向编码的最优匹配
type Result struct {
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	DisplayName string            `json:"displayName"`
	Address     map[string]string `json:"address,omitempty"`
}

// Client：Nominatim REST 客户端
// 约束：上游限速 1 req/s；拖图触发的反查必须经 ReverseScheduler 去抖后进入此客户端
type Client struct {
	base string
	ua   string
	hc   *http.Client
}

// NewClientFromEnv：从环境变量装配客户端
// 背景：NOMINATIM_USER_AGENT 必须标识应用身份，匿名 UA 会被上游封禁
func NewClientFromEnv() *Client {
	base := os.Getenv("NOMINATIM_BASE")
	if base == "" {
		base = "https://nominatim.openstreetmap.org"
	}
	ua := os.Getenv("NOMINATIM_USER_AGENT")
	if ua == "" {
		ua = "EmergenciaColetas/2.0"
	}
	return &Client{base: base, ua: ua, hc: &http.Client{Timeout: 8 * time.Second}}
}

// NewClient：直接传参构造，用于测试注入假上游
func NewClient(base, ua string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 8 * time.Second}
	}
	return &Client{base: base, ua: ua, hc: hc}
}

// nominatim /search 应答条目（仅解析本方案需要的字段）
type searchItem struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

// Search：地址正向编码，限定在城市包围盒内取最优匹配
// 参数：address 为用户输入地址；city 提供名称/州与 viewbox 约束
// 返回：最优匹配；无结果返回 ErrNoResult，网络/状态/解析异常返回 ErrUpstream
func (c *Client) Search(ctx context.Context, address string, city cities.City) (*Result, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s, %s, %s, Brasil", address, city.Name, city.State))
	q.Set("format", "json")
	q.Set("limit", "5")
	q.Set("addressdetails", "1")
	q.Set("bounded", "1")
	q.Set("viewbox", fmt.Sprintf("%v,%v,%v,%v", city.Bounds.West, city.Bounds.South, city.Bounds.East, city.Bounds.North))
	items, err := c.get(ctx, "search", c.base+"/search?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoResult
	}
	best := items[0]
	lat, err1 := strconv.ParseFloat(best.Lat, 64)
	lng, err2 := strconv.ParseFloat(best.Lon, 64)
	if err1 != nil || err2 != nil {
		logger.L().Error("nominatim_bad_coords", "lat", best.Lat, "lon", best.Lon)
		return nil, ErrUpstream
	}
	return &Result{Lat: lat, Lng: lng, DisplayName: best.DisplayName, Address: best.Address}, nil
}

// nominatim /reverse 应答
type reverseResp struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

// Reverse：坐标反查短地址
// 背景：道路字段按 road → pedestrian → footway → path 顺序兜底，拼为 "路名, 门牌"；
// 无道路级字段时回退完整 display_name
// 约束：错误不向用户抛出，调用方以空地址降级展示
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	t0 := time.Now()
	metrics.NominatimRequestsTotal.WithLabelValues("reverse").Inc()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.ua)
	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.NominatimFailTotal.WithLabelValues("reverse").Inc()
		logger.L().Error("nominatim_http_error", "op", "reverse", "err", err)
		return "", ErrUpstream
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.NominatimFailTotal.WithLabelValues("reverse").Inc()
		logger.L().Error("nominatim_status", "op", "reverse", "status", resp.StatusCode)
		return "", ErrUpstream
	}
	var r reverseResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		metrics.NominatimFailTotal.WithLabelValues("reverse").Inc()
		return "", ErrUpstream
	}
	metrics.NominatimDurationMs.WithLabelValues("reverse").Observe(float64(time.Since(t0).Milliseconds()))
	return shortAddress(r), nil
}

// shortAddress：从反查应答提取街道级短地址
func shortAddress(r reverseResp) string {
	road := ""
	for _, k := range []string{"road", "pedestrian", "footway", "path"} {
		if v := r.Address[k]; v != "" {
			road = v
			break
		}
	}
	if road == "" {
		return r.DisplayName
	}
	if n := r.Address["house_number"]; n != "" {
		return road + ", " + n
	}
	return road
}

// get：/search 系列请求的公共收发与指标埋点
func (c *Client) get(ctx context.Context, op, u string) ([]searchItem, error) {
	t0 := time.Now()
	metrics.NominatimRequestsTotal.WithLabelValues(op).Inc()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.NominatimFailTotal.WithLabelValues(op).Inc()
		logger.L().Error("nominatim_http_error", "op", op, "err", err)
		return nil, ErrUpstream
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.NominatimFailTotal.WithLabelValues(op).Inc()
		logger.L().Error("nominatim_status", "op", op, "status", resp.StatusCode)
		return nil, ErrUpstream
	}
	var items []searchItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		metrics.NominatimFailTotal.WithLabelValues(op).Inc()
		logger.L().Error("nominatim_decode_error", "op", op, "err", err)
		return nil, ErrUpstream
	}
	metrics.NominatimDurationMs.WithLabelValues(op).Observe(float64(time.Since(t0).Milliseconds()))
	return items, nil
}
