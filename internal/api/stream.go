package api

import (
	"context"
	"net/http"

	"pontos-api/internal/cities"
	"pontos-api/internal/geocode"
	"pontos-api/internal/logger"
	"pontos-api/internal/metrics"
	"pontos-api/internal/picker"
	"pontos-api/internal/points"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 前端与 API 同源部署，跨源控制在网关层
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamCommand：客户端下行指令
type streamCommand struct {
	Type string  `json:"type"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	OK   bool    `json:"ok"`
}

func pointsFrame(pts []points.Point, mode string, newCount int) map[string]any {
	return map[string]any{
		"type":     "points",
		"points":   pts,
		"count":    len(pts),
		"newCount": newCount,
		"mode":     mode,
	}
}

// 文档注释：实时流端点（websocket）
// 背景：一条连接承载两件事——同步引擎的点位快照推送，以及地图选点会话
// （中心点变更 → 去抖反查 → 地址确认）。写侧收敛到单一发送通道，
// 读泵只负责解指令并驱动状态机。
// 约束：websocket 连接不允许并发写，任何帧都必须经 out 通道串行化；
// 连接断开即回收会话、选点器与挂起的反查排期。
func (d *Deps) handleStream(w http.ResponseWriter, r *http.Request) {
	city, ok := cities.BySlug(r.URL.Query().Get("city"))
	if !ok {
		writeError(w, http.StatusNotFound, "Cidade não encontrada")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Error("stream_upgrade_error", "err", err)
		return
	}
	defer conn.Close()
	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()
	logger.L().Info("stream_open", "city", city.Slug, "ip", clientIP(r))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := d.Engine.Activate(ctx, city)
	defer sess.Close()

	out := make(chan any, 16)
	send := func(v any) {
		select {
		case out <- v:
		case <-ctx.Done():
		}
	}

	var pk *picker.Picker
	sched := geocode.NewReverseScheduler(d.Geo.Reverse, d.ReverseDebounce, func(addr string, ok bool) {
		pk.AddressResolved(addr, ok)
		if ok && addr != "" {
			send(map[string]any{"type": "address", "address": addr})
		} else {
			send(map[string]any{"type": "address", "address": nil})
		}
	})
	pk = picker.New(sched)
	defer pk.Stop()

	// 写泵：唯一的连接写入方
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-out:
				if err := conn.WriteJSON(v); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// 读泵：解客户端指令并驱动选点/同步会话
	go func() {
		defer cancel()
		for {
			var cmd streamCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			switch cmd.Type {
			case "picker_start":
				pk.Start()
			case "picker_stop":
				pk.Stop()
			case "center":
				pk.CenterChanged(cmd.Lat, cmd.Lng)
			case "confirm":
				if loc, committed := pk.Confirm(cmd.OK); committed {
					send(map[string]any{"type": "location", "lat": loc.Lat, "lng": loc.Lng})
				}
			case "reset_new":
				sess.ResetNewCount()
				pts, state, newCount := sess.Snapshot()
				send(pointsFrame(pts, state.String(), newCount))
			case "refresh":
				if err := sess.Refresh(ctx); err != nil {
					logger.L().Error("stream_refresh_error", "city", city.Slug, "err", err)
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.L().Info("stream_close", "city", city.Slug)
			return
		case <-sess.Changed():
			pts, state, newCount := sess.Snapshot()
			send(pointsFrame(pts, state.String(), newCount))
		}
	}
}
