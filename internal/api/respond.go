package api

import (
	"encoding/json"
	"net/http"
)

// writeJSON：统一 JSON 应答（禁止缓存，避免代理层缓存实时数据）
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError：错误应答；消息面向提交者使用葡萄牙语，不透传上游原文
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
