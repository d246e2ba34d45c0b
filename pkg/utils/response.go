package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorBody 是所有错误响应的统一结构。Text 为面向用户的本地化提示，可为空。
type ErrorBody struct {
	Error string `json:"error"`
	Text  string `json:"text,omitempty"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{Error: message})
}

// RespondLocalizedError 发送带本地化提示文本的错误响应
func RespondLocalizedError(w http.ResponseWriter, status int, message, text string) {
	RespondJSON(w, status, ErrorBody{Error: message, Text: text})
}

// DecodeJSON 解析请求体，限制最大读取字节数。
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
