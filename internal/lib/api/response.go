package api

import (
	"encoding/json"
	"net/http"
)

// Response – общий конверт всех ответов API: {success, message?, ...payload}
type Response map[string]interface{}

// OK собирает успешный ответ; payload дополняет конверт полями верхнего уровня
func OK(message string, payload map[string]interface{}) Response {
	resp := Response{"success": true}
	if message != "" {
		resp["message"] = message
	}
	for k, v := range payload {
		resp[k] = v
	}
	return resp
}

// Error собирает ответ с ошибкой
func Error(message string) Response {
	return Response{"success": false, "message": message}
}

// JSON пишет конверт с указанным статусом
func JSON(w http.ResponseWriter, status int, resp Response) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(resp)
}

// Fail – короткая запись ошибки без payload
func Fail(w http.ResponseWriter, status int, message string) {
	_ = JSON(w, status, Error(message))
}
