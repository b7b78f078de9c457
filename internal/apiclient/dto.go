package apiclient

import (
	"encoding/json"
	"strings"
)

// LoginRequest описывает тело запроса /api/v1/login/.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse содержит токен сессии либо текст ошибки.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	ErrorMessage string `json:"error"`
}

// errorBody покрывает оба формата тел ошибок, которые отдаёт сервер:
// {"error": "..."} у аутентификации и {"detail": "..."} у REST-ресурсов.
type errorBody struct {
	ErrorMessage string `json:"error"`
	Detail       string `json:"detail"`
}

// UserMessage извлекает человекочитаемое сообщение из сериализованного тела
// ошибки: поле error, затем detail, иначе тело целиком.
func UserMessage(detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return ""
	}
	var body errorBody
	if err := json.Unmarshal([]byte(detail), &body); err == nil {
		if msg := strings.TrimSpace(body.ErrorMessage); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(body.Detail); msg != "" {
			return msg
		}
	}
	return detail
}
