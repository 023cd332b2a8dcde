package broker

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCredentialsMissing - попытка подписанного запроса без key/secret.
// Ошибка конфигурации: запрос не отправляется вообще, «тихий» переход
// на неаутентифицированный вызов недопустим.
var ErrCredentialsMissing = errors.New("broker: api key and secret are required for authorized requests")

// APIRequestError - биржа ответила неуспешным HTTP статусом или флагом
// ошибки в теле ответа. Вызывающий код решает, фатальна ли она.
type APIRequestError struct {
	Exchange string
	Status   int
	Body     string
}

func (e *APIRequestError) Error() string {
	return fmt.Sprintf("%s: api request failed with status %d: %s", e.Exchange, e.Status, e.Body)
}

// Temporary возвращает true для статусов, при которых повтор запроса имеет смысл
func (e *APIRequestError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// AuthError - биржа отвергла подпись или nonce. Подвид транспортной ошибки,
// который отдельно учитывается предохранителем учётных данных.
type AuthError struct {
	APIRequestError
}

// Temporary: повтор с теми же ключами бесполезен
func (e *AuthError) Temporary() bool { return false }

// SymbolError - нативный символ биржи не распарсился в канонический.
// Сигнал о проблеме качества данных, не глотается (никогда не nil-результат).
type SymbolError struct {
	Exchange string
	Symbol   string
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%s: couldn't parse symbol %q", e.Exchange, e.Symbol)
}

// Error - представление ошибки операции в результатах адаптера
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorFor строит представление ошибки для результатов операций
func ErrorFor(err error) *Error {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return &Error{Code: "auth_error", Message: authErr.Error()}
	}

	var apiErr *APIRequestError
	if errors.As(err, &apiErr) {
		return &Error{Code: "api_request_error", Message: apiErr.Error()}
	}

	var symErr *SymbolError
	if errors.As(err, &symErr) {
		return &Error{Code: "symbol_error", Message: symErr.Error()}
	}

	if errors.Is(err, ErrCredentialsMissing) {
		return &Error{Code: "credentials_missing", Message: err.Error()}
	}

	return &Error{Code: "transport_error", Message: err.Error()}
}

// IsAuthError возвращает true если ошибка вызвана отказом в аутентификации
func IsAuthError(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var apiErr *APIRequestError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}
