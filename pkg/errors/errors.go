package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// JWT и токены
	ErrInvalidSigningMethod = fmt.Errorf("неверный метод подписи токена")
	ErrInvalidToken         = fmt.Errorf("недопустимый токен")
	ErrTokenExpired         = fmt.Errorf("срок действия токена истёк")
	ErrTokenNotYetValid     = fmt.Errorf("токен ещё не активен")
	ErrTokenIsNotAccess     = fmt.Errorf("токен не является access-токеном")

	// Авторизация
	ErrEmptyAuthHeader   = fmt.Errorf("заголовок авторизации отсутствует")
	ErrInvalidAuthHeader = fmt.Errorf("неверный формат заголовка авторизации")

	// Контекст
	ErrActorNotFoundInContext = fmt.Errorf("актор не найден в контексте запроса")
)

// Kind — категория доменной ошибки. По Kind контроллер определяет HTTP-статус,
// а тесты проверяют, что сервис вернул именно ту категорию, которую обещает контракт.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindConflict          Kind = "CONFLICT"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindNotFound          Kind = "NOT_FOUND"
	KindAuthorization     Kind = "AUTHORIZATION"
	KindInternal          Kind = "INTERNAL"
)

// HttpError — ошибка с пользовательским сообщением и HTTP-кодом.
// Message безопасно показывать пользователю, Err — технические детали для логов.
type HttpError struct {
	Code    int
	Kind    Kind
	Message string
	Err     error
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error) *HttpError {
	return &HttpError{Code: code, Kind: KindInternal, Message: message, Err: err}
}

// --- Таксономия доменных ошибок ---

func NewValidationError(format string, args ...interface{}) *HttpError {
	return &HttpError{Code: http.StatusBadRequest, Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...interface{}) *HttpError {
	return &HttpError{Code: http.StatusConflict, Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewInsufficientStockError(format string, args ...interface{}) *HttpError {
	return &HttpError{Code: http.StatusConflict, Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *HttpError {
	return &HttpError{Code: http.StatusNotFound, Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewAuthorizationError(format string, args ...interface{}) *HttpError {
	return &HttpError{Code: http.StatusForbidden, Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// IsKind сообщает, относится ли ошибка к указанной категории.
func IsKind(err error, kind Kind) bool {
	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		return httpErr.Kind == kind
	}
	return false
}
