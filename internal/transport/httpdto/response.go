package httpdto

// Code is the machine-readable error code carried by a failed Response.
type Code string

const (
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeStoreFailure       Code = "STORE_FAILURE"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeUnhealthy          Code = "UNHEALTHY"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Response is the envelope every JSON endpoint answers with.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    Code   `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code Code) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}
