package serverutils

type Response[T any] struct {
	Success   bool   `json:"success"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
	Data      T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) *Response[T] {
	return &Response[T]{
		Success: true,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string) *Response[any] {
	return &Response[any]{
		Success: false,
		Code:    code,
		Message: message,
	}
}

// TypedErrorResponse is ErrorResponse with the machine-readable error kind attached.
func TypedErrorResponse(code int, errorType, message string) *Response[any] {
	res := ErrorResponse(code, message)
	res.ErrorType = errorType
	return res
}
