package utils

// Response is the JSON envelope every endpoint returns. Status mirrors the
// HTTP status code so clients reading the body alone can branch on it; Data
// carries the payload and serializes as null when absent. The zip download
// path is the one exception to the envelope.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// NewResponse builds an envelope with an explicit status and payload. Used
// for non-200 responses that still carry data, like upstream diagnostics.
func NewResponse(status int, message string, data interface{}) Response {
	return Response{
		Status:  status,
		Message: message,
		Data:    data,
	}
}

// NewSuccessResponse builds a 200 envelope around the payload.
func NewSuccessResponse(message string, data interface{}) Response {
	return Response{
		Status:  200,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse builds an envelope with no payload.
func NewErrorResponse(status int, message string) Response {
	return Response{
		Status:  status,
		Message: message,
	}
}
