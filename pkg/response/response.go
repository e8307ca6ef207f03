package response

// Response represents a standard API response format
type Response struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code"` // HTTP status code
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes the page returned in a list response
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Success:    true,
		StatusCode: statusCode,
		Data:       data,
	}
}

// SuccessWithMessage is Success plus a human readable message
func SuccessWithMessage(statusCode int, message string, data interface{}) Response {
	r := Success(statusCode, data)
	r.Message = message
	return r
}

// SuccessWithPagination wraps one page of a list
func SuccessWithPagination(statusCode int, data interface{}, page, limit int, total int64) Response {
	r := Success(statusCode, data)
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	r.Pagination = &Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
	return r
}

// Error returns a standard error response wrapping the error message.
// Message carries the same text so clients reading either field see it.
func Error(statusCode int, err string) Response {
	return Response{
		Success:    false,
		StatusCode: statusCode,
		Message:    err,
		Error:      err,
	}
}
