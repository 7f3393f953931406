package utils

import "time"

// SuccessResponse is the envelope of every 2xx body served by the automation API.
type SuccessResponse struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Meta    *Meta `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

// APIError carries a stable code for clients and, for upstream failures, the ads
// platform response that caused it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Meta describes the response. Count and Limit are set on list endpoints only.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Count     *int      `json:"count,omitempty"`
	Limit     *int      `json:"limit,omitempty"`
}

func CreateErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: APIError{
			Code:    code,
			Message: message,
		},
	}
}

// CreateUpstreamErrorResponse is CreateErrorResponse with the failing upstream call
// attached; nil details are omitted.
func CreateUpstreamErrorResponse(code, message string, details any) ErrorResponse {
	resp := CreateErrorResponse(code, message)
	resp.Error.Details = details
	return resp
}

func CreateSuccessResponse(data any) SuccessResponse {
	return SuccessResponse{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Timestamp: time.Now().UTC(),
		},
	}
}

// CreateListResponse wraps one page of results with its size and the limit applied.
func CreateListResponse(data any, count, limit int) SuccessResponse {
	resp := CreateSuccessResponse(data)
	resp.Meta.Count = &count
	resp.Meta.Limit = &limit
	return resp
}
