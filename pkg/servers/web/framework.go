package web

import (
	"encoding/json"
	"net/http"
)

// Handler is the shape every transport controller method implements:
// a typed response or an *ApiError, computed from the raw request.
// internal/httpapi's GinAdapter bridges gin's *gin.Context into this
// shape so controllers stay transport-agnostic.
type Handler[T any] func(r *http.Request) (response ApiResponse[T], err *ApiError)

type ApiResponse[T any] struct {
	Code int
	Body T
}

type ApiError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (r *ApiError) Error() string {
	j, err := json.Marshal(r)
	if err != nil {
		return err.Error()
	}
	return string(j)
}
