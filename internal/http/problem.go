package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront/internal/service"

	"go.uber.org/zap"
)

// Problem 错误响应体（application/problem+json）
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Code:   code,
		Detail: detail,
	})
}

// errorStatus 错误码 → HTTP 状态
func errorStatus(code service.ErrorCode) int {
	switch code {
	case service.CodeStoreNotFound, service.CodeProductsNotFound, service.CodeOrderNotFound, service.CodeTenantNotFound:
		return http.StatusNotFound
	case service.CodeDuplicateSlug, service.CodeDuplicateHostname, service.CodeAlreadyPublished:
		return http.StatusConflict
	case service.CodeGatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// writeError 类型化错误按错误码返回，其余一律 500 且不暴露内部信息
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var cerr *service.CheckoutError
	if errors.As(err, &cerr) {
		status := errorStatus(cerr.Code)
		if status >= http.StatusInternalServerError {
			logger.Error("Checkout dependency failed", zap.String("code", string(cerr.Code)), zap.Error(err))
		}
		writeProblem(w, status, string(cerr.Code), cerr.Message)
		return
	}
	var perr *service.ProvisioningError
	if errors.As(err, &perr) {
		writeProblem(w, errorStatus(perr.Code), string(perr.Code), perr.Message)
		return
	}
	logger.Error("Request failed", zap.Error(err))
	writeProblem(w, http.StatusInternalServerError, "", "internal error")
}
