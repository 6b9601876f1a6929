package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/service"

	"go.uber.org/zap"
)

// OrderAdminAPI 后台订单
type OrderAdminAPI interface {
	ListOrders(ctx context.Context, tenantID, status string, page, pageSize int) (*service.OrderListResponse, error)
	GetOrder(ctx context.Context, tenantID, orderID string) (*service.OrderView, error)
	ExportOrders(ctx context.Context, tenantID, status string) ([]byte, error)
}

type AdminOrdersHandler struct {
	Orders OrderAdminAPI
	Logger *zap.Logger
	now    func() time.Time
}

func NewAdminOrdersHandler(orders OrderAdminAPI, logger *zap.Logger) *AdminOrdersHandler {
	return &AdminOrdersHandler{Orders: orders, Logger: logger, now: time.Now}
}

// ListOrders GET /api/admin/orders?tenantId=&status=&page=&pageSize=
func (h *AdminOrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.Orders.ListOrders(r.Context(),
		q.Get("tenantId"),
		q.Get("status"),
		parseInt(q.Get("page"), 1),
		parseInt(q.Get("pageSize"), 20),
	)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ServeHTTP /api/admin/orders/export 与 /api/admin/orders/{orderId}
func (h *AdminOrdersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r.URL.Path, "/api/admin/orders/")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if parts[0] == "export" {
		h.ExportOrders(w, r)
		return
	}

	view, err := h.Orders.GetOrder(r.Context(), r.URL.Query().Get("tenantId"), parts[0])
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ExportOrders GET /api/admin/orders/export?tenantId=&status=
func (h *AdminOrdersHandler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data, err := h.Orders.ExportOrders(r.Context(), q.Get("tenantId"), q.Get("status"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	filename := fmt.Sprintf("orders-%s.xlsx", h.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
