package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderPage         = 1_000_000
	exportBatchSize      = 200
)

// OrderAdminService 后台订单查询与导出（不经过 Host 解析，tenant 显式传入）
type OrderAdminService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewOrderAdminService(store repository.Store, logger *zap.Logger) *OrderAdminService {
	return &OrderAdminService{store: store, logger: logger}
}

// OrderListResponse 分页结果
type OrderListResponse struct {
	Items    []*OrderView `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
}

// ListOrders 最新的订单在前
func (s *OrderAdminService) ListOrders(ctx context.Context, tenantID, status string, page, pageSize int) (*OrderListResponse, error) {
	if err := validateOrderQuery(tenantID, status); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if page > maxOrderPage {
		return nil, provisioningErr(CodeInvalidRequest, "page must be at most %d", maxOrderPage)
	}
	if pageSize < 1 {
		pageSize = defaultOrderPageSize
	}
	if pageSize > maxOrderPageSize {
		pageSize = maxOrderPageSize
	}

	orders, total, err := s.store.Orders().ListOrders(ctx, tenantID, repository.OrderFilters{Status: status}, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	out := &OrderListResponse{Items: make([]*OrderView, 0, len(orders)), Total: total, Page: page, PageSize: pageSize}
	for _, o := range orders {
		out.Items = append(out.Items, toOrderView(o))
	}
	return out, nil
}

// GetOrder 后台按 tenant + id 读取订单
func (s *OrderAdminService) GetOrder(ctx context.Context, tenantID, orderID string) (*OrderView, error) {
	if err := validateOrderQuery(tenantID, ""); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, checkoutErr(CodeOrderNotFound, "order not found")
	}
	o, err := s.store.Orders().GetOrder(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, checkoutErr(CodeOrderNotFound, "order not found")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return toOrderView(o), nil
}

// ExportOrders 读取 tenant 的全部订单（含明细）并生成 XLSX
func (s *OrderAdminService) ExportOrders(ctx context.Context, tenantID, status string) ([]byte, error) {
	if err := validateOrderQuery(tenantID, status); err != nil {
		return nil, err
	}
	var all []*domain.Order
	for page := 1; ; page++ {
		orders, total, err := s.store.Orders().ListOrders(ctx, tenantID, repository.OrderFilters{Status: status}, page, exportBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list orders: %w", err)
		}
		all = append(all, orders...)
		if len(orders) == 0 || len(all) >= total {
			break
		}
	}
	s.logger.Info("Exporting orders",
		zap.String("tenant_id", tenantID),
		zap.String("status", status),
		zap.Int("orders", len(all)),
	)
	return GenerateOrderExport(all)
}

func validateOrderQuery(tenantID, status string) error {
	if _, err := uuid.Parse(tenantID); err != nil {
		return provisioningErr(CodeInvalidRequest, "tenantId must be a uuid")
	}
	switch domain.OrderStatus(status) {
	case "", domain.OrderPending, domain.OrderPaid, domain.OrderFailed, domain.OrderRefunded, domain.OrderCanceled:
		return nil
	default:
		return provisioningErr(CodeInvalidRequest, "unknown order status %q", status)
	}
}
