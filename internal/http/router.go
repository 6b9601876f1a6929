package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

// Handle 注册并记录请求指标
func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, instrument(pattern, r.logger, h))
}

// HandleHandler 不经过指标中间件（/metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterStorefrontRoutes 店铺前台：按 Host 解析 tenant
func (r *Router) RegisterStorefrontRoutes(h *StorefrontHandler) {
	r.Handle("/api/storefront/checkout/session", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.CreateCheckoutSession(w, req)
	})

	r.Handle("/api/storefront/orders/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetOrder(w, req)
	})
}

// RegisterWebhookRoutes 支付网关回调
func (r *Router) RegisterWebhookRoutes(h *WebhookHandler) {
	r.Handle("/api/webhooks/stripe", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.HandleStripe(w, req)
	})
}

// RegisterAdminStoreRoutes 店铺开通与发布
func (r *Router) RegisterAdminStoreRoutes(h *AdminStoresHandler) {
	r.Handle("/api/admin/stores", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.CreateStore(w, req)
	})
	// /api/admin/stores/{tenantId}/{config|domains|publish}
	r.Handle("/api/admin/stores/", h.ServeHTTP)
}

// RegisterAdminOrderRoutes 后台订单查询 / 导出
func (r *Router) RegisterAdminOrderRoutes(h *AdminOrdersHandler) {
	r.Handle("/api/admin/orders", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListOrders(w, req)
	})
	r.Handle("/api/admin/orders/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, req)
	})
}

// RegisterOpsRoutes /healthz 与 /metrics
func (r *Router) RegisterOpsRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.HandleHandler("/metrics", promhttp.Handler())
}
