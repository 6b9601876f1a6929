package httpapi

import (
	"context"
	"net/http"

	"storefront/internal/service"

	"go.uber.org/zap"
)

// ProvisioningAPI 店铺开通
type ProvisioningAPI interface {
	CreateStore(ctx context.Context, storeName string) (*service.StoreResponse, error)
	UpdateStoreConfig(ctx context.Context, tenantID string, req service.UpdateStoreConfigRequest) (*service.StoreResponse, error)
	AddDomain(ctx context.Context, tenantID, hostname string) (*service.DomainResponse, error)
	PublishStore(ctx context.Context, tenantID string) (*service.PublishStoreResponse, error)
}

type AdminStoresHandler struct {
	Provisioning ProvisioningAPI
	Logger       *zap.Logger
}

func NewAdminStoresHandler(provisioning ProvisioningAPI, logger *zap.Logger) *AdminStoresHandler {
	return &AdminStoresHandler{Provisioning: provisioning, Logger: logger}
}

type createStoreRequest struct {
	StoreName string `json:"storeName"`
}

type addDomainRequest struct {
	Hostname string `json:"hostname"`
}

// CreateStore POST /api/admin/stores
func (h *AdminStoresHandler) CreateStore(w http.ResponseWriter, r *http.Request) {
	var body createStoreRequest
	if err := readBodyJSON(r, maxJSONBodyBytes, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, string(service.CodeInvalidRequest), "invalid JSON body")
		return
	}
	resp, err := h.Provisioning.CreateStore(r.Context(), body.StoreName)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ServeHTTP /api/admin/stores/{tenantId}/{config|domains|publish}
func (h *AdminStoresHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r.URL.Path, "/api/admin/stores/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	tenantID, action := parts[0], parts[1]

	switch action {
	case "config":
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body service.UpdateStoreConfigRequest
		if err := readBodyJSON(r, maxJSONBodyBytes, &body); err != nil {
			writeProblem(w, http.StatusBadRequest, string(service.CodeInvalidRequest), "invalid JSON body")
			return
		}
		resp, err := h.Provisioning.UpdateStoreConfig(r.Context(), tenantID, body)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case "domains":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body addDomainRequest
		if err := readBodyJSON(r, maxJSONBodyBytes, &body); err != nil {
			writeProblem(w, http.StatusBadRequest, string(service.CodeInvalidRequest), "invalid JSON body")
			return
		}
		resp, err := h.Provisioning.AddDomain(r.Context(), tenantID, body.Hostname)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)

	case "publish":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp, err := h.Provisioning.PublishStore(r.Context(), tenantID)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
