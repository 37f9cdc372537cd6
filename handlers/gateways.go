package handlers

import (
	"net/http"

	"multigateway-api/models"
	"multigateway-api/services/payment/registry"
	"multigateway-api/utils"
)

type GatewayHandler struct {
	registry *registry.Registry
	loaded   map[string]bool
}

func NewGatewayHandler(reg *registry.Registry, loaded []string) *GatewayHandler {
	m := make(map[string]bool, len(loaded))
	for _, name := range loaded {
		m[name] = true
	}
	return &GatewayHandler{registry: reg, loaded: m}
}

type gatewayInfo struct {
	registry.Entry
	Enabled bool `json:"enabled"`
}

// ListGateways returns every registered adapter and whether it is enabled
// on this server.
func (h *GatewayHandler) ListGateways(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.List()
	out := make([]gatewayInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, gatewayInfo{Entry: e, Enabled: h.loaded[e.Name]})
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Gateways retrieved",
		Data:    out,
	})
}
