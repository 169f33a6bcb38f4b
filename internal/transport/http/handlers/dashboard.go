package http_handlers

import (
	"net/http"

	"github.com/baechuer/totp-auth/internal/transport/http/dto"
	"github.com/baechuer/totp-auth/internal/transport/http/response"
)

type DashboardHandler struct{}

func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// Get handles GET /dashboard. It sits behind Auth and RequireSecondFactor.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.OK(w, dto.MessageResponse{Msg: "Welcome to the dashboard"})
}
