package rank

import (
	"log/slog"
	"net/http"

	"github.com/tianting/celestial-court/internal/transport"
	"github.com/tianting/celestial-court/pkg/logger"
)

type ServiceAPI interface {
	List() ([]*Rank, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) ListRanks(w http.ResponseWriter, r *http.Request) {
	ranks, err := h.Service.List()
	if err != nil {
		h.Logger.Error("ListRanks: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": ranks})
}
