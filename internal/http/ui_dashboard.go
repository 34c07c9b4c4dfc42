package httpx

import "net/http"

// Dashboard serves the dashboard. Widget failures are shown in place; the
// rest of the page still renders.
// GET /dashboard.
func (h *UIHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	data, _ := h.page(r, PageDashboard)
	if h.Summaries != nil {
		summary, err := h.Summaries.Summary(r.Context(), h.Session.BearerToken(r.Context()))
		if err != nil {
			h.logger().DebugContext(r.Context(), "dashboard partially loaded", "error", err)
		}
		data.Data = summary
	}
	h.render(w, r, http.StatusOK, data)
}
