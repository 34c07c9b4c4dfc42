package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/target/esg-checklist-ui/internal/service"
)

const msgSettingsSaved = "Settings saved."

// Settings renders the preferences form.
// GET /settings.
func (h *UIHandlers) Settings(w http.ResponseWriter, r *http.Request) {
	data, prefs := h.page(r, PageSettings)
	data.Data = prefs
	if r.URL.Query().Get("saved") == "1" {
		data.Flash = msgSettingsSaved
	}
	h.render(w, r, http.StatusOK, data)
}

// SaveSettings persists the dark-mode flag and the settings object.
// POST /settings.
func (h *UIHandlers) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: ErrCodeInvalidRequest, Err: err})
		return
	}
	ctx := r.Context()
	darkMode := formBool(r, "dark_mode")
	settings := service.UserSettings{
		Language:           strings.TrimSpace(r.PostFormValue("language")),
		Timezone:           strings.TrimSpace(r.PostFormValue("timezone")),
		EmailNotifications: formBool(r, "email_notifications"),
		ItemsPerPage:       formInt(r, "items_per_page", 0),
	}

	saved, err := h.Preferences.SaveSettings(ctx, settings)
	if err == nil {
		err = h.Preferences.SetDarkMode(ctx, darkMode)
	}
	if err != nil {
		h.logger().WarnContext(ctx, "save settings failed", "error", err)
		if !IsBrowserRequest(r) {
			WriteError(w, ErrorParams{
				Code:    http.StatusInternalServerError,
				ErrCode: "settings_not_saved",
				Err:     errors.New("unable to save settings"),
			})
			return
		}
		data, prefs := h.page(r, PageSettings)
		prefs.Settings = settings.Normalize()
		data.Data = prefs
		data.Error = "Unable to save settings. Please try again."
		h.render(w, r, http.StatusInternalServerError, data)
		return
	}

	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, service.Preferences{DarkMode: darkMode, Settings: saved})
		return
	}
	http.Redirect(w, r, "/settings?saved=1", http.StatusSeeOther)
}
