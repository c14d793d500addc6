package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mirror/internal/store"
)

// ErrInvalidSetting is returned by appliers for unknown keys or bad values.
var ErrInvalidSetting = errors.New("invalid setting")

// SettingsApplier applies a setting to the running mirror before it is saved.
type SettingsApplier interface {
	ApplySetting(key, value string) error
}

// SettingsHandler handles HTTP requests for settings.
type SettingsHandler struct {
	settings *store.SettingsRepository
	applier  SettingsApplier
	log      logrus.FieldLogger
}

// NewSettingsHandler creates a SettingsHandler. A nil applier stores values
// without applying them.
func NewSettingsHandler(settings *store.SettingsRepository, applier SettingsApplier, log logrus.FieldLogger) *SettingsHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SettingsHandler{settings: settings, applier: applier, log: log}
}

// ServeHTTP routes /api/settings and /api/settings/{key}.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/settings"), "/")

	if key == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, key)
	case http.MethodPut:
		h.put(w, r, key)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type settingBody struct {
	Value string `json:"value" validate:"required"`
}

type settingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type listSettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

// list handles GET /api/settings.
func (h *SettingsHandler) list(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}
	writeJSON(w, http.StatusOK, listSettingsResponse{Settings: settings})
}

// get handles GET /api/settings/{key}.
func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request, key string) {
	value, err := h.settings.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Setting not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get setting")
		return
	}
	writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: value})
}

// put handles PUT /api/settings/{key}. The value is applied first so an
// invalid value is never stored.
func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request, key string) {
	var req settingBody
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if h.applier != nil {
		if err := h.applier.ApplySetting(key, req.Value); err != nil {
			if errors.Is(err, ErrInvalidSetting) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to apply setting")
			return
		}
	}

	if err := h.settings.Set(r.Context(), key, req.Value); err != nil {
		h.log.WithError(err).WithField("key", key).Error("setting persist failed")
		writeError(w, http.StatusInternalServerError, "Failed to save setting")
		return
	}

	writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: req.Value})
}
