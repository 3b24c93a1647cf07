package httpapi

import (
	"net/http"

	"camstack.org/internal/audit"
)

type putSettingRequest struct {
	Value string `json:"value"`
}

func (a *API) handleListSettings(w http.ResponseWriter, r *http.Request) {
	all, err := a.deps.Settings.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": all})
}

func (a *API) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := a.deps.Settings.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

func (a *API) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	var req putSettingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	setting, err := a.deps.Settings.Set(r.Context(), r.PathValue("key"), req.Value)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "settings.update", "setting", setting.Key, nil)
	writeJSON(w, http.StatusOK, setting)
}

func (a *API) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.deps.Dashboard.Summary(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		ActorID:  r.URL.Query().Get("actorId"),
		Action:   r.URL.Query().Get("action"),
		Resource: r.URL.Query().Get("resource"),
		Limit:    100,
	}
	var err error
	if filter.Since, filter.Until, err = parseDateRange(r); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.deps.Audit.List(r.Context(), filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
