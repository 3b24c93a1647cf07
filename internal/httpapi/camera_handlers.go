package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"camstack.org/internal/camera"
)

type createCameraRequest struct {
	Name     string `json:"name"`
	Serial   string `json:"serial"`
	Model    string `json:"model"`
	Location string `json:"location"`
}

type updateCameraRequest struct {
	Name     *string `json:"name"`
	Model    *string `json:"model"`
	Location *string `json:"location"`
	Enabled  *bool   `json:"enabled"`
}

func (a *API) handleListCameras(w http.ResponseWriter, r *http.Request) {
	filter := camera.ListFilter{Status: camera.Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("enabled"); v != "" {
		enabled := v == "true"
		filter.Enabled = &enabled
	}
	cameras, err := a.deps.Cameras.List(r.Context(), filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cameras": cameras})
}

func (a *API) handleCreateCamera(w http.ResponseWriter, r *http.Request) {
	var req createCameraRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	cam, err := a.deps.Cameras.Create(r.Context(), camera.CreateInput{
		Name:     req.Name,
		Serial:   req.Serial,
		Model:    req.Model,
		Location: req.Location,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "camera.create", "camera", cam.ID, map[string]string{
		"name":   cam.Name,
		"serial": cam.Serial,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/cameras/%s", cam.ID))
	writeJSON(w, http.StatusCreated, cam)
}

func (a *API) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	cam, err := a.deps.Cameras.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

func (a *API) handleUpdateCamera(w http.ResponseWriter, r *http.Request) {
	var req updateCameraRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	cam, err := a.deps.Cameras.Update(r.Context(), r.PathValue("id"), camera.Update{
		Name:     req.Name,
		Model:    req.Model,
		Location: req.Location,
		Enabled:  req.Enabled,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "camera.update", "camera", cam.ID, nil)
	writeJSON(w, http.StatusOK, cam)
}

func (a *API) handleDeleteCamera(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.deps.Cameras.Delete(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "camera.delete", "camera", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRegenerateStreamKey(w http.ResponseWriter, r *http.Request) {
	cam, err := a.deps.Cameras.RegenerateStreamKey(r.Context(), r.PathValue("id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "camera.stream_key.rotate", "camera", cam.ID, nil)
	writeJSON(w, http.StatusOK, cam)
}

func (a *API) handleCameraURLs(w http.ResponseWriter, r *http.Request) {
	cam, err := a.deps.Cameras.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.deps.URLs.For(cam))
}

func (a *API) handleCameraRecordings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.deps.Cameras.Get(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	filter := camera.RecordingFilter{CameraID: id}
	var err error
	if filter.Since, filter.Until, err = parseDateRange(r); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := a.deps.Cameras.ListRecordings(r.Context(), filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

func (a *API) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	filter := camera.RecordingFilter{CameraID: r.URL.Query().Get("cameraId")}
	var err error
	if filter.Since, filter.Until, err = parseDateRange(r); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := a.deps.Cameras.ListRecordings(r.Context(), filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

func (a *API) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.deps.Cameras.DeleteRecording(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "recording.delete", "recording", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func parseDateRange(r *http.Request) (since, until time.Time, err error) {
	if v := r.URL.Query().Get("since"); v != "" {
		since, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid since timestamp %q", v)
		}
	}
	if v := r.URL.Query().Get("until"); v != "" {
		until, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid until timestamp %q", v)
		}
	}
	return since, until, nil
}
