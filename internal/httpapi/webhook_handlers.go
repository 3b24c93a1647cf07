package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"camstack.org/internal/camera"
	"camstack.org/internal/events"
)

// The media server (nginx-rtmp) posts form-encoded callbacks: on_publish
// and on_publish_done carry the stream name (= stream key); on_record_done
// adds the recording path. Any 2xx allows the action, anything else denies.

func (a *API) handleStreamPublish(w http.ResponseWriter, r *http.Request) {
	cam, ok := a.resolveWebhookCamera(w, r)
	if !ok {
		return
	}
	if !cam.Enabled {
		a.deps.Audit.Record(r.Context(), "stream.publish.denied", "camera", cam.ID, map[string]string{
			"reason": "camera disabled",
		})
		writeError(w, r, http.StatusForbidden, "camera disabled")
		return
	}
	if _, err := a.deps.Cameras.SetStatus(r.Context(), cam.ID, camera.StatusStreaming); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "stream.publish", "camera", cam.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStreamPublishDone(w http.ResponseWriter, r *http.Request) {
	cam, ok := a.resolveWebhookCamera(w, r)
	if !ok {
		return
	}
	if _, err := a.deps.Cameras.SetStatus(r.Context(), cam.ID, camera.StatusOnline); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "stream.publish_done", "camera", cam.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStreamRecordDone(w http.ResponseWriter, r *http.Request) {
	cam, ok := a.resolveWebhookCamera(w, r)
	if !ok {
		return
	}
	size, _ := strconv.ParseInt(r.PostFormValue("size"), 10, 64)
	duration, _ := strconv.ParseInt(r.PostFormValue("duration"), 10, 64)
	rec, err := a.deps.Cameras.CompleteRecording(r.Context(), camera.CompleteRecordingInput{
		CameraID:    cam.ID,
		FilePath:    r.PostFormValue("path"),
		SizeBytes:   size,
		DurationSec: duration,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "stream.record_done", "recording", rec.ID, map[string]string{
		"camera_id": cam.ID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// resolveWebhookCamera maps the posted stream name to a camera. Unknown
// keys are denied with 403 so the media server drops the publish.
func (a *API) resolveWebhookCamera(w http.ResponseWriter, r *http.Request) (*camera.Camera, bool) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid form body")
		return nil, false
	}
	key := r.PostFormValue("name")
	if key == "" {
		writeError(w, r, http.StatusBadRequest, "stream name is required")
		return nil, false
	}
	cam, err := a.deps.Cameras.FindByStreamKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, camera.ErrNotFound) {
			writeError(w, r, http.StatusForbidden, "unknown stream key")
		} else {
			handleDomainError(w, r, err)
		}
		return nil, false
	}
	return cam, true
}

// handleCameraEvents streams camera status transitions as Server-Sent
// Events until the client disconnects.
func (a *API) handleCameraEvents(w http.ResponseWriter, r *http.Request) {
	if a.deps.Events == nil {
		writeError(w, r, http.StatusServiceUnavailable, "event stream disabled")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.deps.Events.Subscribe(ctx)

	// Initial comment establishes the stream.
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

// PublishStatusEvent is the camera service's status hook target.
func PublishStatusEvent(bus *events.Bus) func(*camera.Camera) {
	return func(c *camera.Camera) {
		bus.Publish(events.StatusEvent{
			CameraID: c.ID,
			Name:     c.Name,
			Status:   c.Status,
			At:       time.Now().UTC(),
		})
	}
}
