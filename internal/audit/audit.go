package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"camstack.org/internal/auth"
	"camstack.org/internal/ids"
	"camstack.org/internal/obs"
)

// Entry is one immutable audit record. Entries are appended on every
// state-changing operation and on security-relevant reads.
type Entry struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurredAt"`
	ActorID    string            `json:"actorId,omitempty"`
	ActorType  string            `json:"actorType,omitempty"` // "user", "token" or "system"
	Action     string            `json:"action"`
	Resource   string            `json:"resource,omitempty"`
	ResourceID string            `json:"resourceId,omitempty"`
	Detail     map[string]string `json:"detail,omitempty"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	ActorID  string
	Action   string
	Resource string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Store persists audit entries. Append is the only mutation besides the
// retention purge; entries are never edited.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) ([]*Entry, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	requestIPKey ctxKey = "audit_request_ip"
	userAgentKey ctxKey = "audit_user_agent"
)

// WithRequestID attaches the request identifier to the context for audit
// enrichment.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithRequestMeta attaches the caller's network identity to the context.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	if ip = strings.TrimSpace(ip); ip != "" {
		ctx = context.WithValue(ctx, requestIPKey, ip)
	}
	if userAgent = strings.TrimSpace(userAgent); userAgent != "" {
		ctx = context.WithValue(ctx, userAgentKey, userAgent)
	}
	return ctx
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// Recorder appends entries to the store and mirrors each one as a JSON line
// so the trail is visible in the process log as well.
type Recorder struct {
	store Store
	now   func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(store Store, opts ...RecorderOption) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record appends one entry, filling actor and request fields from context.
// Audit failures are logged, never propagated: the triggering operation has
// already succeeded.
func (r *Recorder) Record(ctx context.Context, action, resource, resourceID string, detail map[string]string) {
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}
	e := &Entry{
		ID:         ids.New(),
		OccurredAt: r.now().UTC(),
		ActorType:  "system",
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         stringFromContext(ctx, requestIPKey),
		UserAgent:  stringFromContext(ctx, userAgentKey),
		RequestID:  stringFromContext(ctx, requestIDKey),
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		e.ActorID = p.UserID
		switch p.Kind {
		case auth.ActorToken:
			e.ActorType = "token"
			if e.Detail == nil {
				e.Detail = map[string]string{}
			}
			e.Detail["tokenId"] = p.TokenID
		default:
			e.ActorType = "user"
		}
	}
	if len(detail) > 0 {
		if e.Detail == nil {
			e.Detail = make(map[string]string, len(detail))
		}
		for k, v := range detail {
			e.Detail[k] = v
		}
	}

	if err := r.store.Append(ctx, e); err != nil {
		obs.Emit("error", "audit_append_failed", map[string]any{"action": action, "error": err.Error()})
		return
	}
	mirror(e)
}

// List returns entries matching the filter, newest first.
func (r *Recorder) List(ctx context.Context, f Filter) ([]*Entry, error) {
	return r.store.List(ctx, f)
}

// PurgeBefore drops entries older than the cutoff and returns the count.
func (r *Recorder) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return r.store.PurgeBefore(ctx, cutoff)
}

func mirror(e *Entry) {
	line := map[string]any{
		"ts":     e.OccurredAt.Format(time.RFC3339Nano),
		"type":   "audit",
		"action": e.Action,
	}
	if e.ActorID != "" {
		line["actor_id"] = e.ActorID
		line["actor_type"] = e.ActorType
	}
	if e.Resource != "" {
		line["resource"] = e.Resource
	}
	if e.ResourceID != "" {
		line["resource_id"] = e.ResourceID
	}
	if e.RequestID != "" {
		line["request_id"] = e.RequestID
	}
	if len(e.Detail) > 0 {
		line["detail"] = e.Detail
	}
	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))
}
