package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mq "github.com/Strob0t/SiteForge/internal/port/messagequeue"
)

// Invalidator drops state derived from stored tenants and content.
type Invalidator interface {
	// Invalidate discards everything derived from tenantID; an empty
	// tenantID discards everything.
	Invalidate(ctx context.Context, tenantID string)
}

// DirectoryInvalidator adapts a DirectoryService, whose snapshot covers
// all tenants, to Invalidator.
type DirectoryInvalidator struct{ Dir *DirectoryService }

func (d DirectoryInvalidator) Invalidate(context.Context, string) { d.Dir.Invalidate() }

// ChangeListener applies sites.changed events to local caches. Every
// instance subscribes, so each process rotates its own L1 state.
type ChangeListener struct {
	targets []Invalidator
}

// NewChangeListener creates a listener invalidating targets in order.
func NewChangeListener(targets ...Invalidator) *ChangeListener {
	return &ChangeListener{targets: targets}
}

// Start subscribes to sites.changed. The returned function unsubscribes.
func (l *ChangeListener) Start(ctx context.Context, q mq.Queue) (func(), error) {
	cancel, err := q.Subscribe(ctx, mq.SubjectSitesChanged, l.Handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", mq.SubjectSitesChanged, err)
	}
	return cancel, nil
}

// Handle is the message handler for sites.changed.
func (l *ChangeListener) Handle(ctx context.Context, _ string, data []byte) error {
	var p mq.SiteChangedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode site change: %w", err)
	}
	l.Apply(ctx, p)
	return nil
}

// Apply invalidates every target for p.
func (l *ChangeListener) Apply(ctx context.Context, p mq.SiteChangedPayload) {
	slog.InfoContext(ctx, "site change received",
		"tenant_id", p.TenantID, "kind", p.Kind, "slug", p.Slug, "reason", p.Reason)
	for _, t := range l.targets {
		t.Invalidate(ctx, p.TenantID)
	}
}

// ChangePublisher announces authoring changes. Without a queue it applies
// them to the local listener only.
type ChangePublisher struct {
	queue mq.Queue
	local *ChangeListener
}

// NewChangePublisher creates a publisher. queue may be nil.
func NewChangePublisher(queue mq.Queue, local *ChangeListener) *ChangePublisher {
	return &ChangePublisher{queue: queue, local: local}
}

// Publish sends p on sites.changed, falling back to local invalidation
// when the queue is absent or the publish fails.
func (p *ChangePublisher) Publish(ctx context.Context, ev mq.SiteChangedPayload) {
	if p.queue != nil && p.queue.IsConnected() {
		data, err := json.Marshal(ev)
		if err == nil {
			if err = p.queue.Publish(ctx, mq.SubjectSitesChanged, data); err == nil {
				return
			}
		}
		slog.WarnContext(ctx, "site change publish failed, invalidating locally", "tenant_id", ev.TenantID, "error", err)
	}
	if p.local != nil {
		p.local.Apply(ctx, ev)
	}
}
