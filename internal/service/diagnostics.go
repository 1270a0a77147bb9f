package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Strob0t/SiteForge/internal/adapter/otel"
	"github.com/Strob0t/SiteForge/internal/domain/block"
	"github.com/Strob0t/SiteForge/internal/domain/page"
	"github.com/Strob0t/SiteForge/internal/logger"
	mq "github.com/Strob0t/SiteForge/internal/port/messagequeue"
)

// diagnosticBuffer bounds the queue of diagnostics awaiting publication.
const diagnosticBuffer = 1024

// Diagnostics fans block diagnostics out to the log, the metrics and,
// when a queue is configured, the diagnostics.blocks subject. Publication
// is asynchronous and lossy: when the buffer is full the event is dropped
// so a slow broker never delays a page.
type Diagnostics struct {
	metrics *otel.Metrics
	queue   mq.Queue
	now     func() time.Time

	events chan mq.BlockDiagnosticPayload
	done   chan struct{}
	once   sync.Once
}

// NewDiagnostics creates a Diagnostics sink. metrics and queue may be nil.
func NewDiagnostics(metrics *otel.Metrics, queue mq.Queue) *Diagnostics {
	d := &Diagnostics{metrics: metrics, queue: queue, now: time.Now}
	if queue != nil {
		d.events = make(chan mq.BlockDiagnosticPayload, diagnosticBuffer)
		d.done = make(chan struct{})
		go d.publishLoop()
	}
	return d
}

// ForRequest returns a page.Observer bound to ctx for log and trace
// correlation.
func (d *Diagnostics) ForRequest(ctx context.Context) page.Observer {
	if d == nil {
		return page.NopObserver{}
	}
	return &requestObserver{ctx: ctx, d: d}
}

// Close stops the publisher after flushing buffered events.
func (d *Diagnostics) Close() {
	if d == nil || d.events == nil {
		return
	}
	d.once.Do(func() {
		close(d.events)
		<-d.done
	})
}

func (d *Diagnostics) publishLoop() {
	defer close(d.done)
	for ev := range d.events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(logger.WithRequestID(context.Background(), ev.RequestID), 5*time.Second)
		if err := d.queue.Publish(ctx, mq.SubjectDiagnosticsBlocks, data); err != nil {
			slog.Debug("block diagnostic publish failed", "tenant_id", ev.TenantID, "error", err)
		}
		cancel()
	}
}

func (d *Diagnostics) emit(ctx context.Context, ev mq.BlockDiagnosticPayload) {
	d.metrics.RecordBlockDiagnostic(ctx, ev.Diagnostic == mq.DiagnosticUnknownType, ev.BlockType)
	if d.events == nil {
		return
	}
	ev.RequestID = logger.RequestID(ctx)
	ev.At = d.now().UTC()
	select {
	case d.events <- ev:
	default:
		slog.DebugContext(ctx, "block diagnostic dropped, buffer full", "tenant_id", ev.TenantID)
	}
}

type requestObserver struct {
	ctx context.Context
	d   *Diagnostics
}

func (o *requestObserver) UnknownBlock(tenantID string, b *block.Block) {
	slog.WarnContext(o.ctx, "unknown block type dropped",
		"tenant_id", tenantID, "block_id", b.ID, "block_type", string(b.Type))
	o.d.emit(o.ctx, mq.BlockDiagnosticPayload{
		TenantID:   tenantID,
		Diagnostic: mq.DiagnosticUnknownType,
		BlockID:    b.ID,
		BlockType:  string(b.Type),
	})
}

func (o *requestObserver) MalformedBlock(tenantID string, issue block.Issue) {
	slog.WarnContext(o.ctx, "malformed block data",
		"tenant_id", tenantID, "block_id", issue.BlockID, "reason", issue.Reason)
	o.d.emit(o.ctx, mq.BlockDiagnosticPayload{
		TenantID:   tenantID,
		Diagnostic: mq.DiagnosticMalformed,
		BlockID:    issue.BlockID,
		BlockType:  string(issue.Type),
		Reason:     issue.Reason,
	})
}
