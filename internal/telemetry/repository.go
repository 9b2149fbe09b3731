package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dropcart/session-record-service/internal/core/domain"
	"github.com/dropcart/session-record-service/internal/core/ports"
)

const instrumentationName = "github.com/dropcart/session-record-service/internal/telemetry"

// TracedRepository wraps a SessionRepository with one span per call.
type TracedRepository struct {
	next   ports.SessionRepository
	tracer trace.Tracer
}

var _ ports.SessionRepository = (*TracedRepository)(nil)

// NewTracedRepository wraps next. A nil tracer uses the global provider.
func NewTracedRepository(next ports.SessionRepository, tracer trace.Tracer) *TracedRepository {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	return &TracedRepository{next: next, tracer: tracer}
}

func (r *TracedRepository) start(ctx context.Context, op, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if sessionID != "" {
		attrs = append(attrs, attribute.String("session.id", sessionID))
	}
	return r.tracer.Start(ctx, "SessionRepository."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (r *TracedRepository) SaveEvents(ctx context.Context, sessionID string, events []domain.SessionEvent) (n int, err error) {
	ctx, span := r.start(ctx, "SaveEvents", sessionID, attribute.Int("events.batch", len(events)))
	defer func() { finish(span, err) }()

	return r.next.SaveEvents(ctx, sessionID, events)
}

func (r *TracedRepository) AppendEvents(ctx context.Context, sessionID string, events []domain.SessionEvent) (res *domain.AppendResult, err error) {
	ctx, span := r.start(ctx, "AppendEvents", sessionID, attribute.Int("events.batch", len(events)))
	defer func() {
		if res != nil {
			span.SetAttributes(attribute.Int("events.total", res.TotalEventCount))
		}
		finish(span, err)
	}()

	return r.next.AppendEvents(ctx, sessionID, events)
}

func (r *TracedRepository) GetEvents(ctx context.Context, sessionID string) (events []domain.SessionEvent, err error) {
	ctx, span := r.start(ctx, "GetEvents", sessionID)
	defer func() { finish(span, err) }()

	return r.next.GetEvents(ctx, sessionID)
}

func (r *TracedRepository) CreateMetadata(ctx context.Context, metadata *domain.SessionMetadata) (err error) {
	var id string
	if metadata != nil {
		id = metadata.SessionID
	}
	ctx, span := r.start(ctx, "CreateMetadata", id)
	defer func() { finish(span, err) }()

	return r.next.CreateMetadata(ctx, metadata)
}

func (r *TracedRepository) UpdateMetadata(ctx context.Context, sessionID string, updates domain.MetadataUpdate) (m *domain.SessionMetadata, err error) {
	ctx, span := r.start(ctx, "UpdateMetadata", sessionID)
	defer func() { finish(span, err) }()

	return r.next.UpdateMetadata(ctx, sessionID, updates)
}

func (r *TracedRepository) GetMetadata(ctx context.Context, sessionID string) (m *domain.SessionMetadata, err error) {
	ctx, span := r.start(ctx, "GetMetadata", sessionID)
	defer func() { finish(span, err) }()

	return r.next.GetMetadata(ctx, sessionID)
}

func (r *TracedRepository) AddToList(ctx context.Context, metadata *domain.SessionMetadata) (err error) {
	var id string
	if metadata != nil {
		id = metadata.SessionID
	}
	ctx, span := r.start(ctx, "AddToList", id)
	defer func() { finish(span, err) }()

	return r.next.AddToList(ctx, metadata)
}

func (r *TracedRepository) UpdateInList(ctx context.Context, sessionID string, updates domain.MetadataUpdate) (err error) {
	ctx, span := r.start(ctx, "UpdateInList", sessionID)
	defer func() { finish(span, err) }()

	return r.next.UpdateInList(ctx, sessionID, updates)
}

func (r *TracedRepository) ListMetadata(ctx context.Context, limit, offset int) (list []*domain.SessionMetadata, err error) {
	ctx, span := r.start(ctx, "ListMetadata", "",
		attribute.Int("list.limit", limit),
		attribute.Int("list.offset", offset))
	defer func() {
		span.SetAttributes(attribute.Int("list.returned", len(list)))
		finish(span, err)
	}()

	return r.next.ListMetadata(ctx, limit, offset)
}
