package kafka

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
)

// MessageHeaders are copied onto every event so consumers can filter without decoding the payload.
type MessageHeaders struct {
	EventType   string
	TenantID    string
	EntityKind  string
	EntityID    string
	RequestID   string
	TraceParent string
}

type Header struct {
	Key   string
	Value []byte
}

func (h *MessageHeaders) ToKafkaHeaders() []Header {
	headers := make([]Header, 0, 6)

	if h.EventType != "" {
		headers = append(headers, Header{Key: "event_type", Value: []byte(h.EventType)})
	}
	if h.TenantID != "" {
		headers = append(headers, Header{Key: "tenant_id", Value: []byte(h.TenantID)})
	}
	if h.EntityKind != "" {
		headers = append(headers, Header{Key: "entity_kind", Value: []byte(h.EntityKind)})
	}
	if h.EntityID != "" {
		headers = append(headers, Header{Key: "entity_id", Value: []byte(h.EntityID)})
	}
	if h.RequestID != "" {
		headers = append(headers, Header{Key: "request_id", Value: []byte(h.RequestID)})
	}
	if h.TraceParent != "" {
		headers = append(headers, Header{Key: "traceparent", Value: []byte(h.TraceParent)})
	}

	return headers
}

func ExtractHeaders(headers []Header) MessageHeaders {
	var mh MessageHeaders
	for _, h := range headers {
		switch h.Key {
		case "event_type":
			mh.EventType = string(h.Value)
		case "tenant_id":
			mh.TenantID = string(h.Value)
		case "entity_kind":
			mh.EntityKind = string(h.Value)
		case "entity_id":
			mh.EntityID = string(h.Value)
		case "request_id":
			mh.RequestID = string(h.Value)
		case "traceparent":
			mh.TraceParent = string(h.Value)
		}
	}
	return mh
}

// TraceParent renders the W3C traceparent of the span in ctx, or "" without one.
func TraceParent(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return fmt.Sprintf("00-%s-%s-%s", sc.TraceID(), sc.SpanID(), sc.TraceFlags())
}

// ReceivedMessage is a fetched message with its headers decoded.
type ReceivedMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   MessageHeaders
}
