package kafka

// MessageHeaders contains Kafka message headers for efficient filtering
type MessageHeaders struct {
	TenantID    string
	PipelineID  string
	EventType   string
	TraceParent string
}

// ToKafkaHeaders converts MessageHeaders to a slice of header key-value pairs
func (h *MessageHeaders) ToKafkaHeaders() []Header {
	headers := make([]Header, 0, 4)

	if h.TenantID != "" {
		headers = append(headers, Header{Key: "tenant_id", Value: []byte(h.TenantID)})
	}
	if h.PipelineID != "" {
		headers = append(headers, Header{Key: "pipeline_id", Value: []byte(h.PipelineID)})
	}
	if h.EventType != "" {
		headers = append(headers, Header{Key: "event_type", Value: []byte(h.EventType)})
	}
	if h.TraceParent != "" {
		headers = append(headers, Header{Key: "traceparent", Value: []byte(h.TraceParent)})
	}

	return headers
}

// Header represents a Kafka message header
type Header struct {
	Key   string
	Value []byte
}

// ExtractHeaders extracts MessageHeaders from Kafka headers
func ExtractHeaders(headers []Header) MessageHeaders {
	var mh MessageHeaders
	for _, h := range headers {
		switch h.Key {
		case "tenant_id":
			mh.TenantID = string(h.Value)
		case "pipeline_id":
			mh.PipelineID = string(h.Value)
		case "event_type":
			mh.EventType = string(h.Value)
		case "traceparent":
			mh.TraceParent = string(h.Value)
		}
	}
	return mh
}
