package threatguard

import (
	"strings"
)

// DefaultMaxBodyBytes caps how much request body is inspected. Degenerate
// payloads past the cap cannot slow pattern matching down.
const DefaultMaxBodyBytes = 64 << 10

// RequestDescriptor is the transport layer's normalized view of one inbound
// request. Values are attacker-supplied bytes and are deliberately not
// sanitized before matching.
type RequestDescriptor struct {
	Method        string
	URL           string
	Query         map[string]string
	Params        map[string]string
	Body          string
	Headers       map[string]string
	SourceAddress string
	UserAgent     string
}

// RequestSerializer flattens a descriptor into a single analyzable blob.
type RequestSerializer struct {
	maxBodyBytes int
}

func NewRequestSerializer(maxBodyBytes int) *RequestSerializer {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &RequestSerializer{maxBodyBytes: maxBodyBytes}
}

// Serialize renders every field of the request into one string. Ordering
// within a section is map order; callers only rely on all fields being
// present.
func (rs *RequestSerializer) Serialize(req *RequestDescriptor) string {
	if req == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(req.URL)
	b.WriteByte(' ')
	b.WriteString(req.Method)
	for k, v := range req.Query {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	for k, v := range req.Params {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	body := req.Body
	if len(body) > rs.maxBodyBytes {
		body = body[:rs.maxBodyBytes]
	}
	if body != "" {
		b.WriteByte(' ')
		b.WriteString(body)
	}
	for k, v := range req.Headers {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}
