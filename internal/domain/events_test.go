package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        string
		wantID     int64
		wantSource string
		wantData   string
		wantErr    bool
	}{
		{name: "numeric id", raw: `{"event_type":"updated","issue_id":12,"data":{"name":"x"},"source":"erp"}`, wantID: 12, wantSource: "erp", wantData: `{"name":"x"}`},
		{name: "string id", raw: `{"event_type":"updated","issue_id":"42","data":{}}`, wantID: 42, wantSource: "external", wantData: `{}`},
		{name: "null data", raw: `{"event_type":"created","data":null,"source":"  "}`, wantSource: "external", wantData: `{}`},
		{name: "missing data", raw: `{"event_type":"created","extra":true}`, wantSource: "external", wantData: `{}`},
		{name: "non-object data", raw: `{"event_type":"created","data":[1,2]}`, wantErr: true},
		{name: "missing event type", raw: `{"issue_id":1,"data":{}}`, wantErr: true},
		{name: "non-numeric id", raw: `{"event_type":"updated","issue_id":"abc"}`, wantErr: true},
		{name: "not json", raw: `plain text`, wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env, err := DecodeEnvelope([]byte(tc.raw), "external")
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidEnvelope) {
					t.Fatalf("expected ErrInvalidEnvelope, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.IssueID != tc.wantID || env.Source != tc.wantSource || string(env.Data) != tc.wantData {
				t.Fatalf("unexpected envelope: %+v data=%s", env, env.Data)
			}
		})
	}
}

func TestOutboundEventEncode(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 2, 12, 30, 0, 0, time.FixedZone("CET", 3600))
	event := OutboundEvent{
		Kind:      EventDeleted,
		IssueID:   8,
		Timestamp: &ts,
		Payload:   DeletedPayload{ID: 8, Name: "Old"},
		Source:    "local",
	}
	raw, err := event.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeEnvelope(raw, "external")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Timestamp == nil || *decoded.Timestamp != "2026-03-02T11:30:00Z" {
		t.Fatalf("expected UTC timestamp, got %v", decoded.Timestamp)
	}
	if decoded.Version != SchemaVersion || decoded.Source != "local" || decoded.EventType != EventDeleted {
		t.Fatalf("unexpected header: %+v", decoded)
	}
	var payload DeletedPayload
	if err := json.Unmarshal(decoded.Data, &payload); err != nil || payload.Name != "Old" {
		t.Fatalf("unexpected payload %s: %v", decoded.Data, err)
	}
	if event.PartitionKey() != "8" {
		t.Fatalf("unexpected partition key %q", event.PartitionKey())
	}
}

func TestWithCommentVariants(t *testing.T) {
	t.Parallel()

	cases := map[EventKind]EventKind{
		EventCreated:       EventCreatedWithComment,
		EventUpdated:       EventUpdatedWithComment,
		EventStatusChanged: EventStatusChangedWithComment,
		EventDeleted:       EventDeleted,
		EventCommentAdded:  EventCommentAdded,
	}
	for kind, want := range cases {
		if got := kind.WithComment(); got != want {
			t.Fatalf("%s.WithComment() = %s, want %s", kind, got, want)
		}
	}
}

func TestFormatTimeNil(t *testing.T) {
	t.Parallel()

	if FormatTime(nil) != nil {
		t.Fatalf("nil time must stay nil")
	}
	var zero time.Time
	if FormatTime(&zero) != nil {
		t.Fatalf("zero time must render as nil")
	}
}
