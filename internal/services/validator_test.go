package services

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	relay_errors "bucketstream/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	require.NoError(t, dec.Decode(&raw))
	return raw
}

func validPayload() map[string]any {
	return map[string]any{
		"event_id":   "e1",
		"bucket":     "b",
		"key":        "k1",
		"event_name": "ObjectCreated:Put",
		"event_time": "2024-01-01T00:00:00Z",
		"size":       json.Number("100"),
		"secret_key": "S",
	}
}

func TestValidateAcceptsValidPayload(t *testing.T) {
	v := NewValidator("S")
	raw := decode(t, `{
		"event_id":"e1","bucket":"b","key":"k1","event_name":"ObjectCreated:Put",
		"event_time":"2024-01-01T00:00:00Z","size":100,"secret_key":"S",
		"content_type":"text/plain","metadata":{"owner":"ops"}
	}`)

	e, err := v.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "e1", e.EventID)
	assert.Equal(t, "b", e.Bucket)
	assert.Equal(t, "k1", e.Key)
	assert.Equal(t, "ObjectCreated:Put", e.EventName)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), e.EventTime)
	assert.Equal(t, int64(100), e.Size)
	assert.Equal(t, "text/plain", e.ContentType)
	assert.Equal(t, map[string]string{"owner": "ops"}, e.Metadata)
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	raw := validPayload()
	_, err := NewValidator("S").Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "S", raw["secret_key"])
}

func TestValidateAuthentication(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		secret     any
	}{
		{"wrong secret", "S", "wrong"},
		{"missing secret", "S", nil},
		{"empty secret", "S", ""},
		{"non-string secret", "S", json.Number("1")},
		{"prefix of secret", "SECRET", "SEC"},
		{"nothing configured", "", "S"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validPayload()
			if tt.secret == nil {
				delete(raw, "secret_key")
			} else {
				raw["secret_key"] = tt.secret
			}
			_, err := NewValidator(tt.configured).Validate(raw)
			assert.ErrorIs(t, err, relay_errors.ErrAuthentication)
		})
	}
}

func TestValidateAuthenticationPrecedesSchema(t *testing.T) {
	_, err := NewValidator("S").Validate(map[string]any{"secret_key": "wrong"})
	assert.ErrorIs(t, err, relay_errors.ErrAuthentication)
	assert.NotErrorIs(t, err, relay_errors.ErrSchema)
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing event_id", func(m map[string]any) { delete(m, "event_id") }},
		{"empty event_id", func(m map[string]any) { m["event_id"] = "  " }},
		{"missing bucket", func(m map[string]any) { delete(m, "bucket") }},
		{"missing key", func(m map[string]any) { delete(m, "key") }},
		{"missing event_name", func(m map[string]any) { delete(m, "event_name") }},
		{"missing event_time", func(m map[string]any) { delete(m, "event_time") }},
		{"unparseable event_time", func(m map[string]any) { m["event_time"] = "yesterday" }},
		{"numeric event_time", func(m map[string]any) { m["event_time"] = json.Number("1704067200") }},
		{"missing size", func(m map[string]any) { delete(m, "size") }},
		{"string size", func(m map[string]any) { m["size"] = "100" }},
		{"fractional size", func(m map[string]any) { m["size"] = json.Number("1.5") }},
		{"negative size", func(m map[string]any) { m["size"] = json.Number("-1") }},
		{"non-string bucket", func(m map[string]any) { m["bucket"] = json.Number("7") }},
		{"non-string content_type", func(m map[string]any) { m["content_type"] = true }},
		{"metadata not an object", func(m map[string]any) { m["metadata"] = "x" }},
		{"metadata value not a string", func(m map[string]any) { m["metadata"] = map[string]any{"n": json.Number("1")} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validPayload()
			tt.mutate(raw)
			_, err := NewValidator("S").Validate(raw)
			assert.ErrorIs(t, err, relay_errors.ErrSchema)
		})
	}
}

func TestValidateEventTimeFormats(t *testing.T) {
	want := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-01T12:30:00Z", want},
		{"2024-01-01T12:30:00+00:00", want},
		{"2024-01-01T14:30:00+02:00", want},
		{"2024-01-01T12:30:00", want},
		{"2024-01-01 12:30:00", want},
		{"2024-01-01T12:30:00.250Z", want.Add(250 * time.Millisecond)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			raw := validPayload()
			raw["event_time"] = tt.in
			e, err := NewValidator("S").Validate(raw)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(e.EventTime), "got %s", e.EventTime)
			assert.Equal(t, time.UTC, e.EventTime.Location())
		})
	}
}

func TestValidateSizeVariants(t *testing.T) {
	for _, size := range []any{json.Number("0"), float64(42), 42, int64(42)} {
		raw := validPayload()
		raw["size"] = size
		_, err := NewValidator("S").Validate(raw)
		assert.NoError(t, err, "size %v (%T)", size, size)
	}
}

func TestValidateOptionalFieldsMayBeNull(t *testing.T) {
	raw := validPayload()
	raw["content_type"] = nil
	raw["metadata"] = nil
	e, err := NewValidator("S").Validate(raw)
	require.NoError(t, err)
	assert.Empty(t, e.ContentType)
	assert.Nil(t, e.Metadata)
}

func TestValidateErrorsNamePayloadFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		want   string
	}{
		{"missing", func(m map[string]any) { delete(m, "event_name") }, "event_name is required"},
		{"blank", func(m map[string]any) { m["bucket"] = " \t" }, "bucket must not be empty"},
		{"negative", func(m map[string]any) { m["size"] = json.Number("-5") }, "size must not be negative"},
		{"wrong type", func(m map[string]any) { m["key"] = true }, "key must be string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validPayload()
			tt.mutate(raw)
			_, err := NewValidator("S").Validate(raw)
			require.ErrorIs(t, err, relay_errors.ErrSchema)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateRejectsOversizedSize(t *testing.T) {
	raw := validPayload()
	raw["size"] = json.Number("99999999999999999999")
	_, err := NewValidator("S").Validate(raw)
	assert.ErrorIs(t, err, relay_errors.ErrSchema)
}
