package services

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"bucketstream/internal/domain/event"
	"bucketstream/internal/transport/httpdto"
	relay_errors "bucketstream/pkg/errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const secretField = "secret_key"

// Layouts accepted for event_time. Timestamps without a zone are read as UTC.
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Validator turns a raw ingestion payload into a typed Event. It has no side
// effects and is safe for concurrent use.
type Validator struct {
	secret []byte
}

// NewValidator returns a Validator for the configured shared secret. An empty
// secret rejects every payload.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Validate checks the secret first, then the schema. The secret is never
// copied into the result.
func (v *Validator) Validate(raw map[string]any) (event.Event, error) {
	if err := v.authenticate(raw[secretField]); err != nil {
		return event.Event{}, err
	}

	req, err := decodeIngestRequest(raw)
	if err != nil {
		return event.Event{}, err
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return event.Event{}, validationError(err)
	}

	ts, err := parseEventTime(req.EventTime)
	if err != nil {
		return event.Event{}, err
	}

	e := event.Event{
		EventID:   req.EventID,
		Bucket:    req.Bucket,
		Key:       req.Key,
		EventName: req.EventName,
		EventTime: ts,
		Size:      *req.Size,
		Metadata:  maps.Clone(req.Metadata),
	}
	if req.ContentType != nil {
		e.ContentType = *req.ContentType
	}
	return e, nil
}

func (v *Validator) authenticate(value any) error {
	got, ok := value.(string)
	if !ok || got == "" {
		return fmt.Errorf("%w: missing %s", relay_errors.ErrAuthentication, secretField)
	}
	if len(v.secret) == 0 || subtle.ConstantTimeCompare([]byte(got), v.secret) != 1 {
		return fmt.Errorf("%w: invalid %s", relay_errors.ErrAuthentication, secretField)
	}
	return nil
}

// decodeIngestRequest maps raw onto the typed request. Type mismatches, such
// as a fractional size or a numeric metadata value, surface as schema errors.
func decodeIngestRequest(raw map[string]any) (*httpdto.IngestRequest, error) {
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, schemaError("payload is not valid JSON: %v", err)
	}
	var req httpdto.IngestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, schemaError("%s must be %s", typeErr.Field, typeErr.Type)
		}
		return nil, schemaError("%v", err)
	}
	return &req, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return schemaError("%v", err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return schemaError("%s is required", fe.Field())
	case "notblank":
		return schemaError("%s must not be empty", fe.Field())
	case "gte":
		return schemaError("%s must not be negative", fe.Field())
	default:
		return schemaError("%s failed %s", fe.Field(), fe.Tag())
	}
}

func schemaError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{relay_errors.ErrSchema}, args...)...)
}

func parseEventTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, schemaError("event_time %q is not an ISO-8601 timestamp", s)
}
