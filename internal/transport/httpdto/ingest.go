package httpdto

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// IngestRequest is the body of POST /webhook/lambda. SecretKey is checked
// before the struct is validated and never leaves the handler path.
type IngestRequest struct {
	SecretKey   string            `json:"secret_key"`
	EventID     string            `json:"event_id" binding:"required,notblank"`
	Bucket      string            `json:"bucket" binding:"required,notblank"`
	Key         string            `json:"key" binding:"required,notblank"`
	EventName   string            `json:"event_name" binding:"required,notblank"`
	EventTime   string            `json:"event_time" binding:"required,notblank"`
	Size        *int64            `json:"size" binding:"required,gte=0"`
	ContentType *string           `json:"content_type"`
	Metadata    map[string]string `json:"metadata"`
}

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	// Report json names so error messages match the payload the caller sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}
