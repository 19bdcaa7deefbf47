package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"bucketstream/internal/repository"
	"bucketstream/internal/services"
	"bucketstream/internal/transport/httpdto"
	relay_errors "bucketstream/pkg/errors"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type EventHandler struct {
	ingest *services.IngestService
	query  *services.EventQueryService
}

func NewEventHandler(ingest *services.IngestService, query *services.EventQueryService) *EventHandler {
	return &EventHandler{ingest: ingest, query: query}
}

// Ingest accepts one event notification from the upload hook.
func (h *EventHandler) Ingest(c *gin.Context) {
	raw, err := decodePayload(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.ingest.Ingest(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}

	msg := "Event received and broadcast"
	if res.Duplicate {
		msg = "Event already received"
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.IngestResponse{
		Status:    "success",
		EventID:   res.EventID,
		Message:   msg,
		Duplicate: res.Duplicate,
		Delivered: res.Delivered,
	}))
}

func (h *EventHandler) List(c *gin.Context) {
	var req httpdto.ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid skip or limit", httpdto.CodeInvalidRequest))
		return
	}
	skip, limit := repository.ClampPage(req.Skip, req.Limit)

	events, err := h.query.List(c.Request.Context(), skip, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.EventListResponse{
		Events: httpdto.ToEventResponses(events),
		Skip:   skip,
		Limit:  limit,
	}))
}

func (h *EventHandler) Get(c *gin.Context) {
	eventID := c.Param("event_id")
	e, err := h.query.Get(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("event not found", httpdto.CodeNotFound))
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToEventResponse(e)))
}

// decodePayload reads a single JSON object, keeping numbers as json.Number
// so that integer checks see the literal the caller sent.
func decodePayload(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", relay_errors.ErrSchema, maxErr.Limit)
		}
		return nil, fmt.Errorf("%w: body must be a JSON object", relay_errors.ErrSchema)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", relay_errors.ErrSchema)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after JSON object", relay_errors.ErrSchema)
	}
	return raw, nil
}
