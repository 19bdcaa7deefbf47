package handler

import (
	"net/http"
	"strings"
	"time"

	"bucketstream/internal/services"
	"bucketstream/internal/storage"
	"bucketstream/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

const defaultPresignSeconds = 3600

type StorageHandler struct {
	service    *services.StorageService
	processing *services.ProcessingService
}

func NewStorageHandler(service *services.StorageService, processing *services.ProcessingService) *StorageHandler {
	return &StorageHandler{service: service, processing: processing}
}

func (h *StorageHandler) Download(c *gin.Context) {
	var req httpdto.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("s3_key is required", httpdto.CodeInvalidRequest))
		return
	}

	res, err := h.service.Download(c.Request.Context(), req.S3Key, req.StoreInDB)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.DownloadResponse{
		Status:         "success",
		Key:            res.Key,
		Size:           res.Size,
		ContentType:    res.ContentType,
		StoredInDB:     res.StoredInDB,
		ContentPreview: res.ContentPreview,
		ContentHash:    res.ContentHash,
	}))
}

func (h *StorageHandler) PresignedURL(c *gin.Context) {
	req := httpdto.PresignRequest{Expiration: defaultPresignSeconds}
	if err := c.ShouldBindQuery(&req); err != nil || req.Expiration <= 0 {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("expiration must be a positive number of seconds", httpdto.CodeInvalidRequest))
		return
	}

	res, err := h.service.PresignedURL(c.Request.Context(), trimKey(c.Param("key")), presignTTL(req.Expiration))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignResponse{
		Status:    "success",
		S3Key:     res.Key,
		URL:       res.URL,
		ExpiresIn: int(res.ExpiresIn / time.Second),
	}))
}

func (h *StorageHandler) ListFiles(c *gin.Context) {
	var req httpdto.ListFilesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid offset or limit", httpdto.CodeInvalidRequest))
		return
	}
	files, err := h.service.ListFiles(c.Request.Context(), req.Offset, req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]httpdto.FileContentResponse, len(files))
	for i, f := range files {
		out[i] = httpdto.ToFileContentResponse(f)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FileListResponse{Files: out, Count: len(out)}))
}

// Process fetches and records the object behind a stored event on demand.
func (h *StorageHandler) Process(c *gin.Context) {
	res, err := h.processing.Process(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ProcessResponse{
		Status:      "success",
		EventID:     res.EventID,
		Key:         res.Key,
		Size:        res.Size,
		ContentHash: res.ContentHash,
	}))
}

func (h *StorageHandler) GetFile(c *gin.Context) {
	f, err := h.service.GetFile(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToFileContentResponse(f)))
}

// presignTTL converts seconds to a duration, capping before the multiplication
// so huge values clamp to the maximum instead of overflowing.
func presignTTL(seconds int64) time.Duration {
	if maxSeconds := int64(storage.MaxPresignTTL / time.Second); seconds > maxSeconds {
		seconds = maxSeconds
	}
	return time.Duration(seconds) * time.Second
}

// trimKey drops the leading slash gin keeps on catch-all parameters.
func trimKey(key string) string {
	return strings.TrimPrefix(key, "/")
}
