package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/node-attachments-backend/internal/api/response"
	apperrors "github.com/welldanyogia/node-attachments-backend/internal/errors"
	"github.com/welldanyogia/node-attachments-backend/internal/logger"
	"github.com/welldanyogia/node-attachments-backend/internal/services"
	"github.com/welldanyogia/node-attachments-backend/internal/validator"
)

// UploadFormField is the multipart field carrying the file
const UploadFormField = "file"

var dispositionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "")

// AttachmentHandler handles attachment-related HTTP requests
type AttachmentHandler struct {
	service   services.AttachmentService
	secLogger *logger.SecurityLogger
	logger    *slog.Logger
}

// NewAttachmentHandler creates a new AttachmentHandler
func NewAttachmentHandler(
	service services.AttachmentService,
	secLogger *logger.SecurityLogger,
	log *slog.Logger,
) *AttachmentHandler {
	if log == nil {
		log = slog.Default()
	}
	if secLogger == nil {
		secLogger = logger.NewSecurityLoggerWithHandler(log.Handler())
	}
	return &AttachmentHandler{
		service:   service,
		secLogger: secLogger,
		logger:    log,
	}
}

// CountResponse is the body of the count endpoint
type CountResponse struct {
	NodeID uint  `json:"nodeId"`
	Count  int64 `json:"count"`
}

// Upload handles POST /api/attachments/node/:node_id
func (h *AttachmentHandler) Upload(c echo.Context) error {
	nodeID, err := parseID(c, "node_id")
	if err != nil {
		return response.BadRequest(c, "invalid node ID")
	}

	fileHeader, err := c.FormFile(UploadFormField)
	if err != nil {
		return response.BadRequest(c, "file is required")
	}

	if raw := rawFilename(fileHeader); raw != fileHeader.Filename {
		h.secLogger.PathTraversalAttempt(c.RealIP(), c.Request().URL.Path, raw)
	}

	content, err := readFormFile(fileHeader)
	if err != nil {
		h.logger.Warn("failed to read uploaded file",
			slog.Uint64("node_id", uint64(nodeID)),
			slog.Any("error", err))
		return response.Error(c, apperrors.New(apperrors.ErrUnreadable, err, "Failed to read uploaded file"))
	}

	attachment, err := h.service.Create(c.Request().Context(), nodeID, services.Upload{
		Content:          content,
		OriginalFilename: fileHeader.Filename,
		ContentType:      mediaType(fileHeader.Header.Get(echo.HeaderContentType)),
	})
	if err != nil {
		if apperrors.IsValidation(err) {
			h.secLogger.BlockedFileUpload(c.RealIP(), nodeID, fileHeader.Filename, apperrors.GetErrorCode(err))
		}
		return response.Error(c, err)
	}

	return response.Created(c, attachment)
}

// List handles GET /api/attachments/node/:node_id.
// limit/offset are optional; without them the whole list is returned.
func (h *AttachmentHandler) List(c echo.Context) error {
	nodeID, err := parseID(c, "node_id")
	if err != nil {
		return response.BadRequest(c, "invalid node ID")
	}

	attachments, err := h.service.List(c.Request().Context(), nodeID)
	if err != nil {
		return response.Error(c, err)
	}

	if c.QueryParam("limit") == "" && c.QueryParam("offset") == "" {
		return response.Success(c, attachments)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = validator.ValidatePagination(limit, offset)

	total := len(attachments)
	start := min(offset, total)
	end := min(start+limit, total)

	return response.Paginated(c, attachments[start:end], int64(total), limit, offset)
}

// Count handles GET /api/attachments/node/:node_id/count
func (h *AttachmentHandler) Count(c echo.Context) error {
	nodeID, err := parseID(c, "node_id")
	if err != nil {
		return response.BadRequest(c, "invalid node ID")
	}

	count, err := h.service.Count(c.Request().Context(), nodeID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, CountResponse{NodeID: nodeID, Count: count})
}

// Get handles GET /api/attachments/:id
func (h *AttachmentHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	attachment, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, attachment)
}

// Download handles GET /api/attachments/download/:id
func (h *AttachmentHandler) Download(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	download, err := h.service.ResolveDownload(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}

	if _, err := os.Stat(download.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("attachment record has no file",
				slog.Uint64("attachment_id", uint64(id)),
				slog.String("path", download.Path))
			return response.NotFound(c, "attachment file not found")
		}
		return response.Error(c, apperrors.New(apperrors.ErrStorageFailure, err, "Failed to read attachment file"))
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, download.MimeType)
	header.Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, dispositionEscaper.Replace(download.Filename)))

	return c.File(download.Path)
}

// Delete handles DELETE /api/attachments/:id
func (h *AttachmentHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return response.Error(c, err)
	}

	return response.NoContent(c)
}

// DeleteByNode handles DELETE /api/attachments/node/:node_id
func (h *AttachmentHandler) DeleteByNode(c echo.Context) error {
	nodeID, err := parseID(c, "node_id")
	if err != nil {
		return response.BadRequest(c, "invalid node ID")
	}

	if err := h.service.DeleteByNode(c.Request().Context(), nodeID); err != nil {
		return response.Error(c, err)
	}

	return response.NoContent(c)
}

// parseID reads a positive uint path parameter
func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return uint(id), nil
}

func readFormFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// mediaType drops parameters such as charset from a declared content type
func mediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return strings.TrimSpace(contentType)
}

// rawFilename returns the filename as the client sent it, before the
// multipart reader reduced it to its base name.
func rawFilename(fileHeader *multipart.FileHeader) string {
	_, params, err := mime.ParseMediaType(fileHeader.Header.Get(echo.HeaderContentDisposition))
	if err != nil {
		return fileHeader.Filename
	}
	if raw, ok := params["filename"]; ok {
		return raw
	}
	return fileHeader.Filename
}
