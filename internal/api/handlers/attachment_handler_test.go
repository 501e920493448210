package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/node-attachments-backend/internal/api/response"
	apperrors "github.com/welldanyogia/node-attachments-backend/internal/errors"
	"github.com/welldanyogia/node-attachments-backend/internal/logger"
	"github.com/welldanyogia/node-attachments-backend/internal/models"
	"github.com/welldanyogia/node-attachments-backend/internal/services"
	"github.com/welldanyogia/node-attachments-backend/tests/fixtures"
	"github.com/welldanyogia/node-attachments-backend/tests/mocks"
)

// AttachmentHandlerTestSuite is the test suite for AttachmentHandler
type AttachmentHandlerTestSuite struct {
	suite.Suite
	echo        *echo.Echo
	handler     *AttachmentHandler
	mockService *mocks.MockAttachmentService
	secLog      *bytes.Buffer
}

// SetupTest runs before each test
func (s *AttachmentHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.mockService = new(mocks.MockAttachmentService)
	s.secLog = new(bytes.Buffer)
	secLogger := logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(s.secLog, nil))
	s.handler = NewAttachmentHandler(s.mockService, secLogger, slog.New(slog.NewJSONHandler(new(bytes.Buffer), nil)))
}

// TearDownTest runs after each test
func (s *AttachmentHandlerTestSuite) TearDownTest() {
	s.mockService.AssertExpectations(s.T())
}

// TestAttachmentHandlerTestSuite runs the test suite
func TestAttachmentHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AttachmentHandlerTestSuite))
}

// Helper function to create a test context
func (s *AttachmentHandlerTestSuite) createContext(method, path string, params map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	s.setParams(c, params)
	return c, rec
}

// Helper function to create a multipart upload context
func (s *AttachmentHandlerTestSuite) createUploadContext(nodeID, filename, contentType string, content []byte) (echo.Context, *httptest.ResponseRecorder) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, UploadFormField, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attachments/node/"+nodeID, body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	s.setParams(c, map[string]string{"node_id": nodeID})
	return c, rec
}

func (s *AttachmentHandlerTestSuite) setParams(c echo.Context, params map[string]string) {
	names := make([]string, 0, len(params))
	values := make([]string, 0, len(params))
	for k, v := range params {
		names = append(names, k)
		values = append(values, v)
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
}

func (s *AttachmentHandlerTestSuite) decodeError(rec *httptest.ResponseRecorder) response.ErrorResponse {
	var resp response.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ==================== Upload Tests ====================

func (s *AttachmentHandlerTestSuite) TestUpload_Success() {
	// Arrange
	attachment := fixtures.NewAttachmentBuilder().WithNodeID(42).Build()
	s.mockService.On("Create", mock.Anything, uint(42), mock.MatchedBy(func(u services.Upload) bool {
		return u.OriginalFilename == "report.pdf" &&
			u.ContentType == "application/pdf" &&
			bytes.Equal(u.Content, fixtures.PDFContent)
	})).Return(attachment, nil)

	c, rec := s.createUploadContext("42", "report.pdf", "application/pdf", fixtures.PDFContent)

	// Act
	err := s.handler.Upload(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusCreated, rec.Code)

	var resp struct {
		Success bool              `json:"success"`
		Data    models.Attachment `json:"data"`
	}
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Success)
	s.Equal(uint(42), resp.Data.NodeID)
	s.Equal("report.pdf", resp.Data.OriginalFilename)
}

func (s *AttachmentHandlerTestSuite) TestUpload_StripsContentTypeParameters() {
	// Arrange
	s.mockService.On("Create", mock.Anything, uint(7), mock.MatchedBy(func(u services.Upload) bool {
		return u.ContentType == "text/plain"
	})).Return(fixtures.NewAttachmentBuilder().WithNodeID(7).Build(), nil)

	c, rec := s.createUploadContext("7", "notes.txt", "text/plain; charset=utf-8", fixtures.TextContent)

	// Act
	err := s.handler.Upload(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusCreated, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestUpload_MissingFile() {
	// Arrange
	c, rec := s.createContext(http.MethodPost, "/api/attachments/node/42", map[string]string{"node_id": "42"})

	// Act
	err := s.handler.Upload(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("file is required", s.decodeError(rec).Error)
}

func (s *AttachmentHandlerTestSuite) TestUpload_InvalidNodeID() {
	for _, nodeID := range []string{"abc", "0", "-1"} {
		c, rec := s.createUploadContext(nodeID, "report.pdf", "application/pdf", fixtures.PDFContent)

		err := s.handler.Upload(c)

		s.NoError(err)
		s.Equal(http.StatusBadRequest, rec.Code, nodeID)
	}
}

func (s *AttachmentHandlerTestSuite) TestUpload_SignatureMismatchIsBlocked() {
	// Arrange
	s.mockService.On("Create", mock.Anything, uint(42), mock.Anything).
		Return(nil, apperrors.NewAppError(apperrors.ErrSignatureMismatch, "file content does not match declared type: image/gif", apperrors.CodeSignatureMismatch))

	c, rec := s.createUploadContext("42", "fake.gif", "image/gif", []byte("not a real gif"))

	// Act
	err := s.handler.Upload(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(apperrors.CodeSignatureMismatch, s.decodeError(rec).Code)
	s.Contains(s.secLog.String(), "blocked_file_upload")
	s.Contains(s.secLog.String(), "fake.gif")
}

func (s *AttachmentHandlerTestSuite) TestUpload_LimitExceeded() {
	// Arrange
	s.mockService.On("Create", mock.Anything, uint(42), mock.Anything).
		Return(nil, apperrors.New(apperrors.ErrLimitExceeded, nil, "Maximum attachments limit reached (%d)", 5))

	c, rec := s.createUploadContext("42", "sixth.pdf", "application/pdf", fixtures.PDFContent)

	// Act
	err := s.handler.Upload(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusConflict, rec.Code)
	resp := s.decodeError(rec)
	s.Equal(apperrors.CodeLimitExceeded, resp.Code)
	s.Equal("Maximum attachments limit reached (5)", resp.Error)
	s.NotContains(s.secLog.String(), "blocked_file_upload")
}

func (s *AttachmentHandlerTestSuite) TestUpload_TraversalFilenameIsLogged() {
	// Arrange
	s.mockService.On("Create", mock.Anything, uint(42), mock.MatchedBy(func(u services.Upload) bool {
		return u.OriginalFilename == "passwd"
	})).Return(fixtures.NewAttachmentBuilder().Build(), nil)

	c, rec := s.createUploadContext("42", "../../etc/passwd", "text/plain", fixtures.TextContent)

	// Act
	err := s.handler.Upload(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusCreated, rec.Code)
	s.Contains(s.secLog.String(), "path_traversal_attempt")
	s.Contains(s.secLog.String(), "../../etc/passwd")
}

func (s *AttachmentHandlerTestSuite) TestUpload_StorageFailure() {
	// Arrange
	s.mockService.On("Create", mock.Anything, uint(42), mock.Anything).
		Return(nil, apperrors.New(apperrors.ErrStorageFailure, errors.New("disk full"), "Failed to save attachment"))

	c, rec := s.createUploadContext("42", "report.pdf", "application/pdf", fixtures.PDFContent)

	// Act
	err := s.handler.Upload(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal(apperrors.CodeStorageFailure, s.decodeError(rec).Code)
}

// ==================== List Tests ====================

func (s *AttachmentHandlerTestSuite) TestList_Success() {
	// Arrange
	attachments := fixtures.CreateAttachments(42, 3)
	s.mockService.On("List", mock.Anything, uint(42)).Return(attachments, nil)
	c, rec := s.createContext(http.MethodGet, "/api/attachments/node/42", map[string]string{"node_id": "42"})

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)

	var resp struct {
		Success bool                `json:"success"`
		Data    []models.Attachment `json:"data"`
	}
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Len(resp.Data, 3)
	s.Equal("report.pdf", resp.Data[0].OriginalFilename)
}

func (s *AttachmentHandlerTestSuite) TestList_EmptyIsArray() {
	// Arrange
	s.mockService.On("List", mock.Anything, uint(9)).Return([]models.Attachment{}, nil)
	c, rec := s.createContext(http.MethodGet, "/api/attachments/node/9", map[string]string{"node_id": "9"})

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Contains(rec.Body.String(), `"data":[]`)
}

func (s *AttachmentHandlerTestSuite) TestList_Paginated() {
	// Arrange
	attachments := fixtures.CreateAttachments(42, 5)
	s.mockService.On("List", mock.Anything, uint(42)).Return(attachments, nil)
	c, rec := s.createContext(http.MethodGet, "/api/attachments/node/42?limit=2&offset=1", map[string]string{"node_id": "42"})

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Attachment `json:"data"`
		Meta response.Meta       `json:"meta"`
	}
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Len(resp.Data, 2)
	s.Equal(uint(2), resp.Data[0].ID)
	s.Equal(int64(5), resp.Meta.Total)
	s.Equal(2, resp.Meta.Limit)
	s.Equal(1, resp.Meta.Offset)
}

func (s *AttachmentHandlerTestSuite) TestList_OffsetPastEnd() {
	// Arrange
	s.mockService.On("List", mock.Anything, uint(42)).Return(fixtures.CreateAttachments(42, 2), nil)
	c, rec := s.createContext(http.MethodGet, "/api/attachments/node/42?offset=10", map[string]string{"node_id": "42"})

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Contains(rec.Body.String(), `"data":[]`)
	s.Contains(rec.Body.String(), `"total":2`)
}

func (s *AttachmentHandlerTestSuite) TestList_PersistFailure() {
	// Arrange
	s.mockService.On("List", mock.Anything, uint(42)).
		Return(nil, apperrors.New(apperrors.ErrPersistFailure, errors.New("db down"), "Failed to list attachments"))
	c, rec := s.createContext(http.MethodGet, "/api/attachments/node/42", map[string]string{"node_id": "42"})

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal(apperrors.CodePersistFailure, s.decodeError(rec).Code)
}

// ==================== Count Tests ====================

func (s *AttachmentHandlerTestSuite) TestCount_Success() {
	// Arrange
	s.mockService.On("Count", mock.Anything, uint(42)).Return(int64(4), nil)
	c, rec := s.createContext(http.MethodGet, "/api/attachments/node/42/count", map[string]string{"node_id": "42"})

	// Act
	err := s.handler.Count(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"count":4`)
	s.Contains(rec.Body.String(), `"nodeId":42`)
}

// ==================== Get Tests ====================

func (s *AttachmentHandlerTestSuite) TestGet_Success() {
	// Arrange
	s.mockService.On("Get", mock.Anything, uint(1)).Return(fixtures.NewAttachmentBuilder().Build(), nil)
	c, rec := s.createContext(http.MethodGet, "/api/attachments/1", map[string]string{"id": "1"})

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"originalFilename":"report.pdf"`)
}

func (s *AttachmentHandlerTestSuite) TestGet_NotFound() {
	// Arrange
	s.mockService.On("Get", mock.Anything, uint(999)).
		Return(nil, apperrors.New(apperrors.ErrNotFound, nil, "Attachment not found"))
	c, rec := s.createContext(http.MethodGet, "/api/attachments/999", map[string]string{"id": "999"})

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(apperrors.CodeNotFound, s.decodeError(rec).Code)
}

func (s *AttachmentHandlerTestSuite) TestGet_InvalidID() {
	// Arrange
	c, rec := s.createContext(http.MethodGet, "/api/attachments/abc", map[string]string{"id": "abc"})

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("invalid attachment ID", s.decodeError(rec).Error)
}

// ==================== Download Tests ====================

func (s *AttachmentHandlerTestSuite) TestDownload_StreamsFileWithHeaders() {
	// Arrange
	path := filepath.Join(s.T().TempDir(), "3f2504e0-report.pdf")
	s.Require().NoError(os.WriteFile(path, fixtures.PDFContent, 0644))
	s.mockService.On("ResolveDownload", mock.Anything, uint(1)).Return(&services.Download{
		Path:     path,
		MimeType: "application/pdf",
		Filename: `quarterly "final".pdf`,
		Size:     int64(len(fixtures.PDFContent)),
	}, nil)
	c, rec := s.createContext(http.MethodGet, "/api/attachments/download/1", map[string]string{"id": "1"})

	// Act
	err := s.handler.Download(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/pdf", rec.Header().Get(echo.HeaderContentType))
	s.Equal(`attachment; filename="quarterly \"final\".pdf"`, rec.Header().Get(echo.HeaderContentDisposition))
	s.Equal(fixtures.PDFContent, rec.Body.Bytes())
}

func (s *AttachmentHandlerTestSuite) TestDownload_MissingFile() {
	// Arrange
	s.mockService.On("ResolveDownload", mock.Anything, uint(1)).Return(&services.Download{
		Path:     filepath.Join(s.T().TempDir(), "gone.pdf"),
		MimeType: "application/pdf",
		Filename: "gone.pdf",
	}, nil)
	c, rec := s.createContext(http.MethodGet, "/api/attachments/download/1", map[string]string{"id": "1"})

	// Act
	err := s.handler.Download(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Empty(rec.Header().Get(echo.HeaderContentDisposition))
}

func (s *AttachmentHandlerTestSuite) TestDownload_UnknownAttachment() {
	// Arrange
	s.mockService.On("ResolveDownload", mock.Anything, uint(5)).
		Return(nil, apperrors.New(apperrors.ErrNotFound, nil, "Attachment not found"))
	c, rec := s.createContext(http.MethodGet, "/api/attachments/download/5", map[string]string{"id": "5"})

	// Act
	err := s.handler.Download(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

// ==================== Delete Tests ====================

func (s *AttachmentHandlerTestSuite) TestDelete_Success() {
	// Arrange
	s.mockService.On("Delete", mock.Anything, uint(1)).Return(nil)
	c, rec := s.createContext(http.MethodDelete, "/api/attachments/1", map[string]string{"id": "1"})

	// Act
	err := s.handler.Delete(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestDelete_NotFound() {
	// Arrange
	s.mockService.On("Delete", mock.Anything, uint(1)).
		Return(apperrors.New(apperrors.ErrNotFound, nil, "Attachment not found"))
	c, rec := s.createContext(http.MethodDelete, "/api/attachments/1", map[string]string{"id": "1"})

	// Act
	err := s.handler.Delete(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestDelete_StorageFailureKeepsRecord() {
	// Arrange
	s.mockService.On("Delete", mock.Anything, uint(1)).
		Return(apperrors.New(apperrors.ErrStorageFailure, errors.New("permission denied"), "Failed to delete attachment file"))
	c, rec := s.createContext(http.MethodDelete, "/api/attachments/1", map[string]string{"id": "1"})

	// Act
	err := s.handler.Delete(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal(apperrors.CodeStorageFailure, s.decodeError(rec).Code)
}

// ==================== DeleteByNode Tests ====================

func (s *AttachmentHandlerTestSuite) TestDeleteByNode_Success() {
	// Arrange
	s.mockService.On("DeleteByNode", mock.Anything, uint(42)).Return(nil)
	c, rec := s.createContext(http.MethodDelete, "/api/attachments/node/42", map[string]string{"node_id": "42"})

	// Act
	err := s.handler.DeleteByNode(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestDeleteByNode_PartialFailure() {
	// Arrange
	bulkErr := &apperrors.BulkDeleteError{
		NodeID: 42,
		Failures: []apperrors.DeleteFailure{
			{AttachmentID: 2, StoredFilename: "x-invoice.pdf", Reason: apperrors.CodeStorageFailure, Err: apperrors.ErrStorageFailure},
		},
	}
	s.mockService.On("DeleteByNode", mock.Anything, uint(42)).Return(bulkErr)
	c, rec := s.createContext(http.MethodDelete, "/api/attachments/node/42", map[string]string{"node_id": "42"})

	// Act
	err := s.handler.DeleteByNode(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusInternalServerError, rec.Code)

	var resp response.BulkDeleteResponse
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(apperrors.CodeBulkDeleteFailed, resp.Code)
	s.Require().Len(resp.Failures, 1)
	s.Equal(uint(2), resp.Failures[0].AttachmentID)
}
