package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/export"
	"github.com/joseph-ayodele/invoice-normalizer/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HTTPDeps are the collaborators of the HTTP surface. Metrics may be nil.
type HTTPDeps struct {
	Invoices *InvoiceServer
	Export   *export.Service
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// NewHTTPHandler builds the gin engine for the REST surface.
func NewHTTPHandler(d HTTPDeps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Export == nil {
		d.Export = export.NewService(d.Logger)
	}
	h := &httpHandlers{HTTPDeps: d}

	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggerMiddleware(d.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "SERVING"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	v1 := r.Group("/v1/invoices")
	v1.POST("/normalize", h.normalize)
	v1.POST("/normalize.xlsx", h.normalizeXLSX)
	return r
}

// RequestIDMiddleware reuses the caller's X-Request-ID or mints one, and puts it on
// the request context and the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(string(common.ContextKeyRequestID), reqID)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), reqID))
		c.Header(requestIDHeader, reqID)
		c.Next()
	}
}

func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http.request",
			"req_id", common.RequestIDFromContext(c.Request.Context()),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

type httpHandlers struct {
	HTTPDeps
}

func (h *httpHandlers) normalize(c *gin.Context) {
	in, err := h.bindRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp, err := h.Invoices.normalize(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *httpHandlers) normalizeXLSX(c *gin.Context) {
	in, err := h.bindRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp, err := h.Invoices.normalize(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	xlsx, err := h.Export.InvoiceXLSX(c.Request.Context(), resp.Invoice)
	if err != nil {
		h.fail(c, fmt.Errorf("export: %w", err))
		return
	}
	name := "invoice.xlsx"
	if resp.Invoice.VendorKey != "" {
		name = strings.ToLower(resp.Invoice.VendorKey) + ".xlsx"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("X-Invoice-Outcome", resp.Outcome)
	c.Data(http.StatusOK, xlsxContentType, xlsx)
}

// bindRequest accepts either a JSON NormalizeRequest or a multipart upload with an
// "image" file part.
func (h *httpHandlers) bindRequest(c *gin.Context) (NormalizeRequest, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("image")
		if err != nil {
			return NormalizeRequest{}, common.MissingInput("multipart field \"image\" is required")
		}
		if fh.Size > int64(h.Invoices.maxImageBytes) {
			return NormalizeRequest{}, common.InvalidInput(fmt.Sprintf("image exceeds %d MB", h.Invoices.maxImageBytes>>20))
		}
		f, err := fh.Open()
		if err != nil {
			return NormalizeRequest{}, fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		raw, err := io.ReadAll(io.LimitReader(f, int64(h.Invoices.maxImageBytes)+1))
		if err != nil {
			return NormalizeRequest{}, fmt.Errorf("read upload: %w", err)
		}
		mimeType := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = ""
		}
		return NormalizeRequest{
			ImageBase64: base64.StdEncoding.EncodeToString(raw),
			MimeType:    mimeType,
			Filename:    filepath.Base(fh.Filename),
		}, nil
	}

	var in NormalizeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		return NormalizeRequest{}, common.InvalidInput("request body must be a JSON object: " + err.Error())
	}
	return in, nil
}

func (h *httpHandlers) fail(c *gin.Context, err error) {
	code := "INTERNAL"
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	status := common.HTTPStatus(err)
	h.Logger.Error("http.request.error",
		"req_id", common.RequestIDFromContext(c.Request.Context()),
		"status", status,
		"code", code,
		"error", err,
	)
	c.AbortWithStatusJSON(status, gin.H{
		"error":     true,
		"code":      code,
		"message":   err.Error(),
		"requestId": common.RequestIDFromContext(c.Request.Context()),
	})
}
