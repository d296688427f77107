package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/reconcile"
)

// Processor runs one invoice through extraction and reconciliation.
type Processor interface {
	Process(ctx context.Context, req reconcile.Request) (reconcile.Outcome, error)
}

// InvoiceServer implements InvoiceServiceServer and backs the HTTP handlers.
type InvoiceServer struct {
	proc          Processor
	maxImageBytes int
	logger        *slog.Logger
}

func NewInvoiceServer(proc Processor, maxImageMB int, logger *slog.Logger) *InvoiceServer {
	if logger == nil {
		logger = slog.Default()
	}
	if maxImageMB <= 0 {
		maxImageMB = constants.MaxImageMBDefault
	}
	return &InvoiceServer{proc: proc, maxImageBytes: maxImageMB << 20, logger: logger}
}

// Normalize handles the gRPC call. An x-request-id metadata entry is honored.
func (s *InvoiceServer) Normalize(ctx context.Context, in *NormalizeRequest) (*NormalizeResponse, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("x-request-id"); len(v) > 0 && v[0] != "" {
			ctx = common.WithRequestID(ctx, v[0])
		}
	}
	if in == nil {
		in = &NormalizeRequest{}
	}
	resp, err := s.normalize(ctx, *in)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return resp, nil
}

func (s *InvoiceServer) normalize(ctx context.Context, in NormalizeRequest) (*NormalizeResponse, error) {
	ctx, rid := common.EnsureRequestID(ctx)

	req, err := s.imageRequest(in)
	if err != nil {
		s.logger.Warn("server.normalize.bad_request", "req_id", rid, "error", err)
		return nil, err
	}

	out, err := s.proc.Process(ctx, req)
	if err != nil {
		s.logger.Error("server.normalize.failed", "req_id", rid, "error", err)
		return nil, err
	}
	return &NormalizeResponse{
		RequestID: rid,
		Outcome:   out.Label,
		State:     string(out.State),
		Retried:   out.Retried,
		Invoice:   out.Invoice,
	}, nil
}

// imageRequest validates the image payload and settles its MIME type.
func (s *InvoiceServer) imageRequest(in NormalizeRequest) (reconcile.Request, error) {
	b64 := strings.TrimSpace(in.ImageBase64)
	mimeType := strings.TrimSpace(in.MimeType)
	if rest, ok := strings.CutPrefix(b64, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return reconcile.Request{}, common.InvalidInput("malformed data URL")
		}
		if mimeType == "" {
			mimeType, _, _ = strings.Cut(header, ";")
		}
		b64 = payload
	}
	if b64 == "" {
		return reconcile.Request{}, common.MissingInput("imageBase64 is required")
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return reconcile.Request{}, common.InvalidInput("imageBase64 is not valid base64")
	}
	if len(raw) == 0 {
		return reconcile.Request{}, common.MissingInput("image is empty")
	}
	if len(raw) > s.maxImageBytes {
		return reconcile.Request{}, common.InvalidInput(fmt.Sprintf("image exceeds %d MB", s.maxImageBytes>>20))
	}

	if mimeType == "" {
		mimeType = detectMimeType(in.Filename, raw)
	}
	hint := ""
	if in.Filename != "" {
		hint = filepath.Base(in.Filename)
	}
	return reconcile.Request{
		ImageBase64:  b64,
		MimeType:     mimeType,
		FilenameHint: hint,
	}, nil
}

func detectMimeType(filename string, raw []byte) string {
	if filename != "" {
		if mt, ok := constants.ImageMimeType(filepath.Ext(filename)); ok {
			return mt
		}
	}
	if mt := http.DetectContentType(raw); strings.HasPrefix(mt, "image/") {
		return mt
	}
	return "image/jpeg"
}
