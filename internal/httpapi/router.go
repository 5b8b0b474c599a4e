// Package httpapi exposes the transcription service over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/brahmarsh1/shiksha/internal/transcribe"
	"github.com/brahmarsh1/shiksha/internal/version"
)

const (
	// UploadField is the multipart field carrying the audio.
	UploadField = "file"
	// LanguageQuery is the optional language hint parameter.
	LanguageQuery = "lang"
)

// Transcriber is satisfied by *transcribe.Service.
type Transcriber interface {
	Transcribe(ctx context.Context, up transcribe.Upload, languageHint string) (transcribe.Result, error)
}

type Options struct {
	CORSOrigin     string
	MaxUploadBytes int64
	ModelName      string
	Logger         *zap.Logger
}

type transcribeResponse struct {
	Text string `json:"text"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Version string `json:"version"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	svc       Transcriber
	modelName string
	logger    *zap.Logger
}

// NewRouter wires POST /transcribe and GET /health behind request id,
// logging, recovery, CORS and body size middleware.
func NewRouter(svc Transcriber, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(
		RequestID(),
		RequestLogger(logger),
		Recovery(logger),
		CORS(CORSConfig{
			AllowedOrigins:   []string{opts.CORSOrigin},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}),
		BodySizeLimit(opts.MaxUploadBytes),
	)

	h := &handler{svc: svc, modelName: opts.ModelName, logger: logger}
	r.GET("/health", h.health)
	r.POST("/transcribe", h.transcribe)
	return r
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Model:   h.modelName,
		Version: version.Resolve(),
	})
}

func (h *handler) transcribe(c *gin.Context) {
	fh, err := c.FormFile(UploadField)
	if err != nil {
		writeUploadError(c, err)
		return
	}

	up, err := readUpload(fh)
	if err != nil {
		writeUploadError(c, err)
		return
	}

	result, err := h.svc.Transcribe(c.Request.Context(), up, c.Query(LanguageQuery))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, transcribeResponse{Text: result.Text})
}

func readUpload(fh *multipart.FileHeader) (transcribe.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return transcribe.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return transcribe.Upload{}, err
	}
	return transcribe.Upload{Filename: fh.Filename, Data: data}, nil
}

func writeUploadError(c *gin.Context, err error) {
	_ = c.Error(err)

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large"})
	case errors.Is(err, http.ErrMissingFile):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "missing audio upload in field \"" + UploadField + "\""})
	default:
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid multipart upload"})
	}
}

func (h *handler) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, transcribe.ErrEmptyUpload):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case transcribe.IsTranscriptionFailure(err):
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("transcribe request failed", zap.String(requestIDKey, c.GetString(requestIDKey)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
