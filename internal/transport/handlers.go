// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"log"
	"strconv"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/ginext"
)

// превью больше этого не рендерим
const maxPreviewSide = 4096

type SessionHandler struct {
	service  SessionService
	validate *validator.Validate
}

type SessionService interface {
	CreateSession(ctx context.Context, up *model.UploadData) (*model.SessionView, error)
	Get(ctx context.Context, id string) (*model.SessionView, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.SessionView, error)
	SetParams(ctx context.Context, id string, patch model.ParamsPatch) (*model.SessionView, error)
	Reset(ctx context.Context, id string) (*model.SessionView, error)
	AutoEnhance(ctx context.Context, id string) (*model.SessionView, error)
	FaceRetouch(ctx context.Context, id string) (*model.SessionView, error)
	ReplaceImage(ctx context.Context, id string, up *model.UploadData) (*model.SessionView, error)
	ClearImage(ctx context.Context, id string) (*model.SessionView, error)
	LoadSource(ctx context.Context, id string) (io.ReadCloser, string, error) // прям скачать оригинал
	Preview(ctx context.Context, id string, maxSide int) (io.Reader, int64, string, error)
	ListNotifications(ctx context.Context, id string) ([]model.Notification, error)
	Subscribe(ctx context.Context, id string) (<-chan editor.Event, func(), error)
	Delete(ctx context.Context, id string) error // удалить как в базе, так и в minio
}

func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{
		service:  svc,
		validate: validator.New(),
	}
}

func (h SessionHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h SessionHandler) Upload(ctx *ginext.Context) {
	up, closer, ok := readUpload(ctx)
	if !ok {
		return
	}
	defer closeFileFlow(closer)

	// передаем в сервис
	res, err := h.service.CreateSession(ctx.Request.Context(), up)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h SessionHandler) GetAllSessions(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse query-params"})
		return
	}

	res, err := h.service.GetList(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SessionHandler) GetSession(ctx *ginext.Context) {
	h.respondView(ctx, 200, h.service.Get)
}

func (h SessionHandler) SetParams(ctx *ginext.Context) {
	id := ctx.Param("id")

	var patch model.ParamsPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse adjustment values"})
		return
	}
	if err := h.validate.Struct(patch); err != nil {
		ctx.JSON(400, map[string]string{"error": model.ErrParamOutOfRange.Error()})
		return
	}

	res, err := h.service.SetParams(ctx.Request.Context(), id, patch)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SessionHandler) Reset(ctx *ginext.Context) {
	h.respondView(ctx, 200, h.service.Reset)
}

// AutoEnhance отвечает сразу, значения прилетят через 1.5с
func (h SessionHandler) AutoEnhance(ctx *ginext.Context) {
	h.respondView(ctx, 202, h.service.AutoEnhance)
}

func (h SessionHandler) FaceRetouch(ctx *ginext.Context) {
	h.respondView(ctx, 202, h.service.FaceRetouch)
}

func (h SessionHandler) ClearImage(ctx *ginext.Context) {
	h.respondView(ctx, 200, h.service.ClearImage)
}

func (h SessionHandler) ReplaceImage(ctx *ginext.Context) {
	id := ctx.Param("id")

	up, closer, ok := readUpload(ctx)
	if !ok {
		return
	}
	defer closeFileFlow(closer)

	res, err := h.service.ReplaceImage(ctx.Request.Context(), id, up)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SessionHandler) LoadSource(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadSource(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		log.Printf("Failed to write response at byte %d for session id %q: %v", n, id, err)
	}
}

func (h SessionHandler) Preview(ctx *ginext.Context) {
	id := ctx.Param("id")

	size := 0
	if raw := ctx.Query("size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 || v > maxPreviewSide {
			ctx.JSON(400, map[string]string{"error": model.ErrIncorrectQuery.Error()})
			return
		}
		size = v
	}

	res, length, cType, err := h.service.Preview(ctx.Request.Context(), id, size)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.DataFromReader(200, length, cType, res, nil)
}

func (h SessionHandler) Notifications(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, err := h.service.ListNotifications(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SessionHandler) Delete(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := h.service.Delete(ctx.Request.Context(), id); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}

func (h SessionHandler) respondView(ctx *ginext.Context, okCode int, op func(context.Context, string) (*model.SessionView, error)) {
	id := ctx.Param("id")

	res, err := op(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(okCode, res)
}

// readUpload достает файл "image" из формы; при ошибке ответ уже отправлен
func readUpload(ctx *ginext.Context) (*model.UploadData, io.ReadCloser, bool) {
	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return nil, nil, false
	}

	return &model.UploadData{
		File:        imageFile,
		ContentType: imageHeader.Header.Get("Content-Type"),
		Size:        imageHeader.Size,
	}, imageFile, true
}
