package service

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/model"
	"github.com/gabriel-vasile/mimetype"
)

// сколько байт читаем для определения типа файла
const sniffLen = 3072

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}

	// Валидируем поле типа сортировки
	req.Sort = strings.TrimSpace(strings.ToLower(req.Sort))
	switch {
	case strings.Contains(req.Sort, model.ByUUID):
		req.Sort = "session_uid"
	case strings.Contains(req.Sort, model.ByUpdated):
		req.Sort = "updated_at"
	default:
		req.Sort = "created_at" // по дефолту ставим сортировку по времени создания
	}

	// Валидируем порядок
	req.Order = strings.TrimSpace(strings.ToLower(req.Order))
	switch {
	case strings.Contains(req.Order, model.OrderASC):
		req.Order = "ASC"
	default:
		req.Order = "DESC" // по дефолту ставим сортировку "новое-выше"
	}
}

type sniffedUpload struct {
	body        io.Reader
	contentType string
	size        int64
}

// sniffUpload определяет реальный тип файла по содержимому, заголовку формы не доверяем
func sniffUpload(up *model.UploadData, maxSize int64) (*sniffedUpload, error) {
	if up == nil || up.File == nil || up.Size <= 0 {
		return nil, model.ErrEmptySource
	}
	if maxSize > 0 && up.Size > maxSize {
		return nil, model.ErrTooLarge
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(up.File, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, model.ErrEmptySource
	}
	head = head[:n]

	cType := mimetype.Detect(head).String()
	if !model.InImageTypeMap[cType] {
		return nil, model.ErrUnsupportedFormat
	}

	return &sniffedUpload{
		body:        io.MultiReader(bytes.NewReader(head), up.File),
		contentType: cType,
		size:        up.Size,
	}, nil
}

// validateParamValues - слайдеры на клиенте уже зажаты в диапазон, но API могут звать и мимо них
func validateParamValues(values map[editor.Param]float64) error {
	if len(values) == 0 {
		return model.ErrEmptyPatch
	}
	for p, v := range values {
		r, ok := editor.RangeOf(p)
		if !ok {
			return model.ErrUnknownParam
		}
		if !r.Contains(v) {
			return model.ErrParamOutOfRange
		}
	}
	return nil
}
