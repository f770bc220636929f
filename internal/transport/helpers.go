package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/PhotoRetouch/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrSessionNotFound),
		errors.Is(err, model.ErrNoImage):
		return 404
	case errors.Is(err, model.ErrPresetBusy):
		return 409
	case errors.Is(err, model.ErrTooLarge):
		return 413
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, model.ErrParamOutOfRange),
		errors.Is(err, model.ErrUnknownParam),
		errors.Is(err, model.ErrEmptyPatch),
		errors.Is(err, model.ErrPresetUnsupported):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
