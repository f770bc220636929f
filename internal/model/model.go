// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Session - запись о сессии редактирования в базе
type Session struct {
	UID         uuid.UUID      `json:"uid"`
	SourceKey   string         `json:"-"`
	ContentType string         `json:"content_type,omitempty"`
	Size        int64          `json:"size,omitempty"`
	Variant     editor.Variant `json:"variant"`
	State       StateJSON      `json:"state"`
	CreatedAt   *time.Time     `json:"created_at,omitempty"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
}

// SessionView - то, что отдаем клиенту: состояние плюс посчитанный эффект
type SessionView struct {
	UID         uuid.UUID      `json:"uid"`
	Variant     editor.Variant `json:"variant"`
	HasImage    bool           `json:"has_image"`
	ContentType string         `json:"content_type,omitempty"`
	Size        string         `json:"size,omitempty"`
	Params      editor.Params  `json:"params"`
	Flags       editor.Flags   `json:"flags"`
	Effect      editor.Effect  `json:"effect"`
	Style       editor.Style   `json:"style"`
	CreatedAt   *time.Time     `json:"created_at,omitempty"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
}

// Notification - уведомление о завершении пресета, хранится воркером
type Notification struct {
	ID          int64             `json:"id,omitempty"`
	SessionUID  string            `json:"session_uid"`
	Kind        editor.PresetKind `json:"kind"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
}

//-------------------

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByUUID    = "uid"
	ByCreated = "created"
	ByUpdated = "updated"
	OrderASC  = "ascend"
	OrderDESC = "descend"
)

// UploadData - загруженный файл вместе с заголовками формы
type UploadData struct {
	File        io.Reader
	ContentType string
	Size        int64
}

// ParamsPatch - значения слайдеров; nil значит "не трогать"
type ParamsPatch struct {
	Brightness     *float64 `json:"brightness" validate:"omitnil,gte=50,lte=150"`
	Contrast       *float64 `json:"contrast" validate:"omitnil,gte=50,lte=150"`
	Saturation     *float64 `json:"saturation" validate:"omitnil,gte=50,lte=150"`
	SkinSmoothing  *float64 `json:"skin_smoothing" validate:"omitnil,gte=0,lte=100"`
	BlemishRemoval *float64 `json:"blemish_removal" validate:"omitnil,gte=0,lte=100"`
}

// Values flattens the patch into slider values.
func (p ParamsPatch) Values() map[editor.Param]float64 {
	res := make(map[editor.Param]float64, 5)
	set := func(name editor.Param, v *float64) {
		if v != nil {
			res[name] = *v
		}
	}
	set(editor.Brightness, p.Brightness)
	set(editor.Contrast, p.Contrast)
	set(editor.Saturation, p.Saturation)
	set(editor.SkinSmoothing, p.SkinSmoothing)
	set(editor.BlemishRemoval, p.BlemishRemoval)
	return res
}

// ------------------

var (
	ErrCommon500         error = errors.New("something went wrong. Try again later")         // 500
	ErrIncorrectQuery    error = errors.New("incorrect query parameters")                    // 400
	ErrIncorrectID       error = errors.New("incorrect session UUID")                        // 400
	ErrSessionNotFound   error = errors.New("specified session UUID doesn't exist")          // 404
	ErrNoImage           error = errors.New("no image loaded in this session")               // 404
	ErrEmptySource       error = errors.New("empty/incorrect source image provided")         // 400
	ErrUnsupportedFormat error = errors.New("unsupported image format")                      // 400
	ErrTooLarge          error = errors.New("image exceeds upload size limit")               // 413
	ErrParamOutOfRange   error = errors.New("adjustment value is out of range")              // 400
	ErrUnknownParam      error = errors.New("adjustment is not available in this editor")    // 400
	ErrEmptyPatch        error = errors.New("no adjustment values provided")                 // 400
	ErrPresetUnsupported error = errors.New("preset is not available in this editor")        // 400
	ErrPresetBusy        error = errors.New("another preset is still running, try it later") // 409
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	WEBP = "image/webp"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
	WEBP: ".webp",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
	WEBP: true,
}

// GetRenderFormat - в каком формате отдаем превью; webp imaging писать не умеет
var GetRenderFormat = map[string]imaging.Format{
	JPEG: imaging.JPEG,
	PNG:  imaging.PNG,
	GIF:  imaging.PNG,
	WEBP: imaging.PNG,
}

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.GIF:  GIF,
	imaging.PNG:  PNG,
}

//--------------------

// StateJSON - состояние редактора, лежит в JSONB
type StateJSON editor.State

func (s *StateJSON) Scan(value any) error {
	if value == nil {
		*s = StateJSON(editor.NewState())
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("invalid type for StateJSON")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to StateJSON: %w", err)
	}
	return nil
}

func (s StateJSON) Value() (driver.Value, error) {
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal StateJSON to JSONB: %w", err)
	}

	return res, nil
}
