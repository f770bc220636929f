// Package service provides business-logic for the app
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/imageproc"
	"github.com/UnendingLoop/PhotoRetouch/internal/model"
	"github.com/UnendingLoop/PhotoRetouch/internal/mwlogger"
	"github.com/UnendingLoop/PhotoRetouch/internal/repository"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

// ImageStorage - контракт для работы с хранилищем
type ImageStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// Settings - то, что сервис берет из конфига
type Settings struct {
	Variant         editor.Variant
	MaxUploadSize   int64
	SourceKeyPrefix string
	Clock           editor.Clock
}

const (
	persistTimeout     = 5 * time.Second
	notificationsLimit = 50
	// сколько раз перечитываем сессию, если ее закрыли прямо у нас в руках
	closedRetries = 3
)

type EditorService struct {
	repo         repository.SessionRepo
	storage      ImageStorage
	notifier     editor.Notifier
	registry     *editor.Registry
	clock        editor.Clock
	variant      editor.Variant
	maxUpload    int64
	srcKeyPrefix string
}

func NewEditorService(repo repository.SessionRepo, strg ImageStorage, notifier editor.Notifier, cfg Settings) *EditorService {
	if cfg.Clock == nil {
		cfg.Clock = editor.RealClock{}
	}
	if cfg.Variant == "" {
		cfg.Variant = editor.VariantFull
	}
	return &EditorService{
		repo:         repo,
		storage:      strg,
		notifier:     notifier,
		registry:     editor.NewRegistry(),
		clock:        cfg.Clock,
		variant:      cfg.Variant,
		maxUpload:    cfg.MaxUploadSize,
		srcKeyPrefix: cfg.SourceKeyPrefix,
	}
}

func (c *EditorService) CreateSession(ctx context.Context, up *model.UploadData) (*model.SessionView, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	src, err := sniffUpload(up, c.maxUpload)
	if err != nil {
		return nil, err
	}

	uid := uuid.New()
	key := c.sourceKey(uid, src.contentType)
	// кладем в хранилище сорсник
	if err := c.storage.Put(ctx, key, src.size, src.contentType, src.body); err != nil {
		logger.Error().Err(err).Msg("Failed to save source image in Storage")
		return nil, model.ErrCommon500
	}

	now := time.Now().UTC()
	rec := &model.Session{
		UID:         uid,
		SourceKey:   key,
		ContentType: src.contentType,
		Size:        src.size,
		Variant:     c.variant,
		State:       model.StateJSON(editor.NewState().WithImage(key)),
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}

	// шлем в базу
	if err := c.repo.Create(ctx, rec); err != nil {
		logger.Error().Err(err).Msg("Failed to create session in DB")
		if dErr := c.storage.Delete(ctx, key); dErr != nil {
			logger.Error().Err(dErr).Msg("Failed to clean up source image after DB failure")
		}
		return nil, model.ErrCommon500
	}

	sess, _ := c.registry.LoadOrStore(c.newLive(uid.String(), editor.State(rec.State), rec.Variant))
	logger.Info().Str("session_uid", uid.String()).Str("size", humanize.Bytes(uint64(src.size))).Msg("Session created")

	return buildView(rec, sess), nil
}

func (c *EditorService) Get(ctx context.Context, id string) (*model.SessionView, error) {
	rec, sess, err := c.live(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildView(rec, sess), nil
}

func (c *EditorService) GetList(ctx context.Context, req *model.ListRequest) ([]model.SessionView, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	validateQueryParams(req)
	list, err := c.repo.GetList(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch sessions list from DB")
		return nil, model.ErrCommon500
	}

	res := make([]model.SessionView, 0, len(list))
	for i := range list {
		// живые сессии свежее, чем снапшот в базе
		sess, _ := c.registry.Get(list[i].UID.String())
		res = append(res, *buildView(&list[i], sess))
	}
	return res, nil
}

func (c *EditorService) SetParams(ctx context.Context, id string, patch model.ParamsPatch) (*model.SessionView, error) {
	values := patch.Values()
	if err := validateParamValues(values); err != nil {
		return nil, err
	}

	rec, sess, ok, err := c.apply(ctx, id, func(s *editor.Session) bool { return s.SetParams(values) })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrUnknownParam
	}
	return buildView(rec, sess), nil
}

func (c *EditorService) Reset(ctx context.Context, id string) (*model.SessionView, error) {
	rec, sess, _, err := c.apply(ctx, id, (*editor.Session).Reset)
	if err != nil {
		return nil, err
	}
	return buildView(rec, sess), nil
}

func (c *EditorService) AutoEnhance(ctx context.Context, id string) (*model.SessionView, error) {
	rec, sess, ok, err := c.apply(ctx, id, (*editor.Session).AutoEnhance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrPresetBusy
	}
	return buildView(rec, sess), nil
}

func (c *EditorService) FaceRetouch(ctx context.Context, id string) (*model.SessionView, error) {
	rec, sess, ok, err := c.apply(ctx, id, (*editor.Session).FaceRetouch)
	if err != nil {
		return nil, err
	}
	if !sess.Variant().SupportsPreset(editor.PresetFaceRetouch) {
		return nil, model.ErrPresetUnsupported
	}
	if !ok {
		return nil, model.ErrPresetBusy
	}
	return buildView(rec, sess), nil
}

// ReplaceImage - загрузка нового фото в существующую сессию, слайдеры не трогаем
func (c *EditorService) ReplaceImage(ctx context.Context, id string, up *model.UploadData) (*model.SessionView, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	src, err := sniffUpload(up, c.maxUpload)
	if err != nil {
		return nil, err
	}

	rec, sess, err := c.live(ctx, id)
	if err != nil {
		return nil, err
	}

	oldKey := rec.SourceKey
	key := c.sourceKey(rec.UID, src.contentType)
	if err := c.storage.Put(ctx, key, src.size, src.contentType, src.body); err != nil {
		logger.Error().Err(err).Msg("Failed to save source image in Storage")
		return nil, model.ErrCommon500
	}

	if err := c.repo.UpdateSource(ctx, id, key, src.contentType, src.size); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to update source of session %q in DB", id))
		return nil, model.ErrCommon500
	}
	rec.SourceKey, rec.ContentType, rec.Size = key, src.contentType, src.size
	if !sess.SetImage(key) {
		if _, sess, _, err = c.apply(ctx, id, func(s *editor.Session) bool { return s.SetImage(key) }); err != nil {
			return nil, err
		}
	}

	c.dropObject(ctx, oldKey)
	return buildView(rec, sess), nil
}

// ClearImage - "загрузить другое фото": убираем картинку и сбрасываем слайдеры
func (c *EditorService) ClearImage(ctx context.Context, id string) (*model.SessionView, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	rec, sess, err := c.live(ctx, id)
	if err != nil {
		return nil, err
	}

	oldKey := rec.SourceKey
	if err := c.repo.UpdateSource(ctx, id, "", "", 0); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to clear source of session %q in DB", id))
		return nil, model.ErrCommon500
	}
	rec.SourceKey, rec.ContentType, rec.Size = "", "", 0
	if !sess.ClearImage() {
		if _, sess, _, err = c.apply(ctx, id, (*editor.Session).ClearImage); err != nil {
			return nil, err
		}
	}

	c.dropObject(ctx, oldKey)
	return buildView(rec, sess), nil
}

func (c *EditorService) LoadSource(ctx context.Context, id string) (io.ReadCloser, string, error) {
	_, sess, err := c.live(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return c.loadImage(ctx, sess)
}

// loadImage достает из хранилища фото, на которое указывает состояние сессии
func (c *EditorService) loadImage(ctx context.Context, sess *editor.Session) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	st := sess.Snapshot()
	if !st.HasImage() {
		return nil, "", model.ErrNoImage
	}

	data, cType, err := c.storage.Get(ctx, *st.Image)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch source image of session %q from Storage", sess.ID()))
		return nil, "", model.ErrCommon500
	}
	return data, cType, nil
}

// Preview renders the current effect onto the stored photo.
func (c *EditorService) Preview(ctx context.Context, id string, maxSide int) (io.Reader, int64, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	_, sess, err := c.live(ctx, id)
	if err != nil {
		return nil, 0, "", err
	}

	src, cType, err := c.loadImage(ctx, sess)
	if err != nil {
		return nil, 0, "", err
	}
	defer closeFileFlow(ctx, src)

	// тип берем у объекта, который реально прочитали
	format, ok := model.GetRenderFormat[cType]
	if !ok {
		format = imaging.PNG
	}

	out, size, err := imageproc.Preview(src, sess.Effect(), maxSide, format)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to render preview of session %q", id))
		return nil, 0, "", model.ErrCommon500
	}
	return out, size, model.GetCType[format], nil
}

func (c *EditorService) Delete(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}

	// читаем из базы
	rec, err := c.repo.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSessionNotFound):
			return model.ErrSessionNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch session %q from DB", id))
			return model.ErrCommon500
		}
	}

	c.registry.Remove(id)

	// удаляем из базы
	if err := c.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return model.ErrSessionNotFound
		}
		logger.Error().Err(err).Msg("Failed to delete session from DB")
		return model.ErrCommon500
	}

	// удаляем из хранилища сорсник (если он есть)
	c.dropObject(ctx, rec.SourceKey)
	return nil
}

// Subscribe attaches to the live event stream of a session.
func (c *EditorService) Subscribe(ctx context.Context, id string) (<-chan editor.Event, func(), error) {
	for range closedRetries {
		_, sess, err := c.live(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		events, cancel := sess.Subscribe()
		if !sess.Closed() {
			return events, cancel, nil
		}
		cancel()
	}
	return nil, nil, model.ErrCommon500
}

func (c *EditorService) ListNotifications(ctx context.Context, id string) ([]model.Notification, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.repo.ListNotifications(ctx, id, notificationsLimit)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch notifications of session %q from DB", id))
		return nil, model.ErrCommon500
	}
	return res, nil
}

// SaveNotification - используется воркером при чтении очереди
func (c *EditorService) SaveNotification(ctx context.Context, n *model.Notification) error {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := uuid.Validate(n.SessionUID); err != nil {
		return model.ErrIncorrectID
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if err := c.repo.SaveNotification(ctx, n); err != nil {
		logger.Error().Err(err).Msg("Failed to save notification in DB")
		return model.ErrCommon500
	}
	return nil
}

// ReviveOrphans finishes presets that were running when a previous process died.
func (c *EditorService) ReviveOrphans(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	orphans, err := c.repo.FetchOrphans(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphans from DB")
		return
	}

	for _, id := range orphans {
		if sess, ok := c.registry.Get(id); ok && sess.Pending() > 0 {
			continue // таймер еще жив в этом процессе
		}
		rec, sess, err := c.live(ctx, id)
		if err != nil {
			logger.Error().Err(err).Str("session_uid", id).Msg("Failed to revive orphan session")
			continue
		}
		// пресет в памяти уже завершен, но до базы это не доехало
		if editor.State(rec.State).Flags.Busy() && sess.Pending() == 0 && !sess.Snapshot().Flags.Busy() {
			sess.Persist()
		}
	}
}

// EvictIdle drops live sessions untouched for ttl; their state stays in the DB.
func (c *EditorService) EvictIdle(ttl time.Duration) int {
	return len(c.registry.EvictIdle(ttl))
}

// apply runs op on the live session. When op is refused because the session was closed
// under us (idle eviction, deletion), the session is loaded again and op retried; the
// returned bool is op's own answer otherwise.
func (c *EditorService) apply(ctx context.Context, id string, op func(*editor.Session) bool) (*model.Session, *editor.Session, bool, error) {
	for range closedRetries {
		rec, sess, err := c.live(ctx, id)
		if err != nil {
			return nil, nil, false, err
		}
		if op(sess) {
			return rec, sess, true, nil
		}
		if !sess.Closed() {
			return rec, sess, false, nil
		}
	}
	logger := mwlogger.LoggerFromContext(ctx)
	logger.Error().Str("session_uid", id).Msg("Session kept closing under the request")
	return nil, nil, false, model.ErrCommon500
}

// live returns the DB record and the in-memory controller of a session, loading the
// controller from the stored state when this process does not hold it yet.
func (c *EditorService) live(ctx context.Context, id string) (*model.Session, *editor.Session, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := uuid.Validate(id); err != nil {
		return nil, nil, model.ErrIncorrectID
	}

	rec, err := c.repo.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSessionNotFound):
			return nil, nil, model.ErrSessionNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch session %q from DB", id))
			return nil, nil, model.ErrCommon500
		}
	}

	if sess, ok := c.registry.Get(id); ok {
		return rec, sess, nil
	}

	sess, loaded := c.registry.LoadOrStore(c.newLive(id, editor.State(rec.State), rec.Variant))
	if !loaded {
		if done := sess.FinishInterrupted(); len(done) > 0 {
			logger.Warn().Str("session_uid", id).Interface("presets", done).Msg("Finished presets interrupted by restart")
		}
	}
	return rec, sess, nil
}

func (c *EditorService) newLive(id string, st editor.State, variant editor.Variant) *editor.Session {
	if variant == "" {
		variant = c.variant
	}
	return editor.NewSession(id, st,
		editor.WithClock(c.clock),
		editor.WithNotifier(c.notifier),
		editor.WithVariant(variant),
		editor.WithChangeHook(c.persist(id)),
	)
}

// persist пишет каждое изменение состояния в базу; ошибки только логируем - сессия в памяти главнее
func (c *EditorService) persist(id string) func(editor.State) {
	return func(st editor.State) {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.repo.SaveState(ctx, id, st); err != nil {
			zlog.Logger.Error().Err(err).Str("session_uid", id).Msg("Failed to persist session state")
		}
	}
}

func (c *EditorService) sourceKey(uid uuid.UUID, cType string) string {
	// у каждой загрузки свой ключ, чтобы замена фото не затирала объект, который еще читают
	return c.srcKeyPrefix + uid.String() + "/" + uuid.NewString() + model.GetImageFileExt[cType]
}

func (c *EditorService) dropObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := c.storage.Delete(ctx, key); err != nil {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Error().Err(err).Str("key", key).Msg("Failed to delete source image from Storage")
	}
}

func buildView(rec *model.Session, sess *editor.Session) *model.SessionView {
	st := editor.State(rec.State)
	variant := rec.Variant
	if sess != nil {
		st = sess.Snapshot()
		variant = sess.Variant()
	}
	eff := editor.ComputeEffect(st.Params)

	v := &model.SessionView{
		UID:         rec.UID,
		Variant:     variant,
		HasImage:    st.HasImage(),
		ContentType: rec.ContentType,
		Params:      st.Params,
		Flags:       st.Flags,
		Effect:      eff,
		Style:       eff.Style(variant),
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.Size > 0 {
		v.Size = humanize.Bytes(uint64(rec.Size))
	}
	return v
}

func closeFileFlow(ctx context.Context, res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Error().Err(err).Msg("Service failed to close fileflow")
	}
}
