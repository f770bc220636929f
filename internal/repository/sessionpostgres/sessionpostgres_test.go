package sessionpostgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"
)

func newRepoWithMock(t *testing.T) (PostgresRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pg := &dbpg.DB{Master: db}

	return PostgresRepo{DB: pg}, mock
}

// CREATE - SUCCESS
func TestPostgresRepo_Create_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	ctime := time.Now()
	s := &model.Session{
		UID:         uuid.New(),
		SourceKey:   "src/x.png",
		ContentType: model.PNG,
		Size:        42,
		Variant:     editor.VariantFull,
		State:       model.StateJSON(editor.NewState().WithImage("src/x.png")),
		CreatedAt:   &ctime,
	}

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(s.UID, s.SourceKey, s.ContentType, s.Size, s.Variant, sqlmock.AnyArg(), s.CreatedAt, s.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

// GET - SUCCESS
func TestPostgresRepo_Get_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	id := uuid.New().String()
	state := []byte(`{"image":"src/a.jpg","params":{"brightness":110,"contrast":115,"saturation":120,"skin_smoothing":0,"blemish_removal":0},"flags":{"auto_enhance_running":false,"retouch_running":false}}`)

	rows := sqlmock.NewRows([]string{
		"session_uid", "source_key", "content_type", "size", "variant", "state", "created_at", "updated_at",
	}).AddRow(id, "src/a.jpg", model.JPEG, 100, "full", state, time.Now(), time.Now())

	mock.ExpectQuery(`SELECT session_uid, source_key`).
		WithArgs(id).
		WillReturnRows(rows)

	s, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, s.UID.String())
	require.Equal(t, editor.VariantFull, s.Variant)
	require.Equal(t, 115.0, s.State.Params.Contrast)
	require.NotNil(t, s.State.Image)
	require.Equal(t, "src/a.jpg", *s.State.Image)
}

// GET - NOT FOUND
func TestPostgresRepo_Get_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT session_uid`).
		WillReturnRows(sqlmock.NewRows([]string{"session_uid"}))

	_, err := repo.Get(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrSessionNotFound)
}

// GETLIST - SUCCESS
func TestPostgresRepo_GetList_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	req := &model.ListRequest{
		Page:  2,
		Limit: 2,
		Sort:  "created_at",
		Order: "DESC",
	}

	rows := sqlmock.NewRows([]string{
		"session_uid", "content_type", "size", "variant", "state", "created_at", "updated_at",
	}).
		AddRow(uuid.New(), model.PNG, 10, "full", []byte(`{"params":{"brightness":100}}`), time.Now(), time.Now()).
		AddRow(uuid.New(), model.JPEG, 20, "basic", nil, time.Now(), time.Now())

	mock.ExpectQuery(`SELECT session_uid, content_type`).
		WithArgs(2, 2).
		WillReturnRows(rows)

	res, err := repo.GetList(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, editor.DefaultParams(), res[1].State.Params)
}

// SAVESTATE - NOT FOUND
func TestPostgresRepo_SaveState(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New().String()

	mock.ExpectExec(`UPDATE sessions SET state`).
		WithArgs(sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SaveState(context.Background(), id, editor.NewState()))

	mock.ExpectExec(`UPDATE sessions SET state`).
		WithArgs(sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.SaveState(context.Background(), id, editor.NewState()), model.ErrSessionNotFound)
}

// DELETE - SUCCESS
func TestPostgresRepo_Delete_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM notifications`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM sessions`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}

// DELETE - NOT FOUND
func TestPostgresRepo_Delete_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM notifications`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM sessions`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	require.ErrorIs(t, repo.Delete(context.Background(), id), model.ErrSessionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// FETCHORPHANS - SUCCESS
func TestPostgresRepo_FetchOrphans(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT session_uid`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"session_uid"}).AddRow("id1").AddRow("id2"))

	res, err := repo.FetchOrphans(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, []string{"id1", "id2"}, res)
}

// SAVENOTIFICATION - DUPLICATE IS OK
func TestPostgresRepo_SaveNotification(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	n := &model.Notification{
		SessionUID: uuid.New().String(),
		Kind:       editor.PresetAutoEnhance,
		Title:      "t",
		CreatedAt:  time.Now(),
	}

	mock.ExpectQuery(`INSERT INTO notifications`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	require.NoError(t, repo.SaveNotification(context.Background(), n))
	require.Equal(t, int64(7), n.ID)

	mock.ExpectQuery(`INSERT INTO notifications`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	require.NoError(t, repo.SaveNotification(context.Background(), n))

	mock.ExpectQuery(`INSERT INTO notifications`).
		WillReturnError(errors.New("db down"))
	require.Error(t, repo.SaveNotification(context.Background(), n))
}

// LISTNOTIFICATIONS - SUCCESS
func TestPostgresRepo_ListNotifications(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New().String()

	rows := sqlmock.NewRows([]string{"id", "session_uid", "kind", "title", "description", "created_at"}).
		AddRow(2, id, "face_retouch", "b", "d2", time.Now()).
		AddRow(1, id, "auto_enhance", "a", "d1", time.Now().Add(-time.Minute))

	mock.ExpectQuery(`SELECT id, session_uid`).
		WithArgs(id, 50).
		WillReturnRows(rows)

	res, err := repo.ListNotifications(context.Background(), id, 50)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, editor.PresetFaceRetouch, res[0].Kind)
}
