package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/model"
)

type mockSessionService struct {
	createFn        func(ctx context.Context, up *model.UploadData) (*model.SessionView, error)
	getFn           func(ctx context.Context, id string) (*model.SessionView, error)
	getListFn       func(ctx context.Context, req *model.ListRequest) ([]model.SessionView, error)
	setParamsFn     func(ctx context.Context, id string, patch model.ParamsPatch) (*model.SessionView, error)
	resetFn         func(ctx context.Context, id string) (*model.SessionView, error)
	enhanceFn       func(ctx context.Context, id string) (*model.SessionView, error)
	retouchFn       func(ctx context.Context, id string) (*model.SessionView, error)
	replaceImageFn  func(ctx context.Context, id string, up *model.UploadData) (*model.SessionView, error)
	clearImageFn    func(ctx context.Context, id string) (*model.SessionView, error)
	loadSourceFn    func(ctx context.Context, id string) (io.ReadCloser, string, error)
	previewFn       func(ctx context.Context, id string, maxSide int) (io.Reader, int64, string, error)
	notificationsFn func(ctx context.Context, id string) ([]model.Notification, error)
	subscribeFn     func(ctx context.Context, id string) (<-chan editor.Event, func(), error)
	deleteFn        func(ctx context.Context, id string) error
}

func (m *mockSessionService) CreateSession(ctx context.Context, up *model.UploadData) (*model.SessionView, error) {
	return m.createFn(ctx, up)
}

func (m *mockSessionService) Get(ctx context.Context, id string) (*model.SessionView, error) {
	return m.getFn(ctx, id)
}

func (m *mockSessionService) GetList(ctx context.Context, req *model.ListRequest) ([]model.SessionView, error) {
	return m.getListFn(ctx, req)
}

func (m *mockSessionService) SetParams(ctx context.Context, id string, patch model.ParamsPatch) (*model.SessionView, error) {
	return m.setParamsFn(ctx, id, patch)
}

func (m *mockSessionService) Reset(ctx context.Context, id string) (*model.SessionView, error) {
	return m.resetFn(ctx, id)
}

func (m *mockSessionService) AutoEnhance(ctx context.Context, id string) (*model.SessionView, error) {
	return m.enhanceFn(ctx, id)
}

func (m *mockSessionService) FaceRetouch(ctx context.Context, id string) (*model.SessionView, error) {
	return m.retouchFn(ctx, id)
}

func (m *mockSessionService) ReplaceImage(ctx context.Context, id string, up *model.UploadData) (*model.SessionView, error) {
	return m.replaceImageFn(ctx, id, up)
}

func (m *mockSessionService) ClearImage(ctx context.Context, id string) (*model.SessionView, error) {
	return m.clearImageFn(ctx, id)
}

func (m *mockSessionService) LoadSource(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadSourceFn(ctx, id)
}

func (m *mockSessionService) Preview(ctx context.Context, id string, maxSide int) (io.Reader, int64, string, error) {
	return m.previewFn(ctx, id, maxSide)
}

func (m *mockSessionService) ListNotifications(ctx context.Context, id string) ([]model.Notification, error) {
	return m.notificationsFn(ctx, id)
}

func (m *mockSessionService) Subscribe(ctx context.Context, id string) (<-chan editor.Event, func(), error) {
	return m.subscribeFn(ctx, id)
}

func (m *mockSessionService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}
