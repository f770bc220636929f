package service

import (
	"context"
	"io"
	"sync"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/model"
)

// MOCK RESPOSITORY

type mockRepo struct {
	createFn            func(ctx context.Context, s *model.Session) error
	getFn               func(ctx context.Context, id string) (*model.Session, error)
	getListFn           func(ctx context.Context, req *model.ListRequest) ([]model.Session, error)
	saveStateFn         func(ctx context.Context, id string, st editor.State) error
	updateSourceFn      func(ctx context.Context, id string, key string, cType string, size int64) error
	deleteFn            func(ctx context.Context, id string) error
	fetchOrphansFn      func(ctx context.Context, limit int) ([]string, error)
	saveNotificationFn  func(ctx context.Context, n *model.Notification) error
	listNotificationsFn func(ctx context.Context, sessionID string, limit int) ([]model.Notification, error)

	mu     sync.Mutex
	states []editor.State
}

func (m *mockRepo) Create(ctx context.Context, s *model.Session) error {
	return m.createFn(ctx, s)
}

func (m *mockRepo) Get(ctx context.Context, id string) (*model.Session, error) {
	return m.getFn(ctx, id)
}

func (m *mockRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Session, error) {
	return m.getListFn(ctx, req)
}

// SaveState запоминает все сохраненные состояния, даже без saveStateFn
func (m *mockRepo) SaveState(ctx context.Context, id string, st editor.State) error {
	m.mu.Lock()
	m.states = append(m.states, st)
	m.mu.Unlock()
	if m.saveStateFn == nil {
		return nil
	}
	return m.saveStateFn(ctx, id, st)
}

func (m *mockRepo) UpdateSource(ctx context.Context, id string, key string, cType string, size int64) error {
	return m.updateSourceFn(ctx, id, key, cType, size)
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	return m.fetchOrphansFn(ctx, limit)
}

func (m *mockRepo) SaveNotification(ctx context.Context, n *model.Notification) error {
	return m.saveNotificationFn(ctx, n)
}

func (m *mockRepo) ListNotifications(ctx context.Context, sessionID string, limit int) ([]model.Notification, error) {
	return m.listNotificationsFn(ctx, sessionID, limit)
}

func (m *mockRepo) savedStates() []editor.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]editor.State(nil), m.states...)
}

// MOCK STORAGE

type mockStorage struct {
	putFn    func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	getFn    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.deleteFn(ctx, key)
}

// MOCK NOTIFIER

type mockNotifier struct {
	mu   sync.Mutex
	sent []editor.Notification
}

func (m *mockNotifier) Notify(_ context.Context, n editor.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

func (m *mockNotifier) all() []editor.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]editor.Notification(nil), m.sent...)
}
