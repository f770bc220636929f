package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSessionHandler_Ping(t *testing.T) {
	r := gin.New()
	h := NewSessionHandler(nil)

	r.GET("/ping", func(c *gin.Context) {
		h.SimplePinger((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "pong", body["message"])
}

func newMultipartRequest(t *testing.T, target string, files map[string][]byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, content := range files {
		fw, err := w.CreateFormFile(name, name+".jpg")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestSessionHandler_Upload(t *testing.T) {
	tests := []struct {
		name       string
		req        *http.Request
		mock       *mockSessionService
		wantStatus int
	}{
		{
			name: "success",
			req:  newMultipartRequest(t, "/sessions/upload", map[string][]byte{"image": []byte("img")}),
			mock: &mockSessionService{
				createFn: func(ctx context.Context, up *model.UploadData) (*model.SessionView, error) {
					require.NotNil(t, up.File)
					require.Equal(t, int64(3), up.Size)
					return &model.SessionView{UID: uuid.New(), HasImage: true}, nil
				},
			},
			wantStatus: 201,
		},
		{
			name:       "missing image",
			req:        newMultipartRequest(t, "/sessions/upload", nil),
			mock:       &mockSessionService{},
			wantStatus: 400,
		},
		{
			name: "unsupported format",
			req:  newMultipartRequest(t, "/sessions/upload", map[string][]byte{"image": []byte("text")}),
			mock: &mockSessionService{
				createFn: func(ctx context.Context, up *model.UploadData) (*model.SessionView, error) {
					return nil, model.ErrUnsupportedFormat
				},
			},
			wantStatus: 400,
		},
		{
			name: "too large",
			req:  newMultipartRequest(t, "/sessions/upload", map[string][]byte{"image": []byte("img")}),
			mock: &mockSessionService{
				createFn: func(ctx context.Context, up *model.UploadData) (*model.SessionView, error) {
					return nil, model.ErrTooLarge
				},
			},
			wantStatus: 413,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewSessionHandler(tt.mock)

			r.POST("/sessions/upload", func(c *gin.Context) {
				h.Upload((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req)

			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSessionHandler_GetAllSessions(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		mock       *mockSessionService
		wantStatus int
	}{
		{
			name:  "success",
			query: "?page=1&limit=10&sort=updated",
			mock: &mockSessionService{
				getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.SessionView, error) {
					require.Equal(t, 10, req.Limit)
					return []model.SessionView{{}}, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "bad query",
			query:      "?page=abc",
			mock:       &mockSessionService{},
			wantStatus: 400,
		},
		{
			name:  "service error",
			query: "",
			mock: &mockSessionService{
				getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.SessionView, error) {
					return nil, model.ErrCommon500
				},
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewSessionHandler(tt.mock)

			r.GET("/sessions", func(c *gin.Context) {
				h.GetAllSessions((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/sessions"+tt.query, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSessionHandler_SetParams(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mock       *mockSessionService
		wantStatus int
	}{
		{
			name: "success",
			body: `{"brightness": 120, "blemish_removal": 0}`,
			mock: &mockSessionService{
				setParamsFn: func(ctx context.Context, id string, patch model.ParamsPatch) (*model.SessionView, error) {
					require.NotNil(t, patch.Brightness)
					require.Equal(t, 120.0, *patch.Brightness)
					require.NotNil(t, patch.BlemishRemoval)
					require.Nil(t, patch.Contrast)
					return &model.SessionView{}, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "out of range",
			body:       `{"saturation": 151}`,
			mock:       &mockSessionService{},
			wantStatus: 400,
		},
		{
			name:       "negative retouch value",
			body:       `{"skin_smoothing": -1}`,
			mock:       &mockSessionService{},
			wantStatus: 400,
		},
		{
			name:       "broken json",
			body:       `{"brightness":`,
			mock:       &mockSessionService{},
			wantStatus: 400,
		},
		{
			name: "not in basic editor",
			body: `{"skin_smoothing": 20}`,
			mock: &mockSessionService{
				setParamsFn: func(ctx context.Context, id string, patch model.ParamsPatch) (*model.SessionView, error) {
					return nil, model.ErrUnknownParam
				},
			},
			wantStatus: 400,
		},
		{
			name: "session not found",
			body: `{"contrast": 90}`,
			mock: &mockSessionService{
				setParamsFn: func(ctx context.Context, id string, patch model.ParamsPatch) (*model.SessionView, error) {
					return nil, model.ErrSessionNotFound
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewSessionHandler(tt.mock)

			r.PATCH("/sessions/:id/params", func(c *gin.Context) {
				h.SetParams((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodPatch, "/sessions/123/params", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSessionHandler_Presets(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		mock       *mockSessionService
		wantStatus int
	}{
		{
			name: "enhance started",
			path: "/sessions/123/enhance",
			mock: &mockSessionService{
				enhanceFn: func(ctx context.Context, id string) (*model.SessionView, error) {
					require.Equal(t, "123", id)
					return &model.SessionView{Flags: editor.Flags{AutoEnhanceRunning: true}}, nil
				},
			},
			wantStatus: 202,
		},
		{
			name: "enhance busy",
			path: "/sessions/123/enhance",
			mock: &mockSessionService{
				enhanceFn: func(ctx context.Context, id string) (*model.SessionView, error) {
					return nil, model.ErrPresetBusy
				},
			},
			wantStatus: 409,
		},
		{
			name: "retouch started",
			path: "/sessions/123/retouch",
			mock: &mockSessionService{
				retouchFn: func(ctx context.Context, id string) (*model.SessionView, error) {
					return &model.SessionView{Flags: editor.Flags{RetouchRunning: true}}, nil
				},
			},
			wantStatus: 202,
		},
		{
			name: "retouch unsupported",
			path: "/sessions/123/retouch",
			mock: &mockSessionService{
				retouchFn: func(ctx context.Context, id string) (*model.SessionView, error) {
					return nil, model.ErrPresetUnsupported
				},
			},
			wantStatus: 400,
		},
		{
			name: "reset",
			path: "/sessions/123/reset",
			mock: &mockSessionService{
				resetFn: func(ctx context.Context, id string) (*model.SessionView, error) {
					return &model.SessionView{Params: editor.DefaultParams()}, nil
				},
			},
			wantStatus: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewSessionHandler(tt.mock)

			r.POST("/sessions/:id/enhance", func(c *gin.Context) { h.AutoEnhance((*ginext.Context)(c)) })
			r.POST("/sessions/:id/retouch", func(c *gin.Context) { h.FaceRetouch((*ginext.Context)(c)) })
			r.POST("/sessions/:id/reset", func(c *gin.Context) { h.Reset((*ginext.Context)(c)) })

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSessionHandler_LoadSource(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockSessionService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockSessionService{
				loadSourceFn: func(ctx context.Context, id string) (io.ReadCloser, string, error) {
					return io.NopCloser(bytes.NewReader([]byte("ok"))), "image/jpeg", nil
				},
			},
			wantStatus: 200,
		},
		{
			name: "no image",
			mock: &mockSessionService{
				loadSourceFn: func(ctx context.Context, id string) (io.ReadCloser, string, error) {
					return nil, "", model.ErrNoImage
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewSessionHandler(tt.mock)

			r.GET("/sessions/:id/image", func(c *gin.Context) {
				h.LoadSource((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/sessions/123/image", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSessionHandler_Preview(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		mock       *mockSessionService
		wantStatus int
	}{
		{
			name:  "success",
			query: "?size=100",
			mock: &mockSessionService{
				previewFn: func(ctx context.Context, id string, maxSide int) (io.Reader, int64, string, error) {
					require.Equal(t, 100, maxSide)
					return bytes.NewReader([]byte("png")), 3, model.PNG, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "bad size",
			query:      "?size=big",
			mock:       &mockSessionService{},
			wantStatus: 400,
		},
		{
			name:       "size too big",
			query:      "?size=100000",
			mock:       &mockSessionService{},
			wantStatus: 400,
		},
		{
			name:  "no image",
			query: "",
			mock: &mockSessionService{
				previewFn: func(ctx context.Context, id string, maxSide int) (io.Reader, int64, string, error) {
					require.Zero(t, maxSide)
					return nil, 0, "", model.ErrNoImage
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewSessionHandler(tt.mock)

			r.GET("/sessions/:id/preview", func(c *gin.Context) {
				h.Preview((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/sessions/123/preview"+tt.query, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == 200 {
				require.Equal(t, model.PNG, w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestSessionHandler_Image(t *testing.T) {
	mock := &mockSessionService{
		clearImageFn: func(ctx context.Context, id string) (*model.SessionView, error) {
			return &model.SessionView{HasImage: false, Params: editor.DefaultParams()}, nil
		},
		replaceImageFn: func(ctx context.Context, id string, up *model.UploadData) (*model.SessionView, error) {
			require.Equal(t, "123", id)
			require.NotNil(t, up.File)
			return &model.SessionView{HasImage: true}, nil
		},
	}

	r := gin.New()
	h := NewSessionHandler(mock)
	r.DELETE("/sessions/:id/image", func(c *gin.Context) { h.ClearImage((*ginext.Context)(c)) })
	r.POST("/sessions/:id/image", func(c *gin.Context) { h.ReplaceImage((*ginext.Context)(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sessions/123/image", nil))
	require.Equal(t, 200, w.Code)

	var view model.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.False(t, view.HasImage)
	require.Equal(t, 100.0, view.Params.Brightness)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, newMultipartRequest(t, "/sessions/123/image", map[string][]byte{"image": []byte("img")}))
	require.Equal(t, 200, w.Code)
}

func TestSessionHandler_Notifications(t *testing.T) {
	mock := &mockSessionService{
		notificationsFn: func(ctx context.Context, id string) ([]model.Notification, error) {
			return []model.Notification{{SessionUID: id, Kind: editor.PresetAutoEnhance, Title: "✨ Фото улучшено!"}}, nil
		},
	}

	r := gin.New()
	h := NewSessionHandler(mock)
	r.GET("/sessions/:id/notifications", func(c *gin.Context) { h.Notifications((*ginext.Context)(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/123/notifications", nil))
	require.Equal(t, 200, w.Code)

	var res []model.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res, 1)
	require.Equal(t, editor.PresetAutoEnhance, res[0].Kind)
}

func TestSessionHandler_Delete(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockSessionService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockSessionService{
				deleteFn: func(ctx context.Context, id string) error {
					return nil
				},
			},
			wantStatus: 204,
		},
		{
			name: "not found",
			mock: &mockSessionService{
				deleteFn: func(ctx context.Context, id string) error {
					return model.ErrSessionNotFound
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewSessionHandler(tt.mock)

			r.DELETE("/sessions/:id", func(c *gin.Context) {
				h.Delete((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodDelete, "/sessions/123", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSessionHandler_Events(t *testing.T) {
	events := make(chan editor.Event, 2)
	st := editor.NewState()
	events <- editor.Event{Type: editor.EventState, State: &st}
	events <- editor.Event{Type: editor.EventNotification, Notification: &editor.Notification{Kind: editor.PresetFaceRetouch}}

	cancelled := make(chan struct{})
	mock := &mockSessionService{
		subscribeFn: func(ctx context.Context, id string) (<-chan editor.Event, func(), error) {
			if id != "123" {
				return nil, nil, model.ErrSessionNotFound
			}
			return events, func() { close(cancelled) }, nil
		},
	}

	r := gin.New()
	h := NewSessionHandler(mock)
	r.GET("/sessions/:id/events", func(c *gin.Context) { h.Events((*ginext.Context)(c)) })

	srv := httptest.NewServer(r)
	defer srv.Close()

	// несуществующая сессия отвечает обычным JSON без апгрейда
	resp, err := http.Get(srv.URL + "/sessions/456/events")
	require.NoError(t, err)
	require.Equal(t, 404, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/123/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first, second editor.Event
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, editor.EventState, first.Type)
	require.NotNil(t, first.State)
	require.Equal(t, editor.DefaultParams(), first.State.Params)

	require.NoError(t, conn.ReadJSON(&second))
	require.Equal(t, editor.EventNotification, second.Type)
	require.Equal(t, editor.PresetFaceRetouch, second.Notification.Kind)

	require.NoError(t, conn.Close())
	<-cancelled
}
