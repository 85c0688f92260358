package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/videoqa/internal/analysis"
	"github.com/your-org/videoqa/internal/api/handlers"
	"github.com/your-org/videoqa/internal/mock"
	"github.com/your-org/videoqa/internal/models"
	"github.com/your-org/videoqa/pkg/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func multipartBody(t *testing.T, fields map[string]string, video []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if video != nil {
		fw, err := w.CreateFormFile("video", "clip.mp4")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(video); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidRequest, http.StatusBadRequest},
		{fmt.Errorf("%w: moov atom not found", models.ErrInvalidVideo), http.StatusBadRequest},
		{models.ErrNoFramesExtracted, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: openai: quota", models.ErrBackendInvocation), http.StatusBadGateway},
		{models.ErrDuplicateResponseID, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("open video: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("%w: openai: %w", models.ErrBackendInvocation, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := handlers.StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessageFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: query is required", models.ErrInvalidRequest), "video file and query are required"},
		{fmt.Errorf("%w: stat temp_videos/abc.mp4: no such file", models.ErrInvalidVideo), "Invalid or unreadable video"},
		{models.ErrNoFramesExtracted, "Could not extract frames from video"},
		{fmt.Errorf("%w: openai: 401 invalid key sk-abc", models.ErrBackendInvocation), "Analysis backend failed"},
		{fmt.Errorf("sample frames: %w", context.DeadlineExceeded), "Analysis timed out"},
		{errors.New("open /var/tmp/x: permission denied"), "Internal server error"},
	}
	for _, tt := range tests {
		if got := handlers.MessageFor(tt.err); got != tt.want {
			t.Errorf("MessageFor(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestAnalysisHandler_Analyze(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		video      []byte
		submit     func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error)
		maxUpload  int64
		wantStatus int
		wantBody   dto.SubmissionResponse
		wantError  string
	}{
		{
			name:   "inline success",
			fields: map[string]string{"query": "red car"},
			video:  []byte("fake-mp4"),
			submit: func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error) {
				data, _ := io.ReadAll(up.Body)
				if string(data) != "fake-mp4" || up.Filename != "clip.mp4" || up.Query != "red car" {
					return nil, errors.New("unexpected upload")
				}
				return &analysis.Submission{VideoID: "v1", Query: up.Query, ResponseID: "r1"}, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   dto.SubmissionResponse{VideoID: "v1", Query: "red car", ResponseID: "r1"},
		},
		{
			name:   "queued",
			fields: map[string]string{"query": "dog"},
			video:  []byte("x"),
			submit: func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error) {
				return &analysis.Submission{VideoID: "v2", Query: up.Query, ResponseID: "r2", Queued: true}, nil
			},
			wantStatus: http.StatusAccepted,
			wantBody:   dto.SubmissionResponse{VideoID: "v2", Query: "dog", ResponseID: "r2", Status: "queued"},
		},
		{
			name:       "missing video",
			fields:     map[string]string{"query": "dog"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "missing query",
			video: []byte("x"),
			submit: func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error) {
				return nil, fmt.Errorf("%w: query is required", models.ErrInvalidRequest)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "no frames",
			fields: map[string]string{"query": "dog"},
			video:  []byte("x"),
			submit: func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error) {
				return nil, models.ErrNoFramesExtracted
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Could not extract frames from video",
		},
		{
			name:   "unreadable video hides decoder output",
			fields: map[string]string{"query": "dog"},
			video:  []byte("x"),
			submit: func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error) {
				return nil, fmt.Errorf("%w: ffprobe temp_videos/abc.mp4: moov atom not found", models.ErrInvalidVideo)
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid or unreadable video",
		},
		{
			name:   "analysis timeout",
			fields: map[string]string{"query": "dog"},
			video:  []byte("x"),
			submit: func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error) {
				return nil, fmt.Errorf("open video: %w", context.DeadlineExceeded)
			},
			wantStatus: http.StatusGatewayTimeout,
			wantError:  "Analysis timed out",
		},
		{
			name:   "store failure hides cause",
			fields: map[string]string{"query": "dog"},
			video:  []byte("x"),
			submit: func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error) {
				return nil, errors.New("store response: mongo: connection refused at 10.0.0.7:27017")
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
		{
			name:   "backend down",
			fields: map[string]string{"query": "dog"},
			video:  []byte("x"),
			submit: func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error) {
				return nil, fmt.Errorf("%w: openai: 503", models.ErrBackendInvocation)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "too large",
			fields:     map[string]string{"query": "dog"},
			video:      bytes.Repeat([]byte("x"), 4096),
			maxUpload:  1024,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			submitter := &mock.Submitter{SubmitFunc: func(ctx context.Context, up analysis.Upload) (*analysis.Submission, error) {
				calls++
				if tt.submit == nil {
					t.Fatal("submitter should not be called")
				}
				return tt.submit(ctx, up)
			}}

			r := gin.New()
			r.POST("/api/analyze-video", handlers.NewAnalysisHandler(submitter, tt.maxUpload).Analyze)

			body, contentType := multipartBody(t, tt.fields, tt.video)
			req := httptest.NewRequest(http.MethodPost, "/api/analyze-video", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus >= http.StatusBadRequest {
				var errBody map[string]string
				if err := json.Unmarshal(w.Body.Bytes(), &errBody); err != nil || errBody["error"] == "" {
					t.Errorf("expected error body, got %s", w.Body.String())
				}
				if tt.wantError != "" && errBody["error"] != tt.wantError {
					t.Errorf("error = %q, want %q", errBody["error"], tt.wantError)
				}
				return
			}

			var got dto.SubmissionResponse
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got != tt.wantBody {
				t.Errorf("body = %+v, want %+v", got, tt.wantBody)
			}
			if calls != 1 {
				t.Errorf("expected one submission, got %d", calls)
			}
		})
	}
}

func TestResponseHandler_Get(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 250_000_000, time.UTC)
	store := &mock.ResponseStore{GetByResponseIDFunc: func(ctx context.Context, responseID string) (*models.ResponseRecord, error) {
		switch responseID {
		case "r1":
			return &models.ResponseRecord{ResponseID: "r1", VideoID: "v1", ResponseText: "Yes. At 00:03.", CreatedAt: at}, nil
		case "broken":
			return nil, errors.New("connection reset")
		}
		return nil, nil
	}}

	r := gin.New()
	r.GET("/api/ai-response", handlers.NewResponseHandler(store).Get)

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantBody   string
	}{
		{name: "found", url: "/api/ai-response?response_id=r1", wantStatus: http.StatusOK,
			wantBody: `{"response_id":"r1","response_text":"Yes. At 00:03.","created_at":"2024-03-01T10:00:00.250Z"}`},
		{name: "not found", url: "/api/ai-response?response_id=never-inserted", wantStatus: http.StatusNotFound,
			wantBody: `{"error":"Response not found"}`},
		{name: "missing param", url: "/api/ai-response", wantStatus: http.StatusBadRequest},
		{name: "store error", url: "/api/ai-response?response_id=broken", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %s, want %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestResponseHandler_ListByVideo(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &mock.ResponseStore{GetByVideoIDFunc: func(ctx context.Context, videoID string) ([]models.ResponseRecord, error) {
		if videoID != "v1" {
			return nil, nil
		}
		return []models.ResponseRecord{
			{ResponseID: "r1", VideoID: "v1", Query: "q1", ResponseText: "a1", CreatedAt: at},
			{ResponseID: "r2", VideoID: "v1", Query: "q2", ResponseText: "a2", CreatedAt: at.Add(time.Minute)},
		}, nil
	}}

	r := gin.New()
	r.GET("/api/videos/:video_id/responses", handlers.NewResponseHandler(store).ListByVideo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/videos/v1/responses", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got dto.VideoResponses
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.VideoID != "v1" || got.Total != 2 || got.Responses[0].ResponseID != "r1" || got.Responses[1].ResponseID != "r2" {
		t.Errorf("unexpected body %+v", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/videos/unknown/responses", nil))
	if w.Code != http.StatusOK || w.Body.String() != `{"video_id":"unknown","responses":[],"total":0}` {
		t.Errorf("unexpected empty listing %d %s", w.Code, w.Body.String())
	}
}

func TestSystemHandler(t *testing.T) {
	r := gin.New()
	healthy := handlers.NewSystemHandler(map[string]handlers.Pinger{"store": &mock.ResponseStore{}})
	r.GET("/", healthy.Hello)
	r.GET("/healthz", healthy.Healthz)
	r.GET("/readyz", healthy.Readyz)

	failing := handlers.NewSystemHandler(map[string]handlers.Pinger{
		"store": &mock.ResponseStore{},
		"nats":  &mock.ResponseStore{PingFunc: func(ctx context.Context) error { return errors.New("nats not connected") }},
	})
	r.GET("/readyz-failing", failing.Readyz)

	tests := []struct {
		url        string
		wantStatus int
		wantBody   string
	}{
		{url: "/", wantStatus: http.StatusOK, wantBody: `{"message":"Hello from the Video Analysis Server!"}`},
		{url: "/healthz", wantStatus: http.StatusOK, wantBody: `{"status":"ok"}`},
		{url: "/readyz", wantStatus: http.StatusOK, wantBody: `{"checks":{"store":"ok"},"status":"ready"}`},
		{url: "/readyz-failing", wantStatus: http.StatusServiceUnavailable,
			wantBody: `{"checks":{"nats":"nats not connected","store":"ok"},"status":"not ready"}`},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))
		if w.Code != tt.wantStatus || w.Body.String() != tt.wantBody {
			t.Errorf("%s: got %d %s, want %d %s", tt.url, w.Code, w.Body.String(), tt.wantStatus, tt.wantBody)
		}
	}
}
