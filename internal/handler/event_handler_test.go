package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teerapat-ch/eventhub/internal/domain"
	"github.com/teerapat-ch/eventhub/internal/dto"
)

// MockEventService is a mock implementation of EventService
type MockEventService struct {
	CreateEventFunc func(ctx context.Context, owner *domain.Principal, req *dto.CreateEventRequest) (*dto.EventResponse, error)
	GetEventFunc    func(ctx context.Context, id string) (*dto.EventResponse, error)
	ListEventsFunc  func(ctx context.Context, limit, offset int) (*dto.EventListResponse, error)
	UpdateEventFunc func(ctx context.Context, id, callerID string, req *dto.UpdateEventRequest) (*dto.EventResponse, error)
	DeleteEventFunc func(ctx context.Context, id, callerID string) error
}

func (m *MockEventService) CreateEvent(ctx context.Context, owner *domain.Principal, req *dto.CreateEventRequest) (*dto.EventResponse, error) {
	if m.CreateEventFunc != nil {
		return m.CreateEventFunc(ctx, owner, req)
	}
	return nil, nil
}

func (m *MockEventService) GetEvent(ctx context.Context, id string) (*dto.EventResponse, error) {
	if m.GetEventFunc != nil {
		return m.GetEventFunc(ctx, id)
	}
	return nil, domain.ErrEventNotFound
}

func (m *MockEventService) ListEvents(ctx context.Context, limit, offset int) (*dto.EventListResponse, error) {
	if m.ListEventsFunc != nil {
		return m.ListEventsFunc(ctx, limit, offset)
	}
	return &dto.EventListResponse{Events: []*dto.EventResponse{}}, nil
}

func (m *MockEventService) UpdateEvent(ctx context.Context, id, callerID string, req *dto.UpdateEventRequest) (*dto.EventResponse, error) {
	if m.UpdateEventFunc != nil {
		return m.UpdateEventFunc(ctx, id, callerID, req)
	}
	return nil, domain.ErrEventNotFound
}

func (m *MockEventService) DeleteEvent(ctx context.Context, id, callerID string) error {
	if m.DeleteEventFunc != nil {
		return m.DeleteEventFunc(ctx, id, callerID)
	}
	return domain.ErrEventNotFound
}

func setupEventRouter(svc *MockEventService, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewEventHandler(svc)

	router := gin.New()
	router.POST("/api/v1/events", testPrincipal(userID), h.CreateEvent)
	router.GET("/api/v1/events", h.ListEvents)
	router.GET("/api/v1/events/:id", h.GetEvent)
	router.PUT("/api/v1/events/:id", testPrincipal(userID), h.UpdateEvent)
	router.DELETE("/api/v1/events/:id", testPrincipal(userID), h.DeleteEvent)
	return router
}

func TestEventHandler_CreateEvent(t *testing.T) {
	t.Run("successful create returns 201", func(t *testing.T) {
		svc := &MockEventService{
			CreateEventFunc: func(ctx context.Context, owner *domain.Principal, req *dto.CreateEventRequest) (*dto.EventResponse, error) {
				return &dto.EventResponse{
					ID:            "event-001",
					Title:         req.Title,
					Capacity:      req.Capacity,
					OwnerID:       owner.ID,
					AttendeeCount: 1,
				}, nil
			},
		}
		router := setupEventRouter(svc, "user-001")

		body, _ := json.Marshal(dto.CreateEventRequest{
			Title:     "Go Meetup",
			StartTime: time.Now().Add(48 * time.Hour),
			Capacity:  10,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("CreateEvent status = %d, want 201, body %s", w.Code, w.Body.String())
		}

		var resp dto.EventResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse body: %v", err)
		}
		if resp.OwnerID != "user-001" || resp.AttendeeCount != 1 {
			t.Errorf("CreateEvent body = %+v", resp)
		}
	})

	t.Run("missing capacity rejected by binding", func(t *testing.T) {
		router := setupEventRouter(&MockEventService{}, "user-001")

		body, _ := json.Marshal(map[string]interface{}{
			"title":      "Go Meetup",
			"start_time": time.Now().Add(48 * time.Hour),
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("CreateEvent status = %d, want 400", w.Code)
		}
	})

	t.Run("unauthenticated create rejected", func(t *testing.T) {
		router := setupEventRouter(&MockEventService{}, "")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("CreateEvent status = %d, want 401", w.Code)
		}
		if code := errorCode(t, w.Body.Bytes()); code != "UNAUTHORIZED" {
			t.Errorf("CreateEvent error code = %s, want UNAUTHORIZED", code)
		}
	})
}

func TestEventHandler_UpdateEvent(t *testing.T) {
	t.Run("non-owner gets 403", func(t *testing.T) {
		svc := &MockEventService{
			UpdateEventFunc: func(ctx context.Context, id, callerID string, req *dto.UpdateEventRequest) (*dto.EventResponse, error) {
				return nil, domain.ErrNotOwner
			},
		}
		router := setupEventRouter(svc, "user-999")

		req := httptest.NewRequest(http.MethodPut, "/api/v1/events/event-001", bytes.NewReader([]byte(`{"title":"New"}`)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("UpdateEvent status = %d, want 403", w.Code)
		}
		if code := errorCode(t, w.Body.Bytes()); code != "FORBIDDEN" {
			t.Errorf("UpdateEvent error code = %s, want FORBIDDEN", code)
		}
	})

	t.Run("capacity below attendee count gets 400", func(t *testing.T) {
		svc := &MockEventService{
			UpdateEventFunc: func(ctx context.Context, id, callerID string, req *dto.UpdateEventRequest) (*dto.EventResponse, error) {
				return nil, domain.ErrInvalidCapacity
			},
		}
		router := setupEventRouter(svc, "user-001")

		req := httptest.NewRequest(http.MethodPut, "/api/v1/events/event-001", bytes.NewReader([]byte(`{"capacity":1}`)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("UpdateEvent status = %d, want 400", w.Code)
		}
	})
}

func TestEventHandler_GetEvent(t *testing.T) {
	svc := &MockEventService{
		GetEventFunc: func(ctx context.Context, id string) (*dto.EventResponse, error) {
			if id != "event-001" {
				return nil, domain.ErrEventNotFound
			}
			return &dto.EventResponse{ID: id, Title: "Go Meetup", AttendeeCount: 3}, nil
		},
	}
	router := setupEventRouter(svc, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/event-001", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GetEvent status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events/missing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("GetEvent status = %d, want 404", w.Code)
	}
}

func TestEventHandler_DeleteEvent(t *testing.T) {
	svc := &MockEventService{
		DeleteEventFunc: func(ctx context.Context, id, callerID string) error {
			if callerID != "user-001" {
				return domain.ErrNotOwner
			}
			return nil
		},
	}

	router := setupEventRouter(svc, "user-001")
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/events/event-001", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("DeleteEvent status = %d, want 200", w.Code)
	}

	router = setupEventRouter(svc, "user-999")
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/events/event-001", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("DeleteEvent status = %d, want 403", w.Code)
	}
}
