package relay

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"wagl-backend/domain"
	"wagl-backend/mocks"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestClient(t *testing.T, baseURL string, doer Doer, timeout time.Duration) (*Client, *fakeClock) {
	t.Helper()
	addressing, err := NewAddressing(DefaultRoomPool, DefaultHealthRoom)
	require.NoError(t, err)
	clock := &fakeClock{now: time.Now()}
	breaker := NewCircuitBreaker(5, 5*time.Minute, clock.Now)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewClient(ClientConfig{BaseURL: baseURL, APIKey: "secret", Timeout: timeout}, doer, breaker, addressing, log), clock
}

func testMessage() domain.ChatMessage {
	return domain.ChatMessage{
		ID:            uuid.New(),
		RoomID:        uuid.New(),
		SessionID:     uuid.New(),
		ParticipantID: uuid.New(),
		SenderName:    "Alice",
		Content:       "hello",
		Language:      "eng",
		SentAt:        time.Now(),
	}
}

func Test_Relay_Posts_Message(t *testing.T) {
	req := require.New(t)
	msg := testMessage()
	sessionID := SessionIDFor(msg.SessionID)

	var mu sync.Mutex
	var gotPath, gotAuth string
	var got messagePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()
	client, _ := newTestClient(t, server.URL, server.Client(), time.Second)

	// When relaying a message to room 2
	ok := client.Relay(context.Background(), msg, sessionID, 2)

	// Then the relay received it on the session path
	req.True(ok)
	mu.Lock()
	defer mu.Unlock()
	req.Equal("/sessions/"+sessionID+"/message", gotPath)
	req.Equal("Bearer secret", gotAuth)
	req.Equal(2, got.Room)
	req.Equal(UserIDFor(msg.ParticipantID), got.UserID)
	req.Equal("hello", got.Content)
	req.Equal("eng", got.Language)
}

func Test_Relay_Status_Errors_Return_False(t *testing.T) {
	req := require.New(t)
	for _, status := range []int{400, 401, 403, 404, 429, 500, 503, 302} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		client, _ := newTestClient(t, server.URL, &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}, time.Second)

		req.False(client.Relay(context.Background(), testMessage(), "s", 1), "status %d", status)
		req.Equal(1, client.Stats().ConsecutiveFailures)
		server.Close()
	}
}

func Test_CategoryOf(t *testing.T) {
	req := require.New(t)
	req.Equal(CategoryClientError, CategoryOf(400))
	req.Equal(CategoryAuth, CategoryOf(401))
	req.Equal(CategoryAuth, CategoryOf(403))
	req.Equal(CategoryNotFound, CategoryOf(404))
	req.Equal(CategoryRateLimited, CategoryOf(429))
	req.Equal(CategoryServer, CategoryOf(502))
	req.Equal(CategoryUnexpected, CategoryOf(418))
}

func Test_Relay_Timeout_Counts_As_Failure(t *testing.T) {
	req := require.New(t)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)
	client, _ := newTestClient(t, server.URL, server.Client(), 50*time.Millisecond)

	start := time.Now()
	ok := client.NotifyConnect(context.Background(), domain.Participant{ID: uuid.New(), DisplayName: "Bob"}, "s", 1)

	req.False(ok)
	req.Less(time.Since(start), 5*time.Second)
	req.Equal(1, client.Stats().ConsecutiveFailures)
	req.Equal(int64(1), client.Stats().TotalFailures)
}

func Test_Open_Breaker_Skips_Network(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)

	// Given 5 network failures
	doer.EXPECT().Do(gomock.Any()).Return(nil, io.ErrUnexpectedEOF).Times(5)
	client, clock := newTestClient(t, "http://relay.invalid", doer, time.Second)
	for range 5 {
		req.False(client.Relay(context.Background(), testMessage(), "s", 1))
	}

	// When calling again while open, no request is made
	req.False(client.Relay(context.Background(), testMessage(), "s", 1))
	req.False(client.IsHealthy(context.Background()))
	req.Equal(int64(5), client.Stats().TotalRequests)

	// Then after the cooldown a single trial call succeeds and closes the breaker
	clock.Advance(5 * time.Minute)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(r *http.Request) (*http.Response, error) {
		req.True(strings.HasSuffix(r.URL.Path, "/health"))
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(""))}, nil
	}).Times(1)
	req.True(client.IsHealthy(context.Background()))
	req.False(client.Stats().Open)
}

func Test_IsHealthy_Uses_Health_Room(t *testing.T) {
	req := require.New(t)
	var got healthPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	client, _ := newTestClient(t, server.URL, server.Client(), time.Second)

	req.True(client.IsHealthy(context.Background()))
	req.Equal(DefaultHealthRoom, got.Room)
}

func Test_Open_Breaker_Logs_A_Warning(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	addressing, err := NewAddressing(DefaultRoomPool, DefaultHealthRoom)
	req.NoError(err)
	var out bytes.Buffer
	log := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn}))
	breaker := NewCircuitBreaker(1, 5*time.Minute, nil)
	client := NewClient(ClientConfig{BaseURL: "http://relay.invalid"}, doer, breaker, addressing, log)

	// Given an open breaker
	doer.EXPECT().Do(gomock.Any()).Return(nil, io.ErrUnexpectedEOF).Times(1)
	req.False(client.Relay(context.Background(), testMessage(), "s", 1))
	out.Reset()

	// When a call is skipped
	req.False(client.Relay(context.Background(), testMessage(), "s", 1))

	// Then the skip is visible at warning level
	req.Contains(out.String(), "level=WARN")
	req.Contains(out.String(), "Relay circuit open, call skipped")
}

func Test_Relay_Without_API_Key_Sends_No_Authorization(t *testing.T) {
	req := require.New(t)
	var mu sync.Mutex
	gotAuth := "unset"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	addressing, err := NewAddressing(DefaultRoomPool, DefaultHealthRoom)
	req.NoError(err)
	client := NewClient(ClientConfig{BaseURL: server.URL}, server.Client(), NewCircuitBreaker(5, time.Minute, nil),
		addressing, logs.GetLoggerFromLevel(slog.LevelDebug))

	req.True(client.Relay(context.Background(), testMessage(), "s", 1))
	mu.Lock()
	defer mu.Unlock()
	req.Empty(gotAuth)
}
