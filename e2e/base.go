package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"youth-hub/auth"
	"youth-hub/moderation"
	"youth-hub/observability"
	"youth-hub/repositories"
	"youth-hub/runtime"
	"youth-hub/search"
	"youth-hub/server"
	"youth-hub/services"
)

const frameReadTimeout = 2 * time.Second

// Account is one registered test user, ready to open connections.
type Account struct {
	Token       string
	UserID      string
	DisplayName string
}

// serverFrame mirrors the wire envelope pushed by the server.
type serverFrame struct {
	Event        string          `json:"event"`
	ConnectionID string          `json:"connectionId"`
	Payload      json.RawMessage `json:"payload"`
}

type messagePayload struct {
	ID                uint64    `json:"id"`
	RoomID            string    `json:"roomId"`
	SenderID          string    `json:"senderId"`
	SenderDisplayName string    `json:"senderDisplayName"`
	Content           string    `json:"content"`
	Lang              string    `json:"lang"`
	CreatedAt         time.Time `json:"createdAt"`
}

// BaseChatSuite boots the whole relay stack once per suite. With
// SERVER_ADDR set it targets a running deployment; otherwise it wires an
// in-process server backed by throwaway Badger and Bluge stores.
type BaseChatSuite struct {
	suite.Suite
	Config   Config
	addr     string
	embedded *httptest.Server
	closers  []func() error
}

// SetupSuite loads the environment configuration and, when no external
// server is configured, starts the embedded stack.
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr != "" {
		s.addr = s.Config.ServerAddr
		return
	}
	s.startEmbedded()
}

func (s *BaseChatSuite) TearDownSuite() {
	if s.embedded != nil {
		s.embedded.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.Require().NoError(s.closers[i]())
	}
}

// startEmbedded assembles the same stack cmd/server wires, minus the
// signal handling and background workers.
func (s *BaseChatSuite) startEmbedded() {
	req := s.Require()
	log := logs.GetLoggerFromLevel(slog.LevelWarn)

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	s.closers = append(s.closers, db.Close)

	messageRepository, err := repositories.NewMessageRepository(db, log, lo.ToPtr(50))
	req.NoError(err)
	s.closers = append(s.closers, messageRepository.Close)

	index, err := search.NewMessageIndex(s.T().TempDir(), log)
	req.NoError(err)
	s.closers = append(s.closers, index.Close)

	censored, err := moderation.NewCensoredLoader().LoadAll()
	req.NoError(err)
	moderator, err := moderation.NewModerator(censored.Words, '*', log)
	req.NoError(err)

	metrics := observability.NewMetrics()
	chatService := services.NewChatService(log,
		messageRepository,
		repositories.NewRoomRepository(db),
		runtime.NewRegistry(log),
		&moderator, index,
		metrics, 20)
	authService := services.NewAuthService(log, repositories.NewUserRepository(db), time.Hour)

	router := server.NewRouter(log, auth.NewVerifier(log), authService, chatService, metrics, 64)
	s.embedded = httptest.NewServer(router)
	s.addr = s.embedded.URL
}

// Step prints a colorized header so suite logs read as a scenario script.
func (s *BaseChatSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// DoJSON performs one REST call with timing and optional body dumps, and
// decodes the response into out when a target is given.
func (s *BaseChatSuite) DoJSON(t *testing.T, method, path, token string, in, out any) int {
	var body io.Reader
	var inRaw []byte
	if in != nil {
		var err error
		inRaw, err = json.Marshal(in)
		s.Require().NoError(err)
		body = bytes.NewReader(inRaw)
	}

	request, err := http.NewRequest(method, s.addr+path, body)
	s.Require().NoError(err)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	response, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, response.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(inRaw))
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	t.Log(logBuilder.String())

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return response.StatusCode
}

// RegisterAccount creates a fresh user through the public API. Emails are
// randomized so suites can run repeatedly against a persistent server.
func (s *BaseChatSuite) RegisterAccount(t *testing.T, displayName string) Account {
	var response struct {
		Token string `json:"token"`
	}
	status := s.DoJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":       fmt.Sprintf("%s-%s@example.org", strings.ToLower(displayName), uuid.NewString()[:8]),
		"displayName": displayName,
		"password":    "Str0ng&Secret!",
	}, &response)
	s.Require().Equal(http.StatusCreated, status)

	claims, err := auth.ValidateToken(response.Token)
	s.Require().NoError(err)
	return Account{Token: response.Token, UserID: claims.UserID, DisplayName: displayName}
}

// Dial opens a websocket session with the given credential and waits for
// the connected confirmation.
func (s *BaseChatSuite) Dial(t *testing.T, token string) *websocket.Conn {
	conn, err := s.dialRaw(token)
	s.Require().NoError(err)
	t.Cleanup(func() { _ = conn.Close() })

	frame := s.ReadFrame(t, conn)
	s.Require().Equal("connected", frame.Event)
	s.Require().NotEmpty(frame.ConnectionID)
	return conn
}

func (s *BaseChatSuite) dialRaw(token string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(s.addr, "http") + "/ws"
	if token != "" {
		wsURL += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	return conn, err
}

// ReadFrame blocks for the next server frame, failing the test when the
// server stays silent past the read timeout.
func (s *BaseChatSuite) ReadFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(frameReadTimeout)))
	var frame serverFrame
	s.Require().NoError(conn.ReadJSON(&frame))
	return frame
}

// ReadMessage waits for the next newMessage frame and decodes its payload.
func (s *BaseChatSuite) ReadMessage(t *testing.T, conn *websocket.Conn) messagePayload {
	t.Helper()
	frame := s.ReadFrame(t, conn)
	s.Require().Equal("newMessage", frame.Event)
	var payload messagePayload
	s.Require().NoError(json.Unmarshal(frame.Payload, &payload))
	return payload
}

// ExpectSilence asserts that no frame arrives on the connection within the
// given window.
func (s *BaseChatSuite) ExpectSilence(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(window)))
	var frame serverFrame
	err := conn.ReadJSON(&frame)
	s.Require().Error(err, "expected no frame, got %q", frame.Event)
}

func (s *BaseChatSuite) Send(t *testing.T, conn *websocket.Conn, event, roomID, content string) {
	t.Helper()
	s.Require().NoError(conn.WriteJSON(map[string]string{
		"event":   event,
		"roomId":  roomID,
		"content": content,
	}))
}
