package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"youth-hub/auth"
)

type ChatRelaySuite struct {
	BaseChatSuite
}

func TestChatRelaySuite(t *testing.T) {
	suite.Run(t, new(ChatRelaySuite))
}

// Test_Private_Conversation_Relays_To_Both_Members walks the nominal
// path: two accounts, one private room, one censored message delivered
// live to both sides and readable again from the backlog.
func (s *ChatRelaySuite) Test_Private_Conversation_Relays_To_Both_Members() {
	t := s.T()

	// 1. Given two registered accounts sharing a private room
	s.Step(t, "register alice and bob")
	alice := s.RegisterAccount(t, "Alice")
	bob := s.RegisterAccount(t, "Bob")

	s.Step(t, "alice opens a private room with bob")
	var opened struct {
		Room struct {
			ID string `json:"id"`
		} `json:"room"`
		Created bool `json:"created"`
	}
	status := s.DoJSON(t, http.MethodPost, "/api/rooms/private", alice.Token,
		map[string]string{"userId": bob.UserID}, &opened)
	s.Require().Equal(http.StatusCreated, status)
	s.Require().True(opened.Created)
	roomID := opened.Room.ID

	// 2. When both connect, join, and alice sends an insult
	s.Step(t, "both sides connect and join")
	aliceConn := s.Dial(t, alice.Token)
	bobConn := s.Dial(t, bob.Token)
	s.Send(t, aliceConn, "join", roomID, "")
	s.Send(t, bobConn, "join", roomID, "")
	// Joins are acknowledged by delivery, not by a frame, so give the
	// server a beat before sending.
	time.Sleep(100 * time.Millisecond)

	s.Step(t, "alice sends a message")
	s.Send(t, aliceConn, "send", roomID, "You complete idiot, I love you")

	// 3. Then both members receive the same censored message
	got := s.ReadMessage(t, bobConn)
	echo := s.ReadMessage(t, aliceConn)

	s.Require().Equal("You complete *****, I love you", got.Content)
	s.Require().Equal(got, echo)
	s.Require().Equal(alice.UserID, got.SenderID)
	s.Require().Equal("Alice", got.SenderDisplayName)
	s.Require().Equal(roomID, got.RoomID)

	// 4. And the backlog serves the identical censored text
	s.Step(t, "bob reads the backlog")
	var history struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	status = s.DoJSON(t, http.MethodGet, "/api/rooms/"+roomID+"/messages", bob.Token, nil, &history)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Len(history.Messages, 1)
	s.Require().Equal(got.Content, history.Messages[0].Content)
}

// Test_Outsider_Join_Is_Silent_And_Delivers_Nothing proves a non-member
// gets no error frame and no messages, while real members keep receiving.
func (s *ChatRelaySuite) Test_Outsider_Join_Is_Silent_And_Delivers_Nothing() {
	t := s.T()

	s.Step(t, "set up a private room and an outsider")
	alice := s.RegisterAccount(t, "Alice")
	bob := s.RegisterAccount(t, "Bob")
	carol := s.RegisterAccount(t, "Carol")

	var opened struct {
		Room struct {
			ID string `json:"id"`
		} `json:"room"`
	}
	status := s.DoJSON(t, http.MethodPost, "/api/rooms/private", alice.Token,
		map[string]string{"userId": bob.UserID}, &opened)
	s.Require().Equal(http.StatusCreated, status)
	roomID := opened.Room.ID

	aliceConn := s.Dial(t, alice.Token)
	bobConn := s.Dial(t, bob.Token)
	carolConn := s.Dial(t, carol.Token)

	s.Step(t, "everyone joins, including the outsider")
	s.Send(t, aliceConn, "join", roomID, "")
	s.Send(t, bobConn, "join", roomID, "")
	s.Send(t, carolConn, "join", roomID, "")
	time.Sleep(100 * time.Millisecond)

	s.Step(t, "alice sends while the outsider listens")
	s.Send(t, aliceConn, "send", roomID, "members only")

	got := s.ReadMessage(t, bobConn)
	s.Require().Equal("members only", got.Content)
	s.ExpectSilence(t, carolConn, 300*time.Millisecond)

	// The outsider also cannot read the backlog, and the denial is
	// indistinguishable from a room that does not exist.
	status = s.DoJSON(t, http.MethodGet, "/api/rooms/"+roomID+"/messages", carol.Token, nil, nil)
	s.Require().Equal(http.StatusNotFound, status)
	status = s.DoJSON(t, http.MethodGet, "/api/rooms/no-such-room/messages", carol.Token, nil, nil)
	s.Require().Equal(http.StatusNotFound, status)
}

// Test_Expired_Credential_Is_Rejected_At_Handshake dials with a token
// past its expiry and expects a policy violation close frame.
func (s *ChatRelaySuite) Test_Expired_Credential_Is_Rejected_At_Handshake() {
	t := s.T()

	s.Step(t, "dial with an expired token")
	expired, err := auth.GenerateToken("someone", "Someone", "Member", -time.Minute)
	s.Require().NoError(err)

	conn, err := s.dialRaw(expired)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(frameReadTimeout)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	s.Require().ErrorAs(err, &closeErr)
	s.Require().Equal(websocket.ClosePolicyViolation, closeErr.Code)
	s.Require().Equal("invalid credential", closeErr.Text)
}

// Test_Plain_Member_Cannot_Create_Group_Rooms exercises the role gate on
// the group room endpoint. Fresh registrations are plain members, and the
// denial is masked as not found.
func (s *ChatRelaySuite) Test_Plain_Member_Cannot_Create_Group_Rooms() {
	t := s.T()

	s.Step(t, "a plain member tries to open a group room")
	member := s.RegisterAccount(t, "Mallory")
	status := s.DoJSON(t, http.MethodPost, "/api/rooms/group", member.Token,
		map[string]any{"name": "Summer Camp", "members": []string{}}, nil)
	s.Require().Equal(http.StatusNotFound, status)
}
