package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fixfusion/chat-server/internal/database"
	"github.com/fixfusion/chat-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHandleSend_MissingFields(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)

	cs := newTestChatServer(t, db)
	c := newTestClient(t, 10, cs)

	tcases := []struct {
		name string
		send *SendMessage
	}{
		{name: "missing sender", send: &SendMessage{ReceiverId: 20, Message: "hi"}},
		{name: "missing receiver", send: &SendMessage{SenderId: 10, Message: "hi"}},
		{name: "empty message", send: &SendMessage{SenderId: 10, ReceiverId: 20}},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			c.handleSend(&ClientMessage{Send: tc.send, client: c})

			msg := recvMessage(t, c)
			require.NotNil(t, msg.Error, "expected a messageError event")
			assert.Equal(t, "Missing required fields", msg.Error.Error, "expected missing-fields error")
		})
	}

	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestHandleSend_SenderMismatch(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)

	cs := newTestChatServer(t, db)
	c := newTestClient(t, 10, cs)

	c.handleSend(&ClientMessage{
		Send:   &SendMessage{SenderId: 99, ReceiverId: 20, Message: "hi"},
		client: c,
	})

	msg := recvMessage(t, c)
	require.NotNil(t, msg.Error, "expected a messageError event")
	assert.Equal(t, "Invalid message", msg.Error.Error)
	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestHandleSend_ValidationError(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.Anything).
		Return(database.Message{}, &database.ValidationError{Field: "latitude", Reason: "must be a finite number between -90 and 90"}).
		Once()

	cs := newTestChatServer(t, db)
	c := newTestClient(t, 10, cs)

	c.handleSend(&ClientMessage{
		Send: &SendMessage{
			SenderId:     10,
			ReceiverId:   20,
			Message:      "Location shared",
			MessageType:  types.MessageTypeLocation,
			LocationData: &types.Location{Latitude: 200, Longitude: 10},
		},
		client: c,
	})

	msg := recvMessage(t, c)
	require.NotNil(t, msg.Error, "expected a messageError event")
	assert.Equal(t, "Invalid message", msg.Error.Error)
	assert.Contains(t, msg.Error.Details, "latitude", "expected the offending field in details")
}

func TestHandleSend_StorageError(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.Anything).
		Return(database.Message{}, errors.New("connection refused")).
		Once()

	cs := newTestChatServer(t, db)
	go cs.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, cs.Shutdown(ctx))
	}()

	c1 := newTestClient(t, 10, cs)
	c2 := newTestClient(t, 20, cs)
	for _, c := range []*Client{c1, c2} {
		cs.joinChan <- &ClientMessage{Join: &JoinRoom{RoomId: "10-20"}, client: c}
		recvMessage(t, c)
	}

	c1.handleSend(&ClientMessage{
		Send:   &SendMessage{SenderId: 10, ReceiverId: 20, Message: "hi"},
		client: c1,
	})

	msg := recvMessage(t, c1)
	require.NotNil(t, msg.Error, "expected a messageError event for the sender")
	assert.Equal(t, "Failed to save message", msg.Error.Error)

	// write-ahead discipline: nothing may be broadcast on a failed persist
	select {
	case stray := <-c2.send:
		t.Errorf("expected no broadcast after persistence failure, got %+v", stray)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleSend_Success(t *testing.T) {
	stored := database.Message{
		Id:         42,
		SenderId:   10,
		ReceiverId: 20,
		Content:    "hi",
		Type:       types.MessageTypeText,
		CreatedAt:  Now(),
	}

	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", database.CreateMessageParams{
		SenderId:   10,
		ReceiverId: 20,
		Content:    "hi",
		Type:       types.MessageTypeText,
	}).Return(stored, nil).Once()

	cs := newTestChatServer(t, db)
	go cs.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, cs.Shutdown(ctx))
	}()

	c1 := newTestClient(t, 10, cs)
	c2 := newTestClient(t, 20, cs)
	for _, c := range []*Client{c1, c2} {
		cs.joinChan <- &ClientMessage{Join: &JoinRoom{RoomId: "10-20"}, client: c}
		recvMessage(t, c)
	}

	c1.handleSend(&ClientMessage{
		Send:   &SendMessage{SenderId: 10, ReceiverId: 20, Message: "hi", MessageType: types.MessageTypeText},
		client: c1,
	})

	// both room members receive the persisted record, sender included
	var senderCopy, receiverCopy, ack *ServerMessage
	for senderCopy == nil || ack == nil {
		msg := recvMessage(t, c1)
		switch {
		case msg.Receive != nil:
			senderCopy = msg
		case msg.Sent != nil:
			ack = msg
		}
	}
	receiverCopy = recvMessage(t, c2)

	require.NotNil(t, receiverCopy.Receive, "expected receiver to get receiveMessage")
	assert.Equal(t, 42, receiverCopy.Receive.Id, "expected server-assigned id")
	assert.Equal(t, senderCopy.Receive.Id, receiverCopy.Receive.Id, "expected both copies to share the id")
	assert.False(t, receiverCopy.Receive.IsRead, "expected fresh message to be unread")

	assert.True(t, ack.Sent.Success, "expected private ack to the sender")
	assert.Equal(t, 42, ack.Sent.MessageId, "expected ack to carry the new id")
	assert.Equal(t, types.MessageTypeText, ack.Sent.MessageType)
}

func TestHandleTyping_SkipsSender(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{})
	go cs.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, cs.Shutdown(ctx))
	}()

	c1 := newTestClient(t, 10, cs)
	c2 := newTestClient(t, 20, cs)
	for _, c := range []*Client{c1, c2} {
		cs.joinChan <- &ClientMessage{Join: &JoinRoom{RoomId: "10-20"}, client: c}
		recvMessage(t, c)
	}

	c1.handleTyping(&ClientMessage{
		Typing: &Typing{SenderId: 10, ReceiverId: 20, IsTyping: true},
		client: c1,
	})

	msg := recvMessage(t, c2)
	require.NotNil(t, msg.UserTyping, "expected counterpart to receive userTyping")
	assert.Equal(t, 10, msg.UserTyping.SenderId)
	assert.True(t, msg.UserTyping.IsTyping)

	select {
	case stray := <-c1.send:
		t.Errorf("expected typing broadcast to exclude the sender, got %+v", stray)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleTyping_IgnoresSpoofedSender(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{})
	c := newTestClient(t, 10, cs)

	c.handleTyping(&ClientMessage{
		Typing: &Typing{SenderId: 99, ReceiverId: 20, IsTyping: true},
		client: c,
	})

	select {
	case stray := <-c.send:
		t.Errorf("expected spoofed typing event to be dropped, got %+v", stray)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestQueueMessage_FullBuffer(t *testing.T) {
	c := &Client{send: make(chan *ServerMessage, 1)}

	assert.True(t, c.queueMessage(ErrSaveFailed()), "expected first message to queue")
	assert.False(t, c.queueMessage(ErrSaveFailed()), "expected full buffer to report failure")
}
