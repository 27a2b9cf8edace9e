package notify_test

import (
	"context"
	"testing"

	"github.com/illmade-knight/message-gateway/pkg/message"
	"github.com/illmade-knight/message-gateway/pkg/notify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_OfflineMessage(t *testing.T) {
	ctx := context.Background()
	recorder := notify.NewRecorder()
	svc := notify.NewService(recorder, notify.ChannelSMS, "", "", zerolog.Nop())

	svc.OfflineMessage(ctx, "2", "1", "you have a message", "m1", 1000)

	events := recorder.ByTopic(notify.OfflineTopic)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "undelivered:2", e.Key)
	assert.Equal(t, int64(2), e.Notification.CustomerID)
	assert.Equal(t, int64(2001), e.Notification.NotificationID)
	assert.Equal(t, notify.ChannelSMS, e.Notification.Channel)
	assert.Equal(t, map[string]string{
		"sampleMessage": "you have a message",
		"messageId":     "m1",
		"senderId":      "1",
	}, e.Notification.Map)
}

func TestService_OfflineMessage_GeneratesMissingMessageID(t *testing.T) {
	recorder := notify.NewRecorder()
	svc := notify.NewService(recorder, "", "", "", zerolog.Nop())

	svc.OfflineMessage(context.Background(), "2", "1", "hi", "", 0)

	events := recorder.Events()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].Notification.Map["messageId"])
}

func TestService_SampleMessage(t *testing.T) {
	recorder := notify.NewRecorder()
	svc := notify.NewService(recorder, notify.ChannelSMS, "", "", zerolog.Nop())

	svc.SampleMessage(context.Background(), "2", "otp 123456")

	events := recorder.ByTopic(notify.SampleTopic)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, int64(2), e.Notification.CustomerID)
	assert.Equal(t, notify.ChannelInApp, e.Notification.Channel)
	assert.Equal(t, map[string]string{"sampleMessage": "otp 123456"}, e.Notification.Map)
	// The sample notification ID folds in the publish time, so it exceeds the
	// bare customer ID.
	assert.Greater(t, e.Notification.NotificationID, int64(2))
}

func TestService_UndeliveredMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("chat text is carried", func(t *testing.T) {
		recorder := notify.NewRecorder()
		svc := notify.NewService(recorder, notify.ChannelSMS, "", "", zerolog.Nop())

		svc.UndeliveredMessage(ctx, "2", message.Envelope{
			SenderID:      "1",
			SenderMobile:  "+15550001",
			ActualMessage: "hi there",
			MessageType:   message.TypeChat,
		})

		events := recorder.ByTopic(notify.OfflineTopic)
		require.Len(t, events, 1)
		e := events[0]
		assert.Equal(t, int64(1), e.Notification.NotificationID)
		assert.Equal(t, notify.ChannelInApp, e.Notification.Channel)
		assert.Equal(t, map[string]string{
			"senderMobile":     "+15550001",
			"senderCustomerId": "1",
			"message":          "hi there",
		}, e.Notification.Map)
	})

	t.Run("file messages use the generic sentinel", func(t *testing.T) {
		recorder := notify.NewRecorder()
		svc := notify.NewService(recorder, notify.ChannelSMS, "", "", zerolog.Nop())

		svc.UndeliveredMessage(ctx, "2", message.Envelope{
			SenderID:    "1",
			Files:       map[string]string{"a.png": "aaaa"},
			MessageType: message.TypeFileNotification,
		})

		events := recorder.Events()
		require.Len(t, events, 1)
		assert.Equal(t, notify.GenericFileMessage, events[0].Notification.Map["message"])
	})
}

func TestService_NonNumericReceiverFallsBackToZero(t *testing.T) {
	recorder := notify.NewRecorder()
	svc := notify.NewService(recorder, "", "", "", zerolog.Nop())

	svc.OfflineMessage(context.Background(), "alice", "1", "hi", "m1", 0)

	events := recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(0), events[0].Notification.CustomerID)
}

func TestService_CustomTopicsAndChannel(t *testing.T) {
	recorder := notify.NewRecorder()
	svc := notify.NewService(recorder, notify.ChannelEmail, "custom-sample", "custom-offline", zerolog.Nop())

	svc.SampleMessage(context.Background(), "2", "hello")
	svc.OfflineMessage(context.Background(), "2", "1", "hello", "m1", 0)

	assert.Len(t, recorder.ByTopic("custom-sample"), 1)
	offlineEvents := recorder.ByTopic("custom-offline")
	require.Len(t, offlineEvents, 1)
	assert.Equal(t, notify.ChannelEmail, offlineEvents[0].Notification.Channel)
}
