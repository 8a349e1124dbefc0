package webhook

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Sender delivers a reply for a webhook reply token.
type Sender interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// LINESender replies through the Messaging API.
type LINESender struct {
	client *messaging_api.MessagingApiAPI
}

// NewLINESender builds a Messaging API client for channelAccessToken.
func NewLINESender(channelAccessToken string) (*LINESender, error) {
	client, err := messaging_api.NewMessagingApiAPI(channelAccessToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging api client: %w", err)
	}
	return &LINESender{client: client}, nil
}

func (s *LINESender) Reply(ctx context.Context, replyToken, text string) error {
	_, err := s.client.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	})
	if err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	return nil
}
