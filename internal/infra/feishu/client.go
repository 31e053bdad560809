package feishu

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const chatTypeP2P = "p2p"

// Message represents a received private text message
type Message struct {
	MsgID    string
	SenderID string // open_id of the sender
	Text     string
}

// MessageHandler is the callback for received messages.
// It runs on the event loop and must not block.
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	logger    zerolog.Logger
	cancel    context.CancelFunc
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		logger:    log.Logger.With().Str("component", "feishu").Logger(),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and blocks until ctx is done
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	// The handler must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			if msg, ok := parseEvent(event); ok && c.onMessage != nil {
				c.onMessage(msg)
			}
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.logger.Info().Msg("Starting WebSocket connection")
	return c.wsCli.Start(ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// parseEvent extracts a private text message; anything else is ignored
func parseEvent(event *larkim.P2MessageReceiveV1) (*Message, bool) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil, false
	}
	raw := event.Event.Message
	sender := event.Event.Sender

	// Messages sent by the bot itself would loop
	if sender == nil || sender.SenderType == nil || *sender.SenderType == "app" {
		return nil, false
	}
	if sender.SenderId == nil || sender.SenderId.OpenId == nil {
		return nil, false
	}
	if raw.ChatType == nil || *raw.ChatType != chatTypeP2P {
		return nil, false
	}
	if raw.MessageType == nil || *raw.MessageType != larkim.MsgTypeText || raw.Content == nil {
		return nil, false
	}

	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(*raw.Content), &content); err != nil {
		return nil, false
	}

	msg := &Message{
		SenderID: *sender.SenderId.OpenId,
		Text:     content.Text,
	}
	if raw.MessageId != nil {
		msg.MsgID = *raw.MessageId
	}
	return msg, true
}

// SendText sends a text message to a user identified by open_id
func (c *Client) SendText(ctx context.Context, openID, text string) error {
	contentJSON, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeOpenId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	c.logger.Debug().Str("to", openID).Msg("Message sent")
	return nil
}
