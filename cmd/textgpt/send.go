package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshua2020181/textgpt/internal/biz/repo"
	"github.com/joshua2020181/textgpt/internal/conf"
	"github.com/joshua2020181/textgpt/internal/data"
	"github.com/joshua2020181/textgpt/internal/infra/feishu"
	"github.com/joshua2020181/textgpt/internal/service"
)

var sendChannel string

var sendCmd = &cobra.Command{
	Use:   "send <recipient> <message>",
	Short: "Send one outbound message, bypassing sessions and quota",
	Args:  cobra.ExactArgs(2),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendChannel, "channel", service.ChannelSMS, "channel to send on (sms, feishu)")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	sender, err := newSender(cfg, sendChannel)
	if err != nil {
		return err
	}

	if err := sender.SendText(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Message sent successfully!")
	return nil
}

// newSender builds the outbound repository for a single channel
func newSender(cfg *conf.Config, channel string) (repo.MessageRepo, error) {
	switch channel {
	case service.ChannelSMS:
		if !cfg.Twilio.Enabled() {
			return nil, &conf.ConfigError{Field: "TWILIO_ACCOUNT_SID", Message: "required for sms"}
		}
		return data.NewTwilioRepo(data.TwilioConfig{
			AccountSID:  cfg.Twilio.AccountSID,
			AuthToken:   cfg.Twilio.AuthToken,
			PhoneNumber: cfg.Twilio.PhoneNumber,
		}), nil
	case service.ChannelFeishu:
		if !cfg.Feishu.Enabled() {
			return nil, &conf.ConfigError{Field: "FEISHU_APP_ID", Message: "required for feishu"}
		}
		return data.NewFeishuRepo(feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)), nil
	default:
		return nil, fmt.Errorf("unknown channel: %s", channel)
	}
}
