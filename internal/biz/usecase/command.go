package usecase

import (
	"fmt"
	"strings"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
)

// Command is a recognized message token answered without the completion provider
type Command string

const (
	CommandHelp  Command = "!help"
	CommandStats Command = "!stats"
)

// ParseCommand matches the trimmed text exactly (case-sensitive) against known commands
func ParseCommand(text string) (Command, bool) {
	switch cmd := Command(strings.TrimSpace(text)); cmd {
	case CommandHelp, CommandStats:
		return cmd, true
	default:
		return "", false
	}
}

func (uc *SessionUsecase) runCommand(cmd Command, session *domain.Session) string {
	switch cmd {
	case CommandStats:
		return FormatStats(session)
	default:
		return uc.config.HelpText
	}
}

// FormatStats formats the usage counters of a session
func FormatStats(session *domain.Session) string {
	return fmt.Sprintf("Total messages received: %d, Total messages sent: %d, Messages received today: %d",
		session.TotalReceived, session.TotalSent, session.ReceivedToday)
}
