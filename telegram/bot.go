package telegram

import (
	"errors"
	"fmt"
	"sync"

	"github.com/NicoNex/echotron/v3"
	"github.com/labstack/gommon/log"
)

// ErrNotConfigured is returned when no bot token or chat is set
var ErrNotConfigured = errors.New("telegram bot is not configured")

// Sender delivers documents to a single Telegram chat
type Sender struct {
	token  string
	chatID int64

	mu  sync.Mutex
	bot *echotron.API
}

// New returns a Sender. An empty token or zero chat id yields a disabled sender.
func New(token string, chatID int64) *Sender {
	return &Sender{token: token, chatID: chatID}
}

// Enabled reports whether the sender has a token and a destination chat
func (s *Sender) Enabled() bool {
	return s != nil && s.token != "" && s.chatID != 0
}

func (s *Sender) api() (*echotron.API, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bot != nil {
		return s.bot, nil
	}

	bot := echotron.NewAPI(s.token)
	res, err := bot.GetMe()
	if err != nil {
		return nil, fmt.Errorf("unable to connect to bot: %w", err)
	}
	if !res.Ok {
		return nil, fmt.Errorf("unable to connect to bot: %s", res.Description)
	}
	log.Infof("[Telegram] Authorized as %s", res.Result.Username)

	s.bot = &bot
	return s.bot, nil
}

// SendDocument uploads data as a file named name with an optional caption
func (s *Sender) SendDocument(name string, data []byte, caption string) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}

	bot, err := s.api()
	if err != nil {
		return err
	}

	doc := echotron.NewInputFileBytes(name, data)
	res, err := bot.SendDocument(doc, s.chatID, &echotron.DocumentOptions{Caption: caption})
	if err != nil {
		log.Error(err)
		return fmt.Errorf("unable to send %s", name)
	}
	if !res.Ok {
		return fmt.Errorf("unable to send %s: %s", name, res.Description)
	}
	return nil
}
