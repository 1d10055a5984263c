package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tml-rank-card/fetcher"
	"tml-rank-card/parser"
	"tml-rank-card/pipeline"
	"tml-rank-card/publisher"
	"tml-rank-card/selector"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

var (
	// ErrQueueFull is returned by Enqueue when too many requests are pending
	ErrQueueFull = errors.New("request queue is full")
	// ErrStopped is returned by Enqueue after Stop
	ErrStopped = errors.New("scheduler stopped")
)

// Runner produces a published card for an identifier
type Runner interface {
	Run(ctx context.Context, id string) (*pipeline.Result, error)
}

// Sender is the part of the Telegram API the scheduler talks to
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Request is one queued card request from a chat
type Request struct {
	ChatID     int64
	UserID     int64
	MessageID  int // Status message the replies thread under
	Identifier string
}

// Scheduler processes card requests one at a time
type Scheduler struct {
	runner  Runner
	bot     Sender
	queue   chan Request
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewScheduler creates a new scheduler with room for queueSize pending requests
func NewScheduler(runner Runner, bot Sender, queueSize int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if queueSize < 1 {
		queueSize = 1
	}

	return &Scheduler{
		runner:  runner,
		bot:     bot,
		queue:   make(chan Request, queueSize),
		timeout: 2 * time.Minute,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start starts the scheduler in a goroutine
func (s *Scheduler) Start() {
	s.started = true
	go s.run()
}

// Stop stops the scheduler and waits for the current request to finish
func (s *Scheduler) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	log.Info().Msg("Scheduler stopped")
}

// Enqueue adds a request without blocking
func (s *Scheduler) Enqueue(req Request) error {
	if s.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case s.queue <- req:
		log.Debug().Int64("user", req.UserID).Str("id", req.Identifier).Int("pending", len(s.queue)).Msg("Queued request")
		return nil
	default:
		return ErrQueueFull
	}
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.queue:
			s.processRequest(req)
		}
	}
}

// processRequest renders and publishes one card and reports back to the chat
func (s *Scheduler) processRequest(req Request) {
	log.Info().Int64("user", req.UserID).Str("id", req.Identifier).Msg("Processing request")
	s.sendStatusUpdate(req, "🔄 Processing request... Fetching rankings...")

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	res, err := s.runner.Run(ctx, req.Identifier)
	if err != nil {
		s.handleRequestError(req, err)
		return
	}

	photo := tgbotapi.NewPhoto(req.ChatID, tgbotapi.FileURL(res.URL))
	photo.ReplyToMessageID = req.MessageID
	photo.Caption = caption(res)
	if _, err := s.bot.Send(photo); err != nil {
		// Telegram could not fetch the image; the link still works
		log.Warn().Err(err).Str("url", res.URL).Msg("Failed to send card photo")
		s.sendStatusUpdate(req, fmt.Sprintf("✅ Card ready: %s", res.URL))
	}
}

// caption summarises the top record under the card
func caption(res *pipeline.Result) string {
	top, ok := res.Records.Top()
	if !ok {
		return res.URL
	}
	return fmt.Sprintf(
		"🏆 %s\nRank: %s\nDownloads: %s (%s yesterday)\n%d mods in total\n\n%s",
		top.DisplayName, top.RankTotal, top.DownloadsTotal, top.DownloadsYesterday, len(res.Records), res.URL)
}

// handleRequestError handles errors during request processing
func (s *Scheduler) handleRequestError(req Request, err error) {
	log.Error().Err(err).Int64("user", req.UserID).Str("id", req.Identifier).Msg("Request failed")
	s.sendStatusUpdate(req, "❌ "+describeError(err))
}

// describeError turns pipeline failures into messages for the user
func describeError(err error) string {
	var (
		fetchErr   *fetcher.FetchError
		parseErr   *parser.ParseError
		publishErr *publisher.PublishError
	)

	switch {
	case errors.Is(err, fetcher.ErrInvalidIdentifier):
		return "Please send a Steam ID 64."
	case errors.Is(err, selector.ErrNoRecords):
		return "No mods found for this Steam ID."
	case errors.As(err, &fetchErr):
		return "The ranking site could not be reached. Try again later."
	case errors.As(err, &parseErr):
		return "The ranking page has an unexpected layout."
	case errors.As(err, &publishErr):
		return "The card was rendered but could not be uploaded. Try again later."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request took too long. Try again later."
	default:
		return "Something went wrong while making the card."
	}
}

// sendStatusUpdate sends a status update message to Telegram
func (s *Scheduler) sendStatusUpdate(req Request, text string) {
	msg := tgbotapi.NewMessage(req.ChatID, text)
	msg.ReplyToMessageID = req.MessageID
	if _, err := s.bot.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Error sending status update")
	}
}
