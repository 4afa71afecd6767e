package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	td "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pbot/pkg/config"
)

const batchBufferSize = 64

// Client is the MTProto-backed Conn for one user account.
//
// Commands are only valid inside the function passed to Run.
type Client struct {
	cfg  config.TelegramConfig
	log  *slog.Logger
	auth auth.UserAuthenticator

	client  *td.Client
	gaps    *updates.Manager
	peers   *peerResolver
	limiter *rate.Limiter

	// cmdMu serializes remote commands over the single session.
	cmdMu sync.Mutex

	mu     sync.RWMutex
	api    *tg.Client
	sender *message.Sender
	self   UserRef

	batches   chan []Update
	done      chan struct{}
	closeOnce sync.Once
	streamErr error
}

// NewClient configures the session; nothing touches the network until Run.
func NewClient(cfg config.TelegramConfig, authenticator auth.UserAuthenticator, log *slog.Logger, protoLog *zap.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if protoLog == nil {
		protoLog = zap.NewNop()
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &Client{
		cfg:     cfg,
		log:     log.With("component", "telegram.client"),
		auth:    authenticator,
		limiter: rate.NewLimiter(limit, burst),
		batches: make(chan []Update, batchBufferSize),
		done:    make(chan struct{}),
	}

	c.client = td.NewClient(cfg.APIID, cfg.APIHash, td.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionPath},
		UpdateHandler: td.UpdateHandlerFunc(func(ctx context.Context, u tg.UpdatesClass) error {
			return c.gaps.Handle(ctx, u)
		}),
		Logger: protoLog,
	})
	c.peers = newPeerResolver(c.client.API(), c.log, protoLog.Named("peers"))
	c.gaps = updates.New(updates.Config{
		Handler:      c,
		AccessHasher: c.peers.peers,
		Logger:       protoLog.Named("gaps"),
	})

	return c
}

// Run connects, logs in if the stored session is not authorized, starts receiving updates
// and calls fn. Cancelling ctx before fn starts aborts the connection; afterwards it only
// cancels fn's context and the connection is torn down once fn returns.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	conn := newLifetime(ctx)
	defer conn.release()

	return c.client.Run(conn.ctx, func(connCtx context.Context) error {
		c.log.Info("Connected to Telegram")

		if err := c.authorize(connCtx); err != nil {
			return err
		}

		user, err := c.peers.peers.Self(connCtx)
		if err != nil {
			return fmt.Errorf("get self: %w", err)
		}
		self := userRef(user.Raw())
		self.Self = true

		api := c.client.API()
		c.mu.Lock()
		c.api = api
		c.sender = message.NewSender(api)
		c.self = self
		c.mu.Unlock()

		c.log.Info("Logged in", "user_id", self.ID, "name", self.FullName())

		if !conn.serve() {
			return ctx.Err()
		}

		runCtx, cancelRun := context.WithCancel(ctx)
		defer cancelRun()
		stopWatch := context.AfterFunc(connCtx, cancelRun)
		defer stopWatch()

		gapsCtx, stopGaps := context.WithCancel(connCtx)
		defer stopGaps()

		var g errgroup.Group
		g.Go(func() error {
			err := c.gaps.Run(gapsCtx, api, self.ID, updates.AuthOptions{
				OnStart: func(context.Context) {
					c.log.Debug("Update stream started")
				},
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				c.closeStream(fmt.Errorf("receive updates: %w", err))
				cancelRun()
				return err
			}
			c.closeStream(nil)
			return nil
		})
		g.Go(func() error {
			defer stopGaps()
			return fn(runCtx)
		})

		return g.Wait()
	})
}

// lifetime owns the connection context. The caller's cancellation closes it only
// until serving begins; from then on only release closes it.
type lifetime struct {
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool

	mu      sync.Mutex
	serving bool
}

func newLifetime(parent context.Context) *lifetime {
	l := &lifetime{}
	l.ctx, l.cancel = context.WithCancel(context.WithoutCancel(parent))
	l.stop = context.AfterFunc(parent, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if !l.serving {
			l.cancel()
		}
	})
	return l
}

// serve detaches the connection from the caller. It reports false if the caller
// was already cancelled.
func (l *lifetime) serve() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx.Err() != nil {
		return false
	}
	l.serving = true
	return true
}

func (l *lifetime) release() {
	l.stop()
	l.cancel()
}

// Login only performs the authorization flow, persisting the session file.
func (c *Client) Login(ctx context.Context) (UserRef, error) {
	var self UserRef
	err := c.client.Run(ctx, func(ctx context.Context) error {
		if err := c.authorize(ctx); err != nil {
			return err
		}
		user, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("get self: %w", err)
		}
		self = userRef(user)
		return nil
	})
	return self, err
}

func (c *Client) authorize(ctx context.Context) error {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("check authorization: %w", err)
	}
	if status.Authorized {
		c.log.Debug("Already authorized")
		return nil
	}

	if c.auth == nil {
		return errors.New("session is not authorized and no authenticator is configured")
	}

	c.log.Info("Authorizing", "session_path", c.cfg.SessionPath)
	flow := auth.NewFlow(c.auth, auth.SendCodeOptions{})
	if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	c.log.Info("Authorized successfully")
	return nil
}

// Handle receives gap-free update containers and queues them as batches.
func (c *Client) Handle(ctx context.Context, u tg.UpdatesClass) error {
	batch := c.peers.convertUpdates(ctx, u, c.Self())
	if len(batch) == 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return nil
	case c.batches <- batch:
		return nil
	}
}

// NextBatch returns the next queued batch. It reports false when ctx ends or the stream
// has closed, together with the stream error if it closed abnormally.
func (c *Client) NextBatch(ctx context.Context) ([]Update, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, nil
	case batch := <-c.batches:
		return batch, true, nil
	case <-c.done:
		return nil, false, c.streamErr
	}
}

func (c *Client) closeStream(err error) {
	c.closeOnce.Do(func() {
		c.streamErr = err
		close(c.done)
	})
}

// Self returns the logged-in account. It is the zero value before Run authorizes.
func (c *Client) Self() UserRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

func (c *Client) session() (*tg.Client, *message.Sender, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api, c.sender, c.api != nil
}

var _ Conn = (*Client)(nil)
