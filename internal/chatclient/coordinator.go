package chatclient

import (
	"context"
	"encoding/json"

	"chat-realtime-api/internal/cache"
	"chat-realtime-api/internal/models"
	"chat-realtime-api/internal/realtime"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// API is the REST surface the coordinator needs. *APIClient implements it.
type API interface {
	Users(ctx context.Context) ([]models.Profile, error)
	Messages(ctx context.Context, partner string) ([]models.Message, error)
	SendMessage(ctx context.Context, receiver, text, image string) (models.Message, error)
}

// Emitter submits stored messages on the live channel. *LiveConn implements it.
type Emitter interface {
	Submit(msg models.Message) error
}

// Coordinator drives the store from REST calls and live events.
type Coordinator struct {
	api   API
	live  Emitter
	store *Store
	log   *zap.Logger

	fetches  singleflight.Group
	profiles *cache.SimpleCache[string, models.Profile]
}

func NewCoordinator(api API, live Emitter, store *Store, log *zap.Logger) *Coordinator {
	return &Coordinator{
		api:      api,
		live:     live,
		store:    store,
		log:      log.With(zap.String("component", "coordinator")),
		profiles: cache.NewSimpleCache[string, models.Profile](cache.Options{ConcurrencySafe: true}),
	}
}

// LoadUsers fetches the user list.
func (c *Coordinator) LoadUsers(ctx context.Context) error {
	c.store.Dispatch(LoadingChanged{Target: LoadingUsers, Loading: true})
	defer c.store.Dispatch(LoadingChanged{Target: LoadingUsers, Loading: false})

	users, err := c.api.Users(ctx)
	if err != nil {
		c.store.Dispatch(NoticeRaised{Text: "Failed to load users"})
		return err
	}
	for _, u := range users {
		c.profiles.Set(u.ID, u)
	}
	c.store.Dispatch(UsersLoaded{Users: users})
	return nil
}

// DisplayName returns the full name of a loaded user, or the id itself.
func (c *Coordinator) DisplayName(userID string) string {
	if p, ok := c.profiles.Get(userID); ok && p.FullName != "" {
		return p.FullName
	}
	return userID
}

// SelectPartner switches the open conversation and makes sure its history is loaded.
func (c *Coordinator) SelectPartner(ctx context.Context, partner string) error {
	c.store.Dispatch(PartnerSelected{Partner: partner})
	return c.FetchHistory(ctx, partner)
}

// FetchHistory loads partner's conversation once per session. Concurrent
// calls for the same partner share one request.
func (c *Coordinator) FetchHistory(ctx context.Context, partner string) error {
	if c.store.Loaded(partner) {
		return nil
	}
	_, err, _ := c.fetches.Do(partner, func() (any, error) {
		if c.store.Loaded(partner) {
			return nil, nil
		}
		c.store.Dispatch(LoadingChanged{Target: LoadingMessages, Loading: true})
		defer c.store.Dispatch(LoadingChanged{Target: LoadingMessages, Loading: false})

		msgs, err := c.api.Messages(ctx, partner)
		if err != nil {
			c.store.Dispatch(NoticeRaised{Text: "Failed to load messages"})
			return nil, err
		}
		c.store.Dispatch(HistoryLoaded{Partner: partner, Messages: msgs})
		return nil, nil
	})
	return err
}

// Send persists a message, then emits the stored record on the live channel.
// Nothing is emitted when persistence fails, and nothing is appended locally:
// the sender's copy arrives through the live echo.
func (c *Coordinator) Send(ctx context.Context, receiver, text, image string) (models.Message, error) {
	msg, err := c.api.SendMessage(ctx, receiver, text, image)
	if err != nil {
		c.store.Dispatch(NoticeRaised{Text: "Failed to send message"})
		return models.Message{}, err
	}
	if err := c.live.Submit(msg); err != nil {
		c.log.Warn("live submit failed", zap.String("message_id", msg.ID), zap.Error(err))
		c.store.Dispatch(NoticeRaised{Text: "Message saved but not delivered live"})
		return msg, errors.Wrap(err, "emit message")
	}
	return msg, nil
}

// HandleEvent applies one live-channel envelope to the store.
func (c *Coordinator) HandleEvent(env realtime.Envelope) error {
	switch env.Event {
	case realtime.EventPresenceChanged:
		var online []string
		if err := json.Unmarshal(env.Data, &online); err != nil {
			return errors.Wrap(err, "decode presence")
		}
		c.store.Dispatch(OnlineChanged{Online: online})
	case realtime.EventMessageDelivered:
		var msg models.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return errors.Wrap(err, "decode message")
		}
		c.store.Dispatch(MessageArrived{Message: msg})
	default:
		c.log.Debug("ignoring event", zap.String("event", string(env.Event)))
	}
	return nil
}
