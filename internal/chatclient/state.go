package chatclient

import (
	"slices"

	"chat-realtime-api/internal/cache"
	"chat-realtime-api/internal/models"
)

// Bucket is one partner's conversation in arrival order, unique by message id.
type Bucket struct {
	// Loaded is set once the history fetch for the partner has completed.
	Loaded   bool
	Messages []models.Message

	ids map[string]struct{}
}

func newBucket() *Bucket {
	return &Bucket{ids: make(map[string]struct{})}
}

// Has reports whether a message with id is already in the bucket.
func (b *Bucket) Has(id string) bool {
	_, ok := b.ids[id]
	return ok
}

// add appends m unless its id is already present.
func (b *Bucket) add(m models.Message) bool {
	if b.Has(m.ID) {
		return false
	}
	b.ids[m.ID] = struct{}{}
	b.Messages = append(b.Messages, m)
	return true
}

func (b *Bucket) clone() *Bucket {
	out := &Bucket{
		Loaded:   b.Loaded,
		Messages: slices.Clone(b.Messages),
		ids:      make(map[string]struct{}, len(b.ids)),
	}
	for id := range b.ids {
		out.ids[id] = struct{}{}
	}
	return out
}

// State is a point-in-time view of the client.
type State struct {
	Self     string
	Users    []models.Profile
	Online   []string
	Selected string
	// Buckets is keyed by conversation partner id.
	Buckets         map[string]*Bucket
	Notices         []string
	UsersLoading    bool
	MessagesLoading bool
}

// IsOnline reports whether userID is in the last presence broadcast.
func (s State) IsOnline(userID string) bool {
	return slices.Contains(s.Online, userID)
}

// Conversation returns the messages exchanged with partner, or nil.
func (s State) Conversation(partner string) []models.Message {
	if b, ok := s.Buckets[partner]; ok {
		return b.Messages
	}
	return nil
}

// Action is a state transition handled by the reducer.
type Action interface {
	isAction()
}

type LoadingTarget int

const (
	LoadingUsers LoadingTarget = iota
	LoadingMessages
)

type (
	UsersLoaded struct {
		Users []models.Profile
	}
	// LoadingChanged marks the start (Loading=true) or end of one request.
	LoadingChanged struct {
		Target  LoadingTarget
		Loading bool
	}
	HistoryLoaded struct {
		Partner  string
		Messages []models.Message
	}
	MessageArrived struct {
		Message models.Message
	}
	OnlineChanged struct {
		Online []string
	}
	PartnerSelected struct {
		Partner string
	}
	NoticeRaised struct {
		Text string
	}
)

func (UsersLoaded) isAction()     {}
func (LoadingChanged) isAction()  {}
func (HistoryLoaded) isAction()   {}
func (MessageArrived) isAction()  {}
func (OnlineChanged) isAction()   {}
func (PartnerSelected) isAction() {}
func (NoticeRaised) isAction()    {}

// state is the mutable form behind Store. Buckets sit in an unlocked cache;
// Store's mutex serializes every access.
type state struct {
	self     string
	users    []models.Profile
	online   []string
	selected string
	buckets  cache.Cache[string, *Bucket]
	notices  []string

	usersInFlight    int
	messagesInFlight int
}

func newState(self string) *state {
	return &state{
		self:    self,
		online:  []string{},
		buckets: cache.NewSimpleCache[string, *Bucket](cache.Options{ConcurrencySafe: false}),
	}
}

func reduce(s *state, a Action) {
	switch a := a.(type) {
	case UsersLoaded:
		s.users = slices.Clone(a.Users)

	case LoadingChanged:
		counter := &s.usersInFlight
		if a.Target == LoadingMessages {
			counter = &s.messagesInFlight
		}
		if a.Loading {
			*counter++
		} else if *counter > 0 {
			*counter--
		}

	case HistoryLoaded:
		// History order first, then live arrivals the history did not contain.
		merged := newBucket()
		merged.Loaded = true
		for _, m := range a.Messages {
			if m.ID != "" {
				merged.add(m)
			}
		}
		if prev, ok := s.buckets.Get(a.Partner); ok {
			for _, m := range prev.Messages {
				merged.add(m)
			}
		}
		s.buckets.Set(a.Partner, merged)

	case MessageArrived:
		m := a.Message
		if m.ID == "" || (m.SenderID != s.self && m.ReceiverID != s.self) {
			return
		}
		s.buckets.Update(m.PartnerOf(s.self), func(b *Bucket, ok bool) *Bucket {
			if !ok {
				b = newBucket()
			}
			b.add(m)
			return b
		})

	case OnlineChanged:
		s.online = slices.Clone(a.Online)
		if s.online == nil {
			s.online = []string{}
		}

	case PartnerSelected:
		s.selected = a.Partner

	case NoticeRaised:
		s.notices = append(s.notices, a.Text)
	}
}

func (s *state) snapshot() State {
	out := State{
		Self:            s.self,
		Users:           slices.Clone(s.users),
		Online:          slices.Clone(s.online),
		Selected:        s.selected,
		Buckets:         make(map[string]*Bucket, s.buckets.Len()),
		Notices:         slices.Clone(s.notices),
		UsersLoading:    s.usersInFlight > 0,
		MessagesLoading: s.messagesInFlight > 0,
	}
	for _, partner := range s.buckets.Keys() {
		if b, ok := s.buckets.Get(partner); ok {
			out.Buckets[partner] = b.clone()
		}
	}
	return out
}
