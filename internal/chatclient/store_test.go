package chatclient

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"chat-realtime-api/internal/models"

	"github.com/stretchr/testify/require"
)

func msg(id, from, to, text string) models.Message {
	return models.Message{ID: id, SenderID: from, ReceiverID: to, Text: text, CreatedAt: time.Now().UTC()}
}

func ids(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestStore_LiveArrivalDeduplicatedByID(t *testing.T) {
	st := NewStore("me")
	st.Dispatch(HistoryLoaded{Partner: "bob", Messages: []models.Message{msg("m-1", "bob", "me", "hi")}})

	m := msg("m-2", "me", "bob", "hello")
	st.Dispatch(MessageArrived{Message: m})
	before := st.Snapshot().Conversation("bob")

	st.Dispatch(MessageArrived{Message: m})
	after := st.Snapshot().Conversation("bob")

	require.Equal(t, before, after)
	require.Equal(t, []string{"m-1", "m-2"}, ids(after))
}

func TestStore_PartnerIsTheOtherParty(t *testing.T) {
	st := NewStore("me")
	st.Dispatch(MessageArrived{Message: msg("m-1", "me", "bob", "out")})
	st.Dispatch(MessageArrived{Message: msg("m-2", "bob", "me", "in")})
	st.Dispatch(MessageArrived{Message: msg("m-3", "me", "me", "note to self")})

	snap := st.Snapshot()
	require.Equal(t, []string{"m-1", "m-2"}, ids(snap.Conversation("bob")))
	require.Equal(t, []string{"m-3"}, ids(snap.Conversation("me")))
}

func TestStore_IgnoresForeignAndIDlessMessages(t *testing.T) {
	st := NewStore("me")
	st.Dispatch(MessageArrived{Message: msg("m-1", "alice", "bob", "not mine")})
	st.Dispatch(MessageArrived{Message: msg("", "bob", "me", "no id")})
	require.Empty(t, st.Snapshot().Buckets)
}

func TestStore_HistoryMergesEarlierLiveArrivals(t *testing.T) {
	st := NewStore("me")
	st.Dispatch(MessageArrived{Message: msg("m-2", "bob", "me", "live, also in history")})
	st.Dispatch(MessageArrived{Message: msg("m-3", "bob", "me", "live only")})
	require.False(t, st.Loaded("bob"))

	st.Dispatch(HistoryLoaded{Partner: "bob", Messages: []models.Message{
		msg("m-1", "me", "bob", "old"),
		msg("m-2", "bob", "me", "live, also in history"),
	}})

	require.True(t, st.Loaded("bob"))
	require.Equal(t, []string{"m-1", "m-2", "m-3"}, ids(st.Snapshot().Conversation("bob")))
}

func TestStore_SelectingPartnerLeavesOtherBucketsAlone(t *testing.T) {
	st := NewStore("me")
	st.Dispatch(HistoryLoaded{Partner: "bob", Messages: []models.Message{msg("m-1", "bob", "me", "hi")}})
	st.Dispatch(HistoryLoaded{Partner: "carol", Messages: []models.Message{msg("m-2", "carol", "me", "yo")}})
	before := st.Snapshot()

	st.Dispatch(PartnerSelected{Partner: "carol"})
	st.Dispatch(HistoryLoaded{Partner: "dave", Messages: nil})

	after := st.Snapshot()
	require.Equal(t, "carol", after.Selected)
	require.Equal(t, before.Buckets["bob"], after.Buckets["bob"])
	require.Equal(t, before.Buckets["carol"], after.Buckets["carol"])
	require.True(t, after.Buckets["dave"].Loaded)
	require.Empty(t, after.Conversation("dave"))
}

func TestStore_SnapshotIsDeepCopy(t *testing.T) {
	st := NewStore("me")
	st.Dispatch(HistoryLoaded{Partner: "bob", Messages: []models.Message{msg("m-1", "bob", "me", "hi")}})
	st.Dispatch(OnlineChanged{Online: []string{"bob"}})

	snap := st.Snapshot()
	snap.Buckets["bob"].Messages[0].Text = "tampered"
	snap.Online[0] = "mallory"

	fresh := st.Snapshot()
	require.Equal(t, "hi", fresh.Conversation("bob")[0].Text)
	require.True(t, fresh.IsOnline("bob"))
	require.False(t, fresh.IsOnline("mallory"))
}

func TestStore_LoadingCountsOverlappingRequests(t *testing.T) {
	st := NewStore("me")
	st.Dispatch(LoadingChanged{Target: LoadingMessages, Loading: true})
	st.Dispatch(LoadingChanged{Target: LoadingMessages, Loading: true})
	st.Dispatch(LoadingChanged{Target: LoadingMessages, Loading: false})
	require.True(t, st.Snapshot().MessagesLoading)
	require.False(t, st.Snapshot().UsersLoading)

	st.Dispatch(LoadingChanged{Target: LoadingMessages, Loading: false})
	st.Dispatch(LoadingChanged{Target: LoadingMessages, Loading: false})
	require.False(t, st.Snapshot().MessagesLoading)
}

func TestStore_OnlineAndNotices(t *testing.T) {
	st := NewStore("me")
	require.NotNil(t, st.Snapshot().Online)

	st.Dispatch(OnlineChanged{Online: nil})
	require.Equal(t, []string{}, st.Snapshot().Online)

	st.Dispatch(NoticeRaised{Text: "Failed to send message"})
	require.Equal(t, []string{"Failed to send message"}, st.Snapshot().Notices)
}

func TestStore_SubscribersSeeEveryDispatch(t *testing.T) {
	st := NewStore("me")
	var (
		mu   sync.Mutex
		seen []Action
	)
	st.Subscribe(func(a Action, s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, a)
		if _, ok := a.(PartnerSelected); ok {
			require.Equal(t, "bob", s.Selected)
		}
	})

	st.Dispatch(PartnerSelected{Partner: "bob"})
	st.Dispatch(NoticeRaised{Text: "x"})
	require.Len(t, seen, 2)
}

func TestStore_ConcurrentFetchesForDifferentPartners(t *testing.T) {
	st := NewStore("me")
	partners := []string{"a", "b", "c", "d", "e"}
	var wg sync.WaitGroup
	for _, p := range partners {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Every id is sent twice.
			for j := 0; j < 52; j++ {
				st.Dispatch(MessageArrived{Message: msg(fmt.Sprintf("%s-%d", p, j%26), p, "me", "x")})
			}
			st.Dispatch(HistoryLoaded{Partner: p})
		}()
	}
	wg.Wait()

	snap := st.Snapshot()
	for _, p := range partners {
		require.True(t, snap.Buckets[p].Loaded)
		require.Len(t, snap.Conversation(p), 26)
	}
}
