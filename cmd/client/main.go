package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chat-realtime-api/internal/chatclient"
	"chat-realtime-api/internal/config"
	"chat-realtime-api/internal/logging"

	"go.uber.org/zap"
)

const usage = `commands:
  users                 list users and who is online
  open <userId>         load and show the conversation with userId
  to <userId> <text>    send a message
  quit`

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logging.NewLogger("warn", true)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := chatclient.NewAPIClient(cfg.ServerURL, cfg.Timeout)
	if err != nil {
		log.Fatal("invalid server url", zap.Error(err))
	}
	me, err := api.Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		log.Fatal("login failed", zap.Error(err))
	}
	live, err := chatclient.DialLive(ctx, api.ServerURL(), api.Token(), log)
	if err != nil {
		log.Fatal("live channel unavailable", zap.Error(err))
	}
	defer func() { _ = live.Close() }()

	st := chatclient.NewStore(me.ID)
	coord := chatclient.NewCoordinator(api, live, st, log)
	st.Subscribe(func(a chatclient.Action, s chatclient.State) {
		switch a := a.(type) {
		case chatclient.MessageArrived:
			m := a.Message
			fmt.Printf("[%s -> %s] %s%s\n", coord.DisplayName(m.SenderID), coord.DisplayName(m.ReceiverID), m.Text, imageSuffix(m.Image))
		case chatclient.OnlineChanged:
			names := make([]string, 0, len(s.Online))
			for _, id := range s.Online {
				names = append(names, coord.DisplayName(id))
			}
			fmt.Printf("* online: %s\n", strings.Join(names, ", "))
		case chatclient.NoticeRaised:
			fmt.Printf("! %s\n", a.Text)
		}
	})

	if err := coord.LoadUsers(ctx); err != nil {
		log.Warn("could not load users", zap.Error(err))
	}
	fmt.Printf("logged in as %s (%s)\n%s\n", me.FullName, me.ID, usage)

	go func() {
		if err := live.Run(ctx, coord.HandleEvent); err != nil {
			log.Error("live channel closed", zap.Error(err))
		}
		stop()
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := runCommand(ctx, coord, st, strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

func runCommand(ctx context.Context, coord *chatclient.Coordinator, st *chatclient.Store, line string) (quit bool) {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "":
	case "quit", "exit":
		return true
	case "users":
		if err := coord.LoadUsers(ctx); err != nil {
			return false
		}
		snap := st.Snapshot()
		for _, u := range snap.Users {
			status := "offline"
			if snap.IsOnline(u.ID) {
				status = "online"
			}
			fmt.Printf("  %s  %-20s %s\n", u.ID, u.FullName, status)
		}
	case "open":
		partner := strings.TrimSpace(rest)
		if err := coord.SelectPartner(ctx, partner); err != nil {
			return false
		}
		for _, m := range st.Snapshot().Conversation(partner) {
			fmt.Printf("  %s %s: %s%s\n", m.CreatedAt.Local().Format("15:04"), coord.DisplayName(m.SenderID), m.Text, imageSuffix(m.Image))
		}
	case "to":
		partner, text, found := strings.Cut(strings.TrimSpace(rest), " ")
		if !found || strings.TrimSpace(text) == "" {
			fmt.Println(usage)
			return false
		}
		// Errors already surface as notices.
		_, _ = coord.Send(ctx, partner, text, "")
	default:
		fmt.Println(usage)
	}
	return false
}

func imageSuffix(image string) string {
	if image == "" {
		return ""
	}
	return " [image: " + image + "]"
}
