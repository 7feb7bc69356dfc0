package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cinematch/core/internal/agent"
	agent_api "github.com/cinematch/core/internal/agent/api"
	agent_channel "github.com/cinematch/core/internal/agent/channel"
	agent_token "github.com/cinematch/core/internal/agent/token"
	"github.com/cinematch/core/internal/model"
)

const apiPrefix = "/api/v1"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "login":
			login(os.Args[2:])
			return
		case "logout":
			logout(os.Args[2:])
			return
		}
	}

	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	group := flag.String("group", "", "group id to match in")
	credsPath := flag.String("creds", agent_token.DefaultPath(), "credentials file")
	flag.Parse()

	if *group == "" {
		fmt.Fprintln(os.Stderr, "usage: agent [login|logout] | agent -group <group_id> [-url ...]")
		os.Exit(1)
	}

	store := agent_token.NewFileStore(*credsPath)
	creds, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load credentials: %v\n", err)
		os.Exit(1)
	}

	wsURL, err := channelURL(*baseURL, creds.Token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad server URL: %v\n", err)
		os.Exit(1)
	}

	api := agent_api.New(*baseURL+apiPrefix, creds.Token)
	channel := agent_channel.New(wsURL)

	ag := agent.New(api, channel,
		model.GroupID(*group),
		model.UserRoom(creds.UserID),
	)
	defer ag.Close()

	ctx := context.Background()
	if err := ag.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cannot start session: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Matching in group %s. Vote y/n, q to quit.\n\n", *group)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if s := ag.State(); s.Terminal() {
			break
		}

		candidate, ok := ag.Current()
		if !ok {
			break
		}
		fmt.Printf("%s (%d) rating %.1f\n", candidate.Title, candidate.Year, candidate.Rating)
		if candidate.Overview != "" {
			fmt.Printf("  %s\n", candidate.Overview)
		}
		fmt.Print("like? [y/n/q] ")

		if !scanner.Scan() {
			return
		}
		input := strings.ToLower(strings.TrimSpace(scanner.Text()))

		switch input {
		case "q":
			return
		case "y", "n":
			if err := ag.VoteCurrent(ctx, input == "y"); err != nil {
				fmt.Printf("vote failed: %v (retry)\n", err)
			}
		default:
			fmt.Println("y, n or q")
		}
	}

	if ag.State() == agent.StateExhausted {
		// A winner decided while the last vote raced the channel shows
		// up in the authoritative snapshot.
		_ = ag.Resync(ctx)
	}

	switch ag.State() {
	case agent.StateDecided:
		if winner := ag.Winner(); winner != nil {
			fmt.Printf("\nIt's a match: %s (%d)\n", winner.Title, winner.Year)
		}
	case agent.StateExhausted:
		fmt.Println("\nNo match this time: candidates exhausted.")
	case agent.StateError:
		fmt.Printf("\nSession failed: %v\n", ag.Err())
	}
}

// login stores a bearer token issued by the auth service. Only the
// server verifies the signature; here the subject is read unverified
// to know which user room to join.
func login(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	token := fs.String("token", "", "bearer token")
	credsPath := fs.String("creds", agent_token.DefaultPath(), "credentials file")
	_ = fs.Parse(args)

	if *token == "" {
		fmt.Fprintln(os.Stderr, "usage: agent login -token <jwt>")
		os.Exit(1)
	}

	userID, err := tokenSubject(*token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad token: %v\n", err)
		os.Exit(1)
	}

	store := agent_token.NewFileStore(*credsPath)
	if err := store.Save(agent_token.Credentials{Token: *token, UserID: userID}); err != nil {
		fmt.Fprintf(os.Stderr, "cannot save credentials: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("logged in as %s\n", userID)
}

func logout(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	credsPath := fs.String("creds", agent_token.DefaultPath(), "credentials file")
	_ = fs.Parse(args)

	store := agent_token.NewFileStore(*credsPath)
	if err := store.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot clear credentials: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("logged out")
}

func tokenSubject(token string) (uuid.UUID, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return uuid.Nil, err
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(subject)
}

func channelURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}

	ws := url.URL{
		Scheme:   scheme,
		Host:     u.Host,
		Path:     apiPrefix + "/ws",
		RawQuery: "token=" + url.QueryEscape(token),
	}
	return ws.String(), nil
}
