// Command quizwire is a terminal player for the multiplayer bird quiz. It
// can create a game, join one by token, or resume the last session, and
// then drives the sync engine from stdin commands.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/birdr-pro/quizwire/internal/client"
	"github.com/birdr-pro/quizwire/internal/protocol"
	"github.com/birdr-pro/quizwire/internal/restapi"
	"github.com/birdr-pro/quizwire/internal/session"
	"github.com/birdr-pro/quizwire/internal/tokenstore"
)

var (
	server   = flag.String("server", "http://127.0.0.1:8050", "Backend base URL")
	name     = flag.String("name", "", "Player name (required for -create/-join)")
	create   = flag.Bool("create", false, "Create a new game and host it")
	join     = flag.String("join", "", "Join an existing game by token")
	length   = flag.Int("length", 10, "Question count when creating")
	mode     = flag.String("mode", "classic", "Game mode when creating: classic or challenge")
	language = flag.String("language", "en", "Language code sent on join")
	dataDir  = flag.String("data-dir", defaultDataDir(), "Directory for the persisted tokens")
	debug    = flag.Bool("debug", false, "Enable debug logging")
)

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "quizwire")
	}
	return ".quizwire"
}

func main() {
	_ = godotenv.Load()
	flag.Parse()

	log := zap.NewNop()
	if *debug {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		defer log.Sync()
	}

	if err := run(log); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(log *zap.Logger) error {
	ctx := context.Background()

	store, err := tokenstore.New(*dataDir)
	if err != nil {
		return err
	}
	api := restapi.NewClient(*server, log)

	game, player, err := resolveSession(ctx, api, store)
	if err != nil {
		return err
	}
	fmt.Printf("game %s (%s, %d questions) as %s\n", game.Token, game.Mode, game.Length, player.Name)
	if player.IsHost {
		fmt.Println("you are the host: type 'start' to begin, 'next' to advance")
	}

	c, err := client.Join(ctx, *game, *player, client.Options{
		BaseURL:  *server,
		Language: *language,
		Store:    store,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	defer c.Leave()

	go printNotices(c)
	go render(c)

	return prompt(ctx, c)
}

// resolveSession picks create, join, or resume based on the flags.
func resolveSession(ctx context.Context, api *restapi.Client, store *tokenstore.Store) (*protocol.Game, *protocol.Player, error) {
	switch {
	case *create:
		if *name == "" {
			return nil, nil, errors.New("-name is required with -create")
		}
		return api.CreateGame(ctx, *name, *length, protocol.Mode(*mode))

	case *join != "":
		if *name == "" {
			return nil, nil, errors.New("-name is required with -join")
		}
		game, err := api.FetchGame(ctx, *join)
		if err != nil {
			return nil, nil, err
		}
		player, err := api.JoinGame(ctx, *join, *name)
		if err != nil {
			return nil, nil, err
		}
		return game, player, nil

	default:
		tokens, err := store.Load()
		if err != nil {
			return nil, nil, errors.New("nothing to resume; use -create or -join TOKEN")
		}
		game, err := api.FetchGame(ctx, tokens.GameToken)
		if err != nil {
			return nil, nil, fmt.Errorf("resume failed: %w", err)
		}
		if game.Ended {
			return nil, nil, errors.New("last game already ended; use -create or -join TOKEN")
		}
		return game, &protocol.Player{Token: tokens.PlayerToken, Name: "you"}, nil
	}
}

func printNotices(c *client.Client) {
	for n := range c.Notices() {
		switch n.Kind {
		case client.NoticeGameStarted:
			fmt.Println("* game started")
		case client.NoticePlayerJoined:
			fmt.Printf("* %s joined\n", n.Name)
		case client.NoticeDisconnected:
			fmt.Println("! disconnected, could not reconnect - please rejoin")
		}
	}
}

// render prints the parts of each snapshot a player acts on.
func render(c *client.Client) {
	var lastSeq int
	var lastPhase session.Phase
	for snap := range c.Snapshots("cli") {
		s := snap.State
		if s.Question != nil && s.CurrentSequence != lastSeq {
			lastSeq = s.CurrentSequence
			fmt.Printf("\nquestion %d of %d:\n", s.CurrentSequence, s.Game.Length)
			for _, img := range s.Question.Images {
				fmt.Println("  media:", img.URL)
			}
			for i, opt := range s.Question.Options {
				fmt.Printf("  %d) %s (%s)\n", i+1, opt.Name, opt.NameLatin)
			}
			fmt.Println("answer with 'a N', or 'skip'")
		}
		if s.Phase != lastPhase {
			lastPhase = s.Phase
			switch s.Phase {
			case session.PhaseAwaitingResolution:
				if s.Answer != nil {
					printVerdict(s.Answer)
				}
			case session.PhaseResults, session.PhaseEnded:
				fmt.Println("\nfinal scores:")
				for _, p := range s.Players {
					fmt.Printf("  %d. %s - %d\n", p.Ranking, p.Name, p.Score)
				}
			}
		} else if s.Phase == session.PhaseAwaitingResolution && s.Answer != nil && s.Answer.Sequence == lastSeq {
			printVerdict(s.Answer)
		}
	}
}

var printed = map[int]bool{}

func printVerdict(a *protocol.Answer) {
	if printed[a.QuestionID] {
		return
	}
	printed[a.QuestionID] = true
	if a.Correct {
		fmt.Printf("correct! +%d points\n", a.Score)
	} else if a.Species != nil {
		fmt.Printf("wrong - it was %s\n", a.Species.Name)
	}
}

func prompt(ctx context.Context, c *client.Client) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "quit" || line == "q":
			return nil

		case line == "start":
			if err := c.StartGame(ctx); err != nil {
				fmt.Println("cannot start:", err)
			}

		case line == "next":
			if err := c.NextQuestion(ctx); err != nil {
				fmt.Println("cannot advance:", err)
			}

		case line == "skip":
			if err := submit(ctx, c, nil); err != nil {
				fmt.Println("cannot answer:", err)
			}

		case strings.HasPrefix(line, "a "):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "a "))
			if err != nil {
				fmt.Println("answer with 'a N'")
				continue
			}
			state := c.View().State
			if state.Question == nil || n < 1 || n > len(state.Question.Options) {
				fmt.Println("no such option")
				continue
			}
			id := state.Question.Options[n-1].ID
			if err := submit(ctx, c, &id); err != nil {
				fmt.Println("cannot answer:", err)
			}

		case line == "":

		default:
			fmt.Println("commands: start | next | a N | skip | quit")
		}
	}
	return scanner.Err()
}

func submit(ctx context.Context, c *client.Client, answerID *int) error {
	state := c.View().State
	if state.Question == nil {
		return errors.New("no active question")
	}
	return c.SubmitAnswer(ctx, state.Question.ID, answerID)
}
