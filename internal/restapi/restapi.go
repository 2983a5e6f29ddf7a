// Package restapi is the thin client for the backend's REST surface. The
// core only needs it to fetch the initial game object by token, to decide
// whether a session needs a socket at all and to seed length/media before
// the socket delivers anything.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/birdr-pro/quizwire/internal/protocol"
)

var ErrGameNotFound = errors.New("game not found")

type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log.Named("restapi"),
	}
}

// FetchGame loads the game object for a token.
func (c *Client) FetchGame(ctx context.Context, token string) (*protocol.Game, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/games/"+token, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch game: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrGameNotFound
	default:
		return nil, fmt.Errorf("fetch game: unexpected status %d", resp.StatusCode)
	}

	var game protocol.Game
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	return &game, nil
}

// CreateGame asks the backend to create a multiplayer game hosted by the
// named player. The returned player carries the host credential.
func (c *Client) CreateGame(ctx context.Context, hostName string, length int, mode protocol.Mode) (*protocol.Game, *protocol.Player, error) {
	body, err := json.Marshal(struct {
		HostName string        `json:"host_name"`
		Length   int           `json:"length"`
		Mode     protocol.Mode `json:"mode"`
	}{hostName, length, mode})
	if err != nil {
		return nil, nil, err
	}
	var out struct {
		Game   protocol.Game   `json:"game"`
		Player protocol.Player `json:"player"`
	}
	if err := c.post(ctx, "/api/games", body, &out); err != nil {
		return nil, nil, err
	}
	return &out.Game, &out.Player, nil
}

// JoinGame registers a named player with an existing game and returns the
// credential to present on the socket.
func (c *Client) JoinGame(ctx context.Context, gameToken, name string) (*protocol.Player, error) {
	body, err := json.Marshal(struct {
		Name string `json:"name"`
	}{name})
	if err != nil {
		return nil, err
	}
	var out struct {
		Player protocol.Player `json:"player"`
	}
	if err := c.post(ctx, "/api/games/"+gameToken+"/players", body, &out); err != nil {
		return nil, err
	}
	return &out.Player, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound:
		return ErrGameNotFound
	default:
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
