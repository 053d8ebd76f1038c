package wake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shshalom/voicesmith-mcp/internal/session"
)

// ErrNoInjectTargets is returned when no live sibling session exposes
// a tmux pane to route transcribed text into.
var ErrNoInjectTargets = errors.New("no live sessions available for text injection")

// Router resolves the SUPPLEMENTED item 4/6 injection target and
// delivers text over the HTTP side-channel, rather than the original's
// direct `tmux send-keys` shell-out from the wake-word worker's own
// process — only the process that owns a pane may touch it.
type Router struct {
	Sessions *session.Registry
	Client   *http.Client
}

func NewRouter(sessions *session.Registry) *Router {
	return &Router{Sessions: sessions, Client: &http.Client{Timeout: 5 * time.Second}}
}

// Route picks a target sibling session per §4.5's Injecting rules and
// POSTs the (possibly name-stripped) text to its `/inject` endpoint.
func (r *Router) Route(text string) error {
	entries, err := r.Sessions.Snapshot()
	if err != nil {
		return err
	}

	var candidates []session.Entry
	for _, e := range entries {
		if e.TmuxSession != "" {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return ErrNoInjectTargets
	}

	var target session.Entry
	message := text

	if len(candidates) == 1 {
		target = candidates[0]
	} else {
		matched := false
		words := strings.Fields(text)
		if len(words) > 0 {
			first := strings.Trim(strings.ToLower(words[0]), ".,!?:")
			for _, e := range candidates {
				if strings.ToLower(e.Name) == first {
					target = e
					message = strings.TrimSpace(strings.Join(words[1:], " "))
					matched = true
					break
				}
			}
		}
		if !matched {
			mostRecent, ok := session.MostRecentlyStarted(candidates)
			if !ok {
				return ErrNoInjectTargets
			}
			target = mostRecent
		}
	}

	if strings.TrimSpace(message) == "" {
		return nil
	}

	return r.deliver(target, message)
}

func (r *Router) deliver(target session.Entry, message string) error {
	body, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("http://127.0.0.1:%d/inject", target.Port)
	resp, err := r.Client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
