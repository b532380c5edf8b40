package twchart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/calvinmclean/babyapi"
	"github.com/calvinmclean/twchart"
)

var errNoSession = errors.New("no chart session created")

type Probes []twchart.Probe

// Client keeps a dispensing session on a TWChart server. The chart's own probes log the liquid temperature,
// the client marks what the dispenser was asked to do: each dispense is a stage, tare and calibration are
// events
type Client struct {
	api *babyapi.Client[*chartSession]

	mu        sync.Mutex
	sessionID string
	started   bool
}

type chartSession struct {
	// include NilResource so we don't implement Render/Bind which are not needed
	*babyapi.NilResource
	twchart.Session
}

func (s chartSession) GetID() string {
	return s.Session.GetID()
}

func NewClient(addr string) *Client {
	return &Client{api: babyapi.NewClient[*chartSession](addr, "/sessions")}
}

// CreateSession creates the chart session that all following calls add to
func (c *Client) CreateSession(ctx context.Context, name string, probes Probes) (string, error) {
	resp, err := c.api.Post(ctx, &chartSession{
		Session: twchart.Session{
			Name:   name,
			Type:   twchart.SessionTypeCoffee,
			Date:   time.Now(),
			Probes: []twchart.Probe(probes),
		},
	})
	if err != nil {
		return "", fmt.Errorf("error creating session: %w", err)
	}

	c.mu.Lock()
	c.sessionID = resp.Data.GetID()
	c.started = false
	c.mu.Unlock()

	return resp.Data.GetID(), nil
}

// Start sets the start time of the session. Only the first successful call changes it
func (c *Client) Start(ctx context.Context, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID == "" {
		return errNoSession
	}
	if c.started {
		return nil
	}

	_, err := c.api.Patch(ctx, c.sessionID, &chartSession{Session: twchart.Session{
		StartTime: at,
	}})
	if err != nil {
		return fmt.Errorf("error setting start time: %w", err)
	}

	c.started = true
	return nil
}

// AddDispenseStage opens a stage for a dispense of ml millilitres
func (c *Client) AddDispenseStage(ctx context.Context, ml int, at time.Time) error {
	return c.post(ctx, "add-stage", twchart.Stage{Name: dispenseStageName(ml), Start: at})
}

// AddCommandEvent marks a tare or calibration
func (c *Client) AddCommandEvent(ctx context.Context, command string, at time.Time) error {
	return c.post(ctx, "add-event", twchart.Event{Note: commandNote(command), Time: at})
}

// Done ends the session
func (c *Client) Done(ctx context.Context, at time.Time) error {
	return c.post(ctx, "done", map[string]any{"time": at})
}

func dispenseStageName(ml int) string {
	return "Dispense " + strconv.Itoa(ml) + " ml"
}

func commandNote(command string) string {
	switch command {
	case "tare":
		return "Tared scale"
	case "calibrate":
		return "Calibrated scale"
	default:
		return command
	}
}

// post sends an action on the current session. The server answers actions with 204
func (c *Client) post(ctx context.Context, action string, body any) error {
	c.mu.Lock()
	id := c.sessionID
	c.mu.Unlock()
	if id == "" {
		return errNoSession
	}

	url, err := c.api.URL(id)
	if err != nil {
		return fmt.Errorf("error building url: %w", err)
	}

	var bodyReader io.Reader = http.NoBody
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/"+action, bodyReader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := c.api.MakeGenericRequest(req, nil)
	if err != nil {
		return fmt.Errorf("error making %s request: %w", action, err)
	}
	if resp.Response.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status code for %s: %d", action, resp.Response.StatusCode)
	}

	return nil
}

// ParseProbes parses probe positions and names in the format "1=Liquid,2=Ambient"
func ParseProbes(input string) (Probes, error) {
	var probes Probes
	for entry := range strings.SplitSeq(input, ",") {
		posStr, name, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid probe entry: %q", entry)
		}

		pos, err := strconv.Atoi(strings.TrimSpace(posStr))
		if err != nil || twchart.ProbePosition(pos) <= twchart.ProbePositionNone {
			return nil, fmt.Errorf("invalid probe position: %q", posStr)
		}
		probes = append(probes, twchart.Probe{Name: strings.TrimSpace(name), Position: twchart.ProbePosition(pos)})
	}
	return probes, nil
}
