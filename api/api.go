package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/calvinmclean/dispenser/firmware/commands"
	"github.com/calvinmclean/dispenser/firmware/controller"
	"github.com/calvinmclean/dispenser/history"
	"github.com/calvinmclean/dispenser/link"
)

// ReadingResponse is the body of GET /reading
type ReadingResponse struct {
	Weight      float32   `json:"weight"`
	Temperature float32   `json:"temperature"`
	Time        time.Time `json:"time"`
}

// API denotes a REST API for a dispenser
type API struct {
	device  link.Device
	hub     *link.Hub
	history *history.Store
	logger  controller.Logger
	router  *fiber.App
}

// New instantiates a new API. Call Listen to serve it
func New(d link.Device, hub *link.Hub, options ...func(*API)) *API {
	api := &API{
		device: d,
		hub:    hub,
		logger: &controller.NullLogger{},
		router: fiber.New(fiber.Config{DisableStartupMessage: true}),
	}

	for _, option := range options {
		option(api)
	}

	// Setup routes
	api.router.Get("/reading", api.handleReading())
	api.router.Get("/help", api.handleHelp())
	api.router.Post("/tare", api.handleCommand("tare", api.device.Tare))
	api.router.Post("/calibrate", api.handleCommand("calibrate", api.device.Calibrate))
	api.router.Post("/dispense/:ml", api.handleDispense())

	if api.history != nil {
		api.router.Get("/sessions", api.handleSessions())
		api.router.Get("/sessions/:id", api.handleSession())
	}

	return api
}

// WithHistory serves the stored sessions
func WithHistory(s *history.Store) func(*API) {
	return func(api *API) {
		api.history = s
	}
}

// WithLogger sets the Logger
func WithLogger(l controller.Logger) func(*API) {
	return func(api *API) {
		api.logger = l
	}
}

// Listen serves the API on endpoint until Shutdown is called
func (api *API) Listen(endpoint string) error {
	api.logger.Infof("API listening on %s", endpoint)
	return api.router.Listen(endpoint)
}

// Shutdown stops the server
func (api *API) Shutdown() error {
	return api.router.Shutdown()
}

// App returns the underlying fiber app
func (api *API) App() *fiber.App {
	return api.router
}

func (api *API) handleReading() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		r, at, ok := api.hub.Latest()
		if !ok {
			return fiber.NewError(fiber.StatusServiceUnavailable, "no reading received yet")
		}

		return c.JSON(ReadingResponse{
			Weight:      r.Weight,
			Temperature: r.Temperature,
			Time:        at,
		})
	}
}

func (api *API) handleHelp() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		return c.SendString(commands.Help())
	}
}

func (api *API) handleCommand(name string, send func() error) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if err := send(); err != nil {
			return api.commandError(name, err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	}
}

func (api *API) handleDispense() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		ml, err := strconv.Atoi(c.Params("ml"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "volume must be an integer number of ml")
		}

		if err := api.device.Dispense(ml); err != nil {
			return api.commandError("dispense", err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	}
}

func (api *API) commandError(name string, err error) error {
	api.logger.Errorf("error sending %s command: %v", name, err)

	switch {
	case errors.Is(err, link.ErrInvalidVolume):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, link.ErrNotConnected):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

func (api *API) handleSessions() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		sessions, err := api.history.Sessions(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(sessions)
	}
}

func (api *API) handleSession() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		session, err := api.history.Session(c.UserContext(), c.Params("id"))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(session)
	}
}
