package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/solentwx/weather-station/internal/store"
	"github.com/solentwx/weather-station/internal/weather"
	"github.com/solentwx/weather-station/internal/wifi"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. mgr may be nil
// when no network manager is attached; the network endpoints then 404.
func RegisterRoutes(app *fiber.App, service *weather.Service, mgr *wifi.Manager) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		snapshot, err := service.GetLatest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather data yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}
		return c.JSON(snapshot)
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshots, err := service.GetRange(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		return c.JSON(fiber.Map{
			"location":  service.Location(),
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})

	v1.Get("/weather/sources", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sources":  service.SourceNames(),
			"statuses": service.Statuses(),
		})
	})

	if mgr == nil {
		return
	}

	v1.Get("/network/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"state": mgr.State().String(),
			"link":  mgr.Link(),
		})
	})

	v1.Post("/network/scan", func(c *fiber.Ctx) error {
		res, err := mgr.Scan(c.Context())
		if err != nil {
			if errors.Is(err, wifi.ErrBusy) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(res)
	})

	v1.Get("/network/credentials", func(c *fiber.Ctx) error {
		creds := mgr.Credentials()
		// The password is never echoed back.
		return c.JSON(fiber.Map{
			"ssid":       creds.SSID,
			"configured": creds.Configured,
		})
	})

	v1.Put("/network/credentials", func(c *fiber.Ctx) error {
		var body credentialsBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		creds := wifi.Credentials{SSID: body.SSID, Password: body.Password}
		if err := creds.Validate(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := mgr.Connect(c.Context(), creds); err != nil {
			if errors.Is(err, wifi.ErrBusy) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}

		return c.JSON(fiber.Map{
			"ssid":       creds.SSID,
			"configured": true,
			"state":      mgr.State().String(),
		})
	})

	v1.Delete("/network/credentials", func(c *fiber.Ctx) error {
		if err := mgr.Forget(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// credentialsBody is the PUT /network/credentials payload.
type credentialsBody struct {
	SSID     string `json:"ssid" validate:"required"`
	Password string `json:"password"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
