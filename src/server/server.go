package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/mappichat/rasterh3/src/database"
	"github.com/mappichat/rasterh3/src/engine"
	"github.com/mappichat/rasterh3/src/fileio"
	"github.com/mappichat/rasterh3/src/metrics"
	"github.com/mappichat/rasterh3/src/project_types"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var validate = validator.New()

// Deps are the collaborators of the http api. Cache, DB and Keyfunc are
// optional.
type Deps struct {
	Options project_types.EngineOptions
	Logger  *zap.Logger
	Cache   *redis.Client
	DB      *sqlx.DB
	Keyfunc jwt.Keyfunc
}

type convertRequest struct {
	Raster     fileio.RasterFile `json:"raster"`
	Resolution *int              `json:"resolution" validate:"omitempty,min=0,max=15"`
	SearchMode string            `json:"search_mode" validate:"omitempty,oneof=min-diff smaller-than-pixel"`
	Compact    *bool             `json:"compact"`
	Uncompact  bool              `json:"uncompact"`
	Format     string            `json:"format" validate:"omitempty,oneof=cells geojson"`
}

type convertResponse struct {
	Resolution int            `json:"resolution"`
	Values     fileio.CellMap `json:"values"`
}

// errorHandler maps invalid input to client errors.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.As(err, &ve):
		code = fiber.StatusBadRequest
	case errors.Is(err, project_types.ErrTransformNotInvertible),
		errors.Is(err, project_types.ErrEmptyArray),
		errors.Is(err, project_types.ErrInvalidLatLng),
		errors.Is(err, project_types.ErrInvalidGeometry),
		errors.Is(err, project_types.ErrInvalidResolution):
		code = fiber.StatusUnprocessableEntity
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func requireToken(keyfunc jwt.Keyfunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == "" || tokenString == header {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		token, err := jwt.Parse(tokenString, keyfunc)
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		return c.Next()
	}
}

func NewApp(d Deps) *fiber.App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Healthy")
	})

	api := app.Group("")
	if d.Keyfunc != nil {
		api.Use(requireToken(d.Keyfunc))
	}

	api.Post("/convert", func(c *fiber.Ctx) error {
		d.Logger.Info("/convert", zap.Int("bytes", len(c.Body())))
		key := "rasterh3:convert:" + strconv.FormatUint(xxhash.Sum64(c.Body()), 16)
		if cached, ok := cacheGet(c.UserContext(), d.Cache, key); ok {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(cached)
		}

		payload := convertRequest{}
		if err := c.BodyParser(&payload); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(payload); err != nil {
			return err
		}

		body, err := convert(d, payload)
		if err != nil {
			metrics.ConversionsTotal.WithLabelValues("error").Inc()
			return err
		}
		metrics.ConversionsTotal.WithLabelValues("ok").Inc()

		cacheSet(c.UserContext(), d, key, body)
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(body)
	})

	api.Post("/resolution", func(c *fiber.Ctx) error {
		payload := convertRequest{}
		if err := c.BodyParser(&payload); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(payload); err != nil {
			return err
		}
		r, err := payload.Raster.Build()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		mode, err := engine.ParseResolutionSearchMode(payload.SearchMode)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res, err := mode.NearestResolution(r.Array.Shape(), r.Transform, r.AxisOrder)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"resolution": res, "search_mode": mode.String()})
	})

	api.Get("/cells/:dataset/:value", func(c *fiber.Ctx) error {
		if d.DB == nil {
			return fiber.NewError(fiber.StatusNotFound, "no database configured")
		}
		cells, err := database.ValueCells(d.DB, c.Params("dataset"), c.Params("value"))
		if err != nil {
			return err
		}
		return c.JSON(cells)
	})

	return app
}

func convert(d Deps, payload convertRequest) ([]byte, error) {
	start := time.Now()
	r, err := payload.Raster.Build()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	params := engine.Params{
		Resolution: d.Options.Resolution,
		Compact:    d.Options.Compact,
	}
	modeName := d.Options.SearchMode
	if payload.SearchMode != "" {
		modeName = payload.SearchMode
	}
	if params.SearchMode, err = engine.ParseResolutionSearchMode(modeName); err != nil {
		return nil, err
	}
	if payload.Resolution != nil {
		params.Resolution = *payload.Resolution
	}
	if payload.Compact != nil {
		params.Compact = *payload.Compact
	}

	conv := engine.NewConverter(r.Array, r.Nodata, r.Transform, r.AxisOrder,
		engine.WithStrategy(engine.NewStrategy(d.Options.Workers)),
		engine.WithLogger(d.Logger),
	)
	res, cells, err := engine.Convert(conv, params)
	if err != nil {
		return nil, err
	}
	metrics.ConversionDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	for _, cov := range cells {
		metrics.ObserveCells(cov.Resolutions())
	}

	uncompactTo := -1
	if payload.Uncompact {
		uncompactTo = res
	}
	cellMap := fileio.ToCellMap(cells, uncompactTo)

	if payload.Format == "geojson" {
		fc, err := fileio.FeatureCollection(cellMap)
		if err != nil {
			return nil, err
		}
		return fc.MarshalJSON()
	}
	body, err := json.Marshal(convertResponse{Resolution: res, Values: cellMap})
	return body, errors.Wrap(err, "marshal response")
}

func cacheGet(ctx context.Context, rc *redis.Client, key string) ([]byte, bool) {
	if rc == nil {
		return nil, false
	}
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return b, true
}

func cacheSet(ctx context.Context, d Deps, key string, body []byte) {
	if d.Cache == nil {
		return
	}
	ttl := time.Duration(d.Options.Server.CacheTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if err := d.Cache.Set(ctx, key, body, ttl).Err(); err != nil {
		d.Logger.Warn("caching response failed", zap.Error(err))
	}
}

func RunServer(d Deps) error {
	app := NewApp(d)
	return app.Listen(fmt.Sprintf(":%d", d.Options.Server.Port))
}
