// Package gbfs republishes provider data as GBFS feeds, one system per city.
package gbfs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/velofeed/internal/logger"
	"github.com/rewired-gh/velofeed/internal/models"
)

// CityDirectory resolves a city identifier to its contract.
type CityDirectory interface {
	GetCity(ctx context.Context, name string) (models.City, bool, error)
}

// StationSource returns the live stations of a contract.
type StationSource interface {
	ListStations(ctx context.Context, contract string) ([]models.Station, error)
}

// AlertReader returns the newest alert of a city, or nil without history.
type AlertReader interface {
	Latest(ctx context.Context, city string) (*models.SystemAlert, error)
}

const requestTimeout = 15 * time.Second

// Server bundles router and dependencies for the feed API.
type Server struct {
	publicURL string
	cities    CityDirectory
	stations  StationSource
	alerts    AlertReader
	now       func() time.Time
	engine    *gin.Engine
}

// New constructs a server with routes and middleware. publicURL is the
// externally visible base used in gbfs.json discovery links.
func New(publicURL string, cities CityDirectory, stations StationSource, alerts AlertReader) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))
	engine.Use(requestLogger())
	engine.Use(corsMiddleware())

	s := &Server{
		publicURL: publicURL,
		cities:    cities,
		stations:  stations,
		alerts:    alerts,
		now:       time.Now,
		engine:    engine,
	}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server on addr and blocks until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	city := s.engine.Group("/:city", s.cityMiddleware)
	city.GET("/gbfs.json", s.handleDiscovery)
	city.GET("/system_information.json", s.handleSystemInformation)
	city.GET("/station_information.json", s.handleStationInformation)
	city.GET("/station_status.json", s.handleStationStatus)
	city.GET("/system_hours.json", s.handleSystemHours)
	city.GET("/system_calendar.json", s.handleSystemCalendar)
	city.GET("/system_alerts.json", s.handleSystemAlerts)

	// Unsupported feeds answer without resolving the city.
	for _, feed := range []string{"free_bike_status", "system_pricing_plans", "system_regions"} {
		s.engine.GET("/:city/"+feed+".json", unsupportedFeedError)
	}
}

const cityKey = "city"

// cityMiddleware resolves the :city parameter and stores the contract on
// the context for the feed handlers.
func (s *Server) cityMiddleware(c *gin.Context) {
	name := c.Param("city")
	if name == "" {
		missingCityError(c)
		return
	}

	city, ok, err := s.cities.GetCity(c.Request.Context(), name)
	if err != nil {
		logger.Error("Error while fetching city %s: %v", name, err)
		unknownError(c)
		return
	}
	if !ok {
		unknownCityError(c, name)
		return
	}

	c.Set(cityKey, city)
	c.Next()
}

func cityFrom(c *gin.Context) models.City {
	return c.MustGet(cityKey).(models.City)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
