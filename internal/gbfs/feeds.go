package gbfs

import (
	"context"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/velofeed/internal/logger"
	"github.com/rewired-gh/velofeed/internal/models"
)

const (
	ttlDefault    = 0
	ttlStatic     = 24 * 3600
	ttlNoAlerts   = 10 * 60
	operatorName  = "JCDecaux"
	alertClosure  = "STATION_CLOSURE"
	feedsLanguage = "en"
)

var discoveredFeeds = []string{
	"system_information",
	"station_information",
	"station_status",
	"system_hours",
	"system_calendar",
	"system_alerts",
}

// envelope wraps every feed payload.
type envelope struct {
	LastUpdated int64 `json:"last_updated"`
	TTL         int   `json:"ttl"`
	Data        any   `json:"data"`
}

func (s *Server) respond(c *gin.Context, data any, ttl int) {
	c.JSON(http.StatusOK, envelope{
		LastUpdated: int64(math.Round(float64(s.now().UnixMilli()) / 1000)),
		TTL:         ttl,
		Data:        data,
	})
}

type feed struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Server) handleDiscovery(c *gin.Context) {
	city := c.Param("city")
	base := strings.TrimRight(s.publicURL, "/")
	feeds := make([]feed, 0, len(discoveredFeeds))
	for _, name := range discoveredFeeds {
		feeds = append(feeds, feed{Name: name, URL: base + "/" + city + "/" + name + ".json"})
	}
	s.respond(c, gin.H{feedsLanguage: gin.H{"feeds": feeds}}, ttlStatic)
}

type systemInformation struct {
	SystemID string `json:"system_id"`
	Language string `json:"language"`
	Name     string `json:"name"`
	Operator string `json:"operator"`
	Timezone string `json:"timezone"`
}

func (s *Server) handleSystemInformation(c *gin.Context) {
	city := cityFrom(c)
	tz, ok := timezoneFor(strings.ToUpper(city.CountryCode))
	if !ok {
		logger.Error("Missing TZ data for city %s in %s", city.Name, city.CountryCode)
		unknownError(c)
		return
	}
	s.respond(c, systemInformation{
		SystemID: c.Param("city"),
		Language: feedsLanguage,
		Name:     city.CommercialName,
		Operator: operatorName,
		Timezone: tz,
	}, ttlDefault)
}

type stationInformation struct {
	StationID     string   `json:"station_id"`
	Name          string   `json:"name"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	RentalMethods []string `json:"rental_methods"`
	Capacity      int      `json:"capacity"`
}

func rentalMethods(banking bool) []string {
	if banking {
		return []string{"TRANSITCARD", "KEY", "CREDITCARD", "APPLEPAY", "ANDROIDPAY"}
	}
	return []string{"TRANSITCARD", "KEY"}
}

func (s *Server) handleStationInformation(c *gin.Context) {
	stations, ok := s.listStations(c)
	if !ok {
		return
	}
	out := make([]stationInformation, 0, len(stations))
	for _, st := range stations {
		out = append(out, stationInformation{
			StationID:     st.ID(),
			Name:          st.Address,
			Lat:           st.Position.Lat,
			Lon:           st.Position.Lng,
			RentalMethods: rentalMethods(st.Banking),
			Capacity:      st.BikeStands,
		})
	}
	s.respond(c, gin.H{"stations": out}, ttlDefault)
}

type stationStatus struct {
	StationID         string `json:"station_id"`
	NumBikesAvailable int    `json:"num_bikes_available"`
	NumDocksAvailable int    `json:"num_docks_available"`
	IsInstalled       bool   `json:"is_installed"`
	IsRenting         bool   `json:"is_renting"`
	IsReturning       bool   `json:"is_returning"`
	LastReported      int64  `json:"last_reported"`
}

func (s *Server) handleStationStatus(c *gin.Context) {
	stations, ok := s.listStations(c)
	if !ok {
		return
	}
	out := make([]stationStatus, 0, len(stations))
	for _, st := range stations {
		enabled := st.Status == models.StatusOpen && st.AvailableBikeStands > 0
		out = append(out, stationStatus{
			StationID:         st.ID(),
			NumBikesAvailable: st.AvailableBikes,
			NumDocksAvailable: st.AvailableBikeStands,
			IsInstalled:       true,
			IsRenting:         enabled,
			IsReturning:       enabled,
			LastReported:      int64(math.Round(float64(st.LastUpdate) / 1000)),
		})
	}
	s.respond(c, gin.H{"stations": out}, ttlDefault)
}

func (s *Server) listStations(c *gin.Context) ([]models.Station, bool) {
	city := cityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	stations, err := s.stations.ListStations(ctx, city.Name)
	if err != nil {
		logger.Error("Failed to list stations for %s: %v", city.Name, err)
		unknownError(c)
		return nil, false
	}
	return stations, true
}

func (s *Server) handleSystemHours(c *gin.Context) {
	s.respond(c, gin.H{
		"rental_hours": []gin.H{{
			"user_types": []string{"member"},
			"days":       []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"},
			"start_time": "00:00:00",
			"end_time":   "23:59:59",
		}},
	}, ttlStatic)
}

func (s *Server) handleSystemCalendar(c *gin.Context) {
	s.respond(c, gin.H{
		"calendars": []gin.H{{
			"start_month": 1,
			"start_day":   1,
			"end_month":   12,
			"end_day":     31,
		}},
	}, ttlStatic)
}

type alertTimes struct {
	Start int64 `json:"start"`
}

type systemAlert struct {
	AlertID     string     `json:"alert_id"`
	LastUpdated int64      `json:"last_updated"`
	StationIDs  []string   `json:"station_ids"`
	Summary     string     `json:"summary"`
	Times       alertTimes `json:"times"`
	Type        string     `json:"type"`
}

func (s *Server) handleSystemAlerts(c *gin.Context) {
	city := cityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	latest, err := s.alerts.Latest(ctx, city.Name)
	if err != nil {
		logger.Error("Failed to load latest alert for %s: %v", city.Name, err)
		unknownError(c)
		return
	}
	if latest == nil {
		s.respond(c, gin.H{"alerts": []systemAlert{}}, ttlNoAlerts)
		return
	}
	s.respond(c, gin.H{"alerts": toFeedAlerts(latest)}, ttlDefault)
}

// toFeedAlerts renders the latest episode. An empty outage publishes no alert.
func toFeedAlerts(a *models.SystemAlert) []systemAlert {
	if len(a.StationsDown) == 0 {
		return []systemAlert{}
	}
	return []systemAlert{{
		AlertID:     a.ID,
		LastUpdated: a.LastUpdate.Unix(),
		StationIDs:  append([]string(nil), a.StationsDown...),
		Summary:     strings.Join(a.StationsDown, ", ") + " are down.",
		Times:       alertTimes{Start: a.Date.Unix()},
		Type:        alertClosure,
	}}
}
