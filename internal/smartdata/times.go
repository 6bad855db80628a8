package smartdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/nathan-osman/go-sunrise"
)

const DefaultMapsURL = "https://maps.googleapis.com/maps/api"

var (
	ErrNoMapsKey           = errors.New("google maps api key not configured")
	ErrLocationNotFound    = errors.New("location not found")
	ErrTimezoneNotFound    = errors.New("timezone not found")
	ErrUnsupportedTimeType = errors.New("unsupported time type")
	ErrNoSunset            = errors.New("no sunset at location")
)

// Location is a geocoded place with its IANA time zone.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	TimeZone  string  `json:"timezone"`
}

// Geocoder resolves free-form locations through the Google Geocoding and
// Time Zone APIs.
type Geocoder struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewGeocoder(baseURL, apiKey string, client *http.Client) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultMapsURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Geocoder{baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey, http: client}
}

func (g *Geocoder) getJSON(ctx context.Context, endpoint string, params url.Values, dst any) error {
	params.Set("key", g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("maps request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("maps request %s: status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode maps response %s: %w", endpoint, err)
	}
	return nil
}

// Locate geocodes location and looks up its time zone at now.
func (g *Geocoder) Locate(ctx context.Context, location string, now time.Time) (Location, error) {
	if g.apiKey == "" {
		return Location{}, ErrNoMapsKey
	}

	var geo struct {
		Status  string `json:"status"`
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := g.getJSON(ctx, "/geocode/json", url.Values{"address": {location}}, &geo); err != nil {
		return Location{}, err
	}
	if len(geo.Results) == 0 {
		return Location{}, fmt.Errorf("%w: %s", ErrLocationNotFound, location)
	}
	lat := geo.Results[0].Geometry.Location.Lat
	lng := geo.Results[0].Geometry.Location.Lng

	var tz struct {
		Status     string `json:"status"`
		TimeZoneID string `json:"timeZoneId"`
	}
	params := url.Values{
		"location":  {fmt.Sprintf("%f,%f", lat, lng)},
		"timestamp": {fmt.Sprintf("%d", now.Unix())},
	}
	if err := g.getJSON(ctx, "/timezone/json", params, &tz); err != nil {
		return Location{}, err
	}
	if tz.Status != "OK" || tz.TimeZoneID == "" {
		return Location{}, fmt.Errorf("%w: %s (%s)", ErrTimezoneNotFound, location, tz.Status)
	}
	return Location{Latitude: lat, Longitude: lng, TimeZone: tz.TimeZoneID}, nil
}

// TimeType selects which daily time to compute.
type TimeType string

const (
	CandleLighting TimeType = "candlelighting"
	Tzeit          TimeType = "tzeit"
)

// tzeitElevation is the solar depression used for nightfall.
const tzeitElevation = -8.5

// ComputeTime returns the requested time on the local calendar day of now
// at loc. Candle lighting is 18 minutes before sunset, 40 in Jerusalem.
func ComputeTime(loc Location, place string, kind TimeType, now time.Time) (time.Time, error) {
	zone, err := time.LoadLocation(loc.TimeZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load time zone %s: %w", loc.TimeZone, err)
	}
	local := now.In(zone)
	year, month, day := local.Date()

	var t time.Time
	switch kind {
	case CandleLighting:
		_, sunset := sunrise.SunriseSunset(loc.Latitude, loc.Longitude, year, month, day)
		if sunset.IsZero() {
			return time.Time{}, ErrNoSunset
		}
		offset := 18 * time.Minute
		if strings.EqualFold(strings.TrimSpace(place), "Jerusalem") {
			offset = 40 * time.Minute
		}
		t = sunset.Add(-offset)
	case Tzeit:
		_, evening := sunrise.TimeOfElevation(loc.Latitude, loc.Longitude, tzeitElevation, year, month, day)
		if evening.IsZero() {
			return time.Time{}, ErrNoSunset
		}
		t = evening
	default:
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnsupportedTimeType, kind)
	}
	return t.In(zone), nil
}

// FormatClock renders t as a 12-hour clock time, e.g. "7:42 PM".
func FormatClock(t time.Time) string {
	return t.Format("3:04 PM")
}
