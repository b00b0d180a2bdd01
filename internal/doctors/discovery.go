package doctors

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"healthsync/internal/config"
)

const (
	defaultNearbyLimit = 6
	unknownDistanceKm  = 9999.0
	earthRadiusKm      = 6371.0
)

// Discoverer finds doctors around a free-text location using the public
// OpenStreetMap services. Every provider failure degrades to an empty list.
type Discoverer struct {
	http         *resty.Client
	nominatimURL string
	overpassURL  string
	countryCode  string
	countryName  string
	radiusMeters int
	log          *zap.Logger
}

func NewDiscoverer(cfg config.DoctorsConfig, log *zap.Logger) *Discoverer {
	client := resty.New().
		SetTimeout(25*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)
	return &Discoverer{
		http:         client,
		nominatimURL: strings.TrimRight(cfg.NominatimURL, "/"),
		overpassURL:  cfg.OverpassURL,
		countryCode:  cfg.CountryCode,
		countryName:  cfg.CountryName,
		radiusMeters: clampRadius(cfg.SearchRadiusMeters),
		log:          log,
	}
}

func clampRadius(m int) int {
	return max(1000, min(m, 50000))
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Lat  *float64          `json:"lat"`
	Lon  *float64          `json:"lon"`
	Tags map[string]string `json:"tags"`
}

func (d *Discoverer) search(ctx context.Context, params map[string]string) ([]nominatimPlace, error) {
	var places []nominatimPlace
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("format", "jsonv2").
		SetResult(&places).
		Get(d.nominatimURL + "/search")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("nominatim %s", resp.Status())
	}
	return places, nil
}

func (d *Discoverer) geocode(ctx context.Context, location string) (lat, lon float64, ok bool) {
	q := location
	if d.countryName != "" {
		q = location + ", " + d.countryName
	}
	places, err := d.search(ctx, map[string]string{"q": q, "limit": "1"})
	if err != nil {
		d.log.Warn("geocoding failed", zap.String("location", location), zap.Error(err))
		return 0, 0, false
	}
	if len(places) == 0 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(places[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(places[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func overpassQuery(radius int, lat, lon float64, limit int) string {
	around := fmt.Sprintf("around:%d,%f,%f", radius, lat, lon)
	return fmt.Sprintf(`[out:json][timeout:20];
(
  node(%[1]s)["amenity"="doctors"];
  node(%[1]s)["healthcare"="doctor"];
  node(%[1]s)["amenity"="clinic"];
  node(%[1]s)["healthcare"="clinic"];
  node(%[1]s)["healthcare"="hospital"];
);
out body %[2]d;
`, around, max(30, min(limit*8, 100)))
}

// Nearby geocodes location and ranks the clinics around it: specialization
// matches first, then by distance.
func (d *Discoverer) Nearby(ctx context.Context, location, specialization string, limit int) []Doctor {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil
	}
	if limit <= 0 {
		limit = defaultNearbyLimit
	}
	lat, lon, ok := d.geocode(ctx, location)
	if !ok {
		return nil
	}

	var payload overpassResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"data": overpassQuery(d.radiusMeters, lat, lon, limit)}).
		SetResult(&payload).
		Post(d.overpassURL)
	if err != nil || resp.IsError() {
		d.log.Warn("overpass query failed", zap.String("location", location), zap.Error(err))
		return nil
	}

	keyword := strings.ToLower(strings.TrimSpace(specialization))
	if keyword == "" {
		keyword = "doctor"
	}

	type ranked struct {
		match    int
		distance float64
		doctor   Doctor
	}
	var rows []ranked
	seen := make(map[string]bool)
	for _, el := range payload.Elements {
		tags := el.Tags
		name := strings.TrimSpace(tags["name"])
		if name == "" {
			name = "Nearby Clinic"
		}
		city := firstNonEmpty(tags["addr:city"], tags["addr:state"], location)
		hint := firstNonEmpty(tags["healthcare:speciality"], tags["healthcare:speciality:en"],
			tags["description"], tags["healthcare"], "General Physician")

		key := strings.ToLower(name) + "|" + strings.ToLower(city)
		if seen[key] {
			continue
		}
		seen[key] = true

		blob := strings.ToLower(name + " " + hint + " " + tags["healthcare"])
		match := 0
		if strings.Contains(blob, keyword) {
			match = 1
		}
		dist := DistanceKm(lat, lon, el.Lat, el.Lon)
		rounded := math.Round(dist*100) / 100

		rows = append(rows, ranked{match: match, distance: dist, doctor: Doctor{
			Name:           name,
			Specialization: truncate(strings.TrimSpace(hint), 80),
			City:           truncate(strings.TrimSpace(city), 80),
			Phone:          firstNonEmpty(tags["phone"], tags["contact:phone"], "N/A"),
			Email:          firstNonEmpty(tags["email"], tags["contact:email"], "N/A"),
			Latitude:       el.Lat,
			Longitude:      el.Lon,
			DistanceKm:     &rounded,
			MapURL:         osmMapLink(el.Lat, el.Lon, name, city),
			Source:         SourceOpenStreetMap,
		}})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].match != rows[j].match {
			return rows[i].match > rows[j].match
		}
		return rows[i].distance < rows[j].distance
	})
	out := make([]Doctor, 0, min(limit, len(rows)))
	for i := 0; i < len(rows) && i < limit; i++ {
		out = append(out, rows[i].doctor)
	}
	return out
}

// SuggestLocations returns place labels for an autocomplete box.
func (d *Discoverer) SuggestLocations(ctx context.Context, query string, limit int) []string {
	cleaned := strings.TrimSpace(query)
	if len([]rune(cleaned)) < 2 {
		return nil
	}
	maxItems := max(4, min(limit, 20))
	perQuery := strconv.Itoa(maxItems)

	attempts := []map[string]string{{"q": cleaned}}
	if d.countryCode != "" {
		attempts = []map[string]string{
			{"q": cleaned, "countrycodes": d.countryCode},
			{"q": cleaned + ", " + d.countryName, "countrycodes": d.countryCode},
			{"q": cleaned},
		}
	}

	var out []string
	seen := make(map[string]bool)
	for _, params := range attempts {
		params["addressdetails"] = "1"
		params["limit"] = perQuery
		places, err := d.search(ctx, params)
		if err != nil {
			d.log.Debug("location suggestion lookup failed", zap.Error(err))
			continue
		}
		for _, p := range places {
			label := strings.TrimSpace(p.DisplayName)
			if label == "" || seen[strings.ToLower(label)] {
				continue
			}
			seen[strings.ToLower(label)] = true
			out = append(out, label)
			if len(out) >= maxItems {
				return out
			}
		}
	}
	return out
}

// DistanceKm is the equirectangular approximation, good enough for ranking
// nearby places. Missing coordinates sort last.
func DistanceKm(lat1, lon1 float64, lat2, lon2 *float64) float64 {
	if lat2 == nil || lon2 == nil {
		return unknownDistanceKm
	}
	rad := math.Pi / 180
	x := (*lon2 - lon1) * rad * math.Cos((lat1+*lat2)/2*rad)
	y := (*lat2 - lat1) * rad
	return earthRadiusKm * math.Sqrt(x*x+y*y)
}

func osmMapLink(lat, lon *float64, name, city string) string {
	if lat == nil || lon == nil {
		return "https://www.openstreetmap.org/search?query=" + url.QueryEscape(strings.TrimSpace(name+" "+city))
	}
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%g&mlon=%g#map=16/%g/%g", *lat, *lon, *lat, *lon)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
