package doctors

// Doctor is a directory entry or a discovered point of interest.
type Doctor struct {
	ID             int64    `json:"id,omitempty"`
	Name           string   `json:"name"`
	Specialization string   `json:"specialization"`
	City           string   `json:"city"`
	Phone          string   `json:"phone"`
	Email          string   `json:"email"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	DistanceKm     *float64 `json:"distance_km,omitempty"`
	MapURL         string   `json:"map_search_url,omitempty"`
	Source         string   `json:"source"`
}

const (
	SourceDirectory     = "HealthSync Directory"
	SourceOpenStreetMap = "OpenStreetMap"
)
