package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// GPS is a lat/lng pair stored as a JSON column so Postgres and the
// in-memory sqlite used by tests serialize it the same way.
type GPS struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String renders the five-decimal "lat, lng" form used in status lines
// and maintenance notes.
func (g GPS) String() string {
	return fmt.Sprintf("%.5f, %.5f", g.Lat, g.Lng)
}

func (g GPS) Value() (driver.Value, error) {
	return json.Marshal(g)
}

func (g *GPS) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, g)
	case string:
		return json.Unmarshal([]byte(v), g)
	case nil:
		return nil
	default:
		return fmt.Errorf("GPS.Scan: unsupported type %T", src)
	}
}
