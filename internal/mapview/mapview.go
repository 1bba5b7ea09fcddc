// Package mapview turns the stratified sample into a layered marker map and
// memoizes the built map for the process.
package mapview

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/table"
)

// DefaultZoom is the initial zoom level
const DefaultZoom = 3

// LayerStyle is the name and marker color of one tier's layer
type LayerStyle struct {
	Name  string
	Color string
}

// Styles maps each tier to its layer.
var Styles = map[model.SpendTier]LayerStyle{
	model.TierLow:  {Name: "Low Spent-Rate", Color: "red"},
	model.TierMed:  {Name: "Medium Spent-Rate", Color: "orange"},
	model.TierHigh: {Name: "High Spent-Rate", Color: "green"},
}

// Marker is one customer circle.
type Marker struct {
	Lat              float64         `json:"lat"`
	Lng              float64         `json:"lng"`
	SpentRate        model.SpendTier `json:"spent_rate"`
	CustomerUniqueID string          `json:"customer_unique_id"`
	TotalSpent       float64         `json:"total_spent"`
	City             string          `json:"customer_city"`
	State            string          `json:"customer_state"`
	Popup            string          `json:"popup"`
	Tooltip          string          `json:"tooltip"`
}

// Layer groups the markers of one tier.
type Layer struct {
	Tier    model.SpendTier `json:"spent_rate"`
	Name    string          `json:"name"`
	Color   string          `json:"color"`
	Markers []Marker        `json:"markers"`
}

// Map is the built map: a center, a zoom and one layer per tier, lowest
// tier first. A Map is not modified after Build returns.
type Map struct {
	CenterLat float64 `json:"center_lat"`
	CenterLng float64 `json:"center_lng"`
	Zoom      int     `json:"zoom"`
	Layers    []Layer `json:"layers"`
}

// Build places every located sample row on its tier's layer and centers the
// map on the mean coordinate. Rows without coordinates are skipped.
func Build(sample table.Table[model.CustomerSpend]) (*Map, error) {
	m := &Map{Zoom: DefaultZoom}
	layers := make(map[model.SpendTier]*Layer, len(model.Tiers))
	for _, tier := range model.Tiers {
		style := Styles[tier]
		m.Layers = append(m.Layers, Layer{Tier: tier, Name: style.Name, Color: style.Color, Markers: []Marker{}})
	}
	for i := range m.Layers {
		layers[m.Layers[i].Tier] = &m.Layers[i]
	}

	var sumLat, sumLng float64
	var located int
	for _, c := range sample.All() {
		if !c.HasLocation() {
			continue
		}
		lat, lng := c.Lat.V, c.Lng.V
		layer, ok := layers[c.SpentRate]
		if !ok {
			return nil, errors.NewValidationError("Build", "spent_rate", "customer "+c.CustomerID+" has no tier")
		}

		sumLat += lat
		sumLng += lng
		located++

		layer.Markers = append(layer.Markers, Marker{
			Lat:              lat,
			Lng:              lng,
			SpentRate:        c.SpentRate,
			CustomerUniqueID: c.CustomerUniqueID,
			TotalSpent:       c.TotalSpent,
			City:             c.City,
			State:            c.State,
			Popup: fmt.Sprintf("Customer ID: %s\nTotal Revenue (R$): %s\nSpend Tier: %s",
				c.CustomerUniqueID, strconv.FormatFloat(c.TotalSpent, 'f', -1, 64), c.SpentRate),
			Tooltip: fmt.Sprintf("City: %s\nState: %s", c.City, c.State),
		})
	}

	if located == 0 {
		return nil, errors.NewEmptyGroupError("map center", "geolocation_lat")
	}
	m.CenterLat = sumLat / float64(located)
	m.CenterLng = sumLng / float64(located)
	return m, nil
}

// MarkerCount returns the number of markers over all layers
func (m *Map) MarkerCount() int {
	n := 0
	for _, l := range m.Layers {
		n += len(l.Markers)
	}
	return n
}

type featureCollection struct {
	Type     string     `json:"type"`
	Center   []float64  `json:"center"`
	Zoom     int        `json:"zoom"`
	Layers   []layerRef `json:"layers"`
	Features []feature  `json:"features"`
}

type layerRef struct {
	Name  string          `json:"name"`
	Color string          `json:"color"`
	Tier  model.SpendTier `json:"spent_rate"`
}

type feature struct {
	Type       string         `json:"type"`
	Geometry   geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// GeoJSON encodes the map as a FeatureCollection of points. Coordinates are
// [lng, lat]; center, zoom and the layer list are carried as foreign members.
func (m *Map) GeoJSON() ([]byte, error) {
	fc := featureCollection{
		Type:     "FeatureCollection",
		Center:   []float64{m.CenterLng, m.CenterLat},
		Zoom:     m.Zoom,
		Layers:   make([]layerRef, 0, len(m.Layers)),
		Features: make([]feature, 0, m.MarkerCount()),
	}
	for _, l := range m.Layers {
		fc.Layers = append(fc.Layers, layerRef{Name: l.Name, Color: l.Color, Tier: l.Tier})
		for _, mk := range l.Markers {
			fc.Features = append(fc.Features, feature{
				Type:     "Feature",
				Geometry: geometry{Type: "Point", Coordinates: []float64{mk.Lng, mk.Lat}},
				Properties: map[string]any{
					"layer":              l.Name,
					"color":              l.Color,
					"spent_rate":         mk.SpentRate,
					"customer_unique_id": mk.CustomerUniqueID,
					"total_spent":        mk.TotalSpent,
					"customer_city":      mk.City,
					"customer_state":     mk.State,
					"popup":              mk.Popup,
					"tooltip":            mk.Tooltip,
				},
			})
		}
	}
	return json.Marshal(fc)
}
