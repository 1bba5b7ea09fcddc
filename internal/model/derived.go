package model

import (
	"fmt"

	"github.com/paveg/olist-eda/internal/table"
)

// SpendTier is the ordinal spend segment of a customer.
type SpendTier string

// Spend tiers, lowest first.
const (
	TierUnassigned SpendTier = ""
	TierLow        SpendTier = "low"
	TierMed        SpendTier = "med"
	TierHigh       SpendTier = "high"
)

// Tiers lists the assigned tiers in ascending order
var Tiers = []SpendTier{TierLow, TierMed, TierHigh}

// ParseSpendTier validates a tier label
func ParseSpendTier(s string) (SpendTier, error) {
	switch SpendTier(s) {
	case TierLow, TierMed, TierHigh:
		return SpendTier(s), nil
	default:
		return TierUnassigned, fmt.Errorf("unknown spend tier %q", s)
	}
}

// CustomerType splits buyers by whether a month holds their first purchase.
type CustomerType string

// Customer types.
const (
	CustomerNew       CustomerType = "new"
	CustomerReturning CustomerType = "returning"
)

// ProductPopularity is one product's sales count and mean price.
type ProductPopularity struct {
	ProductID           string       `json:"product_id"`
	Count               int64        `json:"count"`
	AvgPrice            float64      `json:"avg_price"`
	CategoryName        Null[string] `json:"product_category_name"`
	CategoryNameEnglish Null[string] `json:"product_category_name_english"`
}

// CategoryPopularity is the item count of one English category.
type CategoryPopularity struct {
	CategoryNameEnglish Null[string] `json:"product_category_name_english"`
	Count               int64        `json:"count"`
	Percent             float64      `json:"percent"`
}

// CustomerSpend is one customer's lifetime spend with tier and location.
type CustomerSpend struct {
	CustomerID       string        `json:"customer_id"`
	CustomerUniqueID string        `json:"customer_unique_id"`
	TotalSpent       float64       `json:"total_spent"`
	SpentRate        SpendTier     `json:"spent_rate"`
	ZipCodePrefix    string        `json:"customer_zip_code_prefix"`
	City             string        `json:"customer_city"`
	State            string        `json:"customer_state"`
	Lat              Null[float64] `json:"geolocation_lat"`
	Lng              Null[float64] `json:"geolocation_lng"`
}

// HasLocation reports whether coordinates were resolved
func (c CustomerSpend) HasLocation() bool {
	return c.Lat.Valid && c.Lng.Valid
}

// RegionSpend aggregates customers of one tier in one city.
type RegionSpend struct {
	SpentRate            SpendTier `json:"spent_rate"`
	State                string    `json:"customer_state"`
	City                 string    `json:"customer_city"`
	CustomerCount        int64     `json:"customer_count"`
	TotalSpent           float64   `json:"total_spent"`
	CustomerCountPercent float64   `json:"customer_count_percent"`
	TotalSpentPercent    float64   `json:"total_spent_percent"`
}

// DailyOrderStats carries one day's totals and its month's totals.
type DailyOrderStats struct {
	Date              string  `json:"date"`
	Month             string  `json:"month"`
	TotalOrder        int64   `json:"total_order"`
	TotalSpent        float64 `json:"total_spent"`
	TotalOrderMonthly int64   `json:"total_order_monthly"`
	TotalSpentMonthly float64 `json:"total_spent_monthly"`
}

// MonthlyGrowth is one month's totals for one customer type.
type MonthlyGrowth struct {
	Month          string        `json:"month"`
	CustomerType   CustomerType  `json:"customer_type"`
	TotalSpent     float64       `json:"total_spent"`
	TotalOrder     int64         `json:"total_order"`
	TotalSpentPct  float64       `json:"total_spent_pct"`
	TotalOrderPct  float64       `json:"total_order_pct"`
	SpentGrowthPct Null[float64] `json:"spent_growth_pct"`
	OrderGrowthPct Null[float64] `json:"order_growth_pct"`
}

// DeliveryLags are the modal whole-day delays after approval.
type DeliveryLags struct {
	CarrierDays  int64 `json:"carrier_days"`
	CustomerDays int64 `json:"customer_days"`
}

// CleaningReport counts what the cleaner removed or filled in.
type CleaningReport struct {
	DroppedOrders       int `json:"dropped_orders"`
	DroppedGeolocations int `json:"dropped_geolocations"`
	ImputedCarrier      int `json:"imputed_carrier"`
	ImputedCustomer     int `json:"imputed_customer"`
}

// SpendBounds are the IQR fences of per-customer spend. Lower is reported
// only; it is never applied.
type SpendBounds struct {
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
	IQR    float64 `json:"iqr"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Capped int     `json:"capped"`
}

// TierThresholds are the quantile cut points used to assign tiers.
type TierThresholds struct {
	LowQuantile  float64 `json:"low_quantile"`
	HighQuantile float64 `json:"high_quantile"`
	Low          float64 `json:"low"`
	High         float64 `json:"high"`
}

// SamplingInfo records how the map sample was drawn.
type SamplingInfo struct {
	Fraction   float64           `json:"fraction"`
	Seed       uint64            `json:"seed"`
	Population map[SpendTier]int `json:"population"`
	Sampled    map[SpendTier]int `json:"sampled"`
}

// Diagnostics are the values a run derived from the data, kept so a run over
// the same snapshot can be checked for reproducibility.
type Diagnostics struct {
	Lags       DeliveryLags   `json:"lags"`
	Cleaning   CleaningReport `json:"cleaning"`
	Bounds     SpendBounds    `json:"bounds"`
	Thresholds TierThresholds `json:"thresholds"`
	Sampling   SamplingInfo   `json:"sampling"`
	Warnings   []string       `json:"warnings"`
}

// Result holds every derived table of a run.
type Result struct {
	Products    table.Table[ProductPopularity]
	Categories  table.Table[CategoryPopularity]
	Customers   table.Table[CustomerSpend]
	Sample      table.Table[CustomerSpend]
	Regions     table.Table[RegionSpend]
	Daily       table.Table[DailyOrderStats]
	Growth      table.Table[MonthlyGrowth]
	Diagnostics Diagnostics
}
