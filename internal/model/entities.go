// Package model defines the source entities and the derived tables of the
// Olist analysis.
package model

import (
	"time"

	"github.com/paveg/olist-eda/internal/table"
)

// Layouts for the labels carried by derived tables.
const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
	MonthLayout     = "2006-01"
)

// Order is a row of the orders source.
type Order struct {
	OrderID             string
	CustomerID          string
	Status              string
	PurchasedAt         time.Time
	ApprovedAt          Null[time.Time]
	DeliveredCarrierAt  Null[time.Time]
	DeliveredCustomerAt Null[time.Time]
	EstimatedDeliveryAt time.Time
}

// OrderItem is a row of the order items source.
type OrderItem struct {
	OrderID         string
	ItemSeq         int64
	ProductID       string
	SellerID        string
	ShippingLimitAt time.Time
	Price           float64
	Freight         float64
}

// Customer is a row of the customers source. CustomerID is issued per order;
// UniqueID identifies the person across orders.
type Customer struct {
	CustomerID    string
	UniqueID      string
	ZipCodePrefix string
	City          string
	State         string
}

// PersonKey identifies the buyer across orders
func (c Customer) PersonKey() string {
	if c.UniqueID != "" {
		return c.UniqueID
	}
	return c.CustomerID
}

// Geolocation is a row of the geolocation source.
type Geolocation struct {
	ZipCodePrefix string
	Lat           float64
	Lng           float64
	City          string
	State         string
}

// Product is a row of the products source.
type Product struct {
	ProductID    string
	CategoryName Null[string]
}

// CategoryTranslation maps a local category code to its English name.
type CategoryTranslation struct {
	CategoryName        string
	CategoryNameEnglish string
}

// Dataset groups the source tables of one run.
type Dataset struct {
	Orders       table.Table[Order]
	Items        table.Table[OrderItem]
	Customers    table.Table[Customer]
	Geolocations table.Table[Geolocation]
	Products     table.Table[Product]
	Translations table.Table[CategoryTranslation]
}
