package telemetry

import "coffee-machine-backend/internal/store"

// GatewayResponse models one page of the sensor gateway's response.
type GatewayResponse struct {
	Code int         `json:"code"`
	Data GatewayPage `json:"data"`
}

// GatewayPage is the paged payload of a GatewayResponse.
type GatewayPage struct {
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Total    int             `json:"total"`
	Items    []store.Reading `json:"items"`
}
