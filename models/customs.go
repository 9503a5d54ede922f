package models

// DutyRate is the customs duty information for an HS code, as returned
// by the external duty API.
type DutyRate struct {
	HSCode      string  `json:"hsCode"`
	Description string  `json:"description,omitempty"`
	DutyPercent float64 `json:"dutyPercent"`
	VATPercent  float64 `json:"vatPercent,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}
