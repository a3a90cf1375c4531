package domain

import "time"

// Table carries a cached occupancy projection. Occupied is derived from the
// open-header set and is only ever written inside the same transaction as
// the header mutation that changed it.
type Table struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Occupied  bool      `json:"occupied"`
	CreatedAt time.Time `json:"createdAt"`
}
