// Package ingestion moves catalog data files into the PostgreSQL source and
// announces the new catalog to running instances.
package ingestion

// ImportRequest names the files to import. OrdersPath may be empty, in
// which case the stored order history is cleared.
type ImportRequest struct {
	ProductsPath string
	OrdersPath   string
	RequestedBy  string
	// Reload publishes a reload event after a successful import.
	Reload bool
	// DryRun loads and validates the files without writing anything.
	DryRun bool
}

// ImportResult summarises an import.
type ImportResult struct {
	Products      int    `json:"products"`
	Orders        int    `json:"orders"`
	DanglingLines int    `json:"danglingLines"`
	DryRun        bool   `json:"dryRun"`
	ReloadEventID string `json:"reloadEventId,omitempty"`
}
