package marketdata

// CatalogEntry describes one listed asset from the provider catalog.
type CatalogEntry struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// apiStatus is the uniform success envelope carried by every response.
type apiStatus struct {
	Success bool `json:"success"`
}

func (s apiStatus) ok() bool {
	return s.Success
}

// envelope is implemented by all response types so the transport layer can
// reject success=false bodies uniformly.
type envelope interface {
	ok() bool
}

// rangeResponse is the /api/range payload: date -> symbol -> price.
type rangeResponse struct {
	apiStatus
	Start string                        `json:"start"`
	End   string                        `json:"end"`
	Rates map[string]map[string]float64 `json:"rates"`
}

// historicalResponse is the /api/historical payload for one date.
type historicalResponse struct {
	apiStatus
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// liveResponse is the /api/live payload.
type liveResponse struct {
	apiStatus
	Timestamp int64              `json:"timestamp"`
	Rates     map[string]float64 `json:"rates"`
}

// catalogResponse is the /api/catalog payload.
type catalogResponse struct {
	apiStatus
	Symbols map[string]CatalogEntry `json:"symbols"`
}
