package models

// ScanStatus is the terminal classification of a single domain scan.
type ScanStatus string

const (
	StatusFound     ScanStatus = "Found"
	StatusFoundAI   ScanStatus = "Found (AI)"
	StatusTextMatch ScanStatus = "Text Match"
	StatusNotFound  ScanStatus = "Not Found"
	StatusBlocked   ScanStatus = "Blocked"
	StatusError     ScanStatus = "Error"
)

// Default field values for ProductRecord. Extractors that cannot resolve a
// seller or availability must use these rather than leaving fields empty.
const (
	SellerUnknown       = "N/A"
	AvailabilityUnknown = "Unknown"
)

// SearchTarget identifies one scan request: a marketplace domain and the
// brand to look for. Immutable once created.
type SearchTarget struct {
	Domain string
	Brand  string
}

// RawPage is the outcome of a successful fetch. It is owned by the fetch that
// produced it and consumed read-only by extractors.
type RawPage struct {
	StatusCode int
	Body       string
	FinalURL   string
	Profile    string // name of the impersonation profile that succeeded
}

// ProductRecord is one normalized product listing extracted from a page.
//
// Name is guaranteed non-empty after acceptance. Seller and Availability
// default to SellerUnknown / AvailabilityUnknown. DetectionMethod records
// which strategy produced the record. Only the deep-scan enricher may mutate
// a record after creation, and only its Seller and Availability fields.
type ProductRecord struct {
	Platform        string `json:"platform"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	Currency        string `json:"currency,omitempty"`
	Seller          string `json:"seller"`
	Availability    string `json:"availability"`
	URL             string `json:"url"`
	DetectionMethod string `json:"detection_method"`
}

// ScanResult is the terminal result of scanning one domain. Immutable after
// construction.
type ScanResult struct {
	Status   ScanStatus       `json:"status"`
	Details  string           `json:"details"`
	Products []*ProductRecord `json:"products"`
	ScanURL  string           `json:"scan_url"`
}

// DomainReport pairs a scanned domain with its result.
type DomainReport struct {
	Domain string      `json:"domain"`
	Result *ScanResult `json:"result"`
}

// ScanSummary holds the headline metrics derived from a full multi-domain run.
type ScanSummary struct {
	DomainsScanned int `json:"domains_scanned"`
	TotalProducts  int `json:"total_products"`
	BlockedCount   int `json:"blocked_count"`
}

// Summarize derives the headline metrics from a set of domain reports.
func Summarize(reports []*DomainReport) ScanSummary {
	s := ScanSummary{DomainsScanned: len(reports)}
	for _, r := range reports {
		if r.Result == nil {
			continue
		}
		s.TotalProducts += len(r.Result.Products)
		if r.Result.Status == StatusBlocked {
			s.BlockedCount++
		}
	}
	return s
}
