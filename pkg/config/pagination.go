package config

// PaginationType is the tag naming one pagination convention.
type PaginationType string

const (
	TypeNone        PaginationType = "none"
	TypeOffsetLimit PaginationType = "offset_limit"
	TypePageNumber  PaginationType = "page_number"
	TypeCursor      PaginationType = "cursor"
	TypeNextURL     PaginationType = "next_url"
	TypeLinkHeader  PaginationType = "link_header"
)

// Pagination is implemented by exactly one struct per convention, so a job can
// only carry the fields its convention reads.
type Pagination interface {
	Type() PaginationType
	Limits() PageLimits
	validate() error
}

// PageLimits holds the settings every convention shares.
type PageLimits struct {
	// DataPath is a dot-separated path to the record array. Empty means the
	// response itself is the page.
	DataPath string

	// MaxPages and MaxRecords stop the run once reached; 0 means unbounded.
	MaxPages   int
	MaxRecords int

	// StopWhen is an optional declarative predicate over each raw response.
	StopWhen *StopWhen
}

// Limits returns the shared settings.
func (l PageLimits) Limits() PageLimits { return l }

func (l PageLimits) validate() error {
	if l.MaxPages < 0 {
		return invalidf("max_pages must be >= 0 (got %d)", l.MaxPages)
	}
	if l.MaxRecords < 0 {
		return invalidf("max_records must be >= 0 (got %d)", l.MaxRecords)
	}
	if l.StopWhen != nil && l.StopWhen.Path == "" {
		return invalidf("stop_when.path is required")
	}
	return nil
}

// StopWhen stops pagination once the value at Path equals Equals.
type StopWhen struct {
	Path   string
	Equals any
}

// NoPagination issues a single request.
type NoPagination struct {
	PageLimits
}

// OffsetLimit sends offset/limit query parameters and advances the offset by PageSize.
type OffsetLimit struct {
	PageLimits
	PageSize    int
	OffsetParam string
	LimitParam  string
}

// PageNumber sends a 1-indexed page number and a page size.
type PageNumber struct {
	PageLimits
	PageSize      int
	PageParam     string
	PageSizeParam string
	StartPage     int
}

// Cursor sends the token found at CursorPath of the previous response.
type Cursor struct {
	PageLimits
	CursorParam string
	CursorPath  string

	// PageSize is sent under LimitParam when both are set.
	PageSize   int
	LimitParam string
}

// NextURL follows the URL found at NextURLPath of each response.
type NextURL struct {
	PageLimits
	NextURLPath string
}

// LinkHeader follows the rel="next" entry of an RFC 8288 Link header.
type LinkHeader struct {
	PageLimits
	HeaderName string
}

func (NoPagination) Type() PaginationType { return TypeNone }
func (OffsetLimit) Type() PaginationType  { return TypeOffsetLimit }
func (PageNumber) Type() PaginationType   { return TypePageNumber }
func (Cursor) Type() PaginationType       { return TypeCursor }
func (NextURL) Type() PaginationType      { return TypeNextURL }
func (LinkHeader) Type() PaginationType   { return TypeLinkHeader }

func (p OffsetLimit) validate() error {
	if p.PageSize <= 0 {
		return invalidf("offset_limit: page_size must be > 0 (got %d)", p.PageSize)
	}
	if p.OffsetParam == "" || p.LimitParam == "" {
		return invalidf("offset_limit: offset_param and limit_param must not be empty")
	}
	return p.PageLimits.validate()
}

func (p PageNumber) validate() error {
	if p.PageSize <= 0 {
		return invalidf("page_number: page_size must be > 0 (got %d)", p.PageSize)
	}
	if p.PageParam == "" {
		return invalidf("page_number: page_param must not be empty")
	}
	return p.PageLimits.validate()
}

func (p Cursor) validate() error {
	if p.CursorParam == "" || p.CursorPath == "" {
		return invalidf("cursor: cursor_param and cursor_path must not be empty")
	}
	return p.PageLimits.validate()
}

func (p NextURL) validate() error {
	if p.NextURLPath == "" {
		return invalidf("next_url: next_url_path must not be empty")
	}
	return p.PageLimits.validate()
}

func (p LinkHeader) validate() error {
	if p.HeaderName == "" {
		return invalidf("link_header: link_header must not be empty")
	}
	return p.PageLimits.validate()
}
