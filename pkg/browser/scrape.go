package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
)

// ScrapeOptions configures an assessor-site scrape. ParcelID is the primary
// search key; address and owner name are fallback strategies when the site
// has no parcel search.
type ScrapeOptions struct {
	URL       string
	ParcelID  string
	Address   string
	OwnerName string
	Timeout   float64

	// Screenshots controls whether before/after captures are included in the
	// result. They are large, so callers opt in.
	Screenshots bool
}

// ScrapeResult is the outcome of one assessor scrape.
type ScrapeResult struct {
	Success           bool       `json:"success"`
	Data              *TaxRecord `json:"data,omitempty"`
	FinalURL          string     `json:"final_url,omitempty"`
	PageTitle         string     `json:"page_title,omitempty"`
	FailureReason     string     `json:"failure_reason,omitempty"`
	InitialScreenshot string     `json:"initial_screenshot_base64,omitempty"`
	FinalScreenshot   string     `json:"final_screenshot_base64,omitempty"`
}

// TaxRecord holds property tax data extracted from a results page. Fields the
// extractor could not locate are empty.
type TaxRecord struct {
	ParcelID      string          `json:"parcel_id,omitempty"`
	Owner         string          `json:"owner,omitempty"`
	Address       string          `json:"address,omitempty"`
	AssessedValue string          `json:"assessed_value,omitempty"`
	Tables        []TableFragment `json:"tables,omitempty"`
	RawText       string          `json:"raw_text,omitempty"`
}

// TableFragment is one table lifted from the results page, size-limited.
type TableFragment struct {
	Index int    `json:"index"`
	HTML  string `json:"html"`
}

const (
	scrapeTableLimit   = 5000
	scrapeRawTextLimit = 10000
)

// Selector lists for the search strategies, tried in order. Assessor sites
// share no markup conventions, so each strategy casts a progressively wider
// net.
var (
	parcelInputSelectors = []string{
		`input[name*="parcel" i]`,
		`input[id*="parcel" i]`,
		`input[placeholder*="parcel" i]`,
		"#parcelId",
		"#parcel_number",
		"#ParcelNumber",
	}
	addressInputSelectors = []string{
		`input[name*="address" i]`,
		`input[id*="address" i]`,
		`input[placeholder*="address" i]`,
	}
	ownerInputSelectors = []string{
		`input[name*="owner" i]`,
		`input[id*="owner" i]`,
		`input[name*="name" i]`,
	}
	genericInputSelectors = []string{
		`input[type="search"]`,
		`input[type="text"]`,
		"#search",
		".search-input",
	}
	submitButtonSelectors = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`button:has-text("Search")`,
		`button:has-text("Find")`,
		`button:has-text("Submit")`,
		".search-button",
		"#search-btn",
	}
)

// ScrapeAssessor navigates to an assessor site, runs the search strategies,
// and extracts tax data from the results page. A failed search is not an
// error: the result carries Success=false plus diagnostics so the caller can
// see what the page looked like.
func (s *Session) ScrapeAssessor(opts ScrapeOptions) (*ScrapeResult, error) {
	if opts.Timeout == 0 {
		opts.Timeout = s.opTimeout
	}

	err := s.Navigate(opts.URL, NavigateOptions{
		WaitUntil: "networkidle",
		Timeout:   opts.Timeout,
	})
	if err != nil {
		return nil, err
	}

	result := &ScrapeResult{}
	if opts.Screenshots {
		if shot, shotErr := s.Screenshot(ScreenshotOptions{FullPage: true}); shotErr == nil {
			result.InitialScreenshot = shot
		}
	}

	if !s.runSearchStrategies(opts) {
		result.FailureReason = "could not find a property search form or submit a search"
		result.FinalURL = s.page.URL()
		return result, nil
	}

	// Let the results render; many assessor sites load data after submit.
	_ = s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: &opts.Timeout,
	})
	time.Sleep(2 * time.Second)

	record, err := s.extractTaxRecord()
	if err != nil {
		return nil, err
	}

	result.Success = true
	result.Data = record
	result.FinalURL = s.page.URL()
	if title, titleErr := s.page.Title(); titleErr == nil {
		result.PageTitle = title
	}
	if opts.Screenshots {
		if shot, shotErr := s.Screenshot(ScreenshotOptions{FullPage: true}); shotErr == nil {
			result.FinalScreenshot = shot
		}
	}

	s.setCurrentURL(s.page.URL())
	return result, nil
}

// runSearchStrategies tries parcel, address, owner, and generic search boxes
// in that order, returning true as soon as one fill-and-submit succeeds.
func (s *Session) runSearchStrategies(opts ScrapeOptions) bool {
	type strategy struct {
		selectors []string
		value     string
	}
	strategies := []strategy{
		{parcelInputSelectors, opts.ParcelID},
		{addressInputSelectors, opts.Address},
		{ownerInputSelectors, opts.OwnerName},
		{genericInputSelectors, opts.ParcelID},
	}

	for _, st := range strategies {
		if st.value == "" {
			continue
		}
		if s.searchBySelectors(st.selectors, st.value) {
			return true
		}
	}
	return false
}

func (s *Session) searchBySelectors(selectors []string, value string) bool {
	for _, selector := range selectors {
		element, err := s.page.QuerySelector(selector)
		if err != nil || element == nil {
			continue
		}
		if err := element.Fill(value); err != nil {
			continue
		}
		if s.trySubmit(element) {
			return true
		}
	}
	return false
}

// trySubmit attempts Enter on the input, then an explicit submit button, then
// submitting the enclosing form directly.
func (s *Session) trySubmit(input playwright.ElementHandle) bool {
	if err := input.Press("Enter"); err == nil {
		time.Sleep(time.Second)
		return true
	}

	for _, selector := range submitButtonSelectors {
		button, err := s.page.QuerySelector(selector)
		if err != nil || button == nil {
			continue
		}
		if err := button.Click(); err == nil {
			time.Sleep(time.Second)
			return true
		}
	}

	if _, err := s.page.Evaluate("(el) => el.closest('form')?.submit()", input); err == nil {
		time.Sleep(time.Second)
		return true
	}
	return false
}

// extractTaxRecord pulls structured data out of the results page: the body
// text, any tables, and labeled fields matched by class/id naming.
func (s *Session) extractTaxRecord() (*TaxRecord, error) {
	raw, err := s.page.Content()
	if err != nil {
		return nil, classifyOpError(fmt.Errorf("content retrieval failed: %w", err))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	record := &TaxRecord{
		ParcelID:      findLabeledField(doc, "parcel"),
		Owner:         findLabeledField(doc, "owner"),
		Address:       findLabeledField(doc, "address"),
		AssessedValue: firstNonEmpty(findLabeledField(doc, "assessed"), findLabeledField(doc, "value")),
	}

	doc.Find("table").EachWithBreak(func(i int, table *goquery.Selection) bool {
		tableHTML, htmlErr := table.Html()
		if htmlErr != nil {
			return true
		}
		tableHTML = truncate(tableHTML, scrapeTableLimit)
		record.Tables = append(record.Tables, TableFragment{Index: i, HTML: tableHTML})
		return len(record.Tables) < 20
	})

	record.RawText = truncate(normalizeWhitespace(doc.Find("body").Text()), scrapeRawTextLimit)

	return record, nil
}

// findLabeledField returns the text of the first element whose class or id
// contains key, case-insensitively. Assessor sites commonly label data cells
// this way ("parcelNumber", "owner-name").
func findLabeledField(doc *goquery.Document, key string) string {
	var found string
	doc.Find("[class], [id]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		id, _ := sel.Attr("id")
		if !strings.Contains(strings.ToLower(class), key) && !strings.Contains(strings.ToLower(id), key) {
			return true
		}
		text := normalizeWhitespace(sel.Text())
		if text == "" || len(text) > 500 {
			return true
		}
		found = text
		return false
	})
	return found
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
