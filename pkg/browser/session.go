package browser

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// Navigate loads a URL in the session's page. The target is validated against
// the navigation allowlist before the engine is touched.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	if s.guard != nil {
		if err := s.guard.ValidateURL(url); err != nil {
			return err
		}
	}

	gotoOpts := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		gotoOpts.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		gotoOpts.Timeout = &opts.Timeout
	}

	if _, err := s.page.Goto(url, gotoOpts); err != nil {
		return classifyOpError(fmt.Errorf("navigation failed: %w", err))
	}

	s.setCurrentURL(s.page.URL())
	return nil
}

// Click clicks the first element matching the selector.
func (s *Session) Click(opts ClickOptions) error {
	clickOpts := playwright.PageClickOptions{}
	if opts.Button != "" {
		button := playwright.MouseButton(opts.Button)
		clickOpts.Button = &button
	}
	if opts.ClickCount > 0 {
		clickOpts.ClickCount = &opts.ClickCount
	}
	if opts.Timeout > 0 {
		clickOpts.Timeout = &opts.Timeout
	}

	if err := s.page.Click(opts.Selector, clickOpts); err != nil {
		return classifyOpError(fmt.Errorf("click failed: %w", err))
	}

	// The click may have triggered navigation.
	s.setCurrentURL(s.page.URL())
	return nil
}

// Fill fills an input element with the given value.
func (s *Session) Fill(opts FillOptions) error {
	fillOpts := playwright.PageFillOptions{}
	if opts.Timeout > 0 {
		fillOpts.Timeout = &opts.Timeout
	}

	if err := s.page.Fill(opts.Selector, opts.Value, fillOpts); err != nil {
		return classifyOpError(fmt.Errorf("fill failed: %w", err))
	}
	return nil
}

// WaitFor waits until an element matching the selector reaches the requested
// state.
func (s *Session) WaitFor(opts WaitOptions) error {
	if opts.Selector == "" {
		return fmt.Errorf("selector is required for wait")
	}

	waitOpts := playwright.PageWaitForSelectorOptions{}
	if opts.State != "" {
		state := playwright.WaitForSelectorState(opts.State)
		waitOpts.State = &state
	}
	if opts.Timeout > 0 {
		waitOpts.Timeout = &opts.Timeout
	}

	if _, err := s.page.WaitForSelector(opts.Selector, waitOpts); err != nil {
		return classifyOpError(fmt.Errorf("wait failed: %w", err))
	}
	return nil
}

// Evaluate runs a JavaScript expression in the page and returns its result.
func (s *Session) Evaluate(code string) (interface{}, error) {
	result, err := s.page.Evaluate(code)
	if err != nil {
		return nil, classifyOpError(fmt.Errorf("evaluate failed: %w", err))
	}
	return result, nil
}

// Screenshot captures the page as base64-encoded PNG.
func (s *Session) Screenshot(opts ScreenshotOptions) (string, error) {
	shotOpts := playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(opts.FullPage),
	}
	if opts.Timeout > 0 {
		shotOpts.Timeout = &opts.Timeout
	}

	data, err := s.page.Screenshot(shotOpts)
	if err != nil {
		return "", classifyOpError(fmt.Errorf("screenshot failed: %w", err))
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ExtractContent extracts page content in the requested format.
func (s *Session) ExtractContent(opts ExtractOptions) (interface{}, error) {
	if opts.Format == "" {
		opts.Format = FormatMarkdown
	}
	if opts.MaxLength == 0 {
		opts.MaxLength = DefaultMaxLength
	}

	switch opts.Format {
	case FormatText:
		return s.extractText(opts)
	case FormatMarkdown:
		return s.extractMarkdown(opts)
	case FormatStructured:
		return s.extractStructured(opts)
	default:
		return nil, fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

func (s *Session) extractText(opts ExtractOptions) (string, error) {
	selector := opts.Selector
	if selector == "" {
		selector = "body"
	}

	element, err := s.page.QuerySelector(selector)
	if err != nil {
		return "", classifyOpError(fmt.Errorf("selector query failed: %w", err))
	}
	if element == nil {
		return "", fmt.Errorf("no element found matching selector: %s", selector)
	}

	content, err := element.TextContent()
	if err != nil {
		return "", classifyOpError(fmt.Errorf("text extraction failed: %w", err))
	}

	content = strings.TrimSpace(content)
	if len(content) > opts.MaxLength {
		truncated := truncate(content, opts.MaxLength)
		return truncated + fmt.Sprintf("\n\n[Content truncated: %d of %d characters shown]", len(truncated), len(content)), nil
	}
	return content, nil
}

func (s *Session) extractMarkdown(opts ExtractOptions) (string, error) {
	raw, err := s.page.Content()
	if err != nil {
		return "", classifyOpError(fmt.Errorf("content retrieval failed: %w", err))
	}

	cleaned, err := cleanHTML(raw, opts.MaxLength)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	if cleaned.Title != "" {
		fmt.Fprintf(&builder, "# %s\n\n", cleaned.Title)
	}
	if cleaned.Description != "" {
		fmt.Fprintf(&builder, "%s\n\n", cleaned.Description)
	}
	builder.WriteString(cleaned.HTML)
	if cleaned.Truncated {
		builder.WriteString("\n\n[Content truncated]")
	}
	return builder.String(), nil
}

func (s *Session) extractStructured(opts ExtractOptions) (*StructuredContent, error) {
	structured := &StructuredContent{}

	if title, err := s.page.Title(); err == nil {
		structured.Title = title
	}

	headings, err := s.page.QuerySelectorAll("h1, h2, h3, h4, h5, h6")
	if err == nil {
		for _, heading := range headings {
			if text, textErr := heading.TextContent(); textErr == nil {
				if text = strings.TrimSpace(text); text != "" {
					structured.Headings = append(structured.Headings, text)
				}
			}
		}
	}

	links, err := s.page.QuerySelectorAll("a[href]")
	if err == nil {
		for _, link := range links {
			text, _ := link.TextContent()
			href, _ := link.GetAttribute("href")
			if href != "" {
				structured.Links = append(structured.Links, Link{
					Text: strings.TrimSpace(text),
					Href: href,
				})
			}
		}
	}

	body, err := s.extractText(opts)
	if err != nil {
		return nil, err
	}
	structured.Body = body

	return structured, nil
}

// Metadata returns the current page title and URL.
func (s *Session) Metadata() (map[string]string, error) {
	title, err := s.page.Title()
	if err != nil {
		title = ""
	}
	return map[string]string{
		"title": title,
		"url":   s.page.URL(),
	}, nil
}
