// Package enrichment queries the third-party people search API used by segment pulls.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const maxResponseBytes = 4 << 20

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("enrichment: %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed later.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type SearchQuery struct {
	Titles       []string `json:"person_titles,omitempty"`
	Industries   []string `json:"organization_industries,omitempty"`
	Locations    []string `json:"person_locations,omitempty"`
	CompanySizes []string `json:"organization_num_employees_ranges,omitempty"`
	Cursor       string   `json:"cursor,omitempty"`
	PageSize     int      `json:"per_page"`
}

type Person struct {
	Email         string
	FirstName     string
	LastName      string
	Title         string
	Seniority     string
	Company       string
	CompanyDomain string
	CompanySize   string
	Phone         string
	LinkedInURL   string
	City          string
	Country       string
	EmailStatus   string
	VerifiedAt    *time.Time
}

type Page struct {
	People     []Person
	NextCursor string
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: httpClient}
}

// Search returns one page of people. An empty NextCursor means the result set is
// exhausted.
func (c *Client) Search(ctx context.Context, q SearchQuery) (Page, error) {
	if q.PageSize <= 0 {
		q.PageSize = 100
	}
	body, err := json.Marshal(q)
	if err != nil {
		return Page{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/people/search", bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("enrichment search: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Page{}, fmt.Errorf("read enrichment response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := firstString(gjson.ParseBytes(raw), "error.message", "error", "message")
		if msg == "" {
			msg = resp.Status
		}
		return Page{}, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if !gjson.ValidBytes(raw) {
		return Page{}, fmt.Errorf("enrichment search: invalid json")
	}
	return parsePage(gjson.ParseBytes(raw)), nil
}

func parsePage(doc gjson.Result) Page {
	people := doc.Get("people")
	if !people.Exists() {
		people = doc.Get("data.people")
	}
	page := Page{NextCursor: firstString(doc, "pagination.next_cursor", "next_cursor")}
	people.ForEach(func(_, p gjson.Result) bool {
		person := Person{
			Email:         strings.ToLower(firstString(p, "email", "work_email")),
			FirstName:     firstString(p, "first_name", "firstName"),
			LastName:      firstString(p, "last_name", "lastName"),
			Title:         firstString(p, "title", "job_title"),
			Seniority:     firstString(p, "seniority"),
			Company:       firstString(p, "organization.name", "company"),
			CompanyDomain: firstString(p, "organization.primary_domain", "company_domain"),
			CompanySize:   companySize(p),
			Phone:         firstString(p, "phone_numbers.0.sanitized_number", "phone"),
			LinkedInURL:   firstString(p, "linkedin_url"),
			City:          firstString(p, "city"),
			Country:       firstString(p, "country"),
			EmailStatus:   firstString(p, "email_status"),
		}
		if ts := firstString(p, "email_verified_at", "verified_at"); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				person.VerifiedAt = &t
			}
		}
		if person.Email != "" {
			page.People = append(page.People, person)
		}
		return true
	})
	return page
}

func companySize(p gjson.Result) string {
	if v := p.Get("organization.estimated_num_employees"); v.Type == gjson.Number {
		return strconv.FormatInt(v.Int(), 10)
	}
	return firstString(p, "organization.size", "company_size")
}

func firstString(r gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := r.Get(path); v.Exists() && v.Type != gjson.Null {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}
