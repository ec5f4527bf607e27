// Package models - Scan results.
// This file defines the products a scan yields and the report delivered to the recipient.
package models

import (
	"net/url"
	"strings"
	"time"
)

// Product is a single scanned product. Its Name doubles as the deduplication
// identifier remembered by the history ledger.
type Product struct {
	Name         string   `json:"name"`
	Price        string   `json:"price,omitempty"`
	Rating       string   `json:"amazonRating,omitempty"`
	Description  string   `json:"description"`
	MatchScore   int      `json:"matchScore"`
	Reasoning    string   `json:"reasoning"`
	RequiredTech []string `json:"requiredTech"`
	URL          string   `json:"url,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	IsNewRelease bool     `json:"isNewRelease,omitempty"`
}

// Identifier returns the raw identifier the ledger normalizes.
func (p Product) Identifier() string {
	return p.Name
}

const marketplaceSearchURL = "https://www.amazon.com/s?k="

// SafeURL returns the product link, replacing empty, non-http and
// product-detail links (which scanners tend to invent) with a marketplace
// search for the product name.
func (p Product) SafeURL() string {
	u := strings.TrimSpace(p.URL)
	if u == "" || !strings.HasPrefix(u, "http") || strings.Contains(u, "/dp/") || strings.Contains(u, "/gp/") {
		return marketplaceSearchURL + url.QueryEscape(p.Name)
	}
	return u
}

// SafeImageURL returns the image link when it is an absolute http(s) URL, or "".
func (p Product) SafeImageURL() string {
	u := strings.TrimSpace(p.ImageURL)
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return ""
}

// Report is the outcome of a single scan.
type Report struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Summary   string    `json:"summary"`
	Products  []Product `json:"products"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sanitize rewrites every product link through SafeURL and SafeImageURL.
func (r *Report) Sanitize() {
	for i := range r.Products {
		r.Products[i].URL = r.Products[i].SafeURL()
		r.Products[i].ImageURL = r.Products[i].SafeImageURL()
	}
}
