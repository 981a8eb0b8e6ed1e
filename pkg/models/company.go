package models

import "time"

// --- SEC EDGAR identity & filings ---

// CompanyIdentity maps a ticker symbol to its stable SEC registry identifier.
type CompanyIdentity struct {
	Ticker string `json:"ticker"` // upper-cased
	CIK    int64  `json:"cik"`
	Name   string `json:"name"`
}

// FilingRecord is one row of a company's recent filing history.
// Zero dates and empty strings mean the upstream field was absent.
type FilingRecord struct {
	FilingDate      time.Time `json:"filing_date"`
	ReportDate      time.Time `json:"report_date"`
	FormType        string    `json:"form_type"` // "10-Q", "10-K", "8-K"
	AccessionNumber string    `json:"accession_number,omitempty"`
	PrimaryDocument string    `json:"primary_document,omitempty"`
	ArchiveURL      string    `json:"archive_url,omitempty"`
}

// FeedEntry is a filing announced on a company's EDGAR Atom feed.
type FeedEntry struct {
	Title    string    `json:"title"`
	Link     string    `json:"link"`
	FormType string    `json:"form_type,omitempty"`
	Updated  time.Time `json:"updated"`
	Summary  string    `json:"summary,omitempty"`
}

// FilingDocument is the readable content of an archived filing document.
type FilingDocument struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}
