package models

import "image"

// Record represents one row of the mod ranking report.
// Values are kept verbatim: the report formats numbers inconsistently
// (thousands separators, locale marks), so callers parse them if they must.
type Record struct {
	DisplayName        string `json:"DisplayName"`
	RankTotal          string `json:"RankTotal"`
	DownloadsTotal     string `json:"DownloadsTotal"`
	DownloadsYesterday string `json:"DownloadsYesterday"`
}

// RecordSet is the ordered result of one extraction pass.
// Order matches the source table and encodes the ranking.
type RecordSet []Record

// Top returns the first record and whether there was one
func (rs RecordSet) Top() (Record, bool) {
	if len(rs) == 0 {
		return Record{}, false
	}
	return rs[0], true
}

// Artifact is a rendered card
type Artifact struct {
	ID    string      // Unique per render
	Path  string      // Where the PNG was written
	Image image.Image // Composited bitmap
}
