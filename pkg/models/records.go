package models

// MaxSourceSnippet caps NumericRecord.Source.
const MaxSourceSnippet = 300

// NumericRecord is one quantitative fact pulled from a document.
type NumericRecord struct {
	Name         string `json:"name"`
	Subcategory  string `json:"subcategory,omitempty"`
	Value        Value  `json:"value"`
	Unit         string `json:"unit"`
	Year         int    `json:"year"` // 0 means unknown
	Period       string `json:"period"`
	Page         int    `json:"page"`
	Source       string `json:"source"`
	File         string `json:"file"`
	BankName     string `json:"bankName,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
}

// BoundingBox locates a chart on its rendered page, in pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the box has no area.
func (b BoundingBox) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// ChartRecord is one chart detected on a page.
type ChartRecord struct {
	ID          string       `json:"id"`
	PageNumber  int          `json:"pageNumber"`
	Title       string       `json:"title"`
	File        string       `json:"file"`
	ImageData   string       `json:"imageData,omitempty"` // data URL, absent for metadata-only exports
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
}

// WithoutImage returns a copy with the raster payload removed.
func (c ChartRecord) WithoutImage() ChartRecord {
	c.ImageData = ""
	return c
}
