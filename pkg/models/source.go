package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DataType is the content discriminator of a DataSource.
type DataType string

const (
	DataTypeNumerical DataType = "numerical"
	DataTypeChart     DataType = "chart"
)

// ParseDataType accepts the canonical names plus the "numeric" alias.
func ParseDataType(s string) (DataType, bool) {
	switch s {
	case "numerical", "numeric":
		return DataTypeNumerical, true
	case "chart", "charts":
		return DataTypeChart, true
	}
	return "", false
}

// Origin records how a DataSource came to exist. It is independent of DataType.
type Origin string

const (
	OriginExtracted Origin = "extracted"
	OriginImported  Origin = "imported"
)

// DataSource is a named, typed collection of records.
// Exactly one of Numeric/Charts is used, as selected by DataType; build sources
// through NewNumericSource / NewChartSource to keep the two in agreement.
type DataSource struct {
	ID       string
	Name     string
	Type     Origin
	DataType DataType
	Numeric  []NumericRecord
	Charts   []ChartRecord
}

// NewNumericSource creates a numerical source with a fresh id.
func NewNumericSource(name string, origin Origin, records []NumericRecord) *DataSource {
	if records == nil {
		records = []NumericRecord{}
	}
	return &DataSource{
		ID:       uuid.New().String(),
		Name:     name,
		Type:     origin,
		DataType: DataTypeNumerical,
		Numeric:  records,
	}
}

// NewChartSource creates a chart source with a fresh id.
func NewChartSource(name string, origin Origin, records []ChartRecord) *DataSource {
	if records == nil {
		records = []ChartRecord{}
	}
	return &DataSource{
		ID:       uuid.New().String(),
		Name:     name,
		Type:     origin,
		DataType: DataTypeChart,
		Charts:   records,
	}
}

// Len is the number of records held.
func (s *DataSource) Len() int {
	if s.DataType == DataTypeChart {
		return len(s.Charts)
	}
	return len(s.Numeric)
}

// Records returns the active record slice ([]NumericRecord or []ChartRecord).
func (s *DataSource) Records() any {
	if s.DataType == DataTypeChart {
		return s.Charts
	}
	return s.Numeric
}

// Clone returns a copy that shares no slices with s.
func (s *DataSource) Clone() *DataSource {
	c := *s
	c.Numeric = append([]NumericRecord(nil), s.Numeric...)
	c.Charts = append([]ChartRecord(nil), s.Charts...)
	if s.DataType == DataTypeNumerical && c.Numeric == nil {
		c.Numeric = []NumericRecord{}
	}
	if s.DataType == DataTypeChart && c.Charts == nil {
		c.Charts = []ChartRecord{}
	}
	return &c
}

// Validate checks the DataType/record invariant.
func (s *DataSource) Validate() error {
	switch s.DataType {
	case DataTypeNumerical:
		if len(s.Charts) > 0 {
			return fmt.Errorf("source %s: numerical source holds chart records", s.ID)
		}
	case DataTypeChart:
		if len(s.Numeric) > 0 {
			return fmt.Errorf("source %s: chart source holds numeric records", s.ID)
		}
	default:
		return fmt.Errorf("source %s: unknown data type %q", s.ID, s.DataType)
	}
	return nil
}

type sourceJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     Origin          `json:"type"`
	DataType DataType        `json:"dataType"`
	Data     json.RawMessage `json:"data"`
}

// MarshalJSON emits {id, name, type, dataType, data}.
func (s DataSource) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(s.Records())
	if err != nil {
		return nil, err
	}
	return json.Marshal(sourceJSON{
		ID:       s.ID,
		Name:     s.Name,
		Type:     s.Type,
		DataType: s.DataType,
		Data:     data,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *DataSource) UnmarshalJSON(b []byte) error {
	var raw sourceJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	dt, ok := ParseDataType(string(raw.DataType))
	if !ok {
		return fmt.Errorf("unknown dataType %q", raw.DataType)
	}
	*s = DataSource{ID: raw.ID, Name: raw.Name, Type: raw.Type, DataType: dt}
	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		raw.Data = []byte("[]")
	}
	if dt == DataTypeChart {
		return json.Unmarshal(raw.Data, &s.Charts)
	}
	return json.Unmarshal(raw.Data, &s.Numeric)
}
