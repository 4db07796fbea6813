package codec

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"meshgraph/internal/domain"
)

// JSONCodec handles JSON import/export of graph data
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports graph data from JSON
func (c *JSONCodec) Parse(r io.Reader) (*domain.GraphData, error) {
	data := domain.NewGraphData()
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(data); err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON")
	}

	return data, nil
}

// Export exports graph data to JSON
func (c *JSONCodec) Export(data *domain.GraphData, w io.Writer) error {
	if data == nil {
		data = domain.NewGraphData()
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}

	return nil
}
