package codec

import (
	"io"

	"github.com/pkg/errors"

	"meshgraph/internal/domain"
)

// Importer interface for reading graph data from various formats
type Importer interface {
	Parse(r io.Reader) (*domain.GraphData, error)
	Format() string
}

// Exporter interface for writing graph data to various formats
type Exporter interface {
	Export(data *domain.GraphData, w io.Writer) error
	Format() string
}

// ContentType returns the HTTP content type of a format
func ContentType(format string) string {
	switch format {
	case "yaml":
		return "application/yaml"
	default:
		return "application/json"
	}
}

// ExporterFor returns the exporter of format; an empty format selects JSON
func ExporterFor(format string) (Exporter, error) {
	switch format {
	case "", "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, errors.Errorf("unsupported export format %q", format)
	}
}
