package codec

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"meshgraph/internal/domain"
)

// YAMLCodec handles YAML import/export of graph data
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlGraph adds the window that the JSON form leaves to the request
type yamlGraph struct {
	domain.GraphData `yaml:",inline"`
	Duration         string `yaml:"duration,omitempty"`
}

// Parse imports graph data from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.GraphData, error) {
	yg := yamlGraph{GraphData: *domain.NewGraphData()}
	if err := yaml.NewDecoder(r).Decode(&yg); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}

	if yg.Duration != "" {
		d, err := time.ParseDuration(yg.Duration)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid duration %q", yg.Duration)
		}
		yg.GraphData.Duration = d
	}
	return &yg.GraphData, nil
}

// Export exports graph data to YAML
func (c *YAMLCodec) Export(data *domain.GraphData, w io.Writer) error {
	if data == nil {
		data = domain.NewGraphData()
	}

	yg := yamlGraph{GraphData: *data}
	if data.Duration > 0 {
		yg.Duration = data.Duration.String()
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(yg); err != nil {
		return errors.Wrap(err, "failed to encode YAML")
	}
	return encoder.Close()
}
