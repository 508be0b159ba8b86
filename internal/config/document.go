package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// MetricsDocument is the YAML document describing the calls to run on every block.
type MetricsDocument struct {
	Calls []CallDocument `yaml:"calls"`
}

// CallDocument is one contract function replicated across addresses.
type CallDocument struct {
	ContractType string                    `yaml:"contract_type"`
	Function     string                    `yaml:"function"`
	Arguments    []ArgumentDocument        `yaml:"arguments"`
	Addresses    []string                  `yaml:"addresses"`
	Metrics      map[string]MetricDocument `yaml:"metrics"`
}

// ArgumentDocument is one positional argument of a call. Type is empty for
// plain values and "address" for values resolved through the address book.
type ArgumentDocument struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

// MetricDocument binds one output field of a call to a metric. The map key
// holding it in CallDocument.Metrics is the source field ("" for scalars).
type MetricDocument struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Type        string  `yaml:"type"`
	Transform   *string `yaml:"transform"`
}

// LoadMetricsDocument reads and validates the metrics document at path.
func LoadMetricsDocument(path string) (MetricsDocument, error) {
	if path == "" {
		return MetricsDocument{}, errors.New("metrics-config-path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return MetricsDocument{}, fmt.Errorf("read metrics config: %w", err)
	}
	return ParseMetricsDocument(data)
}

// ParseMetricsDocument decodes a metrics document from YAML.
func ParseMetricsDocument(data []byte) (MetricsDocument, error) {
	var doc MetricsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return MetricsDocument{}, fmt.Errorf("parse metrics config: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return MetricsDocument{}, err
	}
	return doc, nil
}

// Validate checks the structural rules that do not need ABIs or the address book.
func (d MetricsDocument) Validate() error {
	var errs []error
	for i, call := range d.Calls {
		where := fmt.Sprintf("calls[%d]", i)
		if call.ContractType == "" {
			errs = append(errs, fmt.Errorf("%s: contract_type is required", where))
		}
		if call.Function == "" {
			errs = append(errs, fmt.Errorf("%s: function is required", where))
		}
		if len(call.Addresses) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one address is required", where))
		}

		labels := map[string]bool{}
		for j, arg := range call.Arguments {
			if arg.Label == "" {
				continue
			}
			if labels[arg.Label] {
				errs = append(errs, fmt.Errorf("%s.arguments[%d]: duplicate label %s", where, j, arg.Label))
			}
			labels[arg.Label] = true
		}

		for _, source := range call.MetricSources() {
			metric := call.Metrics[source]
			if metric.Name == "" {
				errs = append(errs, fmt.Errorf("%s.metrics[%q]: name is required", where, source))
			}
			if metric.Transform != nil {
				errs = append(errs, fmt.Errorf("%s.metrics[%q]: transform not implemented", where, source))
			}
		}
	}
	return errors.Join(errs...)
}

// MetricSources returns the source fields of the call's metrics in sorted order.
func (c CallDocument) MetricSources() []string {
	sources := make([]string, 0, len(c.Metrics))
	for source := range c.Metrics {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}
