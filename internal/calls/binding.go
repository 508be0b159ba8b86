package calls

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ensuro/eth-exporter/internal/contracts"
	"github.com/ensuro/eth-exporter/internal/metrics"
)

const (
	baseLabelContract = "contract"
	baseLabelAddress  = "contract_address"
)

// Binding maps one output field of a ContractCall to a metric. Source names
// the field of a composite value; it is ignored for scalar values.
type Binding struct {
	Name        string
	Description string
	Kind        metrics.Kind
	Source      string

	labels []string
	gauge  *prometheus.GaugeVec
}

func NewBinding(name, description, kind, source string) (*Binding, error) {
	if name == "" {
		return nil, errors.New("metric name is required")
	}
	parsed, err := metrics.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	return &Binding{Name: name, Description: description, Kind: parsed, Source: source}, nil
}

// Bind registers the metric with the call's final label schema and sets
// every address' label combination to zero. When the call returns a
// composite value, Source must name one of its fields.
func (b *Binding) Bind(call *ContractCall, reg *metrics.Registry) error {
	if fields, composite := contracts.OutputFields(call.Method); composite && !slices.Contains(fields, b.Source) {
		return fmt.Errorf("metric %s: %s returns no field %q (fields: %s)", b.Name, call, b.Source, strings.Join(fields, ", "))
	}

	labels := append([]string{baseLabelContract, baseLabelAddress}, call.LabelNames()...)
	gauge, err := reg.Gauge(b.Name, b.Description, labels)
	if err != nil {
		return err
	}
	b.labels = labels
	b.gauge = gauge

	static := call.LabelMap()
	for _, addr := range call.Addresses {
		gauge.With(labelSet(addr.Name, addr.Address.Hex(), static)).Set(0)
	}
	call.Bindings = append(call.Bindings, b)
	return nil
}

// Labels returns the label schema, available once bound.
func (b *Binding) Labels() []string {
	return append([]string(nil), b.labels...)
}

// Update publishes results. Results carrying an error are skipped.
func (b *Binding) Update(results []CallResult) error {
	if b.gauge == nil {
		return fmt.Errorf("metric %s is not bound", b.Name)
	}

	var errs []error
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		value, err := b.extract(result.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("metric %s at %s: %w", b.Name, result.Address.Address.Hex(), err))
			continue
		}
		b.gauge.With(labelSet(result.Address.Name, result.Address.Address.Hex(), result.Labels)).Set(value)
	}
	return errors.Join(errs...)
}

func (b *Binding) extract(value contracts.Value) (float64, error) {
	if !value.IsComposite() {
		return contracts.ToFloat64(value.Scalar())
	}
	field, ok := value.Field(b.Source)
	if !ok {
		return 0, fmt.Errorf("field %q not found in %s", b.Source, value)
	}
	return contracts.ToFloat64(field)
}

func labelSet(name, address string, extra map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(extra)+2)
	for k, v := range extra {
		labels[k] = v
	}
	labels[baseLabelContract] = name
	labels[baseLabelAddress] = address
	return labels
}
