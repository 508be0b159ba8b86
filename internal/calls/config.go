package calls

import (
	"errors"
	"fmt"

	"github.com/ensuro/eth-exporter/internal/addrbook"
	"github.com/ensuro/eth-exporter/internal/config"
	"github.com/ensuro/eth-exporter/internal/contracts"
	"github.com/ensuro/eth-exporter/internal/metrics"
)

// MetricsConfig is the loaded set of calls with their bound metrics. It is
// immutable once Load returns.
type MetricsConfig struct {
	Calls []*ContractCall
}

// Load builds every call of doc and registers its metrics in reg.
func Load(doc config.MetricsDocument, lib *contracts.Library, resolver *addrbook.Resolver, reg *metrics.Registry) (*MetricsConfig, error) {
	if lib == nil {
		return nil, errors.New("abi library is nil")
	}
	if reg == nil {
		return nil, errors.New("metric registry is nil")
	}
	if resolver == nil {
		resolver = addrbook.NewResolver(nil)
	}

	cfg := &MetricsConfig{Calls: make([]*ContractCall, 0, len(doc.Calls))}
	for i, callDoc := range doc.Calls {
		call, err := loadCall(callDoc, lib, resolver, reg)
		if err != nil {
			return nil, fmt.Errorf("calls[%d] %s.%s: %w", i, callDoc.ContractType, callDoc.Function, err)
		}
		cfg.Calls = append(cfg.Calls, call)
	}
	return cfg, nil
}

func loadCall(doc config.CallDocument, lib *contracts.Library, resolver *addrbook.Resolver, reg *metrics.Registry) (*ContractCall, error) {
	args := make([]Argument, 0, len(doc.Arguments))
	for _, argDoc := range doc.Arguments {
		arg, err := LoadArgument(argDoc, resolver)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	addresses, err := resolver.ResolveAll(doc.Addresses)
	if err != nil {
		return nil, err
	}

	call, err := NewContractCall(lib, doc.ContractType, doc.Function, args, addresses)
	if err != nil {
		return nil, err
	}

	for _, source := range doc.MetricSources() {
		metricDoc := doc.Metrics[source]
		if metricDoc.Transform != nil {
			return nil, fmt.Errorf("metric %s: transform not implemented", metricDoc.Name)
		}
		binding, err := NewBinding(metricDoc.Name, metricDoc.Description, metricDoc.Type, source)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", metricDoc.Name, err)
		}
		if err := binding.Bind(call, reg); err != nil {
			return nil, err
		}
	}
	return call, nil
}

// Bindings returns every binding of every call.
func (m *MetricsConfig) Bindings() []*Binding {
	var out []*Binding
	for _, call := range m.Calls {
		out = append(out, call.Bindings...)
	}
	return out
}
