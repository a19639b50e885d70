package nn

import "encoding/json"

// ModelTelemetry describes a loaded network's structure.
type ModelTelemetry struct {
	ID          string           `json:"id"`
	Channels    int              `json:"channels"`
	TotalLayers int              `json:"total_layers"`
	TotalParams int              `json:"total_parameters"`
	Receptive   int              `json:"receptive_field"`
	Layers      []LayerTelemetry `json:"layers"`
}

// LayerTelemetry contains metadata about a single conv layer.
type LayerTelemetry struct {
	Activation  string `json:"activation"`
	KernelSize  int    `json:"kernel_size"`
	Parameters  int    `json:"parameters"`
	InChannels  int    `json:"in_channels"`
	OutChannels int    `json:"out_channels"`
}

// Telemetry extracts structural information from the network.
func (n *Network) Telemetry(modelID string) ModelTelemetry {
	t := ModelTelemetry{
		ID:          modelID,
		Channels:    n.Channels,
		TotalLayers: len(n.Layers),
		Receptive:   1,
		Layers:      make([]LayerTelemetry, 0, len(n.Layers)),
	}
	for _, l := range n.Layers {
		params := l.Filters*l.InputChannels*l.KernelSize*l.KernelSize + l.Filters
		t.Layers = append(t.Layers, LayerTelemetry{
			Activation:  l.Activation.String(),
			KernelSize:  l.KernelSize,
			Parameters:  params,
			InChannels:  l.InputChannels,
			OutChannels: l.Filters,
		})
		t.TotalParams += params
		t.Receptive += l.KernelSize - 1
	}
	return t
}

// JSON renders the telemetry, indented.
func (t ModelTelemetry) JSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
