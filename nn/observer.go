package nn

import (
	"context"
	"log/slog"
)

// LayerStats summarizes one layer's output activations.
type LayerStats struct {
	AvgActivation float32 `json:"avg_activation"`
	MaxActivation float32 `json:"max_activation"`
	MinActivation float32 `json:"min_activation"`
	ActiveNeurons int     `json:"active_neurons"`
	TotalNeurons  int     `json:"total_neurons"`
	Activation    string  `json:"activation"`
}

// LayerEvent is emitted after each layer of a forward pass.
type LayerEvent struct {
	LayerIdx int        `json:"layer_idx"`
	Device   string     `json:"device"`
	Stats    LayerStats `json:"stats"`
	Output   []float32  `json:"-"`
}

// LayerObserver receives layer events from Network.Forward. Output aliases
// the network's working buffer and must not be retained.
type LayerObserver interface {
	OnForward(event LayerEvent)
}

// computeLayerStats calculates summary statistics for an activation slice.
// Values strictly above threshold count as active.
func computeLayerStats(data []float32, activation string, threshold float32) LayerStats {
	if len(data) == 0 {
		return LayerStats{Activation: activation}
	}

	var sum float32
	max, min := data[0], data[0]
	active := 0
	for _, v := range data {
		sum += v
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
		if v > threshold {
			active++
		}
	}

	return LayerStats{
		AvgActivation: sum / float32(len(data)),
		MaxActivation: max,
		MinActivation: min,
		ActiveNeurons: active,
		TotalNeurons:  len(data),
		Activation:    activation,
	}
}

func (n *Network) notifyObserver(idx int, device string, output []float32) {
	if n.Observer == nil {
		return
	}
	n.Observer.OnForward(LayerEvent{
		LayerIdx: idx,
		Device:   device,
		Stats:    computeLayerStats(output, n.Layers[idx].Activation.String(), 0),
		Output:   output,
	})
}

// SlogObserver logs every layer event at debug level.
type SlogObserver struct {
	Logger *slog.Logger
}

func (o *SlogObserver) OnForward(event LayerEvent) {
	l := o.Logger
	if l == nil {
		l = slog.Default()
	}
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.Debug("layer forward",
		"layer", event.LayerIdx,
		"device", event.Device,
		"activation", event.Stats.Activation,
		"avg", event.Stats.AvgActivation,
		"min", event.Stats.MinActivation,
		"max", event.Stats.MaxActivation,
		"active", event.Stats.ActiveNeurons,
		"total", event.Stats.TotalNeurons)
}

// ChannelObserver forwards events to a buffered channel, dropping them when
// the channel is full.
type ChannelObserver struct {
	Events chan LayerEvent
}

func NewChannelObserver(bufferSize int) *ChannelObserver {
	return &ChannelObserver{Events: make(chan LayerEvent, bufferSize)}
}

func (o *ChannelObserver) OnForward(event LayerEvent) {
	event.Output = nil
	select {
	case o.Events <- event:
	default:
	}
}
