package nn

import (
	"context"
	"encoding/json"
	"testing"
)

func TestObserverStats(t *testing.T) {
	net, err := NewNetwork([]LayerConfig{
		pointwise([][]float32{{1, 1}}, []float32{0}),
		pointwise([][]float32{{2}}, []float32{-1}),
	})
	if err != nil {
		t.Fatal(err)
	}
	obs := NewChannelObserver(4)
	net.Observer = obs

	// planes: [1 2] and [0 -3]
	if _, err := net.Forward(context.Background(), []float32{1, 2, 0, -3}, 1, 2); err != nil {
		t.Fatal(err)
	}
	if len(obs.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(obs.Events))
	}

	want := []LayerStats{
		{AvgActivation: 0, MaxActivation: 1, MinActivation: -1, ActiveNeurons: 1, TotalNeurons: 2, Activation: "linear"},
		{AvgActivation: -1, MaxActivation: 1, MinActivation: -3, ActiveNeurons: 1, TotalNeurons: 2, Activation: "linear"},
	}
	for i, w := range want {
		ev := <-obs.Events
		if ev.LayerIdx != i || ev.Device != "cpu" {
			t.Errorf("event %d: layer %d on %q", i, ev.LayerIdx, ev.Device)
		}
		if ev.Output != nil {
			t.Errorf("event %d kept its output buffer", i)
		}
		if ev.Stats != w {
			t.Errorf("event %d stats = %+v, want %+v", i, ev.Stats, w)
		}
	}
}

func TestChannelObserverDropsWhenFull(t *testing.T) {
	obs := NewChannelObserver(1)
	obs.OnForward(LayerEvent{LayerIdx: 0})
	obs.OnForward(LayerEvent{LayerIdx: 1})
	if len(obs.Events) != 1 || (<-obs.Events).LayerIdx != 0 {
		t.Fatal("full channel should keep the first event and drop the rest")
	}
}

func TestComputeLayerStatsEmpty(t *testing.T) {
	s := computeLayerStats(nil, "relu", 0)
	if s.TotalNeurons != 0 || s.Activation != "relu" {
		t.Errorf("stats = %+v", s)
	}
}

func TestTelemetry(t *testing.T) {
	net, err := NewRandomNetwork(1, 8, 3, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	tel := net.Telemetry("random")
	if tel.TotalLayers != 3 || tel.Channels != 1 {
		t.Fatalf("telemetry = %+v", tel)
	}
	// 2->8, 8->8, 8->1 with 3x3 kernels and biases
	if tel.TotalParams != 152+584+73 {
		t.Errorf("params = %d, want %d", tel.TotalParams, 152+584+73)
	}
	if tel.Receptive != 7 {
		t.Errorf("receptive field = %d, want 7", tel.Receptive)
	}
	if tel.Layers[0].Activation != "leaky_relu" || tel.Layers[2].Activation != "linear" {
		t.Errorf("activations = %s, %s", tel.Layers[0].Activation, tel.Layers[2].Activation)
	}

	raw, err := tel.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var back ModelTelemetry
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != "random" || len(back.Layers) != 3 {
		t.Errorf("decoded = %+v", back)
	}
}
