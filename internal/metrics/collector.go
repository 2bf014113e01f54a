package metrics

import "context"

// Sampler reads the host load. It keeps no state of its own.
type Sampler struct{}

func NewSampler() *Sampler {
	return &Sampler{}
}

func (s *Sampler) SampleLoad(ctx context.Context) (LoadSample, error) {
	return SampleLoad(ctx)
}

// SampleLoad takes CPU and memory readings back to back.
func SampleLoad(ctx context.Context) (LoadSample, error) {
	cpu, err := SampleCPU(ctx)
	if err != nil {
		return LoadSample{}, err
	}
	mem, err := SampleMemory(ctx)
	if err != nil {
		return LoadSample{}, err
	}
	return LoadSample{CPU: cpu, Mem: mem}, nil
}
