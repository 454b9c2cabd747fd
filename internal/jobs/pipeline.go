package jobs

import (
	"github.com/abca4/fafpipe/internal/pipeline"
)

// defaults returns a fresh ConfigFactory for the given parameter set.
// Each JobSpec owns an independently constructed factory; none of them
// share a mutable default map.
func defaults(params map[string]any) pipeline.ConfigFactory {
	return func() map[string]any {
		out := make(map[string]any, len(params))
		for k, v := range params {
			out[k] = v
		}
		return out
	}
}

// DefaultGraph declares the standard single-image FAF analysis DAG.
//
//	denoising -> recalibration -> fovea_disc ----+--> inner_mask -> roi_histogram --+
//	                           \                 |                                  v
//	                            -> vasculature --+--> outer_mask -> auto_bg    pixel_score
//	                                             |             \        \          ^
//	                                             +--------------+--> bg_histogram -+
//
// Overrides, keyed by job name, are merged over each job's defaults at
// the moment the factory runs.
func DefaultGraph(overrides map[string]map[string]any) (*pipeline.Graph, error) {
	g := pipeline.NewGraph()

	specs := []pipeline.JobSpec{
		{
			Name:        "denoising",
			Config:      defaults(map[string]any{"sigma": 2.0}),
			Description: "Denoise the input image",
		},
		{
			Name:        "recalibration",
			DependsOn:   []string{"denoising"},
			Config:      defaults(map[string]any{"white_point": 255.0, "black_point": 0.0}),
			Description: "Recalibrate image intensity",
		},
		{
			Name:        "fovea_disc",
			DependsOn:   []string{"recalibration"},
			Config:      defaults(map[string]any{"db_store": true}),
			Description: "Locate fovea and optic disc",
		},
		{
			Name:        "vasculature",
			DependsOn:   []string{"recalibration"},
			Config:      defaults(map[string]any{"threshold": 0.5}),
			Description: "Detect blood vessels",
		},
		{
			Name:        "inner_mask",
			DependsOn:   []string{"fovea_disc", "vasculature"},
			Config:      defaults(map[string]any{"outer_ellipse": false}),
			Description: "Build the inner sampling mask",
		},
		{
			Name:        "outer_mask",
			DependsOn:   []string{"fovea_disc", "vasculature"},
			Config:      defaults(map[string]any{"outer_ellipse": true}),
			Description: "Build the outer sampling mask",
		},
		{
			Name:        "auto_bg",
			DependsOn:   []string{"outer_mask"},
			Config:      defaults(map[string]any{"regions": 2.0}),
			Description: "Select automatic background regions",
		},
		{
			Name:        "roi_histogram",
			DependsOn:   []string{"inner_mask"},
			Config:      defaults(map[string]any{"bins": 256.0}),
			Description: "Histogram over the region of interest",
		},
		{
			Name:        "bg_histogram",
			DependsOn:   []string{"auto_bg", "outer_mask"},
			Config:      defaults(map[string]any{"bins": 256.0}),
			Description: "Histogram over the background regions",
		},
		{
			Name:        "pixel_score",
			DependsOn:   []string{"roi_histogram", "bg_histogram"},
			Description: "Final per-image pixel score",
		},
	}

	for _, spec := range specs {
		if params, ok := overrides[spec.Name]; ok {
			spec.Config = withOverrides(spec.Config, params)
		}
		if err := g.AddJob(spec); err != nil {
			return nil, err
		}
	}
	if err := g.Finalize(); err != nil {
		return nil, err
	}
	return g, nil
}

// withOverrides layers override parameters over a factory's output,
// deferring the merge to the factory call itself.
func withOverrides(factory pipeline.ConfigFactory, overrides map[string]any) pipeline.ConfigFactory {
	if factory == nil {
		factory = pipeline.EmptyConfig()
	}
	return func() map[string]any {
		params := factory()
		for k, v := range overrides {
			params[k] = v
		}
		return params
	}
}
