package jobs

import (
	"context"
	"fmt"

	"github.com/abca4/fafpipe/internal/registry"
)

// denoising smooths the raw FAF image before any geometry is derived.
func (env *Env) denoising(ctx context.Context, params map[string]any) error {
	sigma := floatParam(params, "sigma", 2.0)
	if sigma <= 0 {
		return fmt.Errorf("denoising: sigma must be positive, got %v", sigma)
	}
	return env.emit(ctx, "denoising", params, map[string]any{"kernel": "gaussian", "sigma": sigma})
}

// recalibration normalizes image intensity against the reference range.
func (env *Env) recalibration(ctx context.Context, params map[string]any) error {
	white := floatParam(params, "white_point", 255)
	black := floatParam(params, "black_point", 0)
	if black >= white {
		return fmt.Errorf("recalibration: black point %v must lie below white point %v", black, white)
	}
	return env.emit(ctx, "recalibration", params, map[string]any{"range": white - black})
}

// foveaDisc locates the fovea and the optic disc ellipses.
func (env *Env) foveaDisc(ctx context.Context, params map[string]any) error {
	derived := map[string]any{"db_store": boolParam(params, "db_store", true)}
	return env.emit(ctx, "fovea_disc", params, derived)
}

// vasculature detects the blood-vessel tree used to mask out vessels.
func (env *Env) vasculature(ctx context.Context, params map[string]any) error {
	threshold := floatParam(params, "threshold", 0.5)
	if threshold <= 0 || threshold >= 1 {
		return fmt.Errorf("vasculature: threshold must be in (0, 1), got %v", threshold)
	}
	return env.emit(ctx, "vasculature", params, map[string]any{"threshold": threshold})
}

// mask combines fovea/disc geometry and vasculature into a sampling
// mask; the outer variant adds the peripheral ellipse.
func (env *Env) mask(job string) registry.Body {
	return func(ctx context.Context, params map[string]any) error {
		derived := map[string]any{
			"outer_ellipse": boolParam(params, "outer_ellipse", false),
			"dilation_px":   floatParam(params, "dilation_px", 4),
		}
		return env.emit(ctx, job, params, derived)
	}
}

// autoBg selects the automatic background regions from the outer mask.
func (env *Env) autoBg(ctx context.Context, params map[string]any) error {
	regions := floatParam(params, "regions", 2)
	if regions < 1 {
		return fmt.Errorf("auto_bg: at least one background region is required")
	}
	return env.emit(ctx, "auto_bg", params, map[string]any{"regions": regions})
}

// histogram accumulates intensity histograms over a masked region.
func (env *Env) histogram(job string) registry.Body {
	return func(ctx context.Context, params map[string]any) error {
		bins := floatParam(params, "bins", 256)
		if bins < 2 {
			return fmt.Errorf("%s: need at least two histogram bins", job)
		}
		return env.emit(ctx, job, params, map[string]any{"bins": bins})
	}
}

// pixelScore produces the final per-image score from both histograms.
func (env *Env) pixelScore(ctx context.Context, params map[string]any) error {
	return env.emit(ctx, "pixel_score", params, nil)
}

// Register binds every pipeline job body to its name.
func Register(reg *registry.Registry, env *Env) error {
	bodies := map[string]registry.Body{
		"denoising":     env.denoising,
		"recalibration": env.recalibration,
		"fovea_disc":    env.foveaDisc,
		"vasculature":   env.vasculature,
		"inner_mask":    env.mask("inner_mask"),
		"outer_mask":    env.mask("outer_mask"),
		"auto_bg":       env.autoBg,
		"roi_histogram": env.histogram("roi_histogram"),
		"bg_histogram":  env.histogram("bg_histogram"),
		"pixel_score":   env.pixelScore,
	}
	for name, body := range bodies {
		if err := reg.Register(name, body); err != nil {
			return err
		}
	}
	return nil
}
