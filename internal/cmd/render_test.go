package cmd

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/boskaart/internal/scene"
)

func TestBuildMargins(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]float64
		want    scene.Margins
		wantErr bool
	}{
		{
			name: "uniform margin",
			values: map[string]float64{
				"render.margin":        5,
				"render.margin_left":   -1,
				"render.margin_right":  -1,
				"render.margin_top":    -1,
				"render.margin_bottom": -1,
			},
			want: scene.Margins{Left: 5, Right: 5, Top: 5, Bottom: 5},
		},
		{
			name: "per-side override",
			values: map[string]float64{
				"render.margin":        5,
				"render.margin_left":   2,
				"render.margin_right":  -1,
				"render.margin_top":    10,
				"render.margin_bottom": -1,
			},
			want: scene.Margins{Left: 2, Right: 5, Top: 10, Bottom: 5},
		},
		{
			name: "zero side is explicit",
			values: map[string]float64{
				"render.margin":        5,
				"render.margin_left":   0,
				"render.margin_right":  -1,
				"render.margin_top":    -1,
				"render.margin_bottom": -1,
			},
			want: scene.Margins{Left: 0, Right: 5, Top: 5, Bottom: 5},
		},
		{
			name: "negative uniform margin",
			values: map[string]float64{
				"render.margin": -3,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			for key, value := range tt.values {
				viper.Set(key, value)
			}

			got, err := buildMargins()
			if tt.wantErr {
				if err == nil {
					t.Errorf("buildMargins() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("buildMargins() unexpected error: %v", err)
				return
			}
			if got != tt.want {
				t.Errorf("buildMargins() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildPipelineConfigPolicy(t *testing.T) {
	viper.Reset()
	viper.Set("render.margin", 5.0)
	viper.Set("render.canvas_width", 840.0)
	viper.Set("render.canvas_height", 1200.0)
	viper.Set("render.font", "sans-serif")
	viper.Set("render.scale_bar", 10)
	viper.Set("render.dpmm", 8.0)

	cfg, err := buildPipelineConfig()
	if err != nil {
		t.Fatalf("buildPipelineConfig() error: %v", err)
	}
	if cfg.Scene.Policy != scene.FallbackZeroOrMissing {
		t.Errorf("default policy = %v, want FallbackZeroOrMissing", cfg.Scene.Policy)
	}

	viper.Set("render.strict_dimensions", true)
	cfg, err = buildPipelineConfig()
	if err != nil {
		t.Fatalf("buildPipelineConfig() error: %v", err)
	}
	if cfg.Scene.Policy != scene.FallbackMissingOnly {
		t.Errorf("strict policy = %v, want FallbackMissingOnly", cfg.Scene.Policy)
	}
}
