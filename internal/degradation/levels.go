package degradation

import "github.com/vietddude/perfguard/internal/core/domain"

// Feature names controlled by the manager.
const (
	FeatureGraphicsQuality = "graphics_quality"
	FeatureVisualEffects   = "visual_effects"
	FeatureParticles       = "particle_effects"
	FeatureShaders         = "advanced_shaders"
	FeaturePostProcessing  = "post_processing"
	FeatureDynamicLighting = "dynamic_lighting"
	FeatureSoundEffects    = "sound_effects"
	FeatureMusic           = "background_music"
	FeatureUIAnimations    = "ui_animations"
	FeatureNetwork         = "network_features"
	FeatureAutoSave        = "auto_save"
	FeatureAnalytics       = "analytics"
)

// Features lists every controllable feature in display order.
var Features = []string{
	FeatureGraphicsQuality,
	FeatureVisualEffects,
	FeatureParticles,
	FeatureShaders,
	FeaturePostProcessing,
	FeatureDynamicLighting,
	FeatureSoundEffects,
	FeatureMusic,
	FeatureUIAnimations,
	FeatureNetwork,
	FeatureAutoSave,
	FeatureAnalytics,
}

// groups maps action targets that stand for several features.
var groups = map[string][]string{
	"effects":               {FeatureVisualEffects, FeatureParticles},
	"graphics":              {FeatureGraphicsQuality},
	"non_essential_effects": {FeatureParticles, FeaturePostProcessing},
	"advanced_effects":      {FeatureShaders, FeatureDynamicLighting},
	"all_effects": {
		FeatureVisualEffects, FeatureParticles, FeatureShaders,
		FeaturePostProcessing, FeatureDynamicLighting,
	},
	"all_non_essential_features": {
		FeatureSoundEffects, FeatureMusic, FeatureUIAnimations, FeatureAnalytics,
	},
	"everything": Features,
}

// resolve expands a target into feature names. Unknown targets resolve to
// nothing.
func resolve(target string) []string {
	if members, ok := groups[target]; ok {
		return members
	}
	for _, f := range Features {
		if f == target {
			return []string{f}
		}
	}
	return nil
}

func reduceQuality(target string, amount float64) domain.DegradationAction {
	return domain.DegradationAction{Type: domain.ActionReduceQuality, Target: target, Amount: amount}
}

func disable(target string) domain.DegradationAction {
	return domain.DegradationAction{Type: domain.ActionDisable, Target: target}
}

func enable(target string) domain.DegradationAction {
	return domain.DegradationAction{Type: domain.ActionEnable, Target: target}
}

func reduce(target string, amount float64) domain.DegradationAction {
	return domain.DegradationAction{Type: domain.ActionReduce, Target: target, Amount: amount}
}

func optimize(target, level string) domain.DegradationAction {
	return domain.DegradationAction{Type: domain.ActionOptimize, Target: target, Level: level}
}

// DefaultLevels returns the six-rung ladder. Each level's actions layer on
// top of every lower level.
func DefaultLevels() [domain.LevelEmergency + 1]domain.DegradationLevel {
	return [...]domain.DegradationLevel{
		{Name: "normal", Description: "All features enabled"},
		{
			Name:        "minor_optimization",
			Description: "Minor performance optimizations",
			Actions: []domain.DegradationAction{
				reduceQuality("effects", 0.1),
				optimize("animations", "basic"),
			},
		},
		{
			Name:        "moderate_degradation",
			Description: "Reduced visual quality",
			Actions: []domain.DegradationAction{
				reduceQuality("graphics", 0.25),
				disable("non_essential_effects"),
				reduce("particle_count", 0.5),
			},
		},
		{
			Name:        "significant_degradation",
			Description: "Significantly reduced functionality",
			Actions: []domain.DegradationAction{
				reduceQuality("graphics", 0.5),
				disable("advanced_effects"),
				reduce("update_frequency", 0.7),
				enable("aggressive_culling"),
			},
		},
		{
			Name:        "severe_degradation",
			Description: "Minimal functionality for stability",
			Actions: []domain.DegradationAction{
				reduceQuality("graphics", 0.75),
				disable("all_effects"),
				enable("safe_mode"),
				reduce("render_resolution", 0.5),
			},
		},
		{
			Name:        "emergency_mode",
			Description: "Emergency survival mode",
			Actions: []domain.DegradationAction{
				enable("emergency_mode"),
				disable("all_non_essential_features"),
				reduceQuality("everything", 0.9),
				enable("aggressive_cleanup"),
			},
		},
	}
}
