// Package engines defines the pluggable scoring interface consumed by the
// pipeline, plus reference regime, stability and assessment models. All
// reference models read history exclusively through the data gate, so
// they inherit the no-look-ahead cut
package engines

import (
	"fmt"

	"github.com/quantfoundry/walkforward/common"
)

// Model ids accepted by New. An empty id selects the stage's default
const (
	ModelTrailingVolRegime   = "trailing-vol-regime"
	ModelRollingVolStability = "rolling-vol-stability"
	ModelMomentumAssessment  = "momentum-assessment"
)

const (
	defaultLookbackDays = 90
	defaultHorizonDays  = 21
)

// New returns the reference engine registered for a stage and model id
func New(stage, modelID string, s Settings) (Engine, error) {
	if s.Gate == nil {
		return nil, fmt.Errorf("%w: gate", common.ErrNilArguments)
	}
	if s.Lookback <= 0 {
		s.Lookback = defaultLookbackDays
	}
	if s.Horizon <= 0 {
		s.Horizon = defaultHorizonDays
	}
	switch stage {
	case StageRegime:
		if modelID == "" || modelID == ModelTrailingVolRegime {
			return &trailingVolRegime{settings: s}, nil
		}
	case StageStability:
		if modelID == "" || modelID == ModelRollingVolStability {
			return &rollingVolStability{settings: s}, nil
		}
	case StageAssessment:
		if modelID == "" || modelID == ModelMomentumAssessment {
			return &momentumAssessment{settings: s}, nil
		}
	default:
		return nil, fmt.Errorf("%w: stage %q", ErrUnknownModel, stage)
	}
	return nil, fmt.Errorf("%w: %q for stage %q", ErrUnknownModel, modelID, stage)
}
