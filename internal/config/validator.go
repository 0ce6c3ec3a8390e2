package config

import (
	stderrors "errors"
	"fmt"
	"runtime"

	ctxerrors "github.com/standardbeagle/ctxpack/internal/errors"
)

// Validator validates configuration and applies smart defaults.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return ctxerrors.NewConfigError("project", "", err)
	}

	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return ctxerrors.NewConfigError("index", "", err)
	}

	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return ctxerrors.NewConfigError("performance", "", err)
	}

	if err := v.validateScoringConfig(&cfg.Scoring); err != nil {
		return ctxerrors.NewConfigError("scoring", "", err)
	}

	if err := v.validateExcerptConfig(&cfg.Excerpt); err != nil {
		return ctxerrors.NewConfigError("excerpt", "", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return stderrors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateIndexConfig(index *Index) error {
	if index.MaxFileSize <= 0 {
		return fmt.Errorf("MaxFileSize must be positive, got %d", index.MaxFileSize)
	}
	if index.MaxTotalSizeMB <= 0 {
		return fmt.Errorf("MaxTotalSizeMB must be positive, got %d", index.MaxTotalSizeMB)
	}
	if index.MaxFileCount <= 0 {
		return fmt.Errorf("MaxFileCount must be positive, got %d", index.MaxFileCount)
	}
	if index.MaxFileSize > 100*1024*1024 {
		return fmt.Errorf("MaxFileSize should not exceed 100MB, got %d", index.MaxFileSize)
	}
	return nil
}

func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	if perf.MaxGoroutines < 0 {
		return fmt.Errorf("MaxGoroutines cannot be negative, got %d", perf.MaxGoroutines)
	}
	if perf.IndexingTimeoutSec < 0 {
		return fmt.Errorf("IndexingTimeoutSec cannot be negative, got %d", perf.IndexingTimeoutSec)
	}
	if perf.GitTimeoutSec < 0 {
		return fmt.Errorf("GitTimeoutSec cannot be negative, got %d", perf.GitTimeoutSec)
	}
	return nil
}

func (v *Validator) validateScoringConfig(s *Scoring) error {
	if s.MaxFiles <= 0 {
		return fmt.Errorf("MaxFiles must be positive, got %d", s.MaxFiles)
	}
	sum := s.OtherQuota + s.TestQuota + s.ConfigQuota
	if sum <= 0 || sum > 1.0001 {
		return fmt.Errorf("OtherQuota+TestQuota+ConfigQuota must be in (0,1], got %v", sum)
	}
	return nil
}

func (v *Validator) validateExcerptConfig(e *Excerpt) error {
	if e.MaxLinesPerFile <= 0 {
		return fmt.Errorf("MaxLinesPerFile must be positive, got %d", e.MaxLinesPerFile)
	}
	if e.WindowSize < 0 {
		return fmt.Errorf("WindowSize cannot be negative, got %d", e.WindowSize)
	}
	return nil
}

// setSmartDefaults fills zero-valued fields with sensible system-derived
// defaults, mirroring what Default() would have produced.
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Performance.MaxGoroutines == 0 {
		cfg.Performance.MaxGoroutines = runtime.NumCPU()
	}
	if cfg.Performance.IndexingTimeoutSec == 0 {
		cfg.Performance.IndexingTimeoutSec = 120
	}
	if cfg.Performance.GitTimeoutSec == 0 {
		cfg.Performance.GitTimeoutSec = 15
	}
	if cfg.Scoring.MaxFiles == 0 {
		cfg.Scoring.MaxFiles = DefaultMaxFiles
	}
	if cfg.Excerpt.MaxLinesPerFile == 0 {
		cfg.Excerpt.MaxLinesPerFile = DefaultMaxLinesPerFile
	}
	if cfg.Excerpt.SmallFileLines == 0 {
		cfg.Excerpt.SmallFileLines = DefaultSmallFileLines
	}
}

// ValidateConfig is a convenience function for quick validation.
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
