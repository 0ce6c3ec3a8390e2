package config

import (
	"testing"
)

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := &Config{
		Project: Project{
			Root: "/test/root",
			Name: "test-project",
		},
		Index: Index{
			MaxFileSize:    1024 * 1024,
			MaxTotalSizeMB: 1000,
			MaxFileCount:   10000,
		},
		Performance: Performance{
			MaxGoroutines: 1,
		},
		Scoring: Scoring{
			MaxFiles:    25,
			OtherQuota:  0.7,
			TestQuota:   0.2,
			ConfigQuota: 0.1,
		},
		Excerpt: Excerpt{
			MaxLinesPerFile: 300,
		},
	}

	validator := NewValidator()
	if err := validator.ValidateAndSetDefaults(cfg); err != nil {
		t.Fatalf("ValidateAndSetDefaults failed: %v", err)
	}

	if cfg.Performance.IndexingTimeoutSec == 0 {
		t.Errorf("IndexingTimeoutSec should have been set to a default")
	}
	if cfg.Performance.GitTimeoutSec == 0 {
		t.Errorf("GitTimeoutSec should have been set to a default")
	}
}

func TestValidateAndSetDefaults_EmptyRoot(t *testing.T) {
	cfg := &Config{
		Index:   Index{MaxFileSize: 1, MaxTotalSizeMB: 1, MaxFileCount: 1},
		Scoring: Scoring{MaxFiles: 25, OtherQuota: 0.7, TestQuota: 0.2, ConfigQuota: 0.1},
		Excerpt: Excerpt{MaxLinesPerFile: 100},
	}

	validator := NewValidator()
	if err := validator.ValidateAndSetDefaults(cfg); err == nil {
		t.Errorf("expected error for empty project root")
	}
}

func TestValidateAndSetDefaults_InvalidIndex(t *testing.T) {
	cfg := &Config{
		Project: Project{Root: "/test"},
		Index:   Index{MaxFileSize: -1, MaxTotalSizeMB: 1, MaxFileCount: 1},
		Scoring: Scoring{MaxFiles: 25, OtherQuota: 0.7, TestQuota: 0.2, ConfigQuota: 0.1},
		Excerpt: Excerpt{MaxLinesPerFile: 100},
	}

	validator := NewValidator()
	if err := validator.ValidateAndSetDefaults(cfg); err == nil {
		t.Errorf("expected error for non-positive MaxFileSize")
	}
}

func TestValidateAndSetDefaults_InvalidQuotas(t *testing.T) {
	cfg := &Config{
		Project: Project{Root: "/test"},
		Index:   Index{MaxFileSize: 1, MaxTotalSizeMB: 1, MaxFileCount: 1},
		Scoring: Scoring{MaxFiles: 25, OtherQuota: 0, TestQuota: 0, ConfigQuota: 0},
		Excerpt: Excerpt{MaxLinesPerFile: 100},
	}

	validator := NewValidator()
	if err := validator.ValidateAndSetDefaults(cfg); err == nil {
		t.Errorf("expected error for zero-sum quotas")
	}
}
