package assets

import (
	"fmt"
	"slices"
	"strings"
)

// validateInput checks intake fields. On create the core identity fields are
// required; on update only the fields present are checked.
func validateInput(in AssetInput, create bool) error {
	if create {
		for name, v := range map[string]*string{
			"projectName": in.ProjectName,
			"assetName":   in.AssetName,
			"assetUrl":    in.AssetURL,
			"assetType":   in.AssetType,
		} {
			if v == nil || strings.TrimSpace(*v) == "" {
				return fmt.Errorf("%s is required", name)
			}
		}
	}
	if in.AssetType != nil && !slices.Contains(AssetTypes, *in.AssetType) {
		return fmt.Errorf("assetType must be one of %s", strings.Join(AssetTypes, ", "))
	}
	if in.Environment != nil && *in.Environment != "" && !slices.Contains(Environments, *in.Environment) {
		return fmt.Errorf("environment must be one of %s", strings.Join(Environments, ", "))
	}
	if in.PlanTier != nil && *in.PlanTier != "" && !slices.Contains(PlanTiers, *in.PlanTier) {
		return fmt.Errorf("planTier must be one of %s", strings.Join(PlanTiers, ", "))
	}
	if in.ScanFrequency != nil && *in.ScanFrequency != "" && !slices.Contains(ScanFrequencies, *in.ScanFrequency) {
		return fmt.Errorf("scanFrequency must be one of %s", strings.Join(ScanFrequencies, ", "))
	}
	if in.TestsPerMonth != nil && *in.TestsPerMonth < 0 {
		return fmt.Errorf("testsPerMonth cannot be negative")
	}
	return nil
}
