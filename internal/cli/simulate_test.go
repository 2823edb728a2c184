package cli

import (
	"testing"

	"github.com/kyvernlabs/shield/internal/model"
)

func TestScenariosBuildValidIntents(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			if _, err := model.NewIntent("simulator", sc.target, sc.amountSOL, "transfer", sc.reasoning); err != nil {
				t.Errorf("scenario %s does not validate: %v", sc.name, err)
			}
		})
	}
}

func TestScenarioNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, sc := range scenarios {
		if seen[sc.name] {
			t.Errorf("duplicate scenario name %q", sc.name)
		}
		seen[sc.name] = true
	}
}
