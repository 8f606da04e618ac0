package testutil

import (
	"testing"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
)

// LinregConfig is a linear regression family taking arrays to numbers.
func LinregConfig() ir.FamilyConfig {
	return ir.FamilyConfig{
		ID:                "linreg",
		FriendlyName:      "Linear regression",
		CreateTemplate:    "LinearRegression({{.Params}})",
		FitTemplate:       "{{.Model}}.fit({{.Features}}, {{.Labels}})",
		PredictTemplate:   "{{.Model}}.predict({{.Input}})",
		PredictInputType:  ir.TagArray,
		PredictOutputType: ir.TagNumber,
		Colour:            230,
	}
}

// RFConfig is a random forest family with the same signature as linreg.
func RFConfig() ir.FamilyConfig {
	return ir.FamilyConfig{
		ID:                "rf",
		FriendlyName:      "Random forest",
		CreateTemplate:    "RandomForestRegressor({{.Params}})",
		FitTemplate:       "{{.Model}}.fit({{.Features}}, {{.Labels}}, trees={{.Extra.trees}})",
		PredictTemplate:   "{{.Model}}.predict({{.Input}})",
		PredictInputType:  ir.TagArray,
		PredictOutputType: ir.TagNumber,
		Colour:            20,
		AdditionalFitParams: []ir.FitParam{
			{ID: "trees", Message: "Number of trees", ValidationExpr: "int & >=1 & <=500"},
		},
	}
}

// NewRegistry returns a sealed registry holding linreg and rf.
func NewRegistry(t testing.TB) *registry.Registry {
	t.Helper()
	r := registry.New()
	for _, cfg := range []ir.FamilyConfig{LinregConfig(), RFConfig()} {
		if err := r.Register(cfg); err != nil {
			t.Fatalf("register %s: %v", cfg.ID, err)
		}
	}
	r.Seal()
	return r
}
