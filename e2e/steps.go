package e2e

import (
	"context"

	"github.com/cucumber/godog"

	"landadmin/e2e/steps/common"
	"landadmin/e2e/steps/transfer"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, tc.Start(ctx)
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		tc.Stop()
		return ctx, nil
	})

	// Users, generic requests and response assertions
	common.RegisterSteps(ctx, tc)

	// Land records and the transfer workflow
	transfer.RegisterSteps(ctx, tc)
}
