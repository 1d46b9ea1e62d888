package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	CreateUser(ctx context.Context, name, role, district string) error
	ActAs(name string) error
	Do(method, path string, body any) error
	LastStatus() int
	LastBody() []byte
	LastJSON() (map[string]any, error)
}

// RegisterSteps registers user, request and assertion step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the following users:$`, steps.theFollowingUsers)
	ctx.Step(`^a user "([^"]*)" with role "([^"]*)" in district "([^"]*)"$`, steps.aUserWithRoleInDistrict)
	ctx.Step(`^I am "([^"]*)"$`, steps.iAm)
	ctx.Step(`^I am not authenticated$`, steps.iAmNotAuthenticated)
	ctx.Step(`^I (GET|POST|DELETE) "([^"]*)"$`, steps.iRequest)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the error should be "([^"]*)"$`, steps.errorShouldBe)
	ctx.Step(`^the error description should be "([^"]*)"$`, steps.errorDescriptionShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) theFollowingUsers(ctx context.Context, table *godog.Table) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) < 2 {
			return fmt.Errorf("row %d: want name, role and optional district", i)
		}
		district := ""
		if len(row.Cells) > 2 {
			district = row.Cells[2].Value
		}
		if err := s.tc.CreateUser(ctx, row.Cells[0].Value, row.Cells[1].Value, district); err != nil {
			return err
		}
	}
	return nil
}

func (s *commonSteps) aUserWithRoleInDistrict(ctx context.Context, name, role, district string) error {
	return s.tc.CreateUser(ctx, name, role, district)
}

func (s *commonSteps) iAm(_ context.Context, name string) error {
	return s.tc.ActAs(name)
}

func (s *commonSteps) iAmNotAuthenticated(context.Context) error {
	return s.tc.ActAs("")
}

func (s *commonSteps) iRequest(_ context.Context, method, path string) error {
	return s.tc.Do(method, path, nil)
}

func (s *commonSteps) responseStatusShouldBe(_ context.Context, status int) error {
	if got := s.tc.LastStatus(); got != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, got, strings.TrimSpace(string(s.tc.LastBody())))
	}
	return nil
}

func (s *commonSteps) errorShouldBe(ctx context.Context, code string) error {
	return s.responseFieldShouldBe(ctx, "error", code)
}

func (s *commonSteps) errorDescriptionShouldBe(ctx context.Context, msg string) error {
	return s.responseFieldShouldBe(ctx, "error_description", msg)
}

func (s *commonSteps) responseFieldShouldBe(_ context.Context, field, want string) error {
	body, err := s.tc.LastJSON()
	if err != nil {
		return err
	}
	got, ok := Field(body, field)
	if !ok {
		return fmt.Errorf("response has no field %q: %s", field, string(s.tc.LastBody()))
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("field %q: expected %q, got %q", field, want, fmt.Sprint(got))
	}
	return nil
}

// Field walks a dotted path through nested objects, e.g. "checks.redis".
func Field(body map[string]any, path string) (any, bool) {
	var cur any = body
	for part := range strings.SplitSeq(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}
