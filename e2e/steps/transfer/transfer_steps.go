package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
)

const (
	registrar = "_registrar"
	auditor   = "_auditor"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	CreateUser(ctx context.Context, name, role, district string) error
	HasUser(name string) bool
	UserID(name string) (string, error)
	Expand(s string) (string, error)
	Do(method, path string, body any) error
	DoAs(name, method, path string, body any) (int, []byte, error)
	LastStatus() int
	LastJSON() (map[string]any, error)
	SaveLand(name, landID string)
	SaveTransfer(number, transferID string)
}

// RegisterSteps registers land record and transfer workflow step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &transferSteps{tc: tc}

	// Setup
	ctx.Step(`^"([^"]*)" owns an approved land "([^"]*)" in district "([^"]*)"$`, steps.ownsApprovedLand)
	ctx.Step(`^transfer "([^"]*)" of land "([^"]*)" from "([^"]*)" to "([^"]*)" was initiated$`, steps.transferWasInitiated)

	// Actions
	ctx.Step(`^I initiate transfer "([^"]*)" of land "([^"]*)" to "([^"]*)" for value "([^"]*)"$`, steps.initiateTransfer)
	ctx.Step(`^I approve transfer "([^"]*)"$`, steps.approveTransfer)
	ctx.Step(`^I reject transfer "([^"]*)" with reason "([^"]*)"$`, steps.rejectTransfer)
	ctx.Step(`^I cancel transfer "([^"]*)"$`, steps.cancelTransfer)
	ctx.Step(`^I view transfer "([^"]*)"$`, steps.viewTransfer)
	ctx.Step(`^I list transfers$`, steps.listTransfers)
	ctx.Step(`^I request transfer statistics$`, steps.requestStatistics)

	// Assertions
	ctx.Step(`^the transfer status should be "([^"]*)"$`, steps.transferStatusShouldBe)
	ctx.Step(`^the tax amount should be "([^"]*)"$`, steps.taxAmountShouldBe)
	ctx.Step(`^the list should contain (\d+) transfers?$`, steps.listShouldContain)
	ctx.Step(`^every listed transfer should involve "([^"]*)"$`, steps.everyListedTransferInvolves)
	ctx.Step(`^transfer "([^"]*)" should have status "([^"]*)"$`, steps.storedTransferStatus)
	ctx.Step(`^transfer "([^"]*)" should have value "([^"]*)"$`, steps.storedTransferValue)
	ctx.Step(`^land "([^"]*)" should have status "([^"]*)" and be owned by "([^"]*)"$`, steps.landShouldBe)
	ctx.Step(`^the statistic "([^"]*)" should be (\d+)$`, steps.statisticShouldBe)
}

type transferSteps struct {
	tc TestContext
}

// ensure creates the out-of-band staff users the steps act through.
func (s *transferSteps) ensure(ctx context.Context, name, role string) error {
	if s.tc.HasUser(name) {
		return nil
	}
	return s.tc.CreateUser(ctx, name, role, "")
}

func (s *transferSteps) ownsApprovedLand(ctx context.Context, owner, parcel, district string) error {
	if err := s.ensure(ctx, registrar, "registrar"); err != nil {
		return err
	}
	status, raw, err := s.tc.DoAs(owner, http.MethodPost, "/land-records", map[string]any{
		"parcelNumber": parcel,
		"upiNumber":    "UPI-" + parcel,
		"area":         "500",
		"district":     district,
		"sector":       "Kimironko",
		"cell":         "Bibare",
		"village":      "Inshuti",
		"landUseType":  "residential",
	})
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("register land %s: status %d: %s", parcel, status, raw)
	}
	land, err := decode(raw)
	if err != nil {
		return err
	}
	landID := fmt.Sprint(land["id"])
	s.tc.SaveLand(parcel, landID)

	status, raw, err = s.tc.DoAs(registrar, http.MethodPost, "/land-records/"+landID+"/approve", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("approve land %s: status %d: %s", parcel, status, raw)
	}
	return nil
}

func (s *transferSteps) transferWasInitiated(ctx context.Context, number, parcel, owner, buyer string) error {
	body, err := s.initiateBody(number, parcel, buyer, "1000000")
	if err != nil {
		return err
	}
	status, raw, err := s.tc.DoAs(owner, http.MethodPost, "/land-transfer", body)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("initiate %s: status %d: %s", number, status, raw)
	}
	transfer, err := decode(raw)
	if err != nil {
		return err
	}
	s.tc.SaveTransfer(number, fmt.Sprint(transfer["id"]))
	return nil
}

func (s *transferSteps) initiateBody(number, parcel, buyer, value string) (map[string]any, error) {
	landID, err := s.tc.Expand("{land:" + parcel + "}")
	if err != nil {
		return nil, err
	}
	buyerID, err := s.tc.UserID(buyer)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"transferNumber": number,
		"landId":         landID,
		"newOwnerId":     buyerID,
		"transferValue":  value,
	}, nil
}

func (s *transferSteps) initiateTransfer(_ context.Context, number, parcel, buyer, value string) error {
	body, err := s.initiateBody(number, parcel, buyer, value)
	if err != nil {
		return err
	}
	if err := s.tc.Do(http.MethodPost, "/land-transfer", body); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusCreated {
		return nil
	}
	transfer, err := s.tc.LastJSON()
	if err != nil {
		return err
	}
	s.tc.SaveTransfer(number, fmt.Sprint(transfer["id"]))
	return nil
}

func (s *transferSteps) approveTransfer(_ context.Context, number string) error {
	return s.tc.Do(http.MethodPost, "/land-transfer/{transfer:"+number+"}/approve", map[string]string{
		"approvalNotes": "documents verified",
	})
}

func (s *transferSteps) rejectTransfer(_ context.Context, number, reason string) error {
	return s.tc.Do(http.MethodPost, "/land-transfer/{transfer:"+number+"}/reject", map[string]string{
		"rejectionReason": reason,
	})
}

func (s *transferSteps) cancelTransfer(_ context.Context, number string) error {
	return s.tc.Do(http.MethodPost, "/land-transfer/{transfer:"+number+"}/cancel", nil)
}

func (s *transferSteps) viewTransfer(_ context.Context, number string) error {
	return s.tc.Do(http.MethodGet, "/land-transfer/{transfer:"+number+"}", nil)
}

func (s *transferSteps) listTransfers(context.Context) error {
	return s.tc.Do(http.MethodGet, "/land-transfer", nil)
}

func (s *transferSteps) requestStatistics(context.Context) error {
	return s.tc.Do(http.MethodGet, "/land-transfer/statistics", nil)
}

func (s *transferSteps) transferStatusShouldBe(_ context.Context, want string) error {
	body, err := s.tc.LastJSON()
	if err != nil {
		return err
	}
	if got := fmt.Sprint(body["status"]); got != want {
		return fmt.Errorf("expected transfer status %q, got %q", want, got)
	}
	return nil
}

func (s *transferSteps) taxAmountShouldBe(_ context.Context, want string) error {
	body, err := s.tc.LastJSON()
	if err != nil {
		return err
	}
	return equalDecimal("taxAmount", body["taxAmount"], want)
}

func (s *transferSteps) listed() ([]map[string]any, error) {
	var page struct {
		Data []map[string]any `json:"data"`
	}
	body, err := s.tc.LastJSON()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

func (s *transferSteps) listShouldContain(_ context.Context, n int) error {
	data, err := s.listed()
	if err != nil {
		return err
	}
	if len(data) != n {
		return fmt.Errorf("expected %d transfers, got %d", n, len(data))
	}
	return nil
}

func (s *transferSteps) everyListedTransferInvolves(_ context.Context, name string) error {
	userID, err := s.tc.UserID(name)
	if err != nil {
		return err
	}
	data, err := s.listed()
	if err != nil {
		return err
	}
	for _, t := range data {
		if t["currentOwnerId"] != userID && t["newOwnerId"] != userID {
			return fmt.Errorf("transfer %v does not involve %s", t["transferNumber"], name)
		}
	}
	return nil
}

func (s *transferSteps) fetchTransfer(ctx context.Context, number string) (map[string]any, error) {
	if err := s.ensure(ctx, auditor, "system_admin"); err != nil {
		return nil, err
	}
	status, raw, err := s.tc.DoAs(auditor, http.MethodGet, "/land-transfer/{transfer:"+number+"}", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch transfer %s: status %d: %s", number, status, raw)
	}
	return decode(raw)
}

func (s *transferSteps) storedTransferStatus(ctx context.Context, number, want string) error {
	transfer, err := s.fetchTransfer(ctx, number)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(transfer["status"]); got != want {
		return fmt.Errorf("transfer %s: expected status %q, got %q", number, want, got)
	}
	return nil
}

func (s *transferSteps) storedTransferValue(ctx context.Context, number, want string) error {
	transfer, err := s.fetchTransfer(ctx, number)
	if err != nil {
		return err
	}
	return equalDecimal("transferValue", transfer["transferValue"], want)
}

func (s *transferSteps) landShouldBe(ctx context.Context, parcel, wantStatus, owner string) error {
	if err := s.ensure(ctx, registrar, "registrar"); err != nil {
		return err
	}
	status, raw, err := s.tc.DoAs(registrar, http.MethodGet, "/land-records/{land:"+parcel+"}", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("fetch land %s: status %d: %s", parcel, status, raw)
	}
	land, err := decode(raw)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(land["status"]); got != wantStatus {
		return fmt.Errorf("land %s: expected status %q, got %q", parcel, wantStatus, got)
	}
	ownerID, err := s.tc.UserID(owner)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(land["ownerId"]); got != ownerID {
		return fmt.Errorf("land %s: expected owner %s, got %s", parcel, owner, got)
	}
	return nil
}

func (s *transferSteps) statisticShouldBe(_ context.Context, field string, want int) error {
	body, err := s.tc.LastJSON()
	if err != nil {
		return err
	}
	got, ok := body[field].(float64)
	if !ok {
		return fmt.Errorf("statistics have no numeric %q", field)
	}
	if int(got) != want {
		return fmt.Errorf("statistic %s: expected %d, got %d", field, want, int(got))
	}
	return nil
}

func decode(raw []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %q: %w", string(raw), err)
	}
	return out, nil
}

func equalDecimal(field string, got any, want string) error {
	g, err := decimal.NewFromString(fmt.Sprint(got))
	if err != nil {
		return fmt.Errorf("%s %v is not a decimal: %w", field, got, err)
	}
	w, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !g.Equal(w) {
		return fmt.Errorf("expected %s %s, got %s", field, w, g)
	}
	return nil
}
