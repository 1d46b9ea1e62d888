package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"landadmin/internal/landtransfer/handler/mocks"
	"landadmin/internal/landtransfer/models"
	"landadmin/internal/landtransfer/service"
	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	"landadmin/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type TransferHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestTransferHandlerSuite(t *testing.T) {
	suite.Run(t, new(TransferHandlerSuite))
}

func (s *TransferHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func sampleTransfer() *models.Transfer {
	now := time.Date(2025, 4, 10, 14, 0, 0, 0, time.UTC)
	return &models.Transfer{
		ID:             id.NewTransferID(),
		TransferNumber: "TR-2025-001",
		LandID:         id.NewLandID(),
		District:       "Gasabo",
		CurrentOwnerID: id.NewUserID(),
		NewOwnerID:     id.NewUserID(),
		TransferValue:  decimal.NewFromInt(1_000_000),
		TaxAmount:      decimal.NewFromInt(50_000),
		Documents:      []string{},
		Status:         models.StatusInitiated,
		InitiatedBy:    id.NewUserID(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *TransferHandlerSuite) TestInitiate() {
	s.Run("valid body returns 201", func() {
		transfer := sampleTransfer()
		s.service.EXPECT().Initiate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req *models.InitiateRequest) (*models.Transfer, error) {
				s.Equal("TR-2025-001", req.TransferNumber)
				s.Equal(transfer.LandID, req.ParsedLandID())
				s.Equal("50000.00", req.Tax().StringFixed(2))
				return transfer, nil
			})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/land-transfer", map[string]any{
			"transferNumber": " TR-2025-001 ",
			"landId":         transfer.LandID.String(),
			"newOwnerId":     transfer.NewOwnerID.String(),
			"transferValue":  "1000000",
		})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "status", "initiated")
	})

	s.Run("explicit tax amount is kept", func() {
		transfer := sampleTransfer()
		transfer.TaxAmount = decimal.NewFromInt(12_500)
		s.service.EXPECT().Initiate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req *models.InitiateRequest) (*models.Transfer, error) {
				s.Equal("12500", req.Tax().String())
				return transfer, nil
			})

		tax := decimal.NewFromInt(12_500)
		body := testutil.MustMarshal(s.T(), models.InitiateRequest{
			TransferNumber: "TR-2025-002",
			LandID:         transfer.LandID.String(),
			NewOwnerID:     transfer.NewOwnerID.String(),
			TransferValue:  decimal.NewFromInt(1_000_000),
			TaxAmount:      &tax,
		})
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/land-transfer", body))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONHasKey(s.T(), rr, "taxAmount")
	})

	s.Run("malformed JSON is a bad request", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/land-transfer", `{"transferNumber":`)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("zero value is a validation error", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/land-transfer", map[string]any{
			"transferNumber": "TR-1",
			"landId":         id.NewLandID().String(),
			"newOwnerId":     id.NewUserID().String(),
			"transferValue":  0,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed land id is a validation error", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/land-transfer", map[string]any{
			"transferNumber": "TR-1",
			"landId":         "parcel-7",
			"newOwnerId":     id.NewUserID().String(),
			"transferValue":  10,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("duplicate number maps to 409", func() {
		s.service.EXPECT().Initiate(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "transfer number already exists"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/land-transfer", map[string]any{
			"transferNumber": "TR-1",
			"landId":         id.NewLandID().String(),
			"newOwnerId":     id.NewUserID().String(),
			"transferValue":  10,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertErrorDescription(s.T(), rr, http.StatusConflict, dErrors.CodeConflict, "transfer number already exists")
	})

	s.Run("internal errors hide the description", func() {
		s.service.EXPECT().Initiate(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "failed to initiate transfer"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/land-transfer", map[string]any{
			"transferNumber": "TR-1",
			"landId":         id.NewLandID().String(),
			"newOwnerId":     id.NewUserID().String(),
			"transferValue":  10,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertInternalHidden(s.T(), rr)
	})
}

func (s *TransferHandlerSuite) TestList() {
	s.Run("query parameters become the filter", func() {
		s.service.EXPECT().FindAll(gomock.Any(), models.ListFilter{
			Status:   models.StatusPendingApproval,
			District: "Gasabo",
			Page:     2,
			Limit:    5,
		}).Return(&models.ListResult{Data: []*models.Transfer{}, Total: 0, Page: 2, Limit: 5}, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer?status=PENDING_APPROVAL&district=Gasabo&page=2&limit=5")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "page", float64(2))
	})

	s.Run("unknown status is rejected", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer?status=done")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *TransferHandlerSuite) TestFixedRoutesAreNotTreatedAsIDs() {
	s.service.EXPECT().Statistics(gomock.Any()).Return(&models.Statistics{Total: 3, Pending: 1}, nil)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer/statistics"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "pending", float64(1))

	s.service.EXPECT().CacheHealth(gomock.Any()).Return(&service.CacheHealth{Status: "disabled"}, nil)
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer/cache/health"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "disabled")
}

func (s *TransferHandlerSuite) TestLookups() {
	landID := id.NewLandID()
	userID := id.NewUserID()

	s.Run("by land", func() {
		s.service.EXPECT().FindByLand(gomock.Any(), landID).Return([]*models.Transfer{sampleTransfer()}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer/by-land/"+landID.String()))
		testutil.AssertStatusOK(s.T(), rr)
		s.Len(*testutil.DecodeJSON[[]models.Transfer](s.T(), rr), 1)
	})

	s.Run("history", func() {
		s.service.EXPECT().History(gomock.Any(), landID).Return([]*models.Transfer{}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer/history/"+landID.String()))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("by user forbidden for citizens", func() {
		s.service.EXPECT().FindByUser(gomock.Any(), userID).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "not authorized to view transfers by user"))
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer/by-user/"+userID.String()))
		testutil.AssertError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("by district", func() {
		s.service.EXPECT().ByDistrict(gomock.Any(), "Musanze").Return([]*models.Transfer{}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer/district/Musanze"))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("malformed land id", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer/by-land/nope"))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

func (s *TransferHandlerSuite) TestGet() {
	s.Run("found", func() {
		transfer := sampleTransfer()
		s.service.EXPECT().FindOne(gomock.Any(), transfer.ID).Return(transfer, nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer/"+transfer.ID.String()))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "transferValue", "1000000")
	})

	s.Run("missing maps to 404", func() {
		transferID := id.NewTransferID()
		s.service.EXPECT().FindOne(gomock.Any(), transferID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "land transfer not found"))
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer/"+transferID.String()))
		testutil.AssertError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("invalid id", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/land-transfer/123"))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

func (s *TransferHandlerSuite) TestUpdate() {
	transferID := id.NewTransferID()
	path := "/land-transfer/" + transferID.String()

	s.Run("whitelisted fields are applied", func() {
		s.service.EXPECT().Update(gomock.Any(), transferID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.TransferID, patch *models.UpdateRequest) (*models.Transfer, error) {
				s.Require().NotNil(patch.Status)
				s.Equal(models.StatusPendingApproval, *patch.Status)
				s.Nil(patch.TransferValue)
				return sampleTransfer(), nil
			})
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPatch, path, map[string]any{
			"status": "pending_approval",
		}))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("unknown fields are rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPatch, path, map[string]any{
			"currentOwnerId": id.NewUserID().String(),
		}))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("status other than pending approval is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPatch, path, map[string]any{
			"status": "completed",
		}))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("empty patch is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPatch, path, map[string]any{}))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *TransferHandlerSuite) TestDecisions() {
	transferID := id.NewTransferID()
	base := "/land-transfer/" + transferID.String()

	s.Run("approve passes the notes", func() {
		done := sampleTransfer()
		done.Status = models.StatusCompleted
		s.service.EXPECT().Approve(gomock.Any(), transferID, "verified").Return(done, nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/approve", map[string]any{
			"approvalNotes": " verified ",
		}))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "completed")
	})

	s.Run("approve requires notes", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/approve", map[string]any{}))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("approve in a closed status is a bad request", func() {
		s.service.EXPECT().Approve(gomock.Any(), transferID, "ok").
			Return(nil, dErrors.New(dErrors.CodeBadRequest, "transfer cannot be approved in current status"))
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/approve", map[string]any{
			"approvalNotes": "ok",
		}))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("reject requires a reason", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/reject", map[string]any{
			"rejectionReason": "  ",
		}))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("reject passes the reason", func() {
		s.service.EXPECT().Reject(gomock.Any(), transferID, "forged deed").Return(sampleTransfer(), nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/reject", map[string]any{
			"rejectionReason": "forged deed",
		}))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("cancel takes no body", func() {
		s.service.EXPECT().Cancel(gomock.Any(), transferID).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "only current owner can cancel"))
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, base+"/cancel"))
		testutil.AssertError(s.T(), rr, http.StatusForbidden, "forbidden")
	})
}

func (s *TransferHandlerSuite) TestCachePreload() {
	s.Run("accepted", func() {
		s.service.EXPECT().RequestPreload(gomock.Any(), 50).Return(nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/land-transfer/cache/preload?limit=50"))
		testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
		testutil.AssertJSONContains(s.T(), rr, "status", "scheduled")
	})

	s.Run("negative limit", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/land-transfer/cache/preload?limit=-1"))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func multipartRequest(s *TransferHandlerSuite, path, field, filename, content string) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	s.Require().NoError(err)
	_, err = part.Write([]byte(content))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *TransferHandlerSuite) TestDocuments() {
	transferID := id.NewTransferID()
	path := "/land-transfer/" + transferID.String() + "/documents"

	s.Run("upload returns 201", func() {
		s.service.EXPECT().AttachDocument(gomock.Any(), transferID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.TransferID, upload service.Upload) (*models.Transfer, error) {
				s.Equal("deed.pdf", upload.Filename)
				s.Equal(int64(7), upload.Size)
				data, err := io.ReadAll(upload.Body)
				s.Require().NoError(err)
				s.Equal("%PDF-1.", string(data))
				return sampleTransfer(), nil
			})
		rr := testutil.DoRequest(s.router, multipartRequest(s, path, "file", "deed.pdf", "%PDF-1."))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	})

	s.Run("missing file field", func() {
		rr := testutil.DoRequest(s.router, multipartRequest(s, path, "attachment", "deed.pdf", "x"))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("not multipart", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]any{}))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("list returns presigned links", func() {
		s.service.EXPECT().DocumentLinks(gomock.Any(), transferID).
			Return([]models.DocumentLink{{Key: "transfers/x/deed.pdf", URL: "https://objects.example/deed"}}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
		testutil.AssertStatusOK(s.T(), rr)
		links := testutil.DecodeJSON[[]models.DocumentLink](s.T(), rr)
		s.Equal("https://objects.example/deed", (*links)[0].URL)
	})

	s.Run("storage not configured", func() {
		s.service.EXPECT().DocumentLinks(gomock.Any(), transferID).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "document storage is not configured"))
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
		testutil.AssertError(s.T(), rr, http.StatusServiceUnavailable, "service_unavailable")
	})
}
