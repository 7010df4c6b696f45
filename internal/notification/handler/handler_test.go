package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"agenda/internal/notification/models"
	"agenda/internal/notification/service"
	"agenda/internal/notification/store"
	id "agenda/pkg/domain"
	"agenda/pkg/requestcontext"
	"agenda/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service *service.Service
	router  http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = service.New(store.NewInMemory())
	r := chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, p *id.Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if p != nil {
		req = req.WithContext(requestcontext.WithPrincipal(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestListAndMarkRead() {
	bob := testutil.Principal(testutil.TestIDs.TenantA, testutil.TestIDs.Bob)
	carol := testutil.Principal(testutil.TestIDs.TenantA, testutil.TestIDs.Carol)
	s.service.Fanout(context.Background(), models.Batch{
		TenantID:   testutil.TestIDs.TenantA,
		EventID:    id.NewEventID(),
		Type:       models.TypeInvite,
		Message:    `You were invited to the event "Demo".`,
		Recipients: []id.UserID{testutil.TestIDs.Bob},
	})

	rec := s.do(http.MethodGet, "/notifications", &bob)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list []NotificationResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
	s.Require().Len(list, 1)
	s.Equal(models.TypeInvite, list[0].Type)

	rec = s.do(http.MethodGet, "/notifications", &carol)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())

	rec = s.do(http.MethodPut, "/notifications/"+list[0].ID+"/read", &carol)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPut, "/notifications/"+list[0].ID+"/read", &bob)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPut, "/notifications/"+list[0].ID+"/read", &bob)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestRejectsBadInput() {
	rec := s.do(http.MethodGet, "/notifications", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	bob := testutil.Principal(testutil.TestIDs.TenantA, testutil.TestIDs.Bob)
	rec = s.do(http.MethodPut, "/notifications/abc/read", &bob)
	s.Equal(http.StatusBadRequest, rec.Code)
}
