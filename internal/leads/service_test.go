package leads

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func newTestService() *Service {
	return NewService(NewRepository(docstore.NewMemory()), nil, nil)
}

func TestCreateLeadDefaultsToNew(t *testing.T) {
	svc := newTestService()
	lead, err := svc.CreateLead(context.Background(), CreateLeadRequest{Name: " Bia ", Phone: "(11) 98888-7777", Origin: "instagram"})
	require.NoError(t, err)
	assert.Equal(t, StatusNew, lead.Status)
	assert.Equal(t, "Bia", lead.Name)
}

func TestCreateLeadValidation(t *testing.T) {
	svc := newTestService()
	_, err := svc.CreateLead(context.Background(), CreateLeadRequest{Phone: "11999999999"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateLead(context.Background(), CreateLeadRequest{Name: "A", Phone: "1", Status: "ganhou"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSetStatusAndList(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	a, err := svc.CreateLead(ctx, CreateLeadRequest{Name: "A", Phone: "1"})
	require.NoError(t, err)
	_, err = svc.CreateLead(ctx, CreateLeadRequest{Name: "B", Phone: "2", Status: StatusNegotiating})
	require.NoError(t, err)

	moved, err := svc.SetStatus(ctx, a.ID, StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, moved.Status)

	paid, err := svc.ListLeads(ctx, StatusPaid)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, a.ID, paid[0].ID)

	_, err = svc.SetStatus(ctx, "missing", StatusLost)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.SetStatus(ctx, a.ID, "x")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestHandlerLeadFlow(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), newTestService()).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/leads", strings.NewReader(`{"name":"Caio","phone":"21 99999-0000"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var lead Lead
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&lead))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/leads/"+lead.ID+"/status", strings.NewReader(`{"status":"contato"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads?status=contato", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Lead
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
