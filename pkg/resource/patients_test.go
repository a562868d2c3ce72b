package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/Sternrassler/wellness-sync/pkg/models"
	"github.com/Sternrassler/wellness-sync/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const patientsFilterPath = "/api/v1/specialist/patients/filter"

// patientBackend serves a fixed list of patients through the filter endpoint.
type patientBackend struct {
	mu       sync.Mutex
	total    int
	requests []models.PatientsFilterRequest
}

func (b *patientBackend) handle(w http.ResponseWriter, r *http.Request) {
	var req models.PatientsFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	total := b.total
	if req.Status == "archived" {
		total = 2
	}

	var items []string
	for i := req.Offset; i < req.Offset+req.Limit && i < total; i++ {
		items = append(items, fmt.Sprintf(`{"id":"p%d","full_name":"Patient %d","status":"active"}`, i, i))
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"patients":[%s],"total_count":%d,"page":0,"has_more":true}`, strings.Join(items, ","), total)
}

func (b *patientBackend) last() models.PatientsFilterRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func newTestPatients(t *testing.T) (*Patients, *patientBackend, *testStack) {
	t.Helper()
	s := newTestStack(t)
	backend := &patientBackend{total: 45}
	s.mock.SetHandler(patientsFilterPath, backend.handle)

	p, err := NewPatients(s.api, 20, s.opts)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p, backend, s
}

func TestPatients_PageArithmetic(t *testing.T) {
	p, backend, _ := newTestPatients(t)
	ctx := context.Background()

	st := p.SetPage(ctx, 3)
	require.Equal(t, StatusSuccess, st.Status)

	req := backend.last()
	assert.Equal(t, 20, req.Limit)
	assert.Equal(t, 40, req.Offset)

	assert.Len(t, st.Data.Patients, 5)
	assert.Equal(t, 45, st.Data.TotalCount)
	assert.Equal(t, 3, st.Data.Page)
	assert.False(t, st.Data.HasMore, "page*pageSize >= total means no more pages")
	assert.False(t, p.Pagination().HasMore)

	// no page after the last one
	p.NextPage(ctx)
	assert.Equal(t, 3, p.Params().Page)
}

func TestPatients_NextPage(t *testing.T) {
	p, backend, _ := newTestPatients(t)
	ctx := context.Background()

	st := p.Load(ctx, p.Params(), false)
	assert.True(t, st.Data.HasMore)

	st = p.NextPage(ctx)
	assert.Equal(t, 2, p.Params().Page)
	assert.Equal(t, 20, backend.last().Offset)
	assert.Equal(t, "p20", st.Data.Patients[0].ID)
}

func TestPatients_FilterResetsToFirstPage(t *testing.T) {
	p, backend, _ := newTestPatients(t)
	ctx := context.Background()

	p.SetPage(ctx, 2)
	st := p.Filter(ctx, "archived", "ann")

	req := backend.last()
	assert.Equal(t, "archived", req.Status)
	assert.Equal(t, "ann", req.Search)
	assert.Equal(t, 0, req.Offset)
	assert.Equal(t, 1, p.Params().Page)
	assert.Equal(t, 2, st.Data.TotalCount)
	assert.False(t, st.Data.HasMore)
}

func TestPatients_PageNavigationUsesCache(t *testing.T) {
	p, backend, _ := newTestPatients(t)
	ctx := context.Background()

	p.SetPage(ctx, 1)
	p.SetPage(ctx, 2)
	st := p.SetPage(ctx, 1)

	assert.True(t, st.FromCache)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Len(t, backend.requests, 2)
}

func TestPatients_FetchAll(t *testing.T) {
	p, backend, _ := newTestPatients(t)

	patients, err := p.FetchAll(context.Background(), "", "", pagination.Config{MaxConcurrency: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, patients, 45)
	for i, pt := range patients {
		require.Equal(t, fmt.Sprintf("p%d", i), pt.ID)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Len(t, backend.requests, 5)
	assert.Equal(t, StatusIdle, p.State().Status, "FetchAll leaves the resource state alone")
}
