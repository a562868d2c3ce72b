package resource

import (
	"context"
	"net/url"
	"strconv"

	"github.com/Sternrassler/wellness-sync/pkg/api"
	"github.com/Sternrassler/wellness-sync/pkg/models"
	"github.com/Sternrassler/wellness-sync/pkg/pagination"
)

// PatientFilter selects one page of the patient list.
type PatientFilter struct {
	Status   string
	Search   string
	Page     int
	PageSize int
}

// Values implements Valuer.
func (f PatientFilter) Values() url.Values {
	v := url.Values{}
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	v.Set("page", strconv.Itoa(f.Page))
	v.Set("page_size", strconv.Itoa(f.PageSize))
	return v
}

func (f PatientFilter) pagination() pagination.State {
	return pagination.NewState(f.PageSize).WithPage(f.Page)
}

// Patients is the specialist's paginated, filterable patient list.
type Patients struct {
	*Resource[PatientFilter, models.PatientsPage]

	api *api.API
}

// NewPatients creates the patient list resource starting on page 1.
func NewPatients(a *api.API, pageSize int, opts Options) (*Patients, error) {
	ttl := opts.ttl(DefaultListTTL)
	initial := PatientFilter{Page: 1, PageSize: pagination.NewState(pageSize).PageSize}

	p := &Patients{api: a}
	r, err := New(Config[PatientFilter, models.PatientsPage]{
		Name:   "patients_list",
		Fetch:  p.fetchPage,
		Store:  newStore[models.PatientsPage](opts, "patients", ttl),
		TTL:    ttl,
		Scope:  opts.Scope,
		Clock:  opts.Clock,
		Logger: opts.Logger,
	}, initial)
	if err != nil {
		return nil, err
	}
	p.Resource = r
	return p, nil
}

func (p *Patients) fetchPage(ctx context.Context, f PatientFilter) (models.PatientsPage, error) {
	state := f.pagination()
	page, err := p.api.FilterPatients(ctx, models.PatientsFilterRequest{
		Status: f.Status,
		Search: f.Search,
		Limit:  state.PageSize,
		Offset: state.Offset(),
	})
	if err != nil {
		return models.PatientsPage{}, err
	}

	state = state.WithTotal(page.TotalCount)
	page.Page = state.Page
	page.HasMore = state.HasMore
	return *page, nil
}

// Filter changes status and search text and returns to page 1.
func (p *Patients) Filter(ctx context.Context, status, search string) State[models.PatientsPage] {
	f := p.Params()
	f.Status = status
	f.Search = search
	f.Page = 1
	return p.SetParams(ctx, f)
}

// SetPage moves to page, clamped to 1.
func (p *Patients) SetPage(ctx context.Context, page int) State[models.PatientsPage] {
	if page < 1 {
		page = 1
	}
	f := p.Params()
	f.Page = page
	return p.Switch(ctx, f)
}

// NextPage moves to the following page if there is one.
func (p *Patients) NextPage(ctx context.Context) State[models.PatientsPage] {
	next, ok := p.Pagination().Next()
	if !ok {
		return p.State()
	}
	return p.SetPage(ctx, next.Page)
}

// Pagination returns the pagination state of the loaded page.
func (p *Patients) Pagination() pagination.State {
	f := p.Params()
	state := f.pagination()
	if s := p.State(); s.HasData {
		state = state.WithTotal(s.Data.TotalCount)
	}
	return state
}

// FetchAll loads every patient matching status and search, page by page in
// parallel. It does not change the resource state.
func (p *Patients) FetchAll(ctx context.Context, status, search string, cfg pagination.Config) ([]models.Patient, error) {
	fetcher := pagination.PageFetchFunc[models.Patient](func(ctx context.Context, offset, limit int) ([]models.Patient, int, error) {
		page, err := p.api.FilterPatients(ctx, models.PatientsFilterRequest{
			Status: status,
			Search: search,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return nil, 0, err
		}
		return page.Patients, page.TotalCount, nil
	})
	return pagination.NewBatchFetcher[models.Patient](fetcher, cfg).FetchAll(ctx, "patients")
}
