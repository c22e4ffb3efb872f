package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

type mapCache struct {
	byID        map[uint64]model.Resource
	hits        int
	invalidated []uint64
}

func newMapCache() *mapCache { return &mapCache{byID: map[uint64]model.Resource{}} }

func (c *mapCache) Resource(_ context.Context, id uint64) (*model.Resource, bool) {
	r, ok := c.byID[id]
	if ok {
		c.hits++
	}
	return &r, ok
}

func (c *mapCache) StoreResource(_ context.Context, r *model.Resource) { c.byID[r.ID] = *r }

func (c *mapCache) Resources(context.Context, bool) ([]model.Resource, bool) { return nil, false }

func (c *mapCache) StoreResources(context.Context, bool, []model.Resource) {}

func (c *mapCache) Invalidate(_ context.Context, id uint64) {
	delete(c.byID, id)
	c.invalidated = append(c.invalidated, id)
}

func TestCreateResourceAppliesTypeDefaults(t *testing.T) {
	f := newFixture(t)
	r, err := f.svc.CreateResource(f.ctx, staff, &model.Resource{Name: "Study 2", Type: model.ResourceStudyRoom, Active: true})
	require.NoError(t, err)
	assert.Equal(t, 120, r.DefaultDuration)
	assert.Equal(t, 240, r.MaxDuration)
	assert.Equal(t, 14, r.MaxAdvanceDays)
	assert.Equal(t, 1, r.Capacity)
	assert.Equal(t, model.AlwaysOpen, r.Hours)
	assert.NotZero(t, r.ID)
}

func TestCreateResourceKeepsExplicitZeroPolicy(t *testing.T) {
	f := newFixture(t)

	free, err := f.svc.CreateResource(f.ctx, staff,
		&model.Resource{Name: "Music 1", Type: model.ResourceMusicRoom, Active: true},
		model.PolicyCostPerHour|model.PolicyDeposit)
	require.NoError(t, err)
	assert.True(t, free.CostPerHour.IsZero())
	assert.True(t, free.Deposit.IsZero())

	open, err := f.svc.CreateResource(f.ctx, staff,
		&model.Resource{Name: "Meeting 1", Type: model.ResourceMeetingRoom, Active: true},
		model.PolicyRequiresApproval)
	require.NoError(t, err)
	assert.False(t, open.RequiresApproval)

	// without the explicit set the type defaults apply
	paid, err := f.svc.CreateResource(f.ctx, staff, &model.Resource{Name: "Music 2", Type: model.ResourceMusicRoom, Active: true})
	require.NoError(t, err)
	assert.True(t, paid.CostPerHour.Equal(dec(5)))
	gated, err := f.svc.CreateResource(f.ctx, staff, &model.Resource{Name: "Meeting 2", Type: model.ResourceMeetingRoom, Active: true})
	require.NoError(t, err)
	assert.True(t, gated.RequiresApproval)
}

func TestCreateResourceValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateResource(f.ctx, resident, &model.Resource{Name: "Gym", Type: model.ResourceGym})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CreateResource(f.ctx, staff, &model.Resource{Name: "Pool", Type: "POOL"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateResource(f.ctx, staff, &model.Resource{Name: " ", Type: model.ResourceGym})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateResource(f.ctx, staff, &model.Resource{
		Name: "Gym", Type: model.ResourceGym, MinDuration: 90, DefaultDuration: 60,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResourceReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	cache := newMapCache()
	f.svc.cache = cache
	r := f.laundry()

	_, err := f.svc.GetResource(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Zero(t, cache.hits)
	got, err := f.svc.GetResource(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, r.Name, got.Name)

	_, err = f.svc.SetResourceActive(f.ctx, staff, r.ID, false)
	require.NoError(t, err)
	assert.Contains(t, cache.invalidated, r.ID)

	got, err = f.svc.GetResource(f.ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = f.svc.GetResource(f.ctx, 4040)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateResource(t *testing.T) {
	f := newFixture(t)
	r := f.laundry()

	changed := *r
	changed.Capacity = 4
	changed.Name = "Laundry B2"
	out, err := f.svc.UpdateResource(f.ctx, staff, &changed)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Capacity)
	assert.Equal(t, r.CreatedAt, out.CreatedAt)

	missing := changed
	missing.ID = 999
	_, err = f.svc.UpdateResource(f.ctx, staff, &missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListResourcesActiveOnly(t *testing.T) {
	f := newFixture(t)
	f.laundry(func(r *model.Resource) { r.Name = "A laundry" })
	closed := f.laundry(func(r *model.Resource) { r.Name = "B laundry" })
	_, err := f.svc.SetResourceActive(f.ctx, staff, closed.ID, false)
	require.NoError(t, err)

	all, err := f.svc.ListResources(f.ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := f.svc.ListResources(f.ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "A laundry", active[0].Name)
}
