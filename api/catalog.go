package api

import (
	"context"
	"net/http"

	"court-desk/logging"
	"court-desk/types"
)

const (
	catalogCourts    = "courts"
	catalogEquipment = "equipment"
)

// Courts returns all courts, from cache when fresh.
func (c *Client) Courts(ctx context.Context) ([]types.Court, error) {
	var courts []types.Court
	if c.cachedCatalog(ctx, catalogCourts, &courts) {
		return courts, nil
	}

	courts = make([]types.Court, 0)
	if err := c.do(ctx, call{endpoint: "courts.list", method: http.MethodGet, path: "/courts"}, &courts); err != nil {
		return nil, err
	}
	c.saveCatalog(ctx, catalogCourts, courts)
	return courts, nil
}

func (c *Client) CreateCourt(ctx context.Context, court types.Court) (types.Court, error) {
	created := court
	err := c.do(ctx, call{endpoint: "courts.create", method: http.MethodPost, path: "/courts", body: court, admin: true}, &created)
	if err != nil {
		return types.Court{}, err
	}
	c.invalidateCatalog(ctx, catalogCourts)
	return created, nil
}

func (c *Client) UpdateCourt(ctx context.Context, court types.Court) error {
	err := c.do(ctx, call{endpoint: "courts.update", method: http.MethodPut, path: "/courts/" + court.ID, body: court, admin: true}, nil)
	if err != nil {
		return err
	}
	c.invalidateCatalog(ctx, catalogCourts)
	return nil
}

func (c *Client) DeleteCourt(ctx context.Context, id string) error {
	if err := c.do(ctx, call{endpoint: "courts.delete", method: http.MethodDelete, path: "/courts/" + id, admin: true}, nil); err != nil {
		return err
	}
	c.invalidateCatalog(ctx, catalogCourts)
	return nil
}

func (c *Client) Equipment(ctx context.Context) ([]types.Equipment, error) {
	var items []types.Equipment
	if c.cachedCatalog(ctx, catalogEquipment, &items) {
		return items, nil
	}

	items = make([]types.Equipment, 0)
	if err := c.do(ctx, call{endpoint: "equipment.list", method: http.MethodGet, path: "/equipment"}, &items); err != nil {
		return nil, err
	}
	c.saveCatalog(ctx, catalogEquipment, items)
	return items, nil
}

func (c *Client) CreateEquipment(ctx context.Context, item types.Equipment) (types.Equipment, error) {
	created := item
	err := c.do(ctx, call{endpoint: "equipment.create", method: http.MethodPost, path: "/equipment", body: item, admin: true}, &created)
	if err != nil {
		return types.Equipment{}, err
	}
	c.invalidateCatalog(ctx, catalogEquipment)
	return created, nil
}

func (c *Client) UpdateEquipment(ctx context.Context, item types.Equipment) error {
	err := c.do(ctx, call{endpoint: "equipment.update", method: http.MethodPut, path: "/equipment/" + item.ID, body: item, admin: true}, nil)
	if err != nil {
		return err
	}
	c.invalidateCatalog(ctx, catalogEquipment)
	return nil
}

func (c *Client) DeleteEquipment(ctx context.Context, id string) error {
	if err := c.do(ctx, call{endpoint: "equipment.delete", method: http.MethodDelete, path: "/equipment/" + id, admin: true}, nil); err != nil {
		return err
	}
	c.invalidateCatalog(ctx, catalogEquipment)
	return nil
}

// Timeslots returns the full timeslot catalog. It is not cached: the wizard loads it
// fresh on every court selection.
func (c *Client) Timeslots(ctx context.Context) ([]types.Timeslot, error) {
	slots := make([]types.Timeslot, 0)
	if err := c.do(ctx, call{endpoint: "timeslots.list", method: http.MethodGet, path: "/timeslots/GetAll"}, &slots); err != nil {
		return nil, err
	}
	for i := range slots {
		slots[i].StartTime = normalizeTime(slots[i].StartTime)
		slots[i].EndTime = normalizeTime(slots[i].EndTime)
	}
	return slots, nil
}

func (c *Client) CreateTimeslot(ctx context.Context, ts types.Timeslot) (types.Timeslot, error) {
	created := ts
	err := c.do(ctx, call{endpoint: "timeslots.create", method: http.MethodPost, path: "/timeslots/Add", body: ts, admin: true}, &created)
	if err != nil {
		return types.Timeslot{}, err
	}
	return created, nil
}

func (c *Client) UpdateTimeslot(ctx context.Context, ts types.Timeslot) error {
	return c.do(ctx, call{
		endpoint: "timeslots.update",
		method:   http.MethodPut,
		path:     "/timeslots/Update",
		query:    idQuery(ts.ID),
		body:     ts,
		admin:    true,
	}, nil)
}

func (c *Client) DeleteTimeslot(ctx context.Context, id string) error {
	return c.do(ctx, call{
		endpoint: "timeslots.delete",
		method:   http.MethodDelete,
		path:     "/timeslots/Delete",
		query:    idQuery(id),
		admin:    true,
	}, nil)
}

func (c *Client) cachedCatalog(ctx context.Context, name string, out any) bool {
	if c.cache == nil {
		return false
	}
	ok, err := c.cache.GetCatalog(ctx, name, out)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("catalog", name).Warn("catalog cache read failed")
		return false
	}
	return ok
}

func (c *Client) saveCatalog(ctx context.Context, name string, v any) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SaveCatalog(ctx, name, v); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("catalog", name).Warn("failed to cache catalog")
	}
}

func (c *Client) invalidateCatalog(ctx context.Context, name string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateCatalog(ctx, name); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("catalog", name).Warn("failed to invalidate catalog cache")
	}
}
