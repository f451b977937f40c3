package mock

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/artpar/cloudgate/domain/cloud"
)

// Instances returns the caller's instances.
func (d *Driver) Instances(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Instance, error) {
	if id := f["id"]; id != "" {
		inst, err := d.ownedInstance(ctx, creds, id)
		if err != nil {
			return nil, err
		}
		return cloud.FilterOn([]cloud.Instance{inst}, upper(f, "state"), "state", instanceState), nil
	}
	list, err := d.instances.List(ctx, creds.User)
	if err != nil {
		return nil, d.backendError("list instances", err)
	}
	return cloud.FilterOn(list, upper(f, "state"), "state", instanceState), nil
}

func instanceState(i cloud.Instance) string { return i.State }

// CreateInstance launches an instance through the create action of the
// lifecycle and stores it in the state it settles in.
func (d *Driver) CreateInstance(ctx context.Context, creds cloud.Credentials, req cloud.InstanceRequest) (cloud.Instance, error) {
	img, ok := d.catalog.image(req.ImageID)
	if !ok {
		return cloud.Instance{}, cloud.Invalid("image_id", "unknown image %q", req.ImageID)
	}

	realmID := req.RealmID
	if realmID == "" {
		realmID = d.catalog.Realms[0].ID
	}
	if _, ok := d.catalog.realm(realmID); !ok {
		return cloud.Instance{}, cloud.Invalid("realm_id", "unknown realm %q", realmID)
	}

	profileID := req.ProfileID
	if profileID == "" {
		profileID = d.catalog.HardwareProfiles[0].ID
	}
	profile, ok := d.catalog.profile(profileID)
	if !ok {
		return cloud.Instance{}, cloud.Invalid("hwp_id", "unknown hardware profile %q", profileID)
	}
	if err := checkOverrides(profile, req.ProfileOverrides); err != nil {
		return cloud.Instance{}, err
	}

	if req.KeyName != "" {
		if err := d.checkKeyName(ctx, creds, req.KeyName); err != nil {
			return cloud.Instance{}, err
		}
	}

	id, err := d.nextInstanceID(ctx)
	if err != nil {
		return cloud.Instance{}, err
	}

	state := d.machine.Start()
	if next, ok := d.machine.Next(state, "create"); ok {
		state = next
	}
	state = d.machine.Settle(state)

	name := req.Name
	if name == "" {
		name = img.Name
	}
	inst := cloud.Instance{
		ID:         id,
		Name:       name,
		OwnerID:    creds.User,
		ImageID:    img.ID,
		RealmID:    realmID,
		State:      cloud.DisplayState(state),
		Profile:    cloud.InstanceProfile{ProfileID: profile.ID, Overrides: req.ProfileOverrides},
		LaunchTime: d.clock.Now(),
	}
	inst.PublicAddresses, inst.PrivateAddresses = addresses(img.ID, id)

	if err := d.instances.Save(ctx, inst); err != nil {
		return cloud.Instance{}, d.backendError("save instance", err)
	}
	d.logger.Info().Str("instance", id).Str("owner", creds.User).Str("state", inst.State).Msg("instance created")
	return inst, nil
}

// InstanceAction moves an instance along the lifecycle. Reaching a terminal
// state removes the instance. Actions on the same instance run one at a time.
func (d *Driver) InstanceAction(ctx context.Context, creds cloud.Credentials, id, action string) (cloud.Instance, bool, error) {
	unlock := d.lockInstance(id)
	defer unlock()

	inst, err := d.ownedInstance(ctx, creds, id)
	if err != nil {
		return cloud.Instance{}, false, err
	}

	next, ok := d.machine.Next(cloud.NormalizeState(inst.State), action)
	if !ok {
		return cloud.Instance{}, false, cloud.Invalid("action", "cannot %s an instance in state %s", action, inst.State)
	}
	next = d.machine.Settle(next)
	inst.State = cloud.DisplayState(next)

	if d.machine.IsTerminal(next) {
		if err := d.instances.Delete(ctx, id); err != nil {
			return cloud.Instance{}, false, d.backendError("delete instance", err)
		}
		// Ids are never reused, so waiters holding this lock find the instance gone.
		d.instLocks.Delete(id)
		d.logger.Info().Str("instance", id).Str("action", action).Msg("instance removed")
		return inst, false, nil
	}
	if err := d.instances.Save(ctx, inst); err != nil {
		return cloud.Instance{}, false, d.backendError("save instance", err)
	}
	d.logger.Info().Str("instance", id).Str("action", action).Str("state", inst.State).Msg("instance action applied")
	return inst, true, nil
}

func (d *Driver) lockInstance(id string) func() {
	v, _ := d.instLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ownedInstance loads an instance, hiding instances of other owners.
func (d *Driver) ownedInstance(ctx context.Context, creds cloud.Credentials, id string) (cloud.Instance, error) {
	inst, err := d.instances.Get(ctx, id)
	if err != nil {
		return cloud.Instance{}, d.backendError("get instance", err)
	}
	if inst.OwnerID != creds.User {
		return cloud.Instance{}, cloud.ErrNotFound
	}
	return inst, nil
}

// nextInstanceID skips ids already taken in the store.
func (d *Driver) nextInstanceID(ctx context.Context) (string, error) {
	for {
		id := d.instIDs.New()
		_, err := d.instances.Get(ctx, id)
		if errors.Is(err, cloud.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", d.backendError("allocate instance id", err)
		}
	}
}

func checkOverrides(profile cloud.HardwareProfile, overrides map[string]string) error {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, ok := profile.Property(name)
		if !ok {
			return cloud.Invalid("hwp_"+name, "hardware profile %s has no property %q", profile.ID, name)
		}
		if v := overrides[name]; !prop.Allows(v) {
			return cloud.Invalid("hwp_"+name, "value %q not allowed for %s", v, name)
		}
	}
	return nil
}
