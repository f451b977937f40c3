// Package app contains the services behind the unified cloud API.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/artpar/cloudgate/adapters/metrics"
	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/domain/lifecycle"
	"github.com/artpar/cloudgate/ports"
	"github.com/rs/zerolog"
)

// Optional instance creation parameters and the feature that enables each.
var instanceParamFeatures = []struct {
	field   string
	feature string
	set     func(cloud.InstanceRequest) bool
}{
	{"name", "user_name", func(r cloud.InstanceRequest) bool { return r.Name != "" }},
	{"user_data", "user_data", func(r cloud.InstanceRequest) bool { return r.UserData != "" }},
	{"keyname", "authentication_key", func(r cloud.InstanceRequest) bool { return r.KeyName != "" }},
	{"security_group", "security_group", func(r cloud.InstanceRequest) bool { return r.SecurityGroup != "" }},
	{"hwp_id", "hardware_profiles", func(r cloud.InstanceRequest) bool {
		return r.ProfileID != "" || len(r.ProfileOverrides) > 0
	}},
}

// CloudService applies the unified API rules on top of a backend driver:
// lifecycle-derived action lists, action legality, and feature gating.
type CloudService struct {
	driver  ports.Driver
	machine *lifecycle.Machine
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewCloudService creates a cloud service. metrics may be nil.
func NewCloudService(driver ports.Driver, m *metrics.Collector, logger zerolog.Logger) *CloudService {
	return &CloudService{
		driver:  driver,
		machine: driver.Lifecycle(),
		metrics: m,
		logger:  logger,
	}
}

// DriverName returns the backend driver name.
func (s *CloudService) DriverName() string {
	return s.driver.Name()
}

// Lifecycle returns the instance state machine of the backend.
func (s *CloudService) Lifecycle() *lifecycle.Machine {
	return s.machine
}

// Collections lists the collections the backend supports.
func (s *CloudService) Collections() []string {
	return s.driver.Collections()
}

// Features lists the optional capabilities of a collection.
func (s *CloudService) Features(collection string) []string {
	return s.driver.Features(collection)
}

// Supports reports whether the backend offers a collection.
func (s *CloudService) Supports(collection string) bool {
	return slices.Contains(s.driver.Collections(), collection)
}

// HasFeature reports whether a collection advertises a feature.
func (s *CloudService) HasFeature(collection, feature string) bool {
	return slices.Contains(s.driver.Features(collection), feature)
}

// InstanceParams lists the optional instance creation parameters whose
// feature the backend advertises.
func (s *CloudService) InstanceParams() []string {
	var out []string
	for _, p := range instanceParamFeatures {
		if s.HasFeature("instances", p.feature) {
			out = append(out, p.field)
		}
	}
	return out
}

// Authenticate checks credentials against the backend.
func (s *CloudService) Authenticate(ctx context.Context, creds cloud.Credentials) error {
	if creds.User == "" || !s.driver.ValidCredentials(ctx, creds) {
		if s.metrics != nil {
			reason := "invalid_credentials"
			if creds.User == "" {
				reason = "missing_credentials"
			}
			s.metrics.AuthFailures.WithLabelValues(reason).Inc()
		}
		return cloud.ErrAuth
	}
	return nil
}

func (s *CloudService) require(collection string) error {
	if !s.Supports(collection) {
		return fmt.Errorf("%s: %w", collection, cloud.ErrUnsupported)
	}
	return nil
}

// Realms lists realms.
func (s *CloudService) Realms(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Realm, error) {
	if err := s.require("realms"); err != nil {
		return nil, err
	}
	return s.driver.Realms(ctx, creds, f)
}

// Images lists images.
func (s *CloudService) Images(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Image, error) {
	if err := s.require("images"); err != nil {
		return nil, err
	}
	return s.driver.Images(ctx, creds, f)
}

// HardwareProfiles lists hardware profiles.
func (s *CloudService) HardwareProfiles(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.HardwareProfile, error) {
	if err := s.require("hardware_profiles"); err != nil {
		return nil, err
	}
	return s.driver.HardwareProfiles(ctx, creds, f)
}

// Instances lists instances with their current action lists.
func (s *CloudService) Instances(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Instance, error) {
	if err := s.require("instances"); err != nil {
		return nil, err
	}
	list, err := s.driver.Instances(ctx, creds, f)
	if err != nil {
		return nil, err
	}
	for i := range list {
		s.withActions(&list[i])
	}
	return list, nil
}

// Instance returns a single instance.
func (s *CloudService) Instance(ctx context.Context, creds cloud.Credentials, id string) (cloud.Instance, error) {
	list, err := s.Instances(ctx, creds, cloud.Filter{"id": id})
	if err != nil {
		return cloud.Instance{}, err
	}
	if len(list) == 0 {
		return cloud.Instance{}, cloud.ErrNotFound
	}
	return list[0], nil
}

// withActions sets the actions legal in the instance's current state.
func (s *CloudService) withActions(inst *cloud.Instance) {
	inst.Actions = s.machine.Actions(cloud.NormalizeState(inst.State))
}

// CreateInstance launches an instance. Optional parameters require the
// matching instances feature.
func (s *CloudService) CreateInstance(ctx context.Context, creds cloud.Credentials, req cloud.InstanceRequest) (cloud.Instance, error) {
	if err := s.require("instances"); err != nil {
		return cloud.Instance{}, err
	}
	if req.ImageID == "" {
		return cloud.Instance{}, cloud.Invalid("image_id", "is required")
	}
	for _, p := range instanceParamFeatures {
		if p.set(req) && !s.HasFeature("instances", p.feature) {
			return cloud.Instance{}, cloud.Invalid(p.field, "not supported by the %s driver", s.driver.Name())
		}
	}

	inst, err := s.driver.CreateInstance(ctx, creds, req)
	if err != nil {
		s.countAction("create", err)
		return cloud.Instance{}, err
	}
	s.countAction("create", nil)
	s.withActions(&inst)
	return inst, nil
}

// InstanceAction applies an action that is legal in the instance's current
// state. The returned bool is false when the instance no longer exists.
func (s *CloudService) InstanceAction(ctx context.Context, creds cloud.Credentials, id, action string) (cloud.Instance, bool, error) {
	inst, err := s.Instance(ctx, creds, id)
	if err != nil {
		return cloud.Instance{}, false, err
	}

	if !s.machine.CanPerform(cloud.NormalizeState(inst.State), action) {
		err := cloud.Invalid("action", "%s is not available for instance %s in state %s", action, id, inst.State)
		s.countAction(action, err)
		return cloud.Instance{}, false, err
	}

	updated, exists, err := s.driver.InstanceAction(ctx, creds, id, action)
	s.countAction(action, err)
	if err != nil {
		return cloud.Instance{}, false, err
	}
	s.logger.Debug().
		Str("instance", id).
		Str("action", action).
		Str("state", updated.State).
		Bool("exists", exists).
		Msg("instance action")
	if exists {
		s.withActions(&updated)
	}
	return updated, exists, nil
}

// DestroyInstance runs the lifecycle's destroy action.
func (s *CloudService) DestroyInstance(ctx context.Context, creds cloud.Credentials, id string) error {
	_, _, err := s.InstanceAction(ctx, creds, id, "destroy")
	return err
}

func (s *CloudService) countAction(action string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	var ve *cloud.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &ve):
		result = "rejected"
	case errors.Is(err, cloud.ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	s.metrics.ActionsTotal.WithLabelValues(action, result).Inc()
}

// Keys lists keys.
func (s *CloudService) Keys(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.Key, error) {
	if err := s.require("keys"); err != nil {
		return nil, err
	}
	return s.driver.Keys(ctx, creds, f)
}

// CreateKey creates a key.
func (s *CloudService) CreateKey(ctx context.Context, creds cloud.Credentials, name string) (cloud.Key, error) {
	if err := s.require("keys"); err != nil {
		return cloud.Key{}, err
	}
	return s.driver.CreateKey(ctx, creds, name)
}

// DestroyKey deletes a key.
func (s *CloudService) DestroyKey(ctx context.Context, creds cloud.Credentials, id string) error {
	if err := s.require("keys"); err != nil {
		return err
	}
	return s.driver.DestroyKey(ctx, creds, id)
}

// StorageVolumes lists storage volumes.
func (s *CloudService) StorageVolumes(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.StorageVolume, error) {
	if err := s.require("storage_volumes"); err != nil {
		return nil, err
	}
	return s.driver.StorageVolumes(ctx, creds, f)
}

// CreateStorageVolume creates a storage volume.
func (s *CloudService) CreateStorageVolume(ctx context.Context, creds cloud.Credentials, req cloud.VolumeRequest) (cloud.StorageVolume, error) {
	if err := s.require("storage_volumes"); err != nil {
		return cloud.StorageVolume{}, err
	}
	return s.driver.CreateStorageVolume(ctx, creds, req)
}

// DestroyStorageVolume deletes a storage volume.
func (s *CloudService) DestroyStorageVolume(ctx context.Context, creds cloud.Credentials, id string) error {
	if err := s.require("storage_volumes"); err != nil {
		return err
	}
	return s.driver.DestroyStorageVolume(ctx, creds, id)
}

// StorageSnapshots lists storage snapshots.
func (s *CloudService) StorageSnapshots(ctx context.Context, creds cloud.Credentials, f cloud.Filter) ([]cloud.StorageSnapshot, error) {
	if err := s.require("storage_snapshots"); err != nil {
		return nil, err
	}
	return s.driver.StorageSnapshots(ctx, creds, f)
}
