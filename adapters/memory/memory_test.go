package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/artpar/cloudgate/adapters/memory"
	"github.com/artpar/cloudgate/domain/cloud"
)

func TestInstanceStore_SaveGetList(t *testing.T) {
	store := memory.NewInstanceStore()
	ctx := context.Background()

	for _, id := range []string{"inst10", "inst2", "inst0"} {
		err := store.Save(ctx, cloud.Instance{
			ID:              id,
			OwnerID:         "mockuser",
			State:           "RUNNING",
			PublicAddresses: []string{id + ".public.com"},
		})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := store.Save(ctx, cloud.Instance{ID: "other", OwnerID: "someone"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	list, err := store.List(ctx, "mockuser")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"inst0", "inst2", "inst10"}
	if len(list) != len(want) {
		t.Fatalf("List returned %d instances, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("list[%d].ID = %q, want %q", i, list[i].ID, id)
		}
	}

	got, err := store.Get(ctx, "inst2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.PublicAddresses[0] != "inst2.public.com" {
		t.Errorf("PublicAddresses = %v", got.PublicAddresses)
	}

	if store.Count() != 4 {
		t.Errorf("Count = %d, want 4", store.Count())
	}
}

func TestInstanceStore_ReturnsCopies(t *testing.T) {
	store := memory.NewInstanceStore()
	ctx := context.Background()

	_ = store.Save(ctx, cloud.Instance{ID: "inst0", PublicAddresses: []string{"a"}})

	got, _ := store.Get(ctx, "inst0")
	got.PublicAddresses[0] = "mutated"

	again, _ := store.Get(ctx, "inst0")
	if again.PublicAddresses[0] != "a" {
		t.Errorf("store was mutated through a returned value: %v", again.PublicAddresses)
	}
}

func TestInstanceStore_NotFound(t *testing.T) {
	store := memory.NewInstanceStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, cloud.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, cloud.ErrNotFound) {
		t.Errorf("Delete error = %v, want ErrNotFound", err)
	}
}

func TestKeyStore_CreateDelete(t *testing.T) {
	store := memory.NewKeyStore()
	ctx := context.Background()

	k := cloud.Key{ID: "key-1", Name: "deploy", OwnerID: "mockuser", CreatedAt: time.Now()}
	if err := store.Create(ctx, k); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctx, k); err == nil {
		t.Error("duplicate Create should fail")
	}

	keys, _ := store.List(ctx, "mockuser")
	if len(keys) != 1 || keys[0].Name != "deploy" {
		t.Errorf("List = %+v", keys)
	}
	if keys, _ := store.List(ctx, "other"); len(keys) != 0 {
		t.Errorf("List for other owner = %+v", keys)
	}

	if err := store.Delete(ctx, "key-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "key-1"); !errors.Is(err, cloud.ErrNotFound) {
		t.Errorf("Get after delete error = %v", err)
	}
}

func TestVolumeStore(t *testing.T) {
	store := memory.NewVolumeStore()
	ctx := context.Background()

	v := cloud.StorageVolume{ID: "vol1", OwnerID: "mockuser", Capacity: "10", State: "AVAILABLE"}
	_ = store.Save(ctx, v)
	v.State = "IN-USE"
	_ = store.Save(ctx, v)

	got, err := store.Get(ctx, "vol1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != "IN-USE" {
		t.Errorf("State = %q, want %q", got.State, "IN-USE")
	}

	if err := store.Delete(ctx, "vol1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "vol1"); !errors.Is(err, cloud.ErrNotFound) {
		t.Errorf("second Delete error = %v", err)
	}
}

func TestInstanceStore_Concurrent(t *testing.T) {
	store := memory.NewInstanceStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "inst" + string(rune('a'+i%26))
			_ = store.Save(ctx, cloud.Instance{ID: id, OwnerID: "u"})
			_, _ = store.List(ctx, "u")
		}(i)
	}
	wg.Wait()

	if store.Count() != 26 {
		t.Errorf("Count = %d, want 26", store.Count())
	}
}
