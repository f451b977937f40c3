package cloudclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/artpar/cloudgate/adapters/metrics"
	"github.com/artpar/cloudgate/pkg/cloudclient"
	"github.com/artpar/cloudgate/pkg/xmldoc"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessors_OnePerResourceRelation(t *testing.T) {
	api := newFakeAPI(t)
	api.entry = `<api driver="mock" version="1.0">
  <link rel="images" href="{base}/images"/>
  <link rel="instances" href="{base}/instances"/>
  <link rel="keys" href="{base}/keys"/>
  <link rel="instance_states" href="{base}/instance_states"/>
</api>`
	c := api.client(t)

	accessors := c.Accessors()
	require.Len(t, accessors, 3)

	var plural, singular []string
	for _, a := range accessors {
		plural = append(plural, a.Relation())
		singular = append(singular, a.Name())
	}
	assert.Equal(t, []string{"images", "instances", "keys"}, plural)
	assert.Equal(t, []string{"image", "instance", "key"}, singular)

	for _, name := range []string{"images", "image", "instances", "instance", "keys", "key"} {
		_, err := c.Accessor(name)
		assert.NoError(t, err, name)
	}
	for _, name := range []string{"instance_states", "instance_state", "realms"} {
		_, err := c.Accessor(name)
		assert.ErrorIs(t, err, cloudclient.ErrUnknownRelation, name)
	}
}

func TestDiscover_FetchesOnce(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)

	ep1, err := c.Discover(context.Background())
	require.NoError(t, err)
	ep2, err := c.Discover(context.Background())
	require.NoError(t, err)

	assert.Same(t, ep1, ep2)
	assert.Equal(t, 1, api.count("GET /api"))
	assert.Equal(t, "mock", c.DriverName())
	assert.Equal(t, "1.0", c.APIVersion())
}

func TestClient_ConcurrentReads(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := c.Discover(ctx)
			assert.NoError(t, err)
			assert.True(t, c.HasFeature("instances", "user_name"))
			assert.Len(t, c.Accessors(), 5)

			instances, err := c.Accessor("instance")
			if !assert.NoError(t, err) {
				return
			}
			list, err := instances.List(ctx, nil)
			assert.NoError(t, err)
			assert.Len(t, list, 2)

			inst, err := instances.Get(ctx, "inst0")
			if assert.NoError(t, err) {
				state, _ := inst.State()
				assert.Equal(t, "RUNNING", state)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, api.count("GET /api"))
	assert.Equal(t, 16, api.count("GET /api/instances"))
}

func TestEntryPoint(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	ep := c.EntryPoint()
	require.NotNil(t, ep)

	assert.Equal(t, []string{"hardware_profiles", "realms", "images", "instance_states", "instances", "keys"}, ep.Relations())

	u, ok := ep.URL("images")
	assert.True(t, ok)
	assert.Equal(t, api.base()+"/images", u)

	assert.Equal(t, []string{"user_name", "authentication_key"}, ep.Features("instances"))
	assert.True(t, c.HasFeature("instances", "user_name"))
	assert.False(t, c.HasFeature("instances", "hardware_profiles"))
	assert.False(t, c.HasFeature("nothing", "user_name"))
	assert.Equal(t, 1, api.count("GET /api"))
}

func TestNew_DiscoveryFailures(t *testing.T) {
	t.Run("bad credentials", func(t *testing.T) {
		api := newFakeAPI(t)
		_, err := cloudclient.New(context.Background(), cloudclient.Config{
			BaseURL:  api.base(),
			Username: "mockuser",
			Password: "wrong",
		})
		require.Error(t, err)
		assert.True(t, cloudclient.IsAuthFailure(err))
	})

	t.Run("backend error", func(t *testing.T) {
		api := newFakeAPI(t)
		api.failWith("/api", http.StatusInternalServerError)
		_, err := cloudclient.New(context.Background(), cloudclient.Config{
			BaseURL:  api.base(),
			Username: "mockuser",
			Password: "mockpassword",
		})

		var bf *cloudclient.BackendFailure
		require.True(t, errors.As(err, &bf), "got %T", err)
		assert.Equal(t, 500, bf.StatusCode)
		assert.Equal(t, "backend_error", bf.Cause)
		assert.Equal(t, "scripted failure", bf.Message)
		assert.Equal(t, "mock", bf.Details["backend.driver"])
		assert.Equal(t, "500", bf.Details["backend.code"])
		assert.False(t, cloudclient.IsNotFound(err))
	})

	t.Run("network failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		_, err := cloudclient.New(context.Background(), cloudclient.Config{BaseURL: srv.URL + "/api"})

		var bf *cloudclient.BackendFailure
		require.True(t, errors.As(err, &bf), "got %T", err)
		assert.Equal(t, 0, bf.StatusCode)
		assert.Empty(t, bf.Cause)
		assert.Error(t, bf.Unwrap())
	})

	t.Run("missing driver", func(t *testing.T) {
		api := newFakeAPI(t)
		api.entry = `<api version="1.0"><link rel="images" href="{base}/images"/></api>`
		_, err := cloudclient.New(context.Background(), cloudclient.Config{
			BaseURL:  api.base(),
			Username: "mockuser",
			Password: "mockpassword",
		})
		var bf *cloudclient.BackendFailure
		require.True(t, errors.As(err, &bf), "got %T", err)
		assert.Equal(t, cloudclient.CauseInvalidEntryPoint, bf.Cause)
	})

	t.Run("wrong root", func(t *testing.T) {
		api := newFakeAPI(t)
		api.entry = `<images/>`
		_, err := cloudclient.New(context.Background(), cloudclient.Config{
			BaseURL:  api.base(),
			Username: "mockuser",
			Password: "mockpassword",
		})
		var bf *cloudclient.BackendFailure
		require.True(t, errors.As(err, &bf), "got %T", err)
		assert.Equal(t, cloudclient.CauseInvalidEntryPoint, bf.Cause)
	})

	t.Run("missing base url", func(t *testing.T) {
		_, err := cloudclient.New(context.Background(), cloudclient.Config{})
		assert.Error(t, err)
	})
}

func TestList_DocumentOrderAndFilters(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	instances, err := c.Accessor("instances")
	require.NoError(t, err)

	all, err := instances.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "inst0", all[0].ID)
	assert.Equal(t, "inst1", all[1].ID)
	assert.Equal(t, api.base()+"/instances/inst0", all[0].URI)

	stopped, err := instances.List(context.Background(), cloudclient.Filters{"state": "STOPPED"})
	require.NoError(t, err)
	require.Len(t, stopped, 1)
	assert.Equal(t, "inst1", stopped[0].ID)
	assert.Equal(t, "STOPPED", api.form("GET /api/instances")["state"])
}

func TestGet(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	instances, err := c.Accessor("instance")
	require.NoError(t, err)

	inst, err := instances.Get(context.Background(), "inst0")
	require.NoError(t, err)
	assert.Equal(t, "instances", inst.Relation())
	state, ok := inst.State()
	assert.True(t, ok)
	assert.Equal(t, "RUNNING", state)

	_, err = instances.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, cloudclient.IsNotFound(err))
	assert.ErrorIs(t, err, cloudclient.ErrNotFound)

	_, err = instances.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestGetByURL(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	instances, err := c.Accessor("instances")
	require.NoError(t, err)

	inst, err := instances.GetByURL(context.Background(), api.base()+"/instances/inst1")
	require.NoError(t, err)
	assert.Equal(t, "inst1", inst.ID)

	id, err := instances.IDFromURL("http://example.com/api/instances/inst7/")
	require.NoError(t, err)
	assert.Equal(t, "inst7", id)

	_, err = instances.GetByURL(context.Background(), api.base()+"/images/img1")
	assert.Error(t, err)
}

func TestMaterialize_DecisionTable(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	instances, _ := c.Accessor("instances")

	inst, err := instances.Get(context.Background(), "inst0")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "owner_id", "image", "realm", "state", "hardware_profile",
		"public_addresses", "private_addresses"}, inst.Names())

	image, ok := inst.Reference("image")
	require.True(t, ok)
	assert.Equal(t, "images", image.Relation)
	assert.Equal(t, "img1", image.ID)

	realm, ok := inst.Reference("realm")
	require.True(t, ok)
	assert.Equal(t, "us", realm.ID)
	assert.Len(t, inst.References(), 3)

	pub, ok := inst.Addresses("public_addresses")
	require.True(t, ok)
	assert.Equal(t, []string{"img1.inst0.public.com"}, pub)

	name, ok := inst.Attr("name")
	require.True(t, ok)
	assert.Equal(t, cloudclient.KindText, name.Kind())
	assert.Equal(t, "web-inst0", name.String())

	assert.Equal(t, []string{"reboot", "stop", "destroy"}, inst.AvailableActions())
	assert.Equal(t, api.base()+"/instances/inst0/stop", inst.ActionURLs()["stop"])
	stop, ok := inst.Action("stop")
	require.True(t, ok)
	assert.Equal(t, http.MethodPost, stop.Method)
}

func TestReference_Resolve(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	instances, _ := c.Accessor("instances")
	inst, err := instances.Get(context.Background(), "inst0")
	require.NoError(t, err)
	before := inst.Names()

	ref, ok := inst.Reference("image")
	require.True(t, ok)
	assert.Equal(t, 0, api.count("GET /api/images/img1"))

	image, err := ref.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "img1", image.ID)
	arch, ok := image.Text("architecture")
	assert.True(t, ok)
	assert.Equal(t, "x86_64", arch)
	assert.Equal(t, 1, api.count("GET /api/images/img1"))

	assert.Equal(t, before, inst.Names())
	again, _ := inst.Reference("image")
	assert.Same(t, ref, again)
}

func TestHardwareProfileProperties(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	instances, _ := c.Accessor("instances")
	inst, err := instances.Get(context.Background(), "inst0")
	require.NoError(t, err)

	ref, ok := inst.Reference("hardware_profile")
	require.True(t, ok)
	hwp, err := ref.Resolve(context.Background())
	require.NoError(t, err)

	memory, ok := hwp.Property("memory")
	require.True(t, ok)
	assert.Equal(t, cloudclient.PropertyRange, memory.Kind)
	assert.True(t, memory.Present())
	n, ok := memory.Number()
	assert.True(t, ok)
	assert.Equal(t, 2048.0, n)
	require.NotNil(t, memory.Range)
	assert.Equal(t, "512", memory.Range.From)
	assert.Equal(t, "8192", memory.Range.To)

	storage, ok := hwp.Property("storage")
	require.True(t, ok)
	assert.Equal(t, []string{"850", "1024"}, storage.Options)

	cpu, ok := hwp.Property("cpu")
	require.True(t, ok)
	assert.Equal(t, cloudclient.PropertyScalar, cpu.Kind)
	assert.Equal(t, "fixed", cpu.Declared)

	assert.Len(t, hwp.Properties(), 3)
}

func TestInvoke_RefetchesState(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	instances, _ := c.Accessor("instances")
	inst, err := instances.Get(context.Background(), "inst0")
	require.NoError(t, err)
	actionsBefore := inst.AvailableActions()

	require.NoError(t, inst.Invoke(context.Background(), "stop", nil))

	assert.Equal(t, 1, api.count("POST /api/instances/inst0/stop"))
	assert.Equal(t, 2, api.count("GET /api/instances/inst0"))

	state, ok := inst.State()
	assert.True(t, ok)
	assert.Equal(t, "STOPPED", state, "state comes from the re-read, not the action response")

	assert.Equal(t, actionsBefore, inst.AvailableActions())
	assert.False(t, inst.Gone())
}

func TestInvoke_FailureKeepsState(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	instances, _ := c.Accessor("instances")
	inst, err := instances.Get(context.Background(), "inst0")
	require.NoError(t, err)

	api.failWith("/api/instances/inst0/reboot", http.StatusInternalServerError)
	err = inst.Invoke(context.Background(), "reboot", nil)

	var bf *cloudclient.BackendFailure
	require.True(t, errors.As(err, &bf))
	assert.Equal(t, 500, bf.StatusCode)
	state, _ := inst.State()
	assert.Equal(t, "RUNNING", state)
	assert.Equal(t, 1, api.count("GET /api/instances/inst0"))
}

func TestInvoke_Unknown(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	instances, _ := c.Accessor("instances")
	inst, err := instances.Get(context.Background(), "inst0")
	require.NoError(t, err)

	err = inst.Invoke(context.Background(), "start", nil)
	assert.ErrorIs(t, err, cloudclient.ErrUnknownAction)
	assert.Equal(t, 0, api.count("POST /api/instances/inst0/start"))
}

func TestInvoke_GoneAfterDestroy(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)
	instances, _ := c.Accessor("instances")
	inst, err := instances.Get(context.Background(), "inst1")
	require.NoError(t, err)

	require.NoError(t, inst.Invoke(context.Background(), "destroy", nil))
	assert.True(t, inst.Gone())
	_, ok := inst.State()
	assert.False(t, ok)
}

func TestAttr_AbsentIsExplicit(t *testing.T) {
	api := newFakeAPI(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	c, err := cloudclient.New(context.Background(), cloudclient.Config{
		BaseURL:  api.base(),
		Username: "mockuser",
		Password: "mockpassword",
		Metrics:  m,
	})
	require.NoError(t, err)

	instances, _ := c.Accessor("instances")
	inst, err := instances.Get(context.Background(), "inst0")
	require.NoError(t, err)

	var v cloudclient.Value
	var ok bool
	assert.NotPanics(t, func() { v, ok = inst.Attr("launch_time") })
	assert.False(t, ok)
	assert.False(t, v.Present())
	assert.Equal(t, cloudclient.KindAbsent, v.Kind())
	assert.Nil(t, v.Interface())

	_, ok = inst.Number("launch_time")
	assert.False(t, ok)
	assert.False(t, inst.Has("launch_time"))

	assert.Equal(t, 2.0, counterValue(t, m.SchemaDegradations.WithLabelValues("instances")))
	assert.Equal(t, 2.0, counterValue(t, m.ClientRequests.WithLabelValues("GET", "2xx")))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestMaterialize_RoundTrip(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)

	el := xmldoc.New("instance").Set("id", "i-1").Set("href", "http://x/api/instances/i-1")
	el.TextChild("name", "db")
	el.TextChild("memory", "1024")
	el.TextChild("ratio", "0.75")
	el.TextChild("version", "1.2.3")
	el.TextChild("owner_id", "-1")
	el.TextChild("empty", "")
	el.Append(xmldoc.New("public_addresses").Append(
		xmldoc.New("address").SetText("10.0.0.1"),
		xmldoc.New("address").SetText("10.0.0.2"),
	))
	el.Append(xmldoc.New("property").Set("name", "cpu").Set("kind", "fixed").Set("value", "4"))
	el.Append(xmldoc.New("property").Set("name", "arch").Set("kind", "fixed").Set("value", "x86_64"))

	parsed, err := xmldoc.ParseBytes(el.Bytes())
	require.NoError(t, err)
	r, err := c.Materialize("instances", parsed)
	require.NoError(t, err)

	assert.Equal(t, "i-1", r.ID)
	assert.Equal(t, "http://x/api/instances/i-1", r.URI)

	tests := []struct {
		attr string
		kind cloudclient.Kind
		text string
		num  any
	}{
		{"name", cloudclient.KindText, "db", "db"},
		{"memory", cloudclient.KindNumber, "1024", 1024.0},
		{"ratio", cloudclient.KindNumber, "0.75", 0.75},
		{"version", cloudclient.KindText, "1.2.3", "1.2.3"},
		{"owner_id", cloudclient.KindText, "-1", "-1"},
		{"empty", cloudclient.KindText, "", ""},
	}
	for _, tt := range tests {
		v, ok := r.Attr(tt.attr)
		require.True(t, ok, tt.attr)
		assert.Equal(t, tt.kind, v.Kind(), tt.attr)
		assert.Equal(t, tt.text, v.String(), tt.attr)
		assert.Equal(t, tt.num, v.Interface(), tt.attr)
	}

	addrs, ok := r.Addresses("public_addresses")
	require.True(t, ok)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, addrs)

	cpu, ok := r.Property("cpu")
	require.True(t, ok)
	assert.Equal(t, 4.0, cpu.Value())
	arch, ok := r.Property("arch")
	require.True(t, ok)
	assert.Equal(t, "x86_64", arch.Value())
}

func TestActionDefaults(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)

	el, err := xmldoc.ParseBytes([]byte(`<instance id="i-1" href="/api/instances/i-1">
  <actions>
    <link rel="stop" method="POST" href="/api/instances/i-1/stop"/>
    <link rel="console" href="/api/instances/i-1/console"/>
    <link rel="start" method="post" href="/api/instances/i-1/start"/>
    <link rel="poke" method="TRACE" href="/api/instances/i-1/poke"/>
    <link rel="stop" method="DELETE" href="/api/instances/i-1/stop2"/>
    <link method="POST" href="/api/instances/i-1/noname"/>
  </actions>
</instance>`))
	require.NoError(t, err)

	r, err := c.Materialize("instances", el)
	require.NoError(t, err)
	assert.Equal(t, []string{"stop", "console", "start"}, r.AvailableActions())

	console, _ := r.Action("console")
	assert.Equal(t, http.MethodGet, console.Method)
	start, _ := r.Action("start")
	assert.Equal(t, http.MethodPost, start.Method)
	assert.Equal(t, "/api/instances/i-1/stop", r.ActionURLs()["stop"])
	assert.Empty(t, r.Names())
}

func TestInstanceStates(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)

	m, err := c.InstanceStates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "start", m.Start())
	assert.Equal(t, []string{"finish"}, m.Terminals())
	assert.ElementsMatch(t, []string{"reboot", "stop"}, m.ActionsAvailableFrom("running").Sorted())

	pending, ok, err := c.InstanceState(context.Background(), "pending")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, pending.Transitions, 1)
	assert.True(t, pending.Transitions[0].IsAutomatic())

	rendered := cloudclient.StatesDocument(m)
	again, err := cloudclient.ParseStates(rendered)
	require.NoError(t, err)
	assert.Equal(t, m.Rules(), again.Rules())
}

func TestValidCredentials(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)

	ok, err := c.ValidCredentials(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", api.form("GET /api")["force_auth"])
}

func TestCreateInstance(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)

	inst, err := c.CreateInstance(context.Background(), "img1", cloudclient.InstanceOptions{
		Name:             "web",
		RealmID:          "us",
		HardwareProfile:  "m1-large",
		ProfileOverrides: map[string]string{"memory": "4096"},
		KeyName:          "k1",
	})
	require.NoError(t, err)
	assert.Equal(t, "inst2", inst.ID)

	form := api.form("POST /api/instances")
	assert.Equal(t, "img1", form["image_id"])
	assert.Equal(t, "web", form["name"])
	assert.Equal(t, "us", form["realm_id"])
	assert.Equal(t, "m1-large", form["hwp_id"])
	assert.Equal(t, "4096", form["hwp_memory"])
	assert.Equal(t, "k1", form["keyname"])
	_, hasUserData := form["user_data"]
	assert.False(t, hasUserData)

	_, err = c.CreateInstance(context.Background(), "", cloudclient.InstanceOptions{})
	require.Error(t, err)
	assert.True(t, cloudclient.IsValidationFailure(err))
}

func TestCreateAndDestroyKey(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)

	key, err := c.CreateKey(context.Background(), "deploy")
	require.NoError(t, err)
	assert.Equal(t, "deploy", key.ID)
	fp, _ := key.Text("fingerprint")
	assert.Equal(t, "aa:bb", fp)

	require.NoError(t, c.Destroy(context.Background(), "keys", "deploy"))
	assert.Equal(t, 1, api.count("DELETE /api/keys/deploy"))

	err = c.Destroy(context.Background(), "buckets", "b1")
	assert.ErrorIs(t, err, cloudclient.ErrUnknownRelation)
}
