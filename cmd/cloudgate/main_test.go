package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/cloudgate/bootstrap"
	"github.com/artpar/cloudgate/config"
	"github.com/artpar/cloudgate/pkg/cloudclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()
	cfg, err := config.Parse([]byte("{}"))
	require.NoError(t, err)

	a, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Registry:  prometheus.NewRegistry(),
		LogOutput: io.Discard,
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Shutdown() })

	srv := httptest.NewServer(a.HTTPServer.Handler)
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

// run executes the root command with fresh flag state.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	clientURL, clientUser, clientPassword, clientTimeout, clientVerbose = "", "", "", 0, false
	listFilters, actionParams, instanceHWP = nil, nil, nil
	instanceImage, volumeCapacity, volumeRealm = "", "", ""
	instanceOpts = cloudclient.InstanceOptions{}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func client(url string, args ...string) []string {
	return append(args, "--url", url, "--user", "mockuser", "--password", "mockpassword")
}

func TestAPI(t *testing.T) {
	url := startServer(t)

	out, err := run(t, client(url, "api")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Driver:  mock")
	assert.Contains(t, out, "Version: 1.0")
	assert.Contains(t, out, "instances")
	assert.Contains(t, out, "hardware_profiles")
}

func TestList(t *testing.T) {
	url := startServer(t)

	out, err := run(t, client(url, "list", "instances")...)
	require.NoError(t, err)
	assert.Contains(t, out, "inst0")
	assert.Contains(t, out, "inst1")
	assert.NotContains(t, out, "inst2", "other owners' instances are hidden")

	out, err = run(t, client(url, "list", "instances", "--filter", "state=STOPPED")...)
	require.NoError(t, err)
	assert.Contains(t, out, "inst1")
	assert.NotContains(t, out, "inst0")

	_, err = run(t, client(url, "list", "instances", "--filter", "broken")...)
	assert.Error(t, err)

	_, err = run(t, client(url, "list", "flavors")...)
	assert.Error(t, err)
}

func TestShow(t *testing.T) {
	url := startServer(t)

	out, err := run(t, client(url, "show", "hardware_profiles", "m1-large")...)
	require.NoError(t, err)
	assert.Contains(t, out, "id:")
	assert.Contains(t, out, "m1-large")
	assert.Contains(t, out, "(512..8192)")

	out, err = run(t, client(url, "show", "instances", "inst0")...)
	require.NoError(t, err)
	assert.Contains(t, out, "actions:")
	assert.Contains(t, out, "stop")
}

func TestActionAndDestroy(t *testing.T) {
	url := startServer(t)

	out, err := run(t, client(url, "action", "instances", "inst0", "stop")...)
	require.NoError(t, err)
	assert.Contains(t, out, "instance inst0: STOPPED")

	_, err = run(t, client(url, "action", "instances", "inst0", "reboot")...)
	assert.Error(t, err, "reboot is not advertised for a stopped instance")

	out, err = run(t, client(url, "action", "instances", "inst0", "destroy")...)
	require.NoError(t, err)
	assert.Contains(t, out, "instance inst0 is gone")

	out, err = run(t, client(url, "destroy", "storage_volumes", "vol2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Destroyed storage_volume vol2")
}

func TestCreate(t *testing.T) {
	url := startServer(t)

	out, err := run(t, client(url, "create", "instance", "--image", "img1", "--profile", "m1-large", "--hwp", "memory=4096")...)
	require.NoError(t, err)
	assert.Contains(t, out, "inst3")
	assert.Contains(t, out, "RUNNING")

	out, err = run(t, client(url, "create", "key", "deploy")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Created key")
	assert.Contains(t, out, "PRIVATE KEY")

	out, err = run(t, client(url, "create", "volume", "--capacity", "10", "--realm", "us")...)
	require.NoError(t, err)
	assert.Contains(t, out, "AVAILABLE")
}

func TestStates(t *testing.T) {
	url := startServer(t)

	out, err := run(t, client(url, "states")...)
	require.NoError(t, err)
	assert.Contains(t, out, "start (start)")
	assert.Contains(t, out, "automatic")
	assert.Contains(t, out, "terminal")
}

func TestDocs(t *testing.T) {
	url := startServer(t)

	out, err := run(t, client(url, "docs", "instances")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Operations: index, show, create, destroy, reboot, start, stop")

	out, err = run(t, client(url, "docs", "realms", "index")...)
	require.NoError(t, err)
	assert.Contains(t, out, "GET "+url+"/realms")
	assert.Contains(t, out, "i386|x86_64")

	_, err = run(t, client(url, "docs", "instances", "teleport")...)
	assert.Error(t, err)
}

func TestWrongPassword(t *testing.T) {
	url := startServer(t)

	_, err := run(t, "list", "realms", "--url", url, "--user", "mockuser", "--password", "nope")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: sqlite\n  dsn: "+filepath.Join(t.TempDir(), "v.db")+"\n"), 0644))

	out, err := run(t, "validate", "--config", path, "--check-database")
	require.NoError(t, err)
	assert.Contains(t, out, "Database writable")
	assert.Contains(t, out, "Configuration is valid")

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 0x\n"), 0644))
	_, err = run(t, "validate", "--config", path)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "cloudgate dev"))
}

func TestParseKeyValues(t *testing.T) {
	params, err := parseKeyValues([]string{"a=1", "b=x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, "1", params["a"])
	assert.Equal(t, "x=y", params["b"])
	assert.Equal(t, "", params["c"])

	_, err = parseKeyValues([]string{"=v"})
	assert.Error(t, err)
}
