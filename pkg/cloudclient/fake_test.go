package cloudclient_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/artpar/cloudgate/pkg/cloudclient"
	"github.com/stretchr/testify/require"
)

const defaultEntry = `<?xml version="1.0" encoding="UTF-8"?>
<api driver="mock" version="1.0">
  <link rel="hardware_profiles" href="{base}/hardware_profiles"/>
  <link rel="realms" href="{base}/realms"/>
  <link rel="images" href="{base}/images"/>
  <link rel="instance_states" href="{base}/instance_states"/>
  <link rel="instances" href="{base}/instances">
    <feature name="user_name"/>
    <feature name="authentication_key"/>
  </link>
  <link rel="keys" href="{base}/keys"/>
</api>`

// fakeAPI is a scripted XML endpoint that records every request it serves.
type fakeAPI struct {
	srv   *httptest.Server
	entry string

	mu     sync.Mutex
	calls  []string
	forms  map[string]map[string]string
	states map[string]string
	fail   map[string]int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		entry:  defaultEntry,
		forms:  make(map[string]map[string]string),
		states: map[string]string{"inst0": "RUNNING", "inst1": "STOPPED"},
		fail:   make(map[string]int),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) base() string {
	return f.srv.URL + "/api"
}

func (f *fakeAPI) client(t *testing.T) *cloudclient.Client {
	t.Helper()
	c, err := cloudclient.New(context.Background(), cloudclient.Config{
		BaseURL:  f.base(),
		Username: "mockuser",
		Password: "mockpassword",
	})
	require.NoError(t, err)
	return c
}

func (f *fakeAPI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) form(call string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[call]
}

func (f *fakeAPI) failWith(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[path] = status
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	call := r.Method + " " + r.URL.Path
	_ = r.ParseForm()

	f.mu.Lock()
	f.calls = append(f.calls, call)
	form := make(map[string]string)
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}
	f.forms[call] = form
	status, failing := f.fail[r.URL.Path]
	f.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if !ok || user != "mockuser" || pass != "mockpassword" {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "Authentication failed")
		return
	}
	if failing {
		writeError(w, status, "backend_error", "scripted failure")
		return
	}

	base := "http://" + r.Host + "/api"
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.URL.Path == "/api" || r.URL.Path == "/api/":
		writeXML(w, http.StatusOK, strings.ReplaceAll(f.entry, "{base}", base))

	case r.Method == http.MethodGet && r.URL.Path == "/api/instances":
		var b strings.Builder
		b.WriteString("<instances>")
		for _, id := range []string{"inst0", "inst1"} {
			st := f.state(id)
			if st == "" {
				continue
			}
			if want := r.URL.Query().Get("state"); want != "" && want != st {
				continue
			}
			b.WriteString(instanceXML(base, id, st))
		}
		b.WriteString("</instances>")
		writeXML(w, http.StatusOK, b.String())

	case r.Method == http.MethodGet && len(parts) == 3 && parts[1] == "instances":
		st := f.state(parts[2])
		if st == "" {
			writeError(w, http.StatusNotFound, "not_found", "instance not found")
			return
		}
		writeXML(w, http.StatusOK, instanceXML(base, parts[2], st))

	case r.Method == http.MethodPost && len(parts) == 4 && parts[1] == "instances":
		id, action := parts[2], parts[3]
		switch action {
		case "stop":
			f.setState(id, "STOPPED")
		case "start", "reboot":
			f.setState(id, "RUNNING")
		case "destroy":
			f.setState(id, "")
		}
		// The action response deliberately carries a bogus state.
		writeXML(w, http.StatusOK, instanceXML(base, id, "BOGUS"))

	case r.Method == http.MethodPost && r.URL.Path == "/api/instances":
		if r.Form.Get("image_id") == "" {
			writeError(w, http.StatusBadRequest, "validation_failure", "image_id is required")
			return
		}
		f.setState("inst2", "PENDING")
		writeXML(w, http.StatusCreated, instanceXML(base, "inst2", "PENDING"))

	case r.Method == http.MethodGet && r.URL.Path == "/api/images/img1":
		writeXML(w, http.StatusOK, `<image href="`+base+`/images/img1" id="img1">
  <name>Fedora 10</name>
  <owner_id>fedoraproject</owner_id>
  <architecture>x86_64</architecture>
</image>`)

	case r.Method == http.MethodGet && r.URL.Path == "/api/hardware_profiles/m1-large":
		writeXML(w, http.StatusOK, `<hardware_profile href="`+base+`/hardware_profiles/m1-large" id="m1-large">
  <name>m1-large</name>
  <property kind="range" name="memory" unit="MB" value="2048">
    <range first="512" last="8192"/>
  </property>
  <property kind="enum" name="storage" unit="GB" value="850">
    <enum>
      <entry value="850"/>
      <entry value="1024"/>
    </enum>
  </property>
  <property kind="fixed" name="cpu" unit="count" value="2"/>
</hardware_profile>`)

	case r.Method == http.MethodGet && r.URL.Path == "/api/instance_states":
		writeXML(w, http.StatusOK, `<states>
  <state name="start"><transition action="create" to="pending"/></state>
  <state name="pending"><transition auto="true" to="running"/></state>
  <state name="running">
    <transition action="reboot" to="running"/>
    <transition action="stop" to="stopped"/>
  </state>
  <state name="stopped">
    <transition action="start" to="running"/>
    <transition action="destroy" to="finish"/>
  </state>
  <state name="finish"/>
</states>`)

	case r.Method == http.MethodPost && r.URL.Path == "/api/keys":
		name := r.Form.Get("name")
		writeXML(w, http.StatusCreated, `<key href="`+base+`/keys/`+name+`" id="`+name+`"><fingerprint>aa:bb</fingerprint></key>`)

	case r.Method == http.MethodDelete && len(parts) == 3 && parts[1] == "keys":
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "not_found", "no route for "+call)
	}
}

func (f *fakeAPI) state(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[id]
}

func (f *fakeAPI) setState(id, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if state == "" {
		delete(f.states, id)
		return
	}
	f.states[id] = state
}

func instanceXML(base, id, state string) string {
	return fmt.Sprintf(`<instance href="%[1]s/instances/%[2]s" id="%[2]s">
  <name>web-%[2]s</name>
  <owner_id>mockuser</owner_id>
  <image href="%[1]s/images/img1" id="img1"/>
  <realm href="%[1]s/realms/us" id="us"/>
  <state>%[3]s</state>
  <hardware_profile href="%[1]s/hardware_profiles/m1-large" id="m1-large"/>
  <actions>
    <link rel="reboot" method="post" href="%[1]s/instances/%[2]s/reboot"/>
    <link rel="stop" method="post" href="%[1]s/instances/%[2]s/stop"/>
    <link rel="destroy" method="post" href="%[1]s/instances/%[2]s/destroy"/>
  </actions>
  <public_addresses><address>img1.%[2]s.public.com</address></public_addresses>
  <private_addresses><address>img1.%[2]s.private.com</address></private_addresses>
</instance>`, base, id, state)
}

func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeXML(w, status, fmt.Sprintf(`<error status="%d" url="/api">
  <kind>%s</kind>
  <message>%s</message>
  <backend driver="mock" code="%d"/>
</error>`, status, kind, message, status))
}
