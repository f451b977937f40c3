package http

import (
	"net/http"
	"sort"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/domain/lifecycle"
	"github.com/artpar/cloudgate/pkg/xmldoc"
	"github.com/go-chi/chi/v5"
)

// collectionDoc describes one collection served under /api/docs.
type collectionDoc struct {
	name        string
	description string
	operations  []operationDoc
}

type operationDoc struct {
	name        string
	method      string
	member      bool
	description string
	params      []paramDoc
}

type paramDoc struct {
	name     string
	class    string
	required bool
	values   []string
}

func requiredParam(name string) paramDoc {
	return paramDoc{name: name, class: "string", required: true}
}

func optionalParam(name string, values ...string) paramDoc {
	return paramDoc{name: name, class: "string", values: values}
}

func listOp(description string, filters ...paramDoc) operationDoc {
	return operationDoc{name: "index", method: http.MethodGet, description: description, params: filters}
}

func showOp(description string) operationDoc {
	return operationDoc{name: "show", method: http.MethodGet, member: true, description: description,
		params: []paramDoc{requiredParam("id")}}
}

func destroyOp(description string) operationDoc {
	return operationDoc{name: "destroy", method: http.MethodDelete, member: true, description: description,
		params: []paramDoc{requiredParam("id")}}
}

var architectures = []string{"i386", "x86_64"}

var apiDocs = []collectionDoc{
	{
		name: "realms",
		description: "A realm is a boundary around resources inside one provider, such as a " +
			"datacenter or a pool of hosts. Resources that work together may have to share a realm.",
		operations: []operationDoc{
			listOp("List the realms, optionally filtered by architecture.",
				optionalParam("id"), optionalParam("architecture", architectures...)),
			showOp("Show the realm with the given id."),
		},
	},
	{
		name: "images",
		description: "An image is the template a machine is launched from. " +
			"Images cannot run themselves; instances are created from them.",
		operations: []operationDoc{
			listOp("List the images available to the caller, optionally filtered by owner or architecture.",
				optionalParam("id"), optionalParam("owner_id"), optionalParam("architecture", architectures...)),
			showOp("Show the image with the given id."),
		},
	},
	{
		name:        "instance_states",
		description: "The states an instance moves through and the actions that move it between them.",
		operations: []operationDoc{
			listOp("List every state with its outgoing transitions."),
		},
	},
	{
		name: "instances",
		description: "An instance is a running or stopped machine launched from an image. " +
			"Its actions depend on its current state.",
		operations: []operationDoc{
			listOp("List the caller's instances.", optionalParam("id"), optionalParam("state")),
			showOp("Show the instance with the given id."),
			{
				name: "create", method: http.MethodPost, description: "Launch a new instance.",
				params: []paramDoc{requiredParam("image_id"), optionalParam("realm_id")},
			},
			destroyOp("Destroy a stopped instance."),
		},
	},
	{
		name: "hardware_profiles",
		description: "A hardware profile is a machine shape: memory, storage, CPU and architecture. " +
			"Properties may be fixed, a range, or a set of choices.",
		operations: []operationDoc{
			listOp("List the hardware profiles.", optionalParam("id"), optionalParam("architecture", architectures...)),
			showOp("Show the hardware profile with the given id."),
		},
	},
	{
		name:        "storage_snapshots",
		description: "Point-in-time copies of storage volumes.",
		operations: []operationDoc{
			listOp("List the caller's storage snapshots.", optionalParam("id")),
			showOp("Show the storage snapshot with the given id."),
		},
	},
	{
		name:        "storage_volumes",
		description: "Block storage that can be attached to instances.",
		operations: []operationDoc{
			listOp("List the caller's storage volumes.", optionalParam("id")),
			showOp("Show the storage volume with the given id."),
			{
				name: "create", method: http.MethodPost, description: "Create a storage volume.",
				params: []paramDoc{requiredParam("capacity"), optionalParam("realm_id")},
			},
			destroyOp("Destroy a storage volume."),
		},
	},
	{
		name:        "keys",
		description: "Credentials used to log in to instances.",
		operations: []operationDoc{
			listOp("List the caller's keys.", optionalParam("id")),
			showOp("Show the key with the given id."),
			{
				name: "create", method: http.MethodPost,
				description: "Create a key pair. The private key is only returned in this response.",
				params:      []paramDoc{requiredParam("name")},
			},
			destroyOp("Destroy a key."),
		},
	},
}

var actionDescriptions = map[string]string{
	"reboot": "Reboot a running instance.",
	"start":  "Start a stopped instance.",
	"stop":   "Stop a running instance.",
}

func findDoc(name string) (collectionDoc, bool) {
	for _, d := range apiDocs {
		if d.name == name {
			return d, true
		}
	}
	return collectionDoc{}, false
}

// instanceDoc adds the lifecycle actions and the feature-gated create
// parameters of the backend to the instances documentation.
func instanceDoc(base collectionDoc, m *lifecycle.Machine, params []string) collectionDoc {
	doc := collectionDoc{name: base.name, description: base.description}
	for _, op := range base.operations {
		if op.name == "create" {
			op.params = append([]paramDoc(nil), op.params...)
			for _, p := range params {
				op.params = append(op.params, optionalParam(p))
			}
		}
		doc.operations = append(doc.operations, op)
	}

	seen := make(map[string]bool)
	for _, r := range m.Rules() {
		if r.Action != "" {
			seen[r.Action] = true
		}
	}
	actions := make([]string, 0, len(seen))
	for a := range seen {
		if a != "create" && a != "destroy" {
			actions = append(actions, a)
		}
	}
	sort.Strings(actions)

	for _, a := range actions {
		desc, ok := actionDescriptions[a]
		if !ok {
			desc = "Apply the " + a + " action to an instance."
		}
		doc.operations = append(doc.operations, operationDoc{
			name: a, method: http.MethodPost, member: true, description: desc,
			params: []paramDoc{requiredParam("id")},
		})
	}
	return doc
}

// docsIndex lists the documented collections the backend supports.
func (h *Handler) docsIndex(w http.ResponseWriter, r *http.Request) {
	base := h.baseURL(r)
	root := xmldoc.New("docs")
	for _, name := range h.service.Collections() {
		d, ok := findDoc(name)
		if !ok {
			continue
		}
		root.Append(xmldoc.New("collection").
			Set("name", d.name).
			Set("href", base+"/docs/"+d.name).
			TextChild("description", d.description))
	}
	h.writeXML(w, http.StatusOK, root)
}

// docsCollection describes one collection and its operations.
func (h *Handler) docsCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	d, ok := findDoc(name)
	if !ok {
		h.writeError(w, r, cloud.ErrNotFound)
		return
	}
	if !h.service.Supports(name) {
		h.writeError(w, r, cloud.ErrUnsupported)
		return
	}
	if name == "instances" {
		d = instanceDoc(d, h.service.Lifecycle(), h.service.InstanceParams())
	}
	h.writeXML(w, http.StatusOK, h.renderer(r).docs(d))
}

// docs renders <docs><collection><description/><operations>...</operations></collection></docs>.
func (rd renderer) docs(d collectionDoc) *xmldoc.Element {
	collURL := rd.base + "/" + d.name
	ops := xmldoc.New("operations")
	for _, op := range d.operations {
		href := collURL
		if op.member {
			href += "/:id"
		}
		if op.member && op.method == http.MethodPost {
			href += "/" + op.name
		}
		el := xmldoc.New("operation").
			Set("name", op.name).
			Set("method", op.method).
			Set("href", href).
			TextChild("description", op.description)
		for _, p := range op.params {
			kind := "optional"
			if p.required {
				kind = "required"
			}
			pel := xmldoc.New("parameter").Set("name", p.name).Set("type", kind).TextChild("class", p.class)
			for _, v := range p.values {
				pel.TextChild("value", v)
			}
			el.Append(pel)
		}
		ops.Append(el)
	}

	coll := xmldoc.New("collection").
		Set("name", d.name).
		Set("href", collURL).
		TextChild("description", d.description).
		Append(ops)
	return xmldoc.New("docs").Append(coll)
}
