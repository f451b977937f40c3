package http

import (
	"net/http"
	"strings"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/pkg/cloudclient"
	"github.com/artpar/cloudgate/pkg/xmldoc"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) renderer(r *http.Request) renderer {
	return renderer{base: h.baseURL(r)}
}

// entryPoint serves the API root listing every supported collection.
func (h *Handler) entryPoint(w http.ResponseWriter, r *http.Request) {
	doc := h.renderer(r).entryPoint(h.service.DriverName(), h.service.Collections(), h.service.Features)
	h.writeXML(w, http.StatusOK, doc)
}

// instanceStates serves the lifecycle of the backend.
func (h *Handler) instanceStates(w http.ResponseWriter, r *http.Request) {
	if !h.service.Supports("instance_states") {
		h.writeError(w, r, cloud.ErrUnsupported)
		return
	}
	h.writeXML(w, http.StatusOK, cloudclient.StatesDocument(h.service.Lifecycle()))
}

// filterFrom takes the first value of every query parameter.
func filterFrom(r *http.Request) cloud.Filter {
	f := make(cloud.Filter)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			f[k] = v[0]
		}
	}
	return f
}

// collectionDocs lists a collection as rendered elements.
func (h *Handler) collectionDocs(r *http.Request, collection string, f cloud.Filter) ([]*xmldoc.Element, error) {
	ctx := r.Context()
	creds := credentialsFrom(ctx)
	rd := h.renderer(r)

	var docs []*xmldoc.Element
	switch collection {
	case "realms":
		list, err := h.service.Realms(ctx, creds, f)
		if err != nil {
			return nil, err
		}
		for _, v := range list {
			docs = append(docs, rd.realm(v))
		}
	case "images":
		list, err := h.service.Images(ctx, creds, f)
		if err != nil {
			return nil, err
		}
		for _, v := range list {
			docs = append(docs, rd.image(v))
		}
	case "hardware_profiles":
		list, err := h.service.HardwareProfiles(ctx, creds, f)
		if err != nil {
			return nil, err
		}
		for _, v := range list {
			docs = append(docs, rd.hardwareProfile(v))
		}
	case "instances":
		list, err := h.service.Instances(ctx, creds, f)
		if err != nil {
			return nil, err
		}
		profiles := h.profiles(r, creds)
		for _, v := range list {
			docs = append(docs, rd.instance(v, profiles[v.Profile.ProfileID]))
		}
	case "keys":
		list, err := h.service.Keys(ctx, creds, f)
		if err != nil {
			return nil, err
		}
		for _, v := range list {
			docs = append(docs, rd.key(v))
		}
	case "storage_volumes":
		list, err := h.service.StorageVolumes(ctx, creds, f)
		if err != nil {
			return nil, err
		}
		for _, v := range list {
			docs = append(docs, rd.storageVolume(v))
		}
	case "storage_snapshots":
		list, err := h.service.StorageSnapshots(ctx, creds, f)
		if err != nil {
			return nil, err
		}
		for _, v := range list {
			docs = append(docs, rd.storageSnapshot(v))
		}
	default:
		return nil, cloud.ErrNotFound
	}
	return docs, nil
}

// profiles indexes hardware profiles by id for instance rendering.
// Lookup failures only drop the property details.
func (h *Handler) profiles(r *http.Request, creds cloud.Credentials) map[string]*cloud.HardwareProfile {
	out := make(map[string]*cloud.HardwareProfile)
	if !h.service.Supports("hardware_profiles") {
		return out
	}
	list, err := h.service.HardwareProfiles(r.Context(), creds, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("hardware profiles unavailable for instance rendering")
		return out
	}
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out
}

// list serves GET /api/{collection}.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	docs, err := h.collectionDocs(r, collection, filterFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeXML(w, http.StatusOK, xmldoc.New(collection).Append(docs...))
}

// show serves GET /api/{collection}/{id}.
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	docs, err := h.collectionDocs(r, chi.URLParam(r, "collection"), cloud.Filter{"id": chi.URLParam(r, "id")})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(docs) == 0 {
		h.writeError(w, r, cloud.ErrNotFound)
		return
	}
	h.writeXML(w, http.StatusOK, docs[0])
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, cloud.Invalid("", "malformed form body: %v", err))
		return false
	}
	return true
}

// instanceRequest reads the creation parameters. hwp_<name> overrides one
// property of the selected hardware profile.
func instanceRequest(r *http.Request) cloud.InstanceRequest {
	req := cloud.InstanceRequest{
		ImageID:       r.Form.Get("image_id"),
		Name:          r.Form.Get("name"),
		RealmID:       r.Form.Get("realm_id"),
		ProfileID:     r.Form.Get("hwp_id"),
		UserData:      r.Form.Get("user_data"),
		KeyName:       r.Form.Get("keyname"),
		SecurityGroup: r.Form.Get("security_group"),
	}
	for k := range r.Form {
		prop, ok := strings.CutPrefix(k, "hwp_")
		if !ok || prop == "id" || r.Form.Get(k) == "" {
			continue
		}
		if req.ProfileOverrides == nil {
			req.ProfileOverrides = make(map[string]string)
		}
		req.ProfileOverrides[prop] = r.Form.Get(k)
	}
	return req
}

// createInstance serves POST /api/instances.
func (h *Handler) createInstance(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	creds := credentialsFrom(r.Context())
	inst, err := h.service.CreateInstance(r.Context(), creds, instanceRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rd := h.renderer(r)
	w.Header().Set("Location", rd.href("instances", inst.ID))
	h.writeXML(w, http.StatusCreated, rd.instance(inst, h.profiles(r, creds)[inst.Profile.ProfileID]))
}

// instanceAction serves POST /api/instances/{id}/{action}.
func (h *Handler) instanceAction(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, chi.URLParam(r, "id"), chi.URLParam(r, "action"))
}

// destroyInstance serves DELETE /api/instances/{id}.
func (h *Handler) destroyInstance(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, chi.URLParam(r, "id"), "destroy")
}

func (h *Handler) applyAction(w http.ResponseWriter, r *http.Request, id, action string) {
	creds := credentialsFrom(r.Context())
	inst, exists, err := h.service.InstanceAction(r.Context(), creds, id, action)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeXML(w, http.StatusOK, h.renderer(r).instance(inst, h.profiles(r, creds)[inst.Profile.ProfileID]))
}

// createKey serves POST /api/keys.
func (h *Handler) createKey(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	k, err := h.service.CreateKey(r.Context(), credentialsFrom(r.Context()), r.Form.Get("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rd := h.renderer(r)
	w.Header().Set("Location", rd.href("keys", k.ID))
	h.writeXML(w, http.StatusCreated, rd.key(k))
}

// destroyKey serves DELETE /api/keys/{id}.
func (h *Handler) destroyKey(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DestroyKey(r.Context(), credentialsFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// createStorageVolume serves POST /api/storage_volumes.
func (h *Handler) createStorageVolume(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	req := cloud.VolumeRequest{Capacity: r.Form.Get("capacity"), RealmID: r.Form.Get("realm_id")}
	v, err := h.service.CreateStorageVolume(r.Context(), credentialsFrom(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rd := h.renderer(r)
	w.Header().Set("Location", rd.href("storage_volumes", v.ID))
	h.writeXML(w, http.StatusCreated, rd.storageVolume(v))
}

// destroyStorageVolume serves DELETE /api/storage_volumes/{id}.
func (h *Handler) destroyStorageVolume(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DestroyStorageVolume(r.Context(), credentialsFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
