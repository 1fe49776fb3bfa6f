package authz

import (
	"github.com/modeltrack/modeltrack/pkg/authstore"
	"github.com/modeltrack/modeltrack/pkg/tracking"
)

// fakePermStore is an in-memory PermissionStore. Grants are keyed by
// "resource/username"; grantErr, when set, is returned from every grant
// lookup to exercise failure propagation.
type fakePermStore struct {
	users       map[string]*authstore.User
	passwords   map[string]string
	expGrants   map[string]string
	modelGrants map[string]string
	grantErr    error
}

func newFakePermStore() *fakePermStore {
	return &fakePermStore{
		users:       make(map[string]*authstore.User),
		passwords:   make(map[string]string),
		expGrants:   make(map[string]string),
		modelGrants: make(map[string]string),
	}
}

func (f *fakePermStore) addUser(username, password string, admin bool) {
	f.users[username] = &authstore.User{Username: username, IsAdmin: admin}
	f.passwords[username] = password
}

func (f *fakePermStore) Authenticate(username, password string) (bool, error) {
	pw, ok := f.passwords[username]
	return ok && pw == password, nil
}

func (f *fakePermStore) GetUser(username string) (*authstore.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, authstore.ErrNotFound
	}
	return user, nil
}

func (f *fakePermStore) GetExperimentPermission(experimentID, username string) (*authstore.ExperimentPermission, error) {
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	perm, ok := f.expGrants[experimentID+"/"+username]
	if !ok {
		return nil, authstore.ErrNotFound
	}
	return &authstore.ExperimentPermission{ExperimentID: experimentID, Username: username, Permission: perm}, nil
}

func (f *fakePermStore) GetRegisteredModelPermission(name, username string) (*authstore.RegisteredModelPermission, error) {
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	perm, ok := f.modelGrants[name+"/"+username]
	if !ok {
		return nil, authstore.ErrNotFound
	}
	return &authstore.RegisteredModelPermission{Name: name, Username: username, Permission: perm}, nil
}

func (f *fakePermStore) ListExperimentPermissions(username string) ([]authstore.ExperimentPermission, error) {
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	var grants []authstore.ExperimentPermission
	for key, perm := range f.expGrants {
		id, user, _ := cutLast(key)
		if user == username {
			grants = append(grants, authstore.ExperimentPermission{ExperimentID: id, Username: user, Permission: perm})
		}
	}
	return grants, nil
}

func (f *fakePermStore) ListRegisteredModelPermissions(username string) ([]authstore.RegisteredModelPermission, error) {
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	var grants []authstore.RegisteredModelPermission
	for key, perm := range f.modelGrants {
		name, user, _ := cutLast(key)
		if user == username {
			grants = append(grants, authstore.RegisteredModelPermission{Name: name, Username: user, Permission: perm})
		}
	}
	return grants, nil
}

func (f *fakePermStore) CreateExperimentPermission(experimentID, username, permission string) (*authstore.ExperimentPermission, error) {
	key := experimentID + "/" + username
	if _, ok := f.expGrants[key]; ok {
		return nil, authstore.ErrExists
	}
	f.expGrants[key] = permission
	return &authstore.ExperimentPermission{ExperimentID: experimentID, Username: username, Permission: permission}, nil
}

func (f *fakePermStore) CreateRegisteredModelPermission(name, username, permission string) (*authstore.RegisteredModelPermission, error) {
	key := name + "/" + username
	if _, ok := f.modelGrants[key]; ok {
		return nil, authstore.ErrExists
	}
	f.modelGrants[key] = permission
	return &authstore.RegisteredModelPermission{Name: name, Username: username, Permission: permission}, nil
}

func cutLast(key string) (string, string, bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[:i], key[i+1:], true
		}
	}
	return key, "", false
}

// fakeTrackingStore serves runs, name lookups, and offset-paged searches
// from in-memory slices.
type fakeTrackingStore struct {
	runs        map[string]*tracking.Run
	byName      map[string]*tracking.Experiment
	experiments []tracking.Experiment
	models      []tracking.RegisteredModel
	searchCalls int
}

func newFakeTrackingStore() *fakeTrackingStore {
	return &fakeTrackingStore{
		runs:   make(map[string]*tracking.Run),
		byName: make(map[string]*tracking.Experiment),
	}
}

func (f *fakeTrackingStore) GetRun(id string) (*tracking.Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, tracking.ErrNotFound
	}
	return run, nil
}

func (f *fakeTrackingStore) GetExperimentByName(name string) (*tracking.Experiment, error) {
	exp, ok := f.byName[name]
	if !ok {
		return nil, tracking.ErrNotFound
	}
	return exp, nil
}

func (f *fakeTrackingStore) SearchExperiments(_, _ string, maxResults int, pageToken string) ([]tracking.Experiment, string, error) {
	f.searchCalls++
	offset, err := tracking.DecodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	return pageOf(f.experiments, offset, maxResults)
}

func (f *fakeTrackingStore) SearchRegisteredModels(_, _ string, maxResults int, pageToken string) ([]tracking.RegisteredModel, string, error) {
	f.searchCalls++
	offset, err := tracking.DecodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	return pageOf(f.models, offset, maxResults)
}

func pageOf[T any](items []T, offset, maxResults int) ([]T, string, error) {
	if offset >= len(items) {
		return nil, "", nil
	}
	end := offset + maxResults
	token := ""
	if end < len(items) {
		token = tracking.EncodePageToken(end)
	} else {
		end = len(items)
	}
	page := make([]T, end-offset)
	copy(page, items[offset:end])
	return page, token, nil
}
