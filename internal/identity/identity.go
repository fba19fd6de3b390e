// Package identity tracks the simulated users and groups and turns a user
// name into the credentials the file system checks against.
package identity

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mako10k/vosh/internal/vfs"
)

const DefaultUser = "Guest"

var (
	ErrUnknownUser  = errors.New("no such user")
	ErrUnknownGroup = errors.New("no such group")
)

type User struct {
	Name         string
	PrimaryGroup string
}

// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]User
	groups map[string]map[string]struct{}
}

// NewRegistry returns a registry holding root and the default guest user,
// each with a primary group of the same name.
func NewRegistry() *Registry {
	r := &Registry{
		users:  make(map[string]User),
		groups: make(map[string]map[string]struct{}),
	}
	r.AddUser(vfs.RootUser, vfs.RootUser)
	r.AddUser(DefaultUser, DefaultUser)
	return r
}

// AddUser registers name with primary group (defaulting to name), creating
// the group when needed.
func (r *Registry) AddUser(name, primary string) {
	if primary == "" {
		primary = name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[name] = User{Name: name, PrimaryGroup: primary}
	r.addMember(primary, name)
}

func (r *Registry) AddGroup(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[name]; !ok {
		r.groups[name] = make(map[string]struct{})
	}
}

// AddMember adds user to group, creating the group when needed.
func (r *Registry) AddMember(group, user string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, user)
	}
	r.addMember(group, user)
	return nil
}

func (r *Registry) addMember(group, user string) {
	members, ok := r.groups[group]
	if !ok {
		members = make(map[string]struct{})
		r.groups[group] = members
	}
	members[user] = struct{}{}
}

func (r *Registry) Lookup(name string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[name]
	return u, ok
}

func (r *Registry) GroupExists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[name]
	return ok
}

// GroupsFor lists the groups of user, primary group first, the rest sorted.
func (r *Registry) GroupsFor(name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groupsFor(name)
}

func (r *Registry) groupsFor(name string) ([]string, error) {
	u, ok := r.users[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, name)
	}
	var others []string
	for g, members := range r.groups {
		if _, in := members[name]; in && g != u.PrimaryGroup {
			others = append(others, g)
		}
	}
	sort.Strings(others)
	return append([]string{u.PrimaryGroup}, others...), nil
}

// Cred builds the file system credentials for user.
func (r *Registry) Cred(name string) (vfs.Cred, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	groups, err := r.groupsFor(name)
	if err != nil {
		return vfs.Cred{}, err
	}
	return vfs.Cred{User: name, Group: groups[0], Groups: groups}, nil
}

// Users returns every registered user sorted by name.
func (r *Registry) Users() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Homes lists the home directories a fresh file system should contain.
func (r *Registry) Homes() []vfs.Home {
	users := r.Users()
	out := make([]vfs.Home, 0, len(users))
	for _, u := range users {
		out = append(out, vfs.Home{User: u.Name, Group: u.PrimaryGroup})
	}
	return out
}
