package provider

import (
	"context"
	"sync"
)

type assignment struct {
	Scope            string
	PrincipalID      string
	RoleDefinitionID string
}

// Directory is an in-memory directory and resource authority. It backs dev
// mode and tests; production deployments point the adapters at the remote
// clients instead.
type Directory struct {
	mu          sync.Mutex
	groups      map[string]map[string]bool
	assignments map[string]assignment
}

// NewDirectory returns an empty in-memory directory.
func NewDirectory() *Directory {
	return &Directory{
		groups:      make(map[string]map[string]bool),
		assignments: make(map[string]assignment),
	}
}

func (d *Directory) AddMember(_ context.Context, groupID, principalID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	members, ok := d.groups[groupID]
	if !ok {
		members = make(map[string]bool)
		d.groups[groupID] = members
	}
	if members[principalID] {
		return ErrAlreadyMember
	}
	members[principalID] = true
	return nil
}

func (d *Directory) RemoveMember(_ context.Context, groupID, principalID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	members := d.groups[groupID]
	if members == nil || !members[principalID] {
		return ErrNotMember
	}
	delete(members, principalID)
	return nil
}

func (d *Directory) CreateAssignment(_ context.Context, scope, name, principalID, roleDefinitionID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := scope + "/providers/Microsoft.Authorization/roleAssignments/" + name
	d.assignments[id] = assignment{
		Scope:            scope,
		PrincipalID:      principalID,
		RoleDefinitionID: roleDefinitionID,
	}
	return id, nil
}

func (d *Directory) DeleteAssignment(_ context.Context, assignmentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.assignments[assignmentID]; !ok {
		return ErrAssignmentNotFound
	}
	delete(d.assignments, assignmentID)
	return nil
}

// IsMember reports current group membership. Used by tests and dev tooling.
func (d *Directory) IsMember(groupID, principalID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.groups[groupID][principalID]
}

// AssignmentCount returns the number of live role assignments.
func (d *Directory) AssignmentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.assignments)
}
