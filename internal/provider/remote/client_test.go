package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"zspgw.org/internal/provider"
)

type staticCred string

func (c staticCred) Token() (string, error) { return string(c), nil }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, staticCred("tok-1"))
}

func TestAddMember(t *testing.T) {
	var gotAuth, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["principal_id"] != "user-1" {
			t.Errorf("principal_id = %q", body["principal_id"])
		}
		w.WriteHeader(http.StatusCreated)
	})

	if err := client.AddMember(context.Background(), "group-admins", "user-1"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotPath != "/v1/groups/group-admins/members" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestAddMemberConflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	err := client.AddMember(context.Background(), "g", "p")
	if !errors.Is(err, provider.ErrAlreadyMember) {
		t.Fatalf("err = %v, want ErrAlreadyMember", err)
	}
}

func TestRemoveMemberNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := client.RemoveMember(context.Background(), "g", "p")
	if !errors.Is(err, provider.ErrNotMember) {
		t.Fatalf("err = %v, want ErrNotMember", err)
	}
}

func TestCreateAssignment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["role_definition_id"] == "" {
			t.Error("no role_definition_id in payload")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ra-1"})
	})

	id, err := client.CreateAssignment(context.Background(), "/subscriptions/s", "name-1", "sp-1", "def-1")
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if id != "ra-1" {
		t.Fatalf("id = %q, want ra-1", id)
	}
}

func TestCreateAssignmentEmptyID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	})
	_, err := client.CreateAssignment(context.Background(), "/subscriptions/s", "n", "p", "d")
	if err == nil {
		t.Fatal("expected error for empty assignment id")
	}
}

func TestDeleteAssignmentNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := client.DeleteAssignment(context.Background(), "ra-gone")
	if !errors.Is(err, provider.ErrAssignmentNotFound) {
		t.Fatalf("err = %v, want ErrAssignmentNotFound", err)
	}
}

func TestServerErrorIsNotSentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := client.AddMember(context.Background(), "g", "p")
	if err == nil || errors.Is(err, provider.ErrAlreadyMember) {
		t.Fatalf("err = %v, want plain transport error", err)
	}
}
