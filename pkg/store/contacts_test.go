package store

import (
	"errors"
	"testing"

	"feedstore/pkg/models"
)

func TestContactSelfExclusion(t *testing.T) {
	s := New()

	// contact added before the authenticated user is known
	s.AddContactID("me")
	s.SetMe(&models.User{ID: "me"})
	if ok, _ := s.IsMyContact("me"); ok {
		t.Fatalf("SetMe must purge the self id from the contact set")
	}

	// and attempts afterward are silently ignored
	s.AddContactID("me")
	if ok, _ := s.IsMyContact("me"); ok {
		t.Fatalf("AddContactID must ignore the self id")
	}

	s.AddContactID("friend")
	if ok, _ := s.IsMyContact("friend"); !ok {
		t.Fatalf("ordinary contact should be present")
	}
	s.RemoveContactID("friend")
	if ok, _ := s.IsMyContact("friend"); ok {
		t.Fatalf("removed contact should be absent")
	}
}

func TestIsMyContactEmptyID(t *testing.T) {
	s := New()
	_, err := s.IsMyContact("")
	if !errors.Is(err, ErrInvalidContactID) {
		t.Fatalf("empty id must surface ErrInvalidContactID; got %v", err)
	}
}

func TestMissingUserPlaceholderUniqueness(t *testing.T) {
	s := New()
	a := s.GetUserByID("x")
	b := s.GetUserByID("y")
	if a.Name != models.PlaceholderName || b.Name != models.PlaceholderName {
		t.Fatalf("placeholders must carry the fixed display name; got %q, %q", a.Name, b.Name)
	}
	if a.ID == b.ID || a.ID == "" {
		t.Fatalf("placeholder ids must be fresh and distinct; got %q, %q", a.ID, b.ID)
	}
	if a.AvatarURL != "" {
		t.Fatalf("placeholder avatar must be empty")
	}
	// known ids resolve to the stored record
	s.AddUser(&models.User{ID: "x", Name: "Xen"})
	if got := s.GetUserByID("x"); got.Name != "Xen" {
		t.Fatalf("known id must resolve; got %q", got.Name)
	}
}

func TestMeListener(t *testing.T) {
	s := New()
	var got *models.User
	s.ListenToMe(func(u *models.User) { got = u })
	s.SetMe(&models.User{ID: "me", Name: "Me"})
	if got == nil || got.ID != "me" {
		t.Fatalf("me listener not notified; got %+v", got)
	}
	if s.Me() == nil || s.Me().ID != "me" {
		t.Fatalf("Me accessor wrong")
	}
}
