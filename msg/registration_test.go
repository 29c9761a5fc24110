package msg

import "testing"

func TestRegDataSetAddIsIdempotent(t *testing.T) {
	set := NewRegDataSet()
	topic, _ := Build("metallica", "lars", "drums")
	r := NewRegistration("asimov", "a reader", "10.0.0.1", 7771, topic, OwnerSubscriber)

	if !set.Add(r) {
		t.Fatalf("first Add should report new")
	}
	if set.Add(r) {
		t.Errorf("second Add of identical registration should be a no-op")
	}
	if set.Len() != 1 {
		t.Errorf("Len() = %d, want 1", set.Len())
	}
}

func TestRegDataSetRemoveAllByHostAndOwner(t *testing.T) {
	set := NewRegDataSet()
	topicA, _ := Build("metallica", "lars")
	topicB, _ := Build("metallica", "kirk")
	set.Add(NewRegistration("asimov", "", "10.0.0.1", 7771, topicA, OwnerSubscriber))
	set.Add(NewRegistration("bradbury", "", "10.0.0.1", 7772, topicB, OwnerSubscriber))
	set.Add(NewRegistration("clarke", "", "10.0.0.2", 7771, topicA, OwnerSubscriber))

	removed := set.RemoveAll("10.0.0.1", OwnerSubscriber)
	if removed != 2 {
		t.Errorf("RemoveAll removed %d, want 2", removed)
	}
	if set.Len() != 1 {
		t.Errorf("Len() = %d, want 1", set.Len())
	}
}

// TestFindPublishersAndSubscribersAsymmetry exercises the two match
// directions: a publisher registered under the exact topic
// "metallica:lars:drums" is found by a broader subscriber query, while a
// subscriber registered under the broader topic "metallica:lars" is found
// by a narrower publisher query.
func TestFindPublishersAndSubscribersAsymmetry(t *testing.T) {
	set := NewRegDataSet()
	exact, _ := Build("metallica", "lars", "drums")
	broad, _ := Build("metallica", "lars")

	pub := NewRegistration("asimov", "", "10.0.0.1", 7771, exact, OwnerPublisher)
	sub := NewRegistration("bradbury", "", "10.0.0.2", 7771, broad, OwnerSubscriber)
	set.Add(pub)
	set.Add(sub)

	// A subscriber querying with the broad topic finds the exact publisher:
	// query.IsParent(pub.topic).
	pubs := set.FindPublishers(broad)
	if len(pubs) != 1 || pubs[0].Name != "asimov" {
		t.Errorf("FindPublishers(%q) = %+v, want [asimov]", broad, pubs)
	}

	// A publisher querying with the exact topic finds the broad subscriber:
	// sub.topic.IsParent(query).
	subs := set.FindSubscribers(exact)
	if len(subs) != 1 || subs[0].Name != "bradbury" {
		t.Errorf("FindSubscribers(%q) = %+v, want [bradbury]", exact, subs)
	}

	// An equal query still matches: the parent relation is reflexive.
	if got := set.FindPublishers(exact); len(got) != 1 {
		t.Errorf("FindPublishers(%q) = %+v, want [asimov]", exact, got)
	}

	// A query more specific than every stored publisher topic finds
	// nothing.
	narrower := Raw("metallica:lars:drums:solo")
	if got := set.FindPublishers(narrower); len(got) != 0 {
		t.Errorf("FindPublishers(%q) = %+v, want empty", narrower, got)
	}
}

func TestRegistrationWireRoundTrip(t *testing.T) {
	topic, _ := Build("metallica", "lars", "drums")
	r := NewRegistration("asimov", "a reader", "10.0.0.1", 7771, topic, OwnerPublisher)

	data := r.Marshal()
	got, err := UnmarshalRegistration(data)
	if err != nil {
		t.Fatalf("UnmarshalRegistration: %v", err)
	}
	if !got.Equal(r) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, r)
	}
}
