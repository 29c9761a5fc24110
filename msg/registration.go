package msg

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// OwnerType distinguishes a publisher advertisement from a subscriber
// advertisement in the registrar.
type OwnerType int32

const (
	OwnerPublisher  OwnerType = 0
	OwnerSubscriber OwnerType = 1
)

// Registration is one advertised publisher or subscriber. Both the
// legacy domain/subject/type triple and the newer unified Topic field
// are always populated by this implementation's driver, so either
// convention works for a peer reading the wire form.
type Registration struct {
	Name        string
	Description string
	Host        string
	Port        int32
	Domain      string
	Subject     string
	Type        string
	Topic       string // full "d:s:t" form; preferred over Domain/Subject/Type on recent wire
	OwnerType   OwnerType
}

// NewRegistration builds a Registration from a Topic, filling both the
// legacy triple and the unified Topic string.
func NewRegistration(name, description, host string, port int32, topic Topic, owner OwnerType) Registration {
	return Registration{
		Name:        name,
		Description: description,
		Host:        host,
		Port:        port,
		Domain:      topic.Domain(),
		Subject:     topic.Subject(),
		Type:        topic.Type(),
		Topic:       topic.String(),
		OwnerType:   owner,
	}
}

// rawTopic returns the best available topic string: the unified Topic
// field when present, else the rebuilt legacy triple.
func (r Registration) rawTopic() string {
	if r.Topic != "" {
		return r.Topic
	}
	t, err := Build(r.Domain, r.Subject, r.Type)
	if err != nil {
		return r.Domain
	}
	return t.String()
}

// AsTopic returns the Registration's topic as a Topic value.
func (r Registration) AsTopic() Topic {
	return Raw(r.rawTopic())
}

// compareKey is the tuple (name, raw topic, host, port, owner_type,
// description) that defines both equality and total order for
// Registrations in a RegDataSet.
type compareKey struct {
	name, topic, host string
	port              int32
	owner             OwnerType
	description       string
}

func (r Registration) key() compareKey {
	return compareKey{
		name:        r.Name,
		topic:       r.rawTopic(),
		host:        r.Host,
		port:        r.Port,
		owner:       r.OwnerType,
		description: r.Description,
	}
}

// Equal compares two registrations by the comparator tuple.
func (r Registration) Equal(other Registration) bool {
	return r.key() == other.key()
}

func less(a, b compareKey) bool {
	if a.name != b.name {
		return a.name < b.name
	}
	if a.topic != b.topic {
		return a.topic < b.topic
	}
	if a.host != b.host {
		return a.host < b.host
	}
	if a.port != b.port {
		return a.port < b.port
	}
	if a.owner != b.owner {
		return a.owner < b.owner
	}
	return a.description < b.description
}

// RegDataSet is an ordered set of Registrations keyed by the comparator
// tuple; inserting a duplicate key is a silent no-op.
type RegDataSet struct {
	items []Registration
}

// NewRegDataSet returns an empty set.
func NewRegDataSet() *RegDataSet {
	return &RegDataSet{}
}

// Add inserts r, collapsing duplicates by key. Returns true if r was new.
func (s *RegDataSet) Add(r Registration) bool {
	k := r.key()
	i := sort.Search(len(s.items), func(i int) bool { return !less(s.items[i].key(), k) })
	if i < len(s.items) && s.items[i].key() == k {
		return false
	}
	s.items = append(s.items, Registration{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = r
	return true
}

// Remove deletes the element matching r's key, if present.
func (s *RegDataSet) Remove(r Registration) bool {
	k := r.key()
	for i, item := range s.items {
		if item.key() == k {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAll deletes every element whose host and owner type match,
// regardless of other fields (the removeAllRegistration action).
func (s *RegDataSet) RemoveAll(host string, owner OwnerType) int {
	kept := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if item.Host == host && item.OwnerType == owner {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return removed
}

// All returns every registration in sorted order.
func (s *RegDataSet) All() []Registration {
	out := make([]Registration, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of registrations in the set.
func (s *RegDataSet) Len() int {
	return len(s.items)
}

// FindPublishers returns every stored PUBLISHER whose topic R satisfies
// query.IsParent(R), i.e. the query is less specific than or equal to R.
func (s *RegDataSet) FindPublishers(query Topic) []Registration {
	var out []Registration
	for _, item := range s.items {
		if item.OwnerType != OwnerPublisher {
			continue
		}
		if query.IsParent(item.AsTopic()) {
			out = append(out, item)
		}
	}
	return out
}

// FindSubscribers returns every stored SUBSCRIBER whose topic R satisfies
// R.IsParent(query), i.e. the subscriber's interest prefix covers the
// query.
func (s *RegDataSet) FindSubscribers(query Topic) []Registration {
	var out []Registration
	for _, item := range s.items {
		if item.OwnerType != OwnerSubscriber {
			continue
		}
		if item.AsTopic().IsParent(query) {
			out = append(out, item)
		}
	}
	return out
}

// Registration wire field numbers.
const (
	regFieldName        = 1
	regFieldHost        = 2
	regFieldPort        = 3
	regFieldDomain      = 4
	regFieldSubject     = 5
	regFieldType        = 6
	regFieldOwnerType   = 7
	regFieldDescription = 8
	regFieldTopic       = 9
)

// Marshal encodes a Registration to its wire form.
func (r Registration) Marshal() []byte {
	var b []byte
	if r.Name != "" {
		b = protowire.AppendTag(b, regFieldName, protowire.BytesType)
		b = protowire.AppendString(b, r.Name)
	}
	if r.Host != "" {
		b = protowire.AppendTag(b, regFieldHost, protowire.BytesType)
		b = protowire.AppendString(b, r.Host)
	}
	if r.Port != 0 {
		b = protowire.AppendTag(b, regFieldPort, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(r.Port)))
	}
	if r.Domain != "" {
		b = protowire.AppendTag(b, regFieldDomain, protowire.BytesType)
		b = protowire.AppendString(b, r.Domain)
	}
	if r.Subject != "" {
		b = protowire.AppendTag(b, regFieldSubject, protowire.BytesType)
		b = protowire.AppendString(b, r.Subject)
	}
	if r.Type != "" {
		b = protowire.AppendTag(b, regFieldType, protowire.BytesType)
		b = protowire.AppendString(b, r.Type)
	}
	b = protowire.AppendTag(b, regFieldOwnerType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.OwnerType))
	if r.Description != "" {
		b = protowire.AppendTag(b, regFieldDescription, protowire.BytesType)
		b = protowire.AppendString(b, r.Description)
	}
	if r.Topic != "" {
		b = protowire.AppendTag(b, regFieldTopic, protowire.BytesType)
		b = protowire.AppendString(b, r.Topic)
	}
	return b
}

// UnmarshalRegistration decodes a Registration from its wire form.
func UnmarshalRegistration(data []byte) (Registration, error) {
	var r Registration
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Registration{}, fmt.Errorf("msg: registration tag: %w", ErrSerializationError)
		}
		data = data[n:]

		switch num {
		case regFieldName:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Registration{}, err
			}
			r.Name, data = s, data[n:]
		case regFieldHost:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Registration{}, err
			}
			r.Host, data = s, data[n:]
		case regFieldPort:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return Registration{}, err
			}
			r.Port, data = int32(v), data[n:]
		case regFieldDomain:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Registration{}, err
			}
			r.Domain, data = s, data[n:]
		case regFieldSubject:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Registration{}, err
			}
			r.Subject, data = s, data[n:]
		case regFieldType:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Registration{}, err
			}
			r.Type, data = s, data[n:]
		case regFieldOwnerType:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return Registration{}, err
			}
			r.OwnerType, data = OwnerType(v), data[n:]
		case regFieldDescription:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Registration{}, err
			}
			r.Description, data = s, data[n:]
		case regFieldTopic:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return Registration{}, err
			}
			r.Topic, data = s, data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Registration{}, fmt.Errorf("msg: skipping unknown registration field %d: %w", num, ErrSerializationError)
			}
			data = data[n:]
		}
	}
	return r, nil
}
