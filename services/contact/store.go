package contact

import (
	"context"
	"fmt"

	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/lib/mystore"
	"github.com/MarcGrol/basketbridge/lib/mytime"
	"github.com/MarcGrol/basketbridge/lib/myuuid"
)

// Store keeps contacts and their addresses.
type Store struct {
	logger       mylog.Logger
	contactStore mystore.Store[Contact]
	addressStore mystore.Store[Address]
	nower        mytime.Nower
	uuider       myuuid.UUIDer
}

func New(c context.Context, nower mytime.Nower, uuider myuuid.UUIDer) (*Store, func(), error) {
	contactStore, contactCleanup, err := mystore.New[Contact](c)
	if err != nil {
		return nil, nil, err
	}
	addressStore, addressCleanup, err := mystore.New[Address](c)
	if err != nil {
		return nil, nil, err
	}
	return NewWithStores(contactStore, addressStore, nower, uuider), func() {
		contactCleanup()
		addressCleanup()
	}, nil
}

func NewWithStores(contactStore mystore.Store[Contact], addressStore mystore.Store[Address], nower mytime.Nower, uuider myuuid.UUIDer) *Store {
	return &Store{
		logger:       mylog.New("contact"),
		contactStore: contactStore,
		addressStore: addressStore,
		nower:        nower,
		uuider:       uuider,
	}
}

func (s *Store) Get(c context.Context, uid string) (Contact, bool, error) {
	if uid == "" {
		return Contact{}, false, nil
	}
	contact, found, err := s.contactStore.Get(c, uid)
	if err != nil {
		return Contact{}, false, fmt.Errorf("error fetching contact %s: %w", uid, err)
	}
	return contact, found, nil
}

func (s *Store) FindByEmail(c context.Context, email string) (Contact, bool, error) {
	contacts, err := s.contactStore.Query(c, []mystore.Filter{{Field: "Email", Compare: "=", Value: email}}, "CreatedAt")
	if err != nil {
		return Contact{}, false, fmt.Errorf("error searching contact by email: %w", err)
	}
	if len(contacts) == 0 {
		return Contact{}, false, nil
	}
	return contacts[0], true, nil
}

// Create stores a new contact together with its address and returns both with their
// assigned identifiers.
func (s *Store) Create(c context.Context, contact Contact, address Address) (Contact, Address, error) {
	now := s.nower.Now()

	contact.UID = s.uuider.Create()
	contact.CreatedAt = now
	err := s.contactStore.Put(c, contact.UID, contact)
	if err != nil {
		return Contact{}, Address{}, fmt.Errorf("error storing contact: %w", err)
	}

	address.UID = s.uuider.Create()
	address.ContactUID = contact.UID
	address.CreatedAt = now
	err = s.addressStore.Put(c, address.UID, address)
	if err != nil {
		return Contact{}, Address{}, fmt.Errorf("error storing address: %w", err)
	}

	s.logger.Log(c, contact.UID, mylog.SeverityInfo, "Created contact %s with address %s", contact.UID, address.UID)

	return contact, address, nil
}

func (s *Store) AddressOf(c context.Context, contactUID string) (Address, bool, error) {
	addresses, err := s.addressStore.Query(c, []mystore.Filter{{Field: "ContactUID", Compare: "=", Value: contactUID}}, "CreatedAt")
	if err != nil {
		return Address{}, false, fmt.Errorf("error fetching address of contact %s: %w", contactUID, err)
	}
	if len(addresses) == 0 {
		return Address{}, false, nil
	}
	return addresses[0], true, nil
}

// GetWithAddress loads a contact and, when present, its address.
func (s *Store) GetWithAddress(c context.Context, uid string) (WithAddress, bool, error) {
	contact, found, err := s.Get(c, uid)
	if err != nil || !found {
		return WithAddress{}, found, err
	}
	result := WithAddress{Contact: contact}

	address, found, err := s.AddressOf(c, uid)
	if err != nil {
		return WithAddress{}, false, err
	}
	if found {
		result.Address = &address
	}
	return result, true, nil
}
