package contact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/basketbridge/lib/mystore"
	"github.com/MarcGrol/basketbridge/lib/mytime"
	"github.com/MarcGrol/basketbridge/lib/myuuid"
)

func TestContactStore(t *testing.T) {
	c := context.TODO()
	ctrl := gomock.NewController(t)
	nower := mytime.NewMockNower(ctrl)
	uuider := myuuid.NewMockUUIDer(ctrl)

	contactStore, _, _ := mystore.NewInMemoryStore[Contact](c)
	addressStore, _, _ := mystore.NewInMemoryStore[Address](c)
	sut := NewWithStores(contactStore, addressStore, nower, uuider)

	t.Run("not found by email", func(t *testing.T) {
		_, found, err := sut.FindByEmail(c, "eva@example.com")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("create with address", func(t *testing.T) {
		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		gomock.InOrder(
			uuider.EXPECT().Create().Return("contact-1"),
			uuider.EXPECT().Create().Return("address-1"),
		)

		// when
		contact, address, err := sut.Create(c,
			Contact{Email: "eva@example.com", FirstName: "Eva"},
			Address{Street: "Main street 1", Zip: "1234AB", City: "Utrecht"})

		// then
		assert.NoError(t, err)
		assert.Equal(t, "contact-1", contact.UID)
		assert.Equal(t, "address-1", address.UID)
		assert.Equal(t, "contact-1", address.ContactUID)
	})

	t.Run("found by email with address", func(t *testing.T) {
		contact, found, err := sut.FindByEmail(c, "eva@example.com")
		assert.NoError(t, err)
		assert.True(t, found)

		withAddress, found, err := sut.GetWithAddress(c, contact.UID)
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "Eva", withAddress.FirstName)
		assert.Equal(t, "Utrecht", withAddress.Address.City)
	})

	t.Run("unknown contact", func(t *testing.T) {
		_, found, err := sut.GetWithAddress(c, "contact-unknown")
		assert.NoError(t, err)
		assert.False(t, found)

		_, found, err = sut.Get(c, "")
		assert.NoError(t, err)
		assert.False(t, found)
	})
}
