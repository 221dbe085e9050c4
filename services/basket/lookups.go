package basket

import (
	"context"
	"fmt"

	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/services/catalog"
)

// options lists the values of a tag within an entity form for display.
func (s *service) options(c context.Context, form string, tagKey string) ([]catalog.Option, error) {
	tags, err := s.catalog.FindEntityTags(c, form, tagKey)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching %s of %s: %w", tagKey, form, err))
	}
	options := make([]catalog.Option, 0, len(tags))
	for _, t := range tags {
		options = append(options, t.Option())
	}
	return options, nil
}

// selectedOption resolves a referenced entity tag, NoOption when unset or unknown.
func (s *service) selectedOption(c context.Context, uid string) (catalog.Option, error) {
	tag, found, err := s.catalog.GetEntityTag(c, uid)
	if err != nil {
		return catalog.Option{}, myerrors.NewInternalError(fmt.Errorf("error fetching entity tag %s: %w", uid, err))
	}
	if !found {
		return catalog.NoOption, nil
	}
	return tag.Option(), nil
}

func findOption(options []catalog.Option, uid string) (catalog.Option, bool) {
	for _, o := range options {
		if o.ID == uid {
			return o, true
		}
	}
	return catalog.Option{}, false
}

// resolveState returns the uid of a state of the given entity form.
func (s *service) resolveState(c context.Context, form string, state string) (string, bool, error) {
	tag, found, err := s.catalog.FindEntityTag(c, form, catalog.KeyState, state)
	if err != nil {
		return "", false, myerrors.NewInternalError(fmt.Errorf("error resolving state %s of %s: %w", state, form, err))
	}
	if !found {
		return "", false, nil
	}
	return tag.UID, true, nil
}
