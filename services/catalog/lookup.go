package catalog

import (
	"context"
	"fmt"

	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/lib/mystore"
)

func (s *Catalog) FindTagsByKey(c context.Context, key string) ([]Tag, error) {
	tags, err := s.tagStore.Query(c, []mystore.Filter{{Field: "Key", Compare: "=", Value: key}}, "UID")
	if err != nil {
		return nil, fmt.Errorf("error fetching tags with key %s: %w", key, err)
	}
	return tags, nil
}

// FindEntityTags lists the values of the tag with the given key within an entity form.
// A key that is not configured yields an empty list.
func (s *Catalog) FindEntityTags(c context.Context, form string, tagKey string) ([]EntityTag, error) {
	tags, err := s.FindTagsByKey(c, tagKey)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		s.logger.Log(c, form, mylog.SeverityDebug, "No tag with key %s configured", tagKey)
		return []EntityTag{}, nil
	}

	entityTags, err := s.entityTagStore.Query(c, []mystore.Filter{
		{Field: "EntityForm", Compare: "=", Value: form},
		{Field: "TagUID", Compare: "=", Value: tags[0].UID},
	}, "UID")
	if err != nil {
		return nil, fmt.Errorf("error fetching %s/%s entity-tags: %w", form, tagKey, err)
	}
	return entityTags, nil
}

func (s *Catalog) FindEntityTag(c context.Context, form string, tagKey string, value string) (EntityTag, bool, error) {
	entityTags, err := s.FindEntityTags(c, form, tagKey)
	if err != nil {
		return EntityTag{}, false, err
	}
	for _, et := range entityTags {
		if et.Value == value {
			return et, true, nil
		}
	}
	return EntityTag{}, false, nil
}

func (s *Catalog) GetEntityTag(c context.Context, uid string) (EntityTag, bool, error) {
	if uid == "" {
		return EntityTag{}, false, nil
	}
	et, found, err := s.entityTagStore.Get(c, uid)
	if err != nil {
		return EntityTag{}, false, fmt.Errorf("error fetching entity-tag %s: %w", uid, err)
	}
	return et, found, nil
}

func (s *Catalog) PutTag(c context.Context, tag Tag) error {
	return s.tagStore.Put(c, tag.UID, tag)
}

func (s *Catalog) PutEntityTag(c context.Context, et EntityTag) error {
	return s.entityTagStore.Put(c, et.UID, et)
}

func (s *Catalog) DeleteEntityTag(c context.Context, uid string) error {
	return s.entityTagStore.Delete(c, uid)
}
