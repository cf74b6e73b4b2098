package tags

import "github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"

const (
	FilterTagKey  = "tag-key"
	FilterImageId = "image-id"
	tagFilter     = "tag:"
)

// ByName matches resources carrying the tag key, whatever its value.
func ByName(key string) model.Filter {
	return model.Filter{Name: FilterTagKey, Values: []string{key}}
}

// ByValue matches resources whose tag key equals value exactly.
func ByValue(key, value string) model.Filter {
	return model.Filter{Name: tagFilter + key, Values: []string{value}}
}

func ByResource(id string) model.Filter {
	return model.Filter{Name: FilterImageId, Values: []string{id}}
}

// Owned restricts a search to resources created by the connector instance owner.
func Owned(owner string, filters ...model.Filter) []model.Filter {
	return append(filters, ByValue(OwnerKey, owner))
}

func AllImageLists(owner string) []model.Filter {
	return Owned(owner, ByName(ImageListKey))
}

func ImageList(owner, imageListId string) []model.Filter {
	return Owned(owner, ByValue(ImageListKey, imageListId))
}

func Appliance(owner, identifier string) []model.Filter {
	return Owned(owner, ByValue(ApplianceIdKey, identifier))
}

func Resource(owner, imageId string) []model.Filter {
	return Owned(owner, ByResource(imageId))
}

// TagClause reports the tag key a "tag:<key>" filter name targets.
func TagClause(name string) (string, bool) {
	if len(name) > len(tagFilter) && name[:len(tagFilter)] == tagFilter {
		return name[len(tagFilter):], true
	}
	return "", false
}

// Matches evaluates filters against one image the way the backend does:
// every clause must hold, and a clause holds when any of its values does.
func Matches(filters []model.Filter, image *model.MachineImage) bool {
	for _, f := range filters {
		if !matchesClause(f, image) {
			return false
		}
	}
	return true
}

func matchesClause(f model.Filter, image *model.MachineImage) bool {
	for _, value := range f.Values {
		switch {
		case f.Name == FilterTagKey:
			if _, found := image.Tag(value); found {
				return true
			}
		case f.Name == FilterImageId:
			if image.Id == value {
				return true
			}
		default:
			if key, ok := TagClause(f.Name); ok {
				if actual, found := image.Tag(key); found && actual == value {
					return true
				}
			}
		}
	}
	return false
}
