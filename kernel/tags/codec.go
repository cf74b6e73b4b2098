package tags

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

const (
	Namespace       = "cloudkeeper_"
	AppliancePrefix = Namespace + "appliance_"
	ImagePrefix     = Namespace + "image_"
	OwnerKey        = Namespace + "identifier"
	NameKey         = "Name"
	ApplianceIdKey  = AppliancePrefix + "identifier"
	ImageListKey    = AppliancePrefix + "image_list_identifier"
	MaxValueLength  = 255
)

// Truncate cuts s down to its first MaxValueLength characters.
func Truncate(s string) string {
	if len(s) <= MaxValueLength {
		return s
	}
	runes := []rune(s)
	if len(runes) <= MaxValueLength {
		return s
	}
	return string(runes[:MaxValueLength])
}

// CheckKeys rejects appliances whose lookup keys would not survive as tag
// values. Only title and description are ever truncated.
func CheckKeys(a *model.Appliance) error {
	for name, value := range map[string]string{"identifier": a.Identifier, "image list identifier": a.ImageListIdentifier} {
		if n := utf8.RuneCountInString(value); n > MaxValueLength {
			return model.NewError(model.KindBackend, "appliance %s is %d characters long, at most %d fit a tag", name, n, MaxValueLength)
		}
	}
	return nil
}

// Codec maps appliances to the flat tag set stored on a machine image and back.
// The owner is written into every encoded set so that connector instances
// sharing one account only ever see their own images.
type Codec struct {
	owner string
}

func NewCodec(owner string) *Codec {
	return &Codec{owner: owner}
}

func (c *Codec) Owner() string {
	return c.owner
}

func (c *Codec) Encode(a *model.Appliance) []model.Tag {
	result := appendTags(nil, AppliancePrefix, applianceFields(a))
	if a.Image != nil {
		result = appendTags(result, ImagePrefix, imageFields(a.Image))
	}
	result = append(result,
		model.Tag{Key: OwnerKey, Value: c.owner},
		model.Tag{Key: NameKey, Value: Truncate(a.Title)},
	)
	return result
}

// Decode rebuilds an appliance from the tags of one machine image. Tags outside
// the appliance and image namespaces are ignored.
func (c *Codec) Decode(tags []model.Tag) (*model.Appliance, error) {
	a := &model.Appliance{}
	for key, value := range strip(tags, AppliancePrefix) {
		if err := setApplianceField(a, key, value); err != nil {
			return nil, err
		}
	}
	imageTags := strip(tags, ImagePrefix)
	if len(imageTags) > 0 {
		a.Image = &model.Image{}
		for key, value := range imageTags {
			if err := setImageField(a.Image, key, value); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

type field struct {
	name  string
	value string
}

func appendTags(tags []model.Tag, prefix string, fields []field) []model.Tag {
	for _, f := range fields {
		tags = append(tags, model.Tag{Key: prefix + f.name, Value: f.value})
	}
	return tags
}

func strip(tags []model.Tag, prefix string) map[string]string {
	result := make(map[string]string)
	for _, tag := range tags {
		if strings.HasPrefix(tag.Key, prefix) {
			result[strings.TrimPrefix(tag.Key, prefix)] = tag.Value
		}
	}
	return result
}

func applianceFields(a *model.Appliance) []field {
	return []field{
		{"identifier", a.Identifier},
		{"title", Truncate(a.Title)},
		{"description", Truncate(a.Description)},
		{"mpuri", a.Mpuri},
		{"group", a.Group},
		{"ram", strconv.FormatInt(a.Ram, 10)},
		{"core", strconv.FormatInt(a.Core, 10)},
		{"version", a.Version},
		{"architecture", a.Architecture},
		{"operating_system", a.OperatingSystem},
		{"vo", a.Vo},
		{"expiration_date", strconv.FormatInt(a.ExpirationDate, 10)},
		{"image_list_identifier", a.ImageListIdentifier},
		{"base_mpuri", a.BaseMpuri},
		{"appid", a.Appid},
		{"digest", a.Digest},
	}
}

func imageFields(i *model.Image) []field {
	return []field{
		{"mode", string(i.Mode)},
		{"location", i.Location},
		{"format", string(i.Format)},
		{"uri", i.Uri},
		{"checksum", i.Checksum},
		{"size", strconv.FormatInt(i.Size, 10)},
		{"digest", i.Digest},
	}
}

func setApplianceField(a *model.Appliance, name, value string) error {
	var err error
	switch name {
	case "identifier":
		a.Identifier = value
	case "title":
		a.Title = value
	case "description":
		a.Description = value
	case "mpuri":
		a.Mpuri = value
	case "group":
		a.Group = value
	case "ram":
		a.Ram, err = parseInt(name, value)
	case "core":
		a.Core, err = parseInt(name, value)
	case "version":
		a.Version = value
	case "architecture":
		a.Architecture = value
	case "operating_system":
		a.OperatingSystem = value
	case "vo":
		a.Vo = value
	case "expiration_date":
		a.ExpirationDate, err = parseInt(name, value)
	case "image_list_identifier":
		a.ImageListIdentifier = value
	case "base_mpuri":
		a.BaseMpuri = value
	case "appid":
		a.Appid = value
	case "digest":
		a.Digest = value
	}
	return err
}

func setImageField(i *model.Image, name, value string) error {
	var err error
	switch name {
	case "mode":
		i.Mode = model.ParseImageMode(value)
	case "location":
		i.Location = value
	case "format":
		i.Format = model.ParseImageFormat(value)
	case "uri":
		i.Uri = value
	case "checksum":
		i.Checksum = value
	case "size":
		i.Size, err = parseInt(name, value)
	case "digest":
		i.Digest = value
	}
	return err
}

func parseInt(name, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, model.WrapError(model.KindBackend, err, "malformed value of tag [%s]", name)
	}
	return n, nil
}
