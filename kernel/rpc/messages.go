package rpc

import (
	"strconv"

	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/emptypb"
)

type Empty = emptypb.Empty

type ImageListIdentifier struct {
	ImageListIdentifier string
}

func NewApplianceMessage() *dynamicpb.Message {
	return dynamicpb.NewMessage(applianceDescriptor)
}

func NewImageListIdentifierMessage() *dynamicpb.Message {
	return dynamicpb.NewMessage(imageListIdentifierDescriptor)
}

// ApplianceToProto builds the wire message of a. Zero values are left unset
// as proto3 does.
func ApplianceToProto(a *model.Appliance) *dynamicpb.Message {
	m := NewApplianceMessage()
	setString(m, "identifier", a.Identifier)
	setString(m, "title", a.Title)
	setString(m, "description", a.Description)
	setString(m, "mpuri", a.Mpuri)
	setString(m, "group", a.Group)
	setUint64(m, "ram", a.Ram)
	if a.Core > 0 {
		m.Set(fieldOf(m, "core"), protoreflect.ValueOfUint32(uint32(a.Core)))
	}
	setString(m, "version", a.Version)
	setString(m, "architecture", a.Architecture)
	setString(m, "operating_system", a.OperatingSystem)
	setString(m, "vo", a.Vo)
	setUint64(m, "expiration_date", a.ExpirationDate)
	setString(m, "image_list_identifier", a.ImageListIdentifier)
	setString(m, "base_mpuri", a.BaseMpuri)
	setString(m, "appid", a.Appid)
	setString(m, "digest", a.Digest)
	if a.Image != nil {
		m.Set(fieldOf(m, "image"), protoreflect.ValueOfMessage(imageToProto(a.Image)))
	}
	return m
}

func imageToProto(i *model.Image) *dynamicpb.Message {
	m := dynamicpb.NewMessage(imageDescriptor)
	setEnum(m, "mode", modeEnum, string(i.Mode))
	setString(m, "location", i.Location)
	setEnum(m, "format", formatEnum, string(i.Format))
	setString(m, "uri", i.Uri)
	setString(m, "checksum", i.Checksum)
	setUint64(m, "size", i.Size)
	setString(m, "username", i.Username)
	setString(m, "password", i.Password)
	setString(m, "digest", i.Digest)
	return m
}

// ApplianceFromProto reads an Appliance wire message.
func ApplianceFromProto(m protoreflect.Message) *model.Appliance {
	a := &model.Appliance{
		Identifier:          getString(m, "identifier"),
		Title:               getString(m, "title"),
		Description:         getString(m, "description"),
		Mpuri:               getString(m, "mpuri"),
		Group:               getString(m, "group"),
		Ram:                 int64(m.Get(fieldOf(m, "ram")).Uint()),
		Core:                int64(m.Get(fieldOf(m, "core")).Uint()),
		Version:             getString(m, "version"),
		Architecture:        getString(m, "architecture"),
		OperatingSystem:     getString(m, "operating_system"),
		Vo:                  getString(m, "vo"),
		ExpirationDate:      int64(m.Get(fieldOf(m, "expiration_date")).Uint()),
		ImageListIdentifier: getString(m, "image_list_identifier"),
		BaseMpuri:           getString(m, "base_mpuri"),
		Appid:               getString(m, "appid"),
		Digest:              getString(m, "digest"),
	}
	if image := fieldOf(m, "image"); m.Has(image) {
		a.Image = imageFromProto(m.Get(image).Message())
	}
	return a
}

func imageFromProto(m protoreflect.Message) *model.Image {
	return &model.Image{
		Mode:     model.ImageMode(getEnum(m, "mode", modeEnum)),
		Location: getString(m, "location"),
		Format:   model.ImageFormat(getEnum(m, "format", formatEnum)),
		Uri:      getString(m, "uri"),
		Checksum: getString(m, "checksum"),
		Size:     int64(m.Get(fieldOf(m, "size")).Uint()),
		Username: getString(m, "username"),
		Password: getString(m, "password"),
		Digest:   getString(m, "digest"),
	}
}

func ImageListIdentifierToProto(id string) *dynamicpb.Message {
	m := NewImageListIdentifierMessage()
	setString(m, "image_list_identifier", id)
	return m
}

func ImageListIdentifierFromProto(m protoreflect.Message) *ImageListIdentifier {
	return &ImageListIdentifier{ImageListIdentifier: getString(m, "image_list_identifier")}
}

func fieldOf(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(name)
}

func setString(m protoreflect.Message, name protoreflect.Name, v string) {
	if v != "" {
		m.Set(fieldOf(m, name), protoreflect.ValueOfString(v))
	}
}

func setUint64(m protoreflect.Message, name protoreflect.Name, v int64) {
	if v > 0 {
		m.Set(fieldOf(m, name), protoreflect.ValueOfUint64(uint64(v)))
	}
}

// setEnum leaves the field at its zero value when v names no enum value.
func setEnum(m protoreflect.Message, name protoreflect.Name, enum protoreflect.EnumDescriptor, v string) {
	if value := enum.Values().ByName(protoreflect.Name(v)); value != nil {
		m.Set(fieldOf(m, name), protoreflect.ValueOfEnum(value.Number()))
	}
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(fieldOf(m, name)).String()
}

func getEnum(m protoreflect.Message, name protoreflect.Name, enum protoreflect.EnumDescriptor) string {
	number := m.Get(fieldOf(m, name)).Enum()
	if value := enum.Values().ByNumber(number); value != nil {
		return string(value.Name())
	}
	return strconv.Itoa(int(number))
}
