package tags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

func testAppliance() *model.Appliance {
	return &model.Appliance{
		Identifier:          "abc-123",
		Title:               "StubImage 0.1",
		Description:         "Uber image for nothing",
		Mpuri:               "http://remotehost/mpuri",
		Group:               "General group",
		Ram:                 9000000,
		Core:                16,
		Version:             "0.1",
		Architecture:        "x86_64",
		OperatingSystem:     "MSDOS",
		Vo:                  "test.eu",
		ExpirationDate:      69,
		ImageListIdentifier: "bac-321",
		BaseMpuri:           "http://remotehost/base_mpuri",
		Appid:               "15",
		Digest:              "c87q420",
		Image: &model.Image{
			Mode:     model.ModeLocal,
			Location: "http://localhost",
			Format:   model.FormatOva,
			Uri:      "http://remotehost",
			Checksum: "a09q589",
			Size:     581816320,
			Digest:   "b08q987",
		},
	}
}

func tagMap(tags []model.Tag) map[string]string {
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		result[tag.Key] = tag.Value
	}
	return result
}

func TestEncode(t *testing.T) {
	codec := NewCodec("cloudkeeper-aws")
	tags := tagMap(codec.Encode(testAppliance()))

	assert.Len(t, tags, 16+7+2)
	assert.Equal(t, "abc-123", tags["cloudkeeper_appliance_identifier"])
	assert.Equal(t, "9000000", tags["cloudkeeper_appliance_ram"])
	assert.Equal(t, "69", tags["cloudkeeper_appliance_expiration_date"])
	assert.Equal(t, "bac-321", tags["cloudkeeper_appliance_image_list_identifier"])
	assert.Equal(t, "OVA", tags["cloudkeeper_image_format"])
	assert.Equal(t, "581816320", tags["cloudkeeper_image_size"])
	assert.Equal(t, "cloudkeeper-aws", tags[OwnerKey])
	assert.Equal(t, "StubImage 0.1", tags[NameKey])
}

func TestEncode_NeverPersistsCredentials(t *testing.T) {
	a := testAppliance()
	a.Image.Username = "root"
	a.Image.Password = "password"

	for _, tag := range NewCodec("owner").Encode(a) {
		assert.NotContains(t, tag.Key, "password")
		assert.NotContains(t, tag.Key, "username")
		assert.NotEqual(t, "password", tag.Value)
	}
}

func TestEncode_TruncatesLongValues(t *testing.T) {
	a := testAppliance()
	a.Description = strings.Repeat("a", 300)
	a.Title = strings.Repeat("ž", 256)

	tags := tagMap(NewCodec("owner").Encode(a))

	assert.Equal(t, strings.Repeat("a", 255), tags["cloudkeeper_appliance_description"])
	assert.Equal(t, strings.Repeat("ž", 255), tags["cloudkeeper_appliance_title"])
	assert.Equal(t, strings.Repeat("ž", 255), tags[NameKey])

	decoded, err := NewCodec("owner").Decode(NewCodec("owner").Encode(a))
	require.NoError(t, err)
	assert.Len(t, decoded.Description, 255)
}

func TestEncode_KeepsKeyFieldsWhole(t *testing.T) {
	a := testAppliance()
	a.Identifier = strings.Repeat("i", 300)
	a.Mpuri = strings.Repeat("m", 300)

	tags := tagMap(NewCodec("owner").Encode(a))

	assert.Equal(t, a.Identifier, tags[ApplianceIdKey])
	assert.Equal(t, a.Mpuri, tags["cloudkeeper_appliance_mpuri"])
}

func TestCheckKeys(t *testing.T) {
	a := testAppliance()
	require.NoError(t, CheckKeys(a))

	a.Identifier = strings.Repeat("ž", MaxValueLength)
	require.NoError(t, CheckKeys(a))

	a.Identifier = strings.Repeat("i", MaxValueLength+1)
	assert.Equal(t, model.KindBackend, model.KindOf(CheckKeys(a)))

	a = testAppliance()
	a.ImageListIdentifier = strings.Repeat("l", MaxValueLength+1)
	assert.Equal(t, model.KindBackend, model.KindOf(CheckKeys(a)))
}

func TestDecode_RoundTrip(t *testing.T) {
	codec := NewCodec("cloudkeeper-aws")
	original := testAppliance()

	decoded, err := codec.Decode(codec.Encode(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecode_WithoutImage(t *testing.T) {
	codec := NewCodec("cloudkeeper-aws")
	original := testAppliance()
	original.Image = nil

	decoded, err := codec.Decode(codec.Encode(original))
	require.NoError(t, err)
	assert.Nil(t, decoded.Image)
	assert.Equal(t, original, decoded)
}

func TestDecode_UpperCasesEnums(t *testing.T) {
	decoded, err := NewCodec("owner").Decode([]model.Tag{
		{Key: "cloudkeeper_appliance_identifier", Value: "abc"},
		{Key: "cloudkeeper_image_mode", Value: "remote"},
		{Key: "cloudkeeper_image_format", Value: "qcow2"},
		{Key: "unrelated", Value: "ignored"},
	})
	require.NoError(t, err)
	require.NotNil(t, decoded.Image)
	assert.Equal(t, model.ModeRemote, decoded.Image.Mode)
	assert.Equal(t, model.FormatQcow2, decoded.Image.Format)
}

func TestDecode_MalformedInteger(t *testing.T) {
	_, err := NewCodec("owner").Decode([]model.Tag{{Key: "cloudkeeper_appliance_ram", Value: "lots"}})
	assert.True(t, model.IsKind(err, model.KindBackend))
}
