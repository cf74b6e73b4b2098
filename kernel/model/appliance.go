package model

import "strings"

type ImageMode string

const (
	ModeLocal  ImageMode = "LOCAL"
	ModeRemote ImageMode = "REMOTE"
)

// ParseImageMode upper-cases s before treating it as a mode. Unknown values
// are returned as-is so that decoding never drops information.
func ParseImageMode(s string) ImageMode {
	return ImageMode(strings.ToUpper(s))
}

type ImageFormat string

const (
	FormatRaw   ImageFormat = "RAW"
	FormatQcow2 ImageFormat = "QCOW2"
	FormatVmdk  ImageFormat = "VMDK"
	FormatVdi   ImageFormat = "VDI"
	FormatVhd   ImageFormat = "VHD"
	FormatVhdx  ImageFormat = "VHDX"
	FormatOva   ImageFormat = "OVA"
)

func ParseImageFormat(s string) ImageFormat {
	return ImageFormat(strings.ToUpper(s))
}

// Appliance is a catalog entry pushed by the core. Identifier is the key used
// for every lookup against the backend.
type Appliance struct {
	Identifier          string `json:"identifier"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	Mpuri               string `json:"mpuri"`
	Group               string `json:"group"`
	Ram                 int64  `json:"ram"`
	Core                int64  `json:"core"`
	Version             string `json:"version"`
	Architecture        string `json:"architecture"`
	OperatingSystem     string `json:"operating_system"`
	Vo                  string `json:"vo"`
	ExpirationDate      int64  `json:"expiration_date"`
	ImageListIdentifier string `json:"image_list_identifier"`
	BaseMpuri           string `json:"base_mpuri"`
	Appid               string `json:"appid"`
	Digest              string `json:"digest"`
	Image               *Image `json:"image,omitempty"`
}

// Image describes where the disk bytes of an appliance live. Username and
// Password are only used to fetch a remote image and are never persisted.
type Image struct {
	Mode     ImageMode   `json:"mode"`
	Location string      `json:"location"`
	Format   ImageFormat `json:"format"`
	Uri      string      `json:"uri"`
	Checksum string      `json:"checksum"`
	Size     int64       `json:"size"`
	Digest   string      `json:"digest"`
	Username string      `json:"username,omitempty"`
	Password string      `json:"password,omitempty"`
}

func (i *Image) HasCredentials() bool {
	return i != nil && (i.Username != "" || i.Password != "")
}

// Expired reports whether the appliance expiration timestamp is at or before now
// (both in unix seconds).
func (a *Appliance) Expired(now int64) bool {
	return a.ExpirationDate <= now
}
