package rpc

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
)

// ProtoFile is the descriptor of the core's cloudkeeper.proto. It is assembled
// at startup so the connector speaks the core's wire format without
// generated code.
var ProtoFile = mustBuildFile()

var (
	applianceDescriptor           = ProtoFile.Messages().ByName("Appliance")
	imageDescriptor               = ProtoFile.Messages().ByName("Image")
	imageListIdentifierDescriptor = ProtoFile.Messages().ByName("ImageListIdentifier")
	modeEnum                      = imageDescriptor.Enums().ByName("Mode")
	formatEnum                    = imageDescriptor.Enums().ByName("Format")
)

const emptyType = ".google.protobuf.Empty"

func mustBuildFile() protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(fileDescriptorProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(err)
	}
	return fd
}

func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING
	u64 := descriptorpb.FieldDescriptorProto_TYPE_UINT64
	u32 := descriptorpb.FieldDescriptorProto_TYPE_UINT32

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("cloudkeeper.proto"),
		Package:    proto.String("cloudkeeper"),
		Dependency: []string{"google/protobuf/empty.proto"},
		Syntax:     proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Appliance"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("identifier", 1, str),
					field("title", 2, str),
					field("description", 3, str),
					field("mpuri", 4, str),
					field("group", 5, str),
					field("ram", 6, u64),
					field("core", 7, u32),
					field("version", 8, str),
					field("architecture", 9, str),
					field("operating_system", 10, str),
					field("vo", 11, str),
					field("expiration_date", 12, u64),
					field("image_list_identifier", 13, str),
					field("base_mpuri", 14, str),
					field("appid", 15, str),
					field("digest", 16, str),
					typed("image", 17, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".cloudkeeper.Image"),
				},
			},
			{
				Name: proto.String("Image"),
				Field: []*descriptorpb.FieldDescriptorProto{
					typed("mode", 1, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".cloudkeeper.Image.Mode"),
					field("location", 2, str),
					typed("format", 3, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".cloudkeeper.Image.Format"),
					field("uri", 4, str),
					field("checksum", 5, str),
					field("size", 6, u64),
					field("username", 7, str),
					field("password", 8, str),
					field("digest", 9, str),
				},
				EnumType: []*descriptorpb.EnumDescriptorProto{
					enum("Mode", "LOCAL", "REMOTE"),
					enum("Format", "RAW", "QCOW2", "VMDK", "VDI", "OVA", "VHD", "VHDX"),
				},
			},
			{
				Name:  proto.String("ImageListIdentifier"),
				Field: []*descriptorpb.FieldDescriptorProto{field("image_list_identifier", 1, str)},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Communicator"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("PreAction", emptyType, emptyType, false),
				method("PostAction", emptyType, emptyType, false),
				method("AddAppliance", ".cloudkeeper.Appliance", emptyType, false),
				method("UpdateAppliance", ".cloudkeeper.Appliance", emptyType, false),
				method("UpdateApplianceMetadata", ".cloudkeeper.Appliance", emptyType, false),
				method("RemoveAppliance", ".cloudkeeper.Appliance", emptyType, false),
				method("RemoveImageList", ".cloudkeeper.ImageListIdentifier", emptyType, false),
				method("ImageLists", emptyType, ".cloudkeeper.ImageListIdentifier", true),
				method("Appliances", ".cloudkeeper.ImageListIdentifier", ".cloudkeeper.Appliance", true),
				method("RemoveExpiredAppliances", emptyType, emptyType, false),
			},
		}},
	}
}

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func typed(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := field(name, number, typ)
	f.TypeName = proto.String(typeName)
	return f
}

// enum numbers values in declaration order, starting at zero.
func enum(name string, values ...string) *descriptorpb.EnumDescriptorProto {
	e := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	for i, v := range values {
		e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v),
			Number: proto.Int32(int32(i)),
		})
	}
	return e
}

func method(name, input, output string, serverStreaming bool) *descriptorpb.MethodDescriptorProto {
	m := &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(input),
		OutputType: proto.String(output),
	}
	if serverStreaming {
		m.ServerStreaming = proto.Bool(true)
	}
	return m
}
