package grpc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// SessionsProtoFile is the path the schema is registered under. The same
// schema is checked in at api/peakpartner/sessions/v1/sessions.proto.
const SessionsProtoFile = "peakpartner/sessions/v1/sessions.proto"

const (
	protoPackage   = "peakpartner.sessions.v1"
	timestampProto = "google/protobuf/timestamp.proto"
	timestampType  = ".google.protobuf.Timestamp"
)

// SessionsFileDescriptor describes every SessionsService message. It is
// registered in protoregistry.GlobalFiles so server reflection can serve it.
var SessionsFileDescriptor protoreflect.FileDescriptor

func init() {
	fd, err := protodesc.NewFile(sessionsFileProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("grpc: build %s: %v", SessionsProtoFile, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("grpc: register %s: %v", SessionsProtoFile, err))
	}
	SessionsFileDescriptor = fd
}

func sessionsFileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(SessionsProtoFile),
		Package:    proto.String(protoPackage),
		Dependency: []string{timestampProto},
		Syntax:     proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("peakpartner/backend/gen/peakpartner/sessions/v1;sessionsv1"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			message("Booking",
				stringField("id", 1),
				stringField("relationship_id", 2),
				stringField("trainer_id", 3),
				stringField("client_id", 4),
				stringField("date", 5),
				stringField("start_time", 6),
				stringField("end_time", 7),
				stringField("mode", 8),
				stringField("status", 9),
				stringField("notes", 10),
				stringField("cancel_reason", 11),
				stringField("cancelled_by", 12),
				messageField("created_at", 13, timestampType),
				messageField("updated_at", 14, timestampType),
			),
			message("RescheduleRequest",
				stringField("id", 1),
				stringField("booking_id", 2),
				stringField("requested_by", 3),
				stringField("proposed_date", 4),
				stringField("proposed_start_time", 5),
				stringField("proposed_end_time", 6),
				stringField("reason", 7),
				stringField("status", 8),
				messageField("responded_at", 9, timestampType),
				messageField("created_at", 10, timestampType),
			),
			message("CreateBookingRequest",
				stringField("participant_id", 1),
				stringField("relationship_id", 2),
				stringField("date", 3),
				stringField("start_time", 4),
				stringField("end_time", 5),
				stringField("mode", 6),
				stringField("notes", 7),
			),
			message("BookingRequest",
				stringField("participant_id", 1),
				stringField("booking_id", 2),
			),
			message("CancelBookingRequest",
				stringField("participant_id", 1),
				stringField("booking_id", 2),
				stringField("reason", 3),
			),
			message("ListBookingsRequest",
				stringField("participant_id", 1),
				stringField("scope", 2),
				stringField("from", 3),
				stringField("to", 4),
				stringField("status", 5),
			),
			message("ParticipantRequest",
				stringField("participant_id", 1),
			),
			message("BookingResponse",
				messageField("booking", 1, localType("Booking")),
			),
			message("ListBookingsResponse",
				repeatedField("bookings", 1, localType("Booking")),
			),
			message("ProposeRescheduleRequest",
				stringField("participant_id", 1),
				stringField("booking_id", 2),
				stringField("date", 3),
				stringField("start_time", 4),
				stringField("end_time", 5),
				stringField("reason", 6),
			),
			message("RespondRescheduleRequest",
				stringField("participant_id", 1),
				stringField("request_id", 2),
				boolField("accept", 3),
			),
			message("RescheduleRequestRef",
				stringField("participant_id", 1),
				stringField("request_id", 2),
			),
			message("RescheduleResponse",
				messageField("request", 1, localType("RescheduleRequest")),
				messageField("booking", 2, localType("Booking")),
			),
			message("ListReschedulesResponse",
				repeatedField("requests", 1, localType("RescheduleRequest")),
			),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("SessionsService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				rpc("CreateBooking", "CreateBookingRequest", "BookingResponse"),
				rpc("GetBooking", "BookingRequest", "BookingResponse"),
				rpc("ListBookings", "ListBookingsRequest", "ListBookingsResponse"),
				rpc("NextBooking", "ParticipantRequest", "BookingResponse"),
				rpc("CancelBooking", "CancelBookingRequest", "BookingResponse"),
				rpc("CompleteBooking", "BookingRequest", "BookingResponse"),
				rpc("MarkNoShow", "BookingRequest", "BookingResponse"),
				rpc("ProposeReschedule", "ProposeRescheduleRequest", "RescheduleResponse"),
				rpc("RespondReschedule", "RespondRescheduleRequest", "RescheduleResponse"),
				rpc("CancelReschedule", "RescheduleRequestRef", "RescheduleResponse"),
				rpc("ListReschedules", "BookingRequest", "ListReschedulesResponse"),
				rpc("ListAwaitingResponse", "ParticipantRequest", "ListReschedulesResponse"),
			},
		}},
	}
}

func localType(name string) string {
	return "." + protoPackage + "." + name
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func stringField(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return field(name, number, descriptorpb.FieldDescriptorProto_TYPE_STRING)
}

func boolField(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return field(name, number, descriptorpb.FieldDescriptorProto_TYPE_BOOL)
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := field(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(typeName)
	return f
}

func repeatedField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := messageField(name, number, typeName)
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func rpc(name, in, out string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(localType(in)),
		OutputType: proto.String(localType(out)),
	}
}

// newWire returns an empty dynamic message for one of the schema's types.
func newWire(name protoreflect.Name) *dynamicpb.Message {
	md := SessionsFileDescriptor.Messages().ByName(name)
	if md == nil {
		panic(fmt.Sprintf("grpc: %s has no message %s", SessionsProtoFile, name))
	}
	return dynamicpb.NewMessage(md)
}
