package grpc

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// wireMessage copies a Go message to and from its dynamic protobuf form.
type wireMessage interface {
	wireName() protoreflect.Name
	writeWire(m protoreflect.Message)
	readWire(m protoreflect.Message)
}

type wirePtr[T any] interface {
	*T
	wireMessage
}

func toWire(v wireMessage) protoreflect.ProtoMessage {
	m := newWire(v.wireName())
	v.writeWire(m)
	return m
}

func fieldOf(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("grpc: %s has no field %s", m.Descriptor().FullName(), name))
	}
	return fd
}

func putString(m protoreflect.Message, name protoreflect.Name, v string) {
	if v != "" {
		m.Set(fieldOf(m, name), protoreflect.ValueOfString(v))
	}
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(fieldOf(m, name)).String()
}

func putBool(m protoreflect.Message, name protoreflect.Name, v bool) {
	if v {
		m.Set(fieldOf(m, name), protoreflect.ValueOfBool(v))
	}
}

func getBool(m protoreflect.Message, name protoreflect.Name) bool {
	return m.Get(fieldOf(m, name)).Bool()
}

// putTime writes t as a google.protobuf.Timestamp. The zero time is left unset.
func putTime(m protoreflect.Message, name protoreflect.Name, t time.Time) {
	if t.IsZero() {
		return
	}
	ts := timestamppb.New(t)
	sub := m.Mutable(fieldOf(m, name)).Message()
	sub.Set(fieldOf(sub, "seconds"), protoreflect.ValueOfInt64(ts.GetSeconds()))
	if ts.GetNanos() != 0 {
		sub.Set(fieldOf(sub, "nanos"), protoreflect.ValueOfInt32(ts.GetNanos()))
	}
}

func getTime(m protoreflect.Message, name protoreflect.Name) (time.Time, bool) {
	fd := fieldOf(m, name)
	if !m.Has(fd) {
		return time.Time{}, false
	}
	sub := m.Get(fd).Message()
	ts := &timestamppb.Timestamp{
		Seconds: sub.Get(fieldOf(sub, "seconds")).Int(),
		Nanos:   int32(sub.Get(fieldOf(sub, "nanos")).Int()),
	}
	return ts.AsTime(), true
}

func readTime(m protoreflect.Message, name protoreflect.Name) time.Time {
	t, _ := getTime(m, name)
	return t
}

func putChild(m protoreflect.Message, name protoreflect.Name, v wireMessage) {
	v.writeWire(m.Mutable(fieldOf(m, name)).Message())
}

func getChild(m protoreflect.Message, name protoreflect.Name) (protoreflect.Message, bool) {
	fd := fieldOf(m, name)
	if !m.Has(fd) {
		return nil, false
	}
	return m.Get(fd).Message(), true
}

func putList[T wireMessage](m protoreflect.Message, name protoreflect.Name, items []T) {
	if len(items) == 0 {
		return
	}
	list := m.Mutable(fieldOf(m, name)).List()
	for _, item := range items {
		el := list.NewElement()
		item.writeWire(el.Message())
		list.Append(el)
	}
}

func getList[T any, PT wirePtr[T]](m protoreflect.Message, name protoreflect.Name) []*T {
	list := m.Get(fieldOf(m, name)).List()
	out := make([]*T, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		item := new(T)
		PT(item).readWire(list.Get(i).Message())
		out = append(out, item)
	}
	return out
}

func (*Booking) wireName() protoreflect.Name { return "Booking" }

func (b *Booking) writeWire(m protoreflect.Message) {
	putString(m, "id", b.ID)
	putString(m, "relationship_id", b.RelationshipID)
	putString(m, "trainer_id", b.TrainerID)
	putString(m, "client_id", b.ClientID)
	putString(m, "date", b.Date)
	putString(m, "start_time", b.StartTime)
	putString(m, "end_time", b.EndTime)
	putString(m, "mode", b.Mode)
	putString(m, "status", b.Status)
	putString(m, "notes", b.Notes)
	putString(m, "cancel_reason", b.CancelReason)
	putString(m, "cancelled_by", b.CancelledBy)
	putTime(m, "created_at", b.CreatedAt)
	putTime(m, "updated_at", b.UpdatedAt)
}

func (b *Booking) readWire(m protoreflect.Message) {
	*b = Booking{
		ID:             getString(m, "id"),
		RelationshipID: getString(m, "relationship_id"),
		TrainerID:      getString(m, "trainer_id"),
		ClientID:       getString(m, "client_id"),
		Date:           getString(m, "date"),
		StartTime:      getString(m, "start_time"),
		EndTime:        getString(m, "end_time"),
		Mode:           getString(m, "mode"),
		Status:         getString(m, "status"),
		Notes:          getString(m, "notes"),
		CancelReason:   getString(m, "cancel_reason"),
		CancelledBy:    getString(m, "cancelled_by"),
		CreatedAt:      readTime(m, "created_at"),
		UpdatedAt:      readTime(m, "updated_at"),
	}
}

func (*RescheduleRequest) wireName() protoreflect.Name { return "RescheduleRequest" }

func (r *RescheduleRequest) writeWire(m protoreflect.Message) {
	putString(m, "id", r.ID)
	putString(m, "booking_id", r.BookingID)
	putString(m, "requested_by", r.RequestedBy)
	putString(m, "proposed_date", r.ProposedDate)
	putString(m, "proposed_start_time", r.ProposedStartTime)
	putString(m, "proposed_end_time", r.ProposedEndTime)
	putString(m, "reason", r.Reason)
	putString(m, "status", r.Status)
	if r.RespondedAt != nil {
		putTime(m, "responded_at", *r.RespondedAt)
	}
	putTime(m, "created_at", r.CreatedAt)
}

func (r *RescheduleRequest) readWire(m protoreflect.Message) {
	*r = RescheduleRequest{
		ID:                getString(m, "id"),
		BookingID:         getString(m, "booking_id"),
		RequestedBy:       getString(m, "requested_by"),
		ProposedDate:      getString(m, "proposed_date"),
		ProposedStartTime: getString(m, "proposed_start_time"),
		ProposedEndTime:   getString(m, "proposed_end_time"),
		Reason:            getString(m, "reason"),
		Status:            getString(m, "status"),
		CreatedAt:         readTime(m, "created_at"),
	}
	if t, ok := getTime(m, "responded_at"); ok {
		r.RespondedAt = &t
	}
}

func (*CreateBookingRequest) wireName() protoreflect.Name { return "CreateBookingRequest" }

func (r *CreateBookingRequest) writeWire(m protoreflect.Message) {
	if r == nil {
		return
	}
	putString(m, "participant_id", r.ParticipantID)
	putString(m, "relationship_id", r.RelationshipID)
	putString(m, "date", r.Date)
	putString(m, "start_time", r.StartTime)
	putString(m, "end_time", r.EndTime)
	putString(m, "mode", r.Mode)
	putString(m, "notes", r.Notes)
}

func (r *CreateBookingRequest) readWire(m protoreflect.Message) {
	*r = CreateBookingRequest{
		ParticipantID:  getString(m, "participant_id"),
		RelationshipID: getString(m, "relationship_id"),
		Date:           getString(m, "date"),
		StartTime:      getString(m, "start_time"),
		EndTime:        getString(m, "end_time"),
		Mode:           getString(m, "mode"),
		Notes:          getString(m, "notes"),
	}
}

func (*BookingRequest) wireName() protoreflect.Name { return "BookingRequest" }

func (r *BookingRequest) writeWire(m protoreflect.Message) {
	if r == nil {
		return
	}
	putString(m, "participant_id", r.ParticipantID)
	putString(m, "booking_id", r.BookingID)
}

func (r *BookingRequest) readWire(m protoreflect.Message) {
	*r = BookingRequest{
		ParticipantID: getString(m, "participant_id"),
		BookingID:     getString(m, "booking_id"),
	}
}

func (*CancelBookingRequest) wireName() protoreflect.Name { return "CancelBookingRequest" }

func (r *CancelBookingRequest) writeWire(m protoreflect.Message) {
	if r == nil {
		return
	}
	putString(m, "participant_id", r.ParticipantID)
	putString(m, "booking_id", r.BookingID)
	putString(m, "reason", r.Reason)
}

func (r *CancelBookingRequest) readWire(m protoreflect.Message) {
	*r = CancelBookingRequest{
		ParticipantID: getString(m, "participant_id"),
		BookingID:     getString(m, "booking_id"),
		Reason:        getString(m, "reason"),
	}
}

func (*ListBookingsRequest) wireName() protoreflect.Name { return "ListBookingsRequest" }

func (r *ListBookingsRequest) writeWire(m protoreflect.Message) {
	if r == nil {
		return
	}
	putString(m, "participant_id", r.ParticipantID)
	putString(m, "scope", r.Scope)
	putString(m, "from", r.From)
	putString(m, "to", r.To)
	putString(m, "status", r.Status)
}

func (r *ListBookingsRequest) readWire(m protoreflect.Message) {
	*r = ListBookingsRequest{
		ParticipantID: getString(m, "participant_id"),
		Scope:         getString(m, "scope"),
		From:          getString(m, "from"),
		To:            getString(m, "to"),
		Status:        getString(m, "status"),
	}
}

func (*ParticipantRequest) wireName() protoreflect.Name { return "ParticipantRequest" }

func (r *ParticipantRequest) writeWire(m protoreflect.Message) {
	if r == nil {
		return
	}
	putString(m, "participant_id", r.ParticipantID)
}

func (r *ParticipantRequest) readWire(m protoreflect.Message) {
	*r = ParticipantRequest{ParticipantID: getString(m, "participant_id")}
}

func (*BookingResponse) wireName() protoreflect.Name { return "BookingResponse" }

func (r *BookingResponse) writeWire(m protoreflect.Message) {
	if r.Booking != nil {
		putChild(m, "booking", r.Booking)
	}
}

func (r *BookingResponse) readWire(m protoreflect.Message) {
	*r = BookingResponse{}
	if sub, ok := getChild(m, "booking"); ok {
		r.Booking = new(Booking)
		r.Booking.readWire(sub)
	}
}

func (*ListBookingsResponse) wireName() protoreflect.Name { return "ListBookingsResponse" }

func (r *ListBookingsResponse) writeWire(m protoreflect.Message) {
	putList(m, "bookings", r.Bookings)
}

func (r *ListBookingsResponse) readWire(m protoreflect.Message) {
	r.Bookings = getList[Booking](m, "bookings")
}

func (*ProposeRescheduleRequest) wireName() protoreflect.Name { return "ProposeRescheduleRequest" }

func (r *ProposeRescheduleRequest) writeWire(m protoreflect.Message) {
	if r == nil {
		return
	}
	putString(m, "participant_id", r.ParticipantID)
	putString(m, "booking_id", r.BookingID)
	putString(m, "date", r.Date)
	putString(m, "start_time", r.StartTime)
	putString(m, "end_time", r.EndTime)
	putString(m, "reason", r.Reason)
}

func (r *ProposeRescheduleRequest) readWire(m protoreflect.Message) {
	*r = ProposeRescheduleRequest{
		ParticipantID: getString(m, "participant_id"),
		BookingID:     getString(m, "booking_id"),
		Date:          getString(m, "date"),
		StartTime:     getString(m, "start_time"),
		EndTime:       getString(m, "end_time"),
		Reason:        getString(m, "reason"),
	}
}

func (*RespondRescheduleRequest) wireName() protoreflect.Name { return "RespondRescheduleRequest" }

func (r *RespondRescheduleRequest) writeWire(m protoreflect.Message) {
	if r == nil {
		return
	}
	putString(m, "participant_id", r.ParticipantID)
	putString(m, "request_id", r.RequestID)
	putBool(m, "accept", r.Accept)
}

func (r *RespondRescheduleRequest) readWire(m protoreflect.Message) {
	*r = RespondRescheduleRequest{
		ParticipantID: getString(m, "participant_id"),
		RequestID:     getString(m, "request_id"),
		Accept:        getBool(m, "accept"),
	}
}

func (*RescheduleRequestRef) wireName() protoreflect.Name { return "RescheduleRequestRef" }

func (r *RescheduleRequestRef) writeWire(m protoreflect.Message) {
	if r == nil {
		return
	}
	putString(m, "participant_id", r.ParticipantID)
	putString(m, "request_id", r.RequestID)
}

func (r *RescheduleRequestRef) readWire(m protoreflect.Message) {
	*r = RescheduleRequestRef{
		ParticipantID: getString(m, "participant_id"),
		RequestID:     getString(m, "request_id"),
	}
}

func (*RescheduleResponse) wireName() protoreflect.Name { return "RescheduleResponse" }

func (r *RescheduleResponse) writeWire(m protoreflect.Message) {
	if r.Request != nil {
		putChild(m, "request", r.Request)
	}
	if r.Booking != nil {
		putChild(m, "booking", r.Booking)
	}
}

func (r *RescheduleResponse) readWire(m protoreflect.Message) {
	*r = RescheduleResponse{}
	if sub, ok := getChild(m, "request"); ok {
		r.Request = new(RescheduleRequest)
		r.Request.readWire(sub)
	}
	if sub, ok := getChild(m, "booking"); ok {
		r.Booking = new(Booking)
		r.Booking.readWire(sub)
	}
}

func (*ListReschedulesResponse) wireName() protoreflect.Name { return "ListReschedulesResponse" }

func (r *ListReschedulesResponse) writeWire(m protoreflect.Message) {
	putList(m, "requests", r.Requests)
}

func (r *ListReschedulesResponse) readWire(m protoreflect.Message) {
	r.Requests = getList[RescheduleRequest](m, "requests")
}
