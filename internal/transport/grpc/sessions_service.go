package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const SessionsServiceName = "peakpartner.sessions.v1.SessionsService"

type SessionsServiceServer interface {
	CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResponse, error)
	GetBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error)
	ListBookings(ctx context.Context, req *ListBookingsRequest) (*ListBookingsResponse, error)
	NextBooking(ctx context.Context, req *ParticipantRequest) (*BookingResponse, error)
	CancelBooking(ctx context.Context, req *CancelBookingRequest) (*BookingResponse, error)
	CompleteBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error)
	MarkNoShow(ctx context.Context, req *BookingRequest) (*BookingResponse, error)

	ProposeReschedule(ctx context.Context, req *ProposeRescheduleRequest) (*RescheduleResponse, error)
	RespondReschedule(ctx context.Context, req *RespondRescheduleRequest) (*RescheduleResponse, error)
	CancelReschedule(ctx context.Context, req *RescheduleRequestRef) (*RescheduleResponse, error)
	ListReschedules(ctx context.Context, req *BookingRequest) (*ListReschedulesResponse, error)
	ListAwaitingResponse(ctx context.Context, req *ParticipantRequest) (*ListReschedulesResponse, error)
}

func RegisterSessionsServiceServer(s grpc.ServiceRegistrar, srv SessionsServiceServer) {
	s.RegisterService(&sessionsServiceDesc, srv)
}

var sessionsServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionsServiceName,
	HandlerType: (*SessionsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateBooking", SessionsServiceServer.CreateBooking),
		unary("GetBooking", SessionsServiceServer.GetBooking),
		unary("ListBookings", SessionsServiceServer.ListBookings),
		unary("NextBooking", SessionsServiceServer.NextBooking),
		unary("CancelBooking", SessionsServiceServer.CancelBooking),
		unary("CompleteBooking", SessionsServiceServer.CompleteBooking),
		unary("MarkNoShow", SessionsServiceServer.MarkNoShow),
		unary("ProposeReschedule", SessionsServiceServer.ProposeReschedule),
		unary("RespondReschedule", SessionsServiceServer.RespondReschedule),
		unary("CancelReschedule", SessionsServiceServer.CancelReschedule),
		unary("ListReschedules", SessionsServiceServer.ListReschedules),
		unary("ListAwaitingResponse", SessionsServiceServer.ListAwaitingResponse),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: SessionsProtoFile,
}

func fullMethod(method string) string {
	return "/" + SessionsServiceName + "/" + method
}

// unary builds the method descriptor the protobuf generator would emit for
// one RPC. Requests arrive as dynamic messages over the default proto codec
// and are copied into Go structs before interceptors run.
func unary[Req, Resp any, PReq wirePtr[Req], PResp wirePtr[Resp]](method string, call func(SessionsServiceServer, context.Context, PReq) (PResp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			wire := newWire(in.wireName())
			if err := dec(wire); err != nil {
				return nil, err
			}
			in.readWire(wire)

			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SessionsServiceServer), ctx, req.(PReq))
			}
			var (
				out any
				err error
			)
			if interceptor == nil {
				out, err = handler(ctx, in)
			} else {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
				out, err = interceptor(ctx, in, info, handler)
			}
			if err != nil {
				return nil, err
			}
			resp, ok := out.(PResp)
			if !ok || resp == nil {
				return nil, status.Errorf(codes.Internal, "%s returned %T", method, out)
			}
			return toWire(resp), nil
		},
	}
}

// SessionsClient calls SessionsService over the default proto codec.
type SessionsClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionsClient(cc grpc.ClientConnInterface) *SessionsClient {
	return &SessionsClient{cc: cc}
}

func invoke[Resp any, PResp wirePtr[Resp]](ctx context.Context, cc grpc.ClientConnInterface, method string, in wireMessage, opts []grpc.CallOption) (PResp, error) {
	out := PResp(new(Resp))
	reply := newWire(out.wireName())
	if err := cc.Invoke(ctx, fullMethod(method), toWire(in), reply, opts...); err != nil {
		return nil, err
	}
	out.readWire(reply)
	return out, nil
}

func (c *SessionsClient) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "CreateBooking", in, opts)
}

func (c *SessionsClient) GetBooking(ctx context.Context, in *BookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "GetBooking", in, opts)
}

func (c *SessionsClient) ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	return invoke[ListBookingsResponse](ctx, c.cc, "ListBookings", in, opts)
}

func (c *SessionsClient) NextBooking(ctx context.Context, in *ParticipantRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "NextBooking", in, opts)
}

func (c *SessionsClient) CancelBooking(ctx context.Context, in *CancelBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "CancelBooking", in, opts)
}

func (c *SessionsClient) CompleteBooking(ctx context.Context, in *BookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "CompleteBooking", in, opts)
}

func (c *SessionsClient) MarkNoShow(ctx context.Context, in *BookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, "MarkNoShow", in, opts)
}

func (c *SessionsClient) ProposeReschedule(ctx context.Context, in *ProposeRescheduleRequest, opts ...grpc.CallOption) (*RescheduleResponse, error) {
	return invoke[RescheduleResponse](ctx, c.cc, "ProposeReschedule", in, opts)
}

func (c *SessionsClient) RespondReschedule(ctx context.Context, in *RespondRescheduleRequest, opts ...grpc.CallOption) (*RescheduleResponse, error) {
	return invoke[RescheduleResponse](ctx, c.cc, "RespondReschedule", in, opts)
}

func (c *SessionsClient) CancelReschedule(ctx context.Context, in *RescheduleRequestRef, opts ...grpc.CallOption) (*RescheduleResponse, error) {
	return invoke[RescheduleResponse](ctx, c.cc, "CancelReschedule", in, opts)
}

func (c *SessionsClient) ListReschedules(ctx context.Context, in *BookingRequest, opts ...grpc.CallOption) (*ListReschedulesResponse, error) {
	return invoke[ListReschedulesResponse](ctx, c.cc, "ListReschedules", in, opts)
}

func (c *SessionsClient) ListAwaitingResponse(ctx context.Context, in *ParticipantRequest, opts ...grpc.CallOption) (*ListReschedulesResponse, error) {
	return invoke[ListReschedulesResponse](ctx, c.cc, "ListAwaitingResponse", in, opts)
}
