package grpc

import (
	"context"
	"crypto/subtle"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// ChatInternalService is the trusted back-office lookup surface used by
// ticketing systems to resolve rooms without going through agent auth.
type ChatInternalService interface {
	GetRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRoomByTicket(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type ChatInternalServer struct {
	rooms         ports.RoomRepository
	internalToken string
}

func NewChatInternalServer(rooms ports.RoomRepository, internalToken string) *ChatInternalServer {
	return &ChatInternalServer{rooms: rooms, internalToken: internalToken}
}

func Register(server grpc.ServiceRegistrar, svc ChatInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "viralforge.livechat.v1.ChatInternalService",
		HandlerType: (*ChatInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetRoom",
				Handler:    getRoomHandler(svc),
			},
			{
				MethodName: "GetRoomByTicket",
				Handler:    getRoomByTicketHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "contracts/proto/livechat/v1/chat_internal.proto",
	}, svc)
}

func (s *ChatInternalServer) authorize(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing credentials")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return status.Error(codes.Unauthenticated, "missing credentials")
	}
	raw := values[0]
	const prefix = "Bearer "
	if len(raw) > len(prefix) && raw[:len(prefix)] == prefix {
		raw = raw[len(prefix):]
	}
	if s.internalToken == "" ||
		subtle.ConstantTimeCompare([]byte(raw), []byte(s.internalToken)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid service token")
	}
	return nil
}

func (s *ChatInternalServer) GetRoom(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	roomVal := req.GetFields()["room"]
	if roomVal == nil {
		return nil, status.Error(codes.InvalidArgument, "missing room")
	}
	roomID, err := uuid.Parse(roomVal.GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "room must be a uuid")
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "room not found")
		}
		return nil, status.Errorf(codes.Internal, "get room: %v", err)
	}
	return roomStruct(room)
}

func (s *ChatInternalServer) GetRoomByTicket(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	projectVal := req.GetFields()["project"]
	ticketVal := req.GetFields()["ticket"]
	if projectVal == nil || ticketVal == nil {
		return nil, status.Error(codes.InvalidArgument, "missing project or ticket")
	}
	projectID, err := uuid.Parse(projectVal.GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "project must be a uuid")
	}
	ticketRef := ticketVal.GetStringValue()
	if ticketRef == "" {
		return nil, status.Error(codes.InvalidArgument, "missing ticket")
	}

	room, err := s.rooms.GetActiveByTicket(ctx, projectID, ticketRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "room not found")
		}
		return nil, status.Errorf(codes.Internal, "get room by ticket: %v", err)
	}
	return roomStruct(room)
}

func roomStruct(room domain.Room) (*structpb.Struct, error) {
	fields := map[string]any{
		"uuid":       room.ID.String(),
		"project":    room.ProjectID.String(),
		"sector":     room.SectorID.String(),
		"contact":    room.ContactID.String(),
		"is_active":  room.IsActive,
		"is_waiting": room.IsWaiting,
		"urn":        room.URN,
		"created_on": room.CreatedOn.Unix(),
	}
	if room.QueueID != nil {
		fields["queue"] = room.QueueID.String()
	}
	if room.UserEmail != nil {
		fields["user"] = *room.UserEmail
	}
	if room.EndedAt != nil {
		fields["ended_at"] = room.EndedAt.Unix()
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func getRoomHandler(svc ChatInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetRoom(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/viralforge.livechat.v1.ChatInternalService/GetRoom",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetRoom(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func getRoomByTicketHandler(svc ChatInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetRoomByTicket(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/viralforge.livechat.v1.ChatInternalService/GetRoomByTicket",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetRoomByTicket(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
