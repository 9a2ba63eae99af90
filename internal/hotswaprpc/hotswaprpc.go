// Package hotswaprpc serves the IDE hotswap push channel spec §6
// describes: an IDE sends updated transformer class bytes over gRPC, the
// core re-registers the transformer and redefines every already-loaded
// target through host.InstrumentationHost.
//
// There is no protoc-generated stub for this one-method service; instead,
// following the teacher's builtins_grpc.go pattern, the .proto source is
// parsed in-process with protoparse and a grpc.ServiceDesc is built by
// hand from the resulting service descriptor, with dynamic.Message values
// standing in for generated request/response structs.
package hotswaprpc

import (
	"context"
	"fmt"
	"net"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
)

// protoSource is the hotswap service's wire contract. Kept in-process
// (Accessor-backed parse) rather than shipped as a .proto file on disk,
// since this is the framework's one fixed internal service, not a
// host-extensible one.
const protoSource = `
syntax = "proto3";
package classmorph.hotswap;

message PushRequest {
  string internal_name = 1;
  bytes class_bytes = 2;
}

message PushResponse {
  bool applied = 1;
  string error = 2;
}

service Hotswap {
  rpc Push(PushRequest) returns (PushResponse);
}
`

const protoFileName = "classmorph_hotswap.proto"

// Applier is the narrow surface hotswaprpc needs from transform.Manager,
// kept as an interface here so this package never imports transform
// (pkg/classmorph constructs the Server over its transform.Manager only
// when a hotswap listen address is configured, keeping hotswap an
// optional add-on to the synchronous load-time path).
type Applier interface {
	Hotswap(ctx context.Context, transformerName string, newBytes []byte) error
}

// Server hosts the hand-built Hotswap gRPC service.
type Server struct {
	grpcServer *grpc.Server
	applier    Applier
	methodDesc *desc.MethodDescriptor
}

// NewServer parses the built-in hotswap.proto source and wires a single
// Push RPC to applier.
func NewServer(applier Applier) (*Server, error) {
	fd, err := parseHotswapProto()
	if err != nil {
		return nil, err
	}

	sd := fd.FindService("classmorph.hotswap.Hotswap")
	if sd == nil {
		return nil, fmt.Errorf("classmorph: hotswap service descriptor missing from parsed proto")
	}
	md := sd.FindMethodByName("Push")
	if md == nil {
		return nil, fmt.Errorf("classmorph: hotswap Push method descriptor missing from parsed proto")
	}

	s := &Server{applier: applier, methodDesc: md}

	serviceDesc := &grpc.ServiceDesc{
		ServiceName: sd.GetFullyQualifiedName(),
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Push",
				Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
					return srv.(*Server).handlePush(ctx, dec)
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: sd.GetFile().GetName(),
	}

	s.grpcServer = grpc.NewServer()
	s.grpcServer.RegisterService(serviceDesc, s)
	return s, nil
}

func parseHotswapProto() (*desc.FileDescriptor, error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{
			protoFileName: protoSource,
		}),
	}
	fds, err := parser.ParseFiles(protoFileName)
	if err != nil {
		return nil, fmt.Errorf("classmorph: parsing hotswap proto: %w", err)
	}
	return fds[0], nil
}

func (s *Server) handlePush(ctx context.Context, dec func(interface{}) error) (interface{}, error) {
	req := dynamic.NewMessage(s.methodDesc.GetInputType())
	if err := dec(req); err != nil {
		return nil, fmt.Errorf("classmorph: decoding hotswap push: %w", err)
	}

	name, _ := req.TryGetFieldByName("internal_name")
	classBytes, _ := req.TryGetFieldByName("class_bytes")

	internalName, _ := name.(string)
	raw, _ := classBytes.([]byte)

	resp := dynamic.NewMessage(s.methodDesc.GetOutputType())
	if err := s.applier.Hotswap(ctx, internalName, raw); err != nil {
		resp.SetFieldByName("applied", false)
		resp.SetFieldByName("error", err.Error())
		return resp, nil
	}
	resp.SetFieldByName("applied", true)
	return resp, nil
}

// Serve blocks accepting connections on addr until listening fails or the
// gRPC server stops.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("classmorph: listening on %s: %w", addr, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeAsync starts Serve in a background goroutine, matching the
// fire-and-forget pattern the framework otherwise avoids except for this
// one optional side channel.
func (s *Server) ServeAsync(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("classmorph: listening on %s: %w", addr, err)
	}
	go func() {
		_ = s.grpcServer.Serve(lis)
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
