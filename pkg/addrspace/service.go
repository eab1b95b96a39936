/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package addrspace

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

// ServiceName is the fully qualified gRPC name of the address space service.
const ServiceName = "opcua.aggregator.v1.AddressSpace"

const (
	fieldNodeID   = "node_id"
	fieldValue    = "value"
	fieldDataType = "data_type"
	fieldStatus   = "status"
)

var errMissingNodeID = errors.New("request has no node_id")

// AddressSpaceServer is the server API of the address space service. Requests
// and responses are Struct messages keyed by node_id, value, data_type and
// status.
type AddressSpaceServer interface {
	Read(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Write(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Service serves reads and writes of local variables. Writes go through
// WriteValue, so intercepts installed on a variable see them.
type Service struct {
	space  *Space
	logger logger.Logger
}

// NewService returns a Service backed by space.
func NewService(space *Space, log logger.Logger) *Service {
	return &Service{space: space, logger: log}
}

// Register adds the service to server.
func (s *Service) Register(server *grpc.Server) error {
	server.RegisterService(&AddressSpaceServiceDesc, s)

	return nil
}

// Read returns the value and data type of a variable.
func (s *Service) Read(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requestNodeID(req)
	if err != nil {
		return nil, err
	}

	value, err := s.space.ReadValue(id)
	if err != nil {
		return nil, statusError(err)
	}

	dataType, err := s.space.DataType(id)
	if err != nil {
		return nil, statusError(err)
	}

	pv, err := protoValue(value)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldNodeID:   structpb.NewStringValue(id.String()),
		fieldDataType: structpb.NewStringValue(dataType),
		fieldValue:    pv,
	}}, nil
}

// Write converts the request value to the variable's data type and stores it.
func (s *Service) Write(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requestNodeID(req)
	if err != nil {
		return nil, err
	}

	dataType, err := s.space.DataType(id)
	if err != nil {
		return nil, statusError(err)
	}

	value, err := coerce(dataType, req.GetFields()[fieldValue].AsInterface())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s: %v", models.StatusBadTypeMismatch, err)
	}

	if err := s.space.WriteValue(ctx, id, value); err != nil {
		s.logger.Debug().Err(err).Str("node_id", id.String()).Msg("Rejected write")

		return nil, statusError(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldNodeID: structpb.NewStringValue(id.String()),
		fieldStatus: structpb.NewStringValue(models.StatusGood.String()),
	}}, nil
}

func requestNodeID(req *structpb.Struct) (nodeid.NodeID, error) {
	raw := req.GetFields()[fieldNodeID].GetStringValue()
	if raw == "" {
		return nodeid.NodeID{}, status.Error(codes.InvalidArgument, errMissingNodeID.Error())
	}

	id, err := nodeid.Parse(raw)
	if err != nil {
		return nodeid.NodeID{}, status.Error(codes.InvalidArgument, err.Error())
	}

	return id, nil
}

// statusError maps the OPC UA status carried by err to a gRPC status.
func statusError(err error) error {
	switch models.StatusOf(err) {
	case models.StatusBadNodeIDUnknown:
		return status.Error(codes.NotFound, err.Error())
	case models.StatusBadTypeMismatch, models.StatusBadAttributeInvalid:
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// protoValue converts a stored value to a Struct value. Times become RFC 3339
// strings and byte strings become plain strings, matching what coerce accepts.
func protoValue(v interface{}) (*structpb.Value, error) {
	switch x := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case time.Time:
		return structpb.NewStringValue(x.UTC().Format(time.RFC3339Nano)), nil
	case []byte:
		return structpb.NewStringValue(string(x)), nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Bool:
		return structpb.NewBoolValue(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return structpb.NewNumberValue(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return structpb.NewNumberValue(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return structpb.NewNumberValue(rv.Float()), nil
	case reflect.String:
		return structpb.NewStringValue(rv.String()), nil
	case reflect.Slice:
		list := make([]*structpb.Value, rv.Len())

		for i := range list {
			item, err := protoValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}

			list[i] = item
		}

		return structpb.NewListValue(&structpb.ListValue{Values: list}), nil
	default:
		return nil, fmt.Errorf("%w: %T", errBadValue, v)
	}
}

func readHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(AddressSpaceServer).Read(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Read"}

	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AddressSpaceServer).Read(ctx, req.(*structpb.Struct))
	})
}

func writeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(AddressSpaceServer).Write(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Write"}

	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AddressSpaceServer).Write(ctx, req.(*structpb.Struct))
	})
}

// AddressSpaceServiceDesc describes the address space service for grpc.Server.
var AddressSpaceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AddressSpaceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Read", Handler: readHandler},
		{MethodName: "Write", Handler: writeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "opcua/aggregator/v1/address_space.proto",
}

// Client calls the address space service.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient returns a Client over conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Read returns the value and data type of the variable named by id.
func (c *Client) Read(ctx context.Context, id string) (value interface{}, dataType string, err error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldNodeID: structpb.NewStringValue(id),
	}}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Read", req, out); err != nil {
		return nil, "", err
	}

	return out.GetFields()[fieldValue].AsInterface(), out.GetFields()[fieldDataType].GetStringValue(), nil
}

// Write sets the variable named by id. value must be representable as a Struct
// value.
func (c *Client) Write(ctx context.Context, id string, value interface{}) error {
	pv, err := structpb.NewValue(value)
	if err != nil {
		return err
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldNodeID: structpb.NewStringValue(id),
		fieldValue:  pv,
	}}

	return c.conn.Invoke(ctx, "/"+ServiceName+"/Write", req, new(structpb.Struct))
}
