package counter

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

const queryStatsMethod = "/xray.app.stats.command.StatsService/QueryStats"

// statsMessages mirrors the three messages of the relay's stats command API
// that QueryStats needs. Built once at init from a hand-written descriptor.
var statsMessages = mustStatsMessages()

type statsDescriptors struct {
	request  protoreflect.MessageDescriptor
	response protoreflect.MessageDescriptor
	stat     protoreflect.MessageDescriptor
}

func mustStatsMessages() statsDescriptors {
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	field := func(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(name),
			Number:   proto.Int32(num),
			Label:    optional,
			Type:     typ.Enum(),
		}
	}
	statList := field("stat", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	statList.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	statList.TypeName = proto.String(".xray.app.stats.command.Stat")

	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("app/stats/command/command.proto"),
		Package: proto.String("xray.app.stats.command"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("QueryStatsRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("pattern", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("reset", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				},
			},
			{
				Name: proto.String("Stat"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				},
			},
			{
				Name:  proto.String("QueryStatsResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{statList},
			},
		},
	}
	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		panic(fmt.Sprintf("stats descriptor: %v", err))
	}
	msgs := fd.Messages()
	return statsDescriptors{
		request:  msgs.ByName("QueryStatsRequest"),
		response: msgs.ByName("QueryStatsResponse"),
		stat:     msgs.ByName("Stat"),
	}
}

// GRPCSource queries the relay's StatsService with reset=true.
type GRPCSource struct {
	conn    grpc.ClientConnInterface
	closer  func() error
	pattern string
}

// DialGRPC connects to the relay API at addr. The connection is lazy; an
// unreachable relay surfaces on the first query.
func DialGRPC(addr, pattern string, opts ...grpc.DialOption) (*GRPCSource, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial relay api %s: %w", addr, err)
	}
	s := NewGRPCSource(conn, pattern)
	s.closer = conn.Close
	return s, nil
}

// NewGRPCSource wraps an existing connection. Close does not close conn.
func NewGRPCSource(conn grpc.ClientConnInterface, pattern string) *GRPCSource {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &GRPCSource{conn: conn, pattern: pattern}
}

func (s *GRPCSource) QueryAndReset(ctx context.Context) (map[string]domain.RawTraffic, error) {
	req := dynamicpb.NewMessage(statsMessages.request)
	req.Set(statsMessages.request.Fields().ByName("pattern"), protoreflect.ValueOfString(s.pattern))
	req.Set(statsMessages.request.Fields().ByName("reset"), protoreflect.ValueOfBool(true))

	resp := dynamicpb.NewMessage(statsMessages.response)
	if err := s.conn.Invoke(ctx, queryStatsMethod, req, resp); err != nil {
		return nil, fmt.Errorf("%w: query stats: %v", domain.ErrSourceUnavailable, err)
	}

	var (
		list      = resp.Get(statsMessages.response.Fields().ByName("stat")).List()
		nameField = statsMessages.stat.Fields().ByName("name")
		valField  = statsMessages.stat.Fields().ByName("value")
		stats     = make([]Stat, 0, list.Len())
	)
	for i := 0; i < list.Len(); i++ {
		m := list.Get(i).Message()
		stats = append(stats, Stat{
			Name:  m.Get(nameField).String(),
			Value: statValue(m.Get(valField).Int()),
		})
	}
	return Fold(stats), nil
}

func (s *GRPCSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

var _ ports.CounterSource = (*GRPCSource)(nil)
