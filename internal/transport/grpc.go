package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	rpb "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/frame"
)

// GRPC sends frames whose uri is "package.Service/Method". Method
// descriptors are resolved through server reflection and messages are built
// dynamically from the request body.
type GRPC struct {
	conn      *grpc.ClientConn
	refClient *grpcreflect.Client
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	methods map[string]*desc.MethodDescriptor
}

// GRPCOptions configures DialGRPC.
type GRPCOptions struct {
	Timeout time.Duration
	// Plaintext disables TLS. Otherwise the system roots verify the server.
	Plaintext bool
	Logger    *slog.Logger
	// DialOptions are appended after the credential option.
	DialOptions []grpc.DialOption
}

// DialGRPC creates a client for target. The connection is established
// lazily on the first call.
func DialGRPC(target string, opts GRPCOptions) (*GRPC, error) {
	creds := credentials.NewTLS(nil)
	if opts.Plaintext {
		creds = insecure.NewCredentials()
	}
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target, err)
	}
	return &GRPC{
		conn:      conn,
		refClient: grpcreflect.NewClientV1Alpha(context.Background(), rpb.NewServerReflectionClient(conn)),
		timeout:   opts.Timeout,
		logger:    logger(opts.Logger),
		methods:   make(map[string]*desc.MethodDescriptor),
	}, nil
}

// Close releases the reflection stream and the connection.
func (g *GRPC) Close() error {
	g.refClient.Reset()
	return g.conn.Close()
}

// resolveMethod resolves "package.Service/Method" to its descriptor.
func (g *GRPC) resolveMethod(fullMethod string) (*desc.MethodDescriptor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if md, ok := g.methods[fullMethod]; ok {
		return md, nil
	}

	serviceName, methodName, ok := strings.Cut(fullMethod, "/")
	if !ok || serviceName == "" || methodName == "" || strings.Contains(methodName, "/") {
		return nil, fmt.Errorf("invalid method %q (expected 'package.Service/Method')", fullMethod)
	}

	svcDesc, err := g.refClient.ResolveService(serviceName)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve service %s: %w", serviceName, err)
	}
	md := svcDesc.FindMethodByName(methodName)
	if md == nil {
		return nil, fmt.Errorf("method %s not found in service %s", methodName, serviceName)
	}
	if md.IsClientStreaming() || md.IsServerStreaming() {
		return nil, fmt.Errorf("method %s is streaming; only unary calls are supported", fullMethod)
	}
	g.methods[fullMethod] = md
	return md, nil
}

// Send implements reel.Sender.
func (g *GRPC) Send(ctx context.Context, _ frame.Protocol, req frame.Request) (doc.Value, error) {
	method := strings.TrimPrefix(strings.TrimSpace(req.URI), "/")
	md, err := g.resolveMethod(method)
	if err != nil {
		return nil, err
	}

	in := dynamicpb.NewMessage(md.GetInputType().UnwrapMessage())
	if req.Body != nil {
		if _, isNull := req.Body.(doc.Null); !isNull {
			data, err := doc.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("encode body: %w", err)
			}
			if err := protojson.Unmarshal(data, in); err != nil {
				return nil, fmt.Errorf("request body does not fit %s: %w", md.GetInputType().GetFullyQualifiedName(), err)
			}
		}
	}
	out := dynamicpb.NewMessage(md.GetOutputType().UnwrapMessage())

	if meta, ok := req.Etc["metadata"].(doc.Object); ok {
		pairs := make([]string, 0, 2*len(meta))
		for _, k := range meta.SortedKeys() {
			v, err := textValue(meta[k])
			if err != nil {
				return nil, fmt.Errorf("metadata %s: %w", k, err)
			}
			pairs = append(pairs, k, v)
		}
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.logger.Debug("grpc request", "method", method)
	err = g.conn.Invoke(ctx, "/"+method, in, out)
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || transportCode(st.Code()) {
			return nil, err
		}
		g.logger.Debug("grpc response", "method", method, "code", st.Code())
		return doc.Object{
			"status": doc.Int(st.Code()),
			"body":   doc.Object{"message": doc.String(st.Message())},
		}, nil
	}

	data, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	body, err := doc.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	g.logger.Debug("grpc response", "method", method, "code", codes.OK)
	return doc.Object{"status": doc.Int(codes.OK), "body": body}, nil
}

// transportCode reports codes that mean the call never completed.
func transportCode(c codes.Code) bool {
	return c == codes.Unavailable || c == codes.DeadlineExceeded || c == codes.Canceled
}
