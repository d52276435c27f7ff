// Package server exposes the program cache and the reference host as the
// gRPC service shadevm.v1.Shader. The service is described by an embedded
// .proto parsed at startup; requests and replies are dynamic messages.
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/funvibe/shadevm/internal/cache"
	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/diagnostics"
	"github.com/funvibe/shadevm/internal/host"
	"github.com/funvibe/shadevm/internal/logging"
	"github.com/funvibe/shadevm/internal/symbols"
	"github.com/funvibe/shadevm/internal/vm"
	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

//go:embed shadevm.proto
var protoSource string

const (
	protoFile   = "shadevm.proto"
	ServiceName = "shadevm.v1.Shader"
)

var parseService = sync.OnceValues(func() (*desc.ServiceDescriptor, error) {
	p := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{protoFile: protoSource}),
	}
	fds, err := p.ParseFiles(protoFile)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", protoFile, err)
	}
	sd := fds[0].FindService(ServiceName)
	if sd == nil {
		return nil, fmt.Errorf("%s: no service %s", protoFile, ServiceName)
	}
	return sd, nil
})

// Service returns the descriptor of shadevm.v1.Shader.
func Service() (*desc.ServiceDescriptor, error) { return parseService() }

// DefaultOutputs are returned by Shade when a request names none.
var DefaultOutputs = []string{"Ci", "Oi"}

// Server implements shadevm.v1.Shader.
type Server struct {
	cache *cache.Cache
	host  *host.Host
	grid  config.GridConfig
	sd    *desc.ServiceDescriptor
	grpc  *grpc.Server
}

type unaryFunc func(s *Server, ctx context.Context, in *dynamic.Message) (*dynamic.Message, error)

var handlers = map[string]unaryFunc{
	"Load":        (*Server).load,
	"Shade":       (*Server).shade,
	"Disassemble": (*Server).disassemble,
}

// New builds a server over a program cache and a host. grid is used when
// a Shade request leaves its size at zero.
func New(c *cache.Cache, h *host.Host, grid config.GridConfig, opts ...grpc.ServerOption) (*Server, error) {
	sd, err := Service()
	if err != nil {
		return nil, err
	}
	if grid.Width <= 0 {
		grid.Width = config.DefaultGridWidth
	}
	if grid.Height <= 0 {
		grid.Height = config.DefaultGridHeight
	}
	s := &Server{cache: c, host: h, grid: grid, sd: sd, grpc: grpc.NewServer(opts...)}
	s.Register(s.grpc)
	return s, nil
}

// Register adds the service to g.
func (s *Server) Register(g *grpc.Server) {
	sdesc := &grpc.ServiceDesc{
		ServiceName: s.sd.GetFullyQualifiedName(),
		HandlerType: (*interface{})(nil),
		Metadata:    s.sd.GetFile().GetName(),
	}
	for _, method := range s.sd.GetMethods() {
		md := method
		fn, ok := handlers[md.GetName()]
		if !ok {
			logging.Logger().Warn("rpc without handler", "method", md.GetFullyQualifiedName())
			continue
		}
		sdesc.Methods = append(sdesc.Methods, grpc.MethodDesc{
			MethodName: md.GetName(),
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return srv.(*Server).handleUnary(ctx, md, fn, dec, interceptor)
			},
		})
	}
	g.RegisterService(sdesc, s)
}

func (s *Server) handleUnary(ctx context.Context, md *desc.MethodDescriptor, fn unaryFunc, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := dynamic.NewMessage(md.GetInputType())
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		out, err := fn(s, ctx, req.(*dynamic.Message))
		if err != nil {
			logging.Logger().Info("rpc failed", "method", md.GetName(), "err", err)
			return nil, err
		}
		return out, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/" + ServiceName + "/" + md.GetName()}
	return interceptor(ctx, in, info, call)
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	logging.Logger().Info("serving", "addr", lis.Addr().String(), "service", ServiceName)
	return s.grpc.Serve(lis)
}

// Stop waits for in-flight requests and closes the listeners.
func (s *Server) Stop() { s.grpc.GracefulStop() }

func (s *Server) load(ctx context.Context, in *dynamic.Message) (*dynamic.Message, error) {
	file := stringField(in, "file")
	if file == "" {
		file = "request" + config.BytecodeFileExt
	}
	e, err := s.cache.Put(ctx, file, stringField(in, "bytecode"))
	if err != nil {
		var d *diagnostics.Error
		if errors.As(err, &d) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := s.reply("Load")
	out.SetFieldByName("id", e.ID.String())
	out.SetFieldByName("kind", e.Kind)
	out.SetFieldByName("name", e.Name)
	out.SetFieldByName("uses", e.Uses)
	out.SetFieldByName("uses_names", symbols.MaskNames(e.Uses))
	return out, nil
}

func (s *Server) program(ctx context.Context, in *dynamic.Message) (*vm.Program, error) {
	id, err := uuid.Parse(stringField(in, "id"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad program id: %v", err)
	}
	prog, err := s.cache.Program(ctx, id)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return nil, status.Error(codes.NotFound, err.Error())
	case err != nil:
		return nil, status.Error(codes.Internal, err.Error())
	}
	return prog, nil
}

func (s *Server) shade(ctx context.Context, in *dynamic.Message) (*dynamic.Message, error) {
	prog, err := s.program(ctx, in)
	if err != nil {
		return nil, err
	}
	w, ht := int(int32Field(in, "width")), int(int32Field(in, "height"))
	if w < 0 || ht < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "grid %dx%d", w, ht)
	}
	if w == 0 {
		w = s.grid.Width
	}
	if ht == 0 {
		ht = s.grid.Height
	}
	params := map[string]host.Value{}
	for _, p := range messages(in, "params") {
		params[stringField(p, "name")] = valueFrom(messageField(p, "value"))
	}
	outputs := stringsField(in, "outputs")
	if len(outputs) == 0 {
		outputs = DefaultOutputs
	}

	sess := s.host.Session()
	m, err := sess.Shade(ctx, prog, w, ht, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, status.FromContextError(ctx.Err()).Err()
		}
		if m == nil || errors.Is(err, host.ErrBadParam) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Aborted, err.Error())
	}

	out := s.reply("Shade")
	vd := out.GetMessageDescriptor().FindFieldByName("outputs").GetMessageType()
	for _, name := range outputs {
		d, ok := m.Variable(name)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "%s has no variable %s", prog.Name, name)
		}
		v := dynamic.NewMessage(vd)
		v.SetFieldByName("name", name)
		v.SetFieldByName("kind", d.Kind.String())
		v.SetFieldByName("varying", d.Varying)
		if d.Kind == vm.KindString {
			v.SetFieldByName("texts", d.S)
		} else {
			v.SetFieldByName("numbers", flatten(d))
		}
		out.AddRepeatedFieldByName("outputs", v)
	}
	for _, r := range sess.Reports() {
		out.AddRepeatedFieldByName("reports", r.Error())
	}
	logging.Logger().Debug("shaded", "shader", prog.Name, "grid", fmt.Sprintf("%dx%d", w, ht), "reports", len(sess.Reports()))
	return out, nil
}

func (s *Server) disassemble(ctx context.Context, in *dynamic.Message) (*dynamic.Message, error) {
	prog, err := s.program(ctx, in)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", prog.Kind, prog.Name)
	sb.WriteString(config.SegmentKeyword + " " + config.SegmentInit + "\n")
	sb.WriteString(vm.Listing(&prog.Init))
	sb.WriteString(config.SegmentKeyword + " " + config.SegmentCode + "\n")
	sb.WriteString(vm.Listing(&prog.Code))

	out := s.reply("Disassemble")
	out.SetFieldByName("text", prog.Text())
	out.SetFieldByName("listing", sb.String())
	return out, nil
}

func (s *Server) reply(method string) *dynamic.Message {
	return dynamic.NewMessage(s.sd.FindMethodByName(method).GetOutputType())
}

// flatten lays out every element's components one after another.
func flatten(d vm.Data) []float64 {
	switch d.Kind {
	case vm.KindTriple:
		out := make([]float64, 0, 3*len(d.T))
		for _, t := range d.T {
			out = append(out, t[:]...)
		}
		return out
	case vm.KindMatrix:
		out := make([]float64, 0, 16*len(d.M))
		for _, m := range d.M {
			out = append(out, m[:]...)
		}
		return out
	}
	return append([]float64(nil), d.F...)
}
